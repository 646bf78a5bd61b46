// Package utils converts between record.Row values and Go structs, so test
// bodies can work with typed fixtures instead of string lookups.
package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/asaidimu/go-rowcase/core/query"
	"github.com/asaidimu/go-rowcase/core/record"
)

// StructToRow converts a struct into a record.Row.
//
// Fields are named by their `json` tag, falling back to the Go field name,
// and keep their declaration order. Fields tagged `json:"-"` and unexported
// fields are skipped, as are empty values of fields tagged `omitempty`.
// Values are rendered the way rows render them: numbers in their shortest
// form, booleans as "true"/"false", nested values as JSON.
//
// The input must be a struct or a non-nil pointer to a struct.
//
// Example:
//
//	type Rule struct {
//		Story string `json:"story"`
//		Min   int    `json:"min"`
//	}
//	row, err := StructToRow(Rule{Story: "Login", Min: 3})
//	// row is {story=Login, min=3}
func StructToRow[T any](input T) (record.Row, error) {
	val := reflect.ValueOf(input)
	if !val.IsValid() {
		return record.Row{}, fmt.Errorf("input cannot be nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return record.Row{}, fmt.Errorf("input cannot be a nil pointer to a struct")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return record.Row{}, fmt.Errorf("input must be a struct or a pointer to a struct, got %s", val.Kind())
	}

	var row record.Row
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		name, omitEmpty, ok := fieldName(sf)
		if !ok {
			continue
		}
		fv := val.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		s, err := render(fv)
		if err != nil {
			return record.Row{}, fmt.Errorf("StructToRow: field %q: %w", name, err)
		}
		row = row.With(name, s)
	}
	return row, nil
}

// RowToStruct decodes a record.Row into a new instance of T.
//
// Each row value is coerced to the kind of the struct field it lands in,
// matched by `json` tag: numeric fields accept anything a number can be
// parsed from, boolean fields accept strconv.ParseBool input, and struct,
// map and slice fields accept JSON. An empty value leaves the field at its
// zero value. Row fields without a matching struct field are ignored.
//
// T must be a struct type, or a pointer to one.
//
// Example:
//
//	type Rule struct {
//		Story string  `json:"story"`
//		Min   int     `json:"min"`
//		Max   float64 `json:"max"`
//	}
//	rule, err := RowToStruct[Rule](record.FromPairs("story", "Login", "min", "3", "max", "9.5"))
func RowToStruct[T any](row record.Row) (T, error) {
	var zero T

	typ := reflect.TypeOf(zero)
	if typ == nil {
		return zero, fmt.Errorf("RowToStruct: generic type T must be a struct type (or pointer to struct)")
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("RowToStruct: generic type T must be a struct type (or pointer to struct), got %s", typ.Kind())
	}

	input := make(map[string]any, row.Len())
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		name, _, ok := fieldName(sf)
		if !ok {
			continue
		}
		raw, present := row.Get(name)
		if !present || raw == "" {
			continue
		}
		v, err := coerce(raw, sf.Type)
		if err != nil {
			return zero, fmt.Errorf("RowToStruct: field %q: %w", name, err)
		}
		input[name] = v
	}

	jsonBytes, err := json.Marshal(input)
	if err != nil {
		return zero, fmt.Errorf("RowToStruct: failed to marshal row values to JSON: %w", err)
	}

	var result T
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return zero, fmt.Errorf("RowToStruct: failed to unmarshal JSON to target struct: %w", err)
	}
	return result, nil
}

func fieldName(sf reflect.StructField) (name string, omitEmpty bool, ok bool) {
	if !sf.IsExported() {
		return "", false, false
	}
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return "", false, false
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = sf.Name
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, true
}

func render(fv reflect.Value) (string, error) {
	for fv.Kind() == reflect.Ptr || fv.Kind() == reflect.Interface {
		if fv.IsNil() {
			return "", nil
		}
		fv = fv.Elem()
	}
	switch fv.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		if fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() == reflect.Uint8 {
			return string(fv.Bytes()), nil
		}
		b, err := json.Marshal(fv.Interface())
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return query.Stringify(fv.Interface()), nil
	}
}

func coerce(raw string, typ reflect.Type) (any, error) {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	switch typ.Kind() {
	case reflect.String:
		return raw, nil
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid boolean %q", raw)
		}
		return b, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := query.ToNumber(raw)
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return nil, fmt.Errorf("invalid integer %q", raw)
		}
		return int64(n), nil
	case reflect.Float32, reflect.Float64:
		n := query.ToNumber(raw)
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("invalid number %q", raw)
		}
		return n, nil
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array, reflect.Interface:
		if json.Valid([]byte(raw)) {
			return json.RawMessage(raw), nil
		}
		return raw, nil
	default:
		return raw, nil
	}
}
