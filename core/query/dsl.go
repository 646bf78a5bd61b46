// Package query defines the filters and transforms applied to
// loaded rows, and the DataProcessor that evaluates them in memory.
package query

import (
	"errors"

	"github.com/asaidimu/go-rowcase/core/record"
)

// Operator is the comparison applied by a FilterSpec.
type Operator string

// Supported comparison operators.
const (
	OperatorEquals      Operator = "equals"
	OperatorContains    Operator = "contains"
	OperatorGreaterThan Operator = "greaterThan"
	OperatorLessThan    Operator = "lessThan"
)

var (
	// ErrUnknownOperator is returned when a filter names an operator that is
	// neither standard nor registered on the processor.
	ErrUnknownOperator = errors.New("unknown filter operator")
	// ErrUnknownTransform is returned when a named transform is not registered.
	ErrUnknownTransform = errors.New("unknown transform")
)

// standardOperators is the set of built-in comparison operators.
var standardOperators = map[Operator]struct{}{
	OperatorEquals:      {},
	OperatorContains:    {},
	OperatorGreaterThan: {},
	OperatorLessThan:    {},
}

// IsStandard checks if an operator is one of the built-in operators.
func (o Operator) IsStandard() bool {
	_, ok := standardOperators[o]
	return ok
}

// OrDefault returns OperatorEquals for the empty operator and o otherwise.
func (o Operator) OrDefault() Operator {
	if o == "" {
		return OperatorEquals
	}
	return o
}

// FilterSpec is a single field-level predicate. Value may be a string or a
// number; it is compared in string form for equals/contains and in numeric
// form for greaterThan/lessThan.
type FilterSpec struct {
	Field    string   `json:"field" yaml:"field"`
	Value    any      `json:"value" yaml:"value"`
	Operator Operator `json:"operator,omitempty" yaml:"operator,omitempty"`
}

// TransformFunc maps a field value to a new value. The result may be a string
// or a number; it is converted back to a string with Stringify.
type TransformFunc func(value string) (any, error)

// TransformSpec applies Transform to Field on every row that has the field.
type TransformSpec struct {
	Field     string
	Transform TransformFunc
}

// PredicateFunction is a custom filter operator. It receives the row, the
// field named by the FilterSpec and its value.
type PredicateFunction func(row record.Row, field string, value any) (bool, error)
