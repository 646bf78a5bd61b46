// Package query provides a set of utility functions to support the filter and
// transform engines. These helpers handle the coercions between the string
// values stored on rows and the numbers that filters and transforms reason
// about.
package query

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	floatPrefix   = regexp.MustCompile(`^[+-]?(?:Infinity|(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?)`)
	intPrefix     = regexp.MustCompile(`^[+-]?\d+`)
	hexPrefix     = regexp.MustCompile(`^([+-]?)0[xX]([0-9a-fA-F]+)`)
	strictDecimal = regexp.MustCompile(`^[+-]?(?:Infinity|(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?)$`)
	strictHex     = regexp.MustCompile(`^0[xX][0-9a-fA-F]+$`)
)

// ParseFloat reads the longest leading decimal number of s, after skipping
// leading whitespace. Trailing characters are ignored. When s has no numeric
// prefix the result is NaN.
func ParseFloat(s string) float64 {
	m := floatPrefix.FindString(strings.TrimLeft(s, " \t\n\r\v\f"))
	if m == "" {
		return math.NaN()
	}
	return parseDecimal(m)
}

// ParseInt reads the leading base-10 (or 0x-prefixed base-16) integer of s,
// after skipping leading whitespace. The result is a float64 so that the
// absence of digits can be reported as NaN.
func ParseInt(s string) float64 {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	if m := hexPrefix.FindStringSubmatch(s); m != nil {
		u, err := strconv.ParseUint(m[2], 16, 64)
		if err != nil {
			return math.Inf(signOf(m[1]))
		}
		f := float64(u)
		if m[1] == "-" {
			f = -f
		}
		return f
	}
	m := intPrefix.FindString(s)
	if m == "" {
		return math.NaN()
	}
	return parseDecimal(m)
}

func signOf(s string) int {
	if s == "-" {
		return -1
	}
	return 1
}

func parseDecimal(s string) float64 {
	switch strings.TrimLeft(s, "+-") {
	case "Infinity":
		return math.Inf(signOf(s[:1]))
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Out of range values still carry a usable ±Inf or 0.
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}

// ToNumber converts a filter value to a number. Numbers are returned as is,
// booleans become 0 or 1, strings are trimmed and must be entirely numeric
// ("" counts as 0). Anything else is NaN.
func ToNumber(v any) float64 {
	if f, ok := ToFloat64(v); ok {
		return f
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0
		}
		if strictHex.MatchString(s) {
			return ParseInt(s)
		}
		if strictDecimal.MatchString(s) {
			return parseDecimal(s)
		}
		return math.NaN()
	case bool:
		if val {
			return 1
		}
		return 0
	case fmt.Stringer:
		return ToNumber(val.String())
	default:
		return math.NaN()
	}
}

// ToFloat64 is a utility function that converts a value of various numeric types
// to a float64. It returns the converted float64 and a boolean indicating whether
// the conversion was successful.
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}

// FormatNumber renders f in its shortest round-tripping decimal form:
// 10 is "10", 2.5 is "2.5". Not-a-number is "NaN" and infinities are
// "Infinity" and "-Infinity". Very large or very small magnitudes use an
// exponent ("1e+21", "1e-7").
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Stringify converts a filter value or a transform result to the string form
// stored on rows. nil becomes "".
func Stringify(v any) string {
	if v == nil {
		return ""
	}
	if f, ok := ToFloat64(v); ok {
		switch v.(type) {
		case float32, float64:
			return FormatNumber(f)
		}
		return fmt.Sprint(v)
	}
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}
