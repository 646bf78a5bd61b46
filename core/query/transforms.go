package query

import "strings"

// builtinTransforms are registered on every new DataProcessor.
var builtinTransforms = map[string]TransformFunc{
	"upper": func(v string) (any, error) { return strings.ToUpper(v), nil },
	"lower": func(v string) (any, error) { return strings.ToLower(v), nil },
	"trim":  func(v string) (any, error) { return strings.TrimSpace(v), nil },
	"double": func(v string) (any, error) {
		return ParseFloat(v) * 2, nil
	},
	"parseInt":   func(v string) (any, error) { return ParseInt(v), nil },
	"parseFloat": func(v string) (any, error) { return ParseFloat(v), nil },
}

// Scale returns a transform multiplying the integer prefix of a value by
// factor. A value without digits becomes "NaN".
func Scale(factor float64) TransformFunc {
	return func(v string) (any, error) {
		return ParseInt(v) * factor, nil
	}
}

// Upper returns a transform converting values to upper case.
func Upper() TransformFunc {
	return builtinTransforms["upper"]
}

// Lower returns a transform converting values to lower case.
func Lower() TransformFunc {
	return builtinTransforms["lower"]
}
