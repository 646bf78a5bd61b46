package config

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/asaidimu/go-rowcase/core/query"
)

var exprFunctions = []expr.Option{
	expr.Function("parseInt", func(params ...any) (any, error) {
		return query.ParseInt(query.Stringify(params[0])), nil
	}, new(func(any) float64)),
	expr.Function("parseFloat", func(params ...any) (any, error) {
		return query.ParseFloat(query.Stringify(params[0])), nil
	}, new(func(any) float64)),
	expr.Function("toNumber", func(params ...any) (any, error) {
		return query.ToNumber(params[0]), nil
	}, new(func(any) float64)),
}

// CompileTransform compiles an expression into a transform. The expression
// sees the field's current text as `value` and may call parseInt, parseFloat
// and toNumber besides the expr builtins.
func CompileTransform(source string) (query.TransformFunc, error) {
	options := append([]expr.Option{expr.Env(map[string]any{"value": ""})}, exprFunctions...)
	program, err := expr.Compile(source, options...)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid expression %q: %w", ErrInvalidConfig, source, err)
	}
	return func(value string) (any, error) {
		return run(program, value)
	}, nil
}

func run(program *vm.Program, value string) (any, error) {
	out, err := expr.Run(program, map[string]any{"value": value})
	if err != nil {
		return nil, fmt.Errorf("expression evaluation failed: %w", err)
	}
	return out, nil
}
