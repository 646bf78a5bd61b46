package query

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/asaidimu/go-rowcase/core/record"
)

// DataProcessor filters and transforms rows in memory. Custom filter
// operators and named transforms can be registered on it; it is safe for
// concurrent use.
type DataProcessor struct {
	predicates map[Operator]PredicateFunction
	transforms map[string]TransformFunc
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewDataProcessor creates a new DataProcessor instance with the built-in
// named transforms registered.
func NewDataProcessor(logger *zap.Logger) *DataProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &DataProcessor{
		predicates: make(map[Operator]PredicateFunction),
		transforms: make(map[string]TransformFunc),
		logger:     logger,
	}
	for name, fn := range builtinTransforms {
		p.transforms[name] = fn
	}
	return p
}

// RegisterFilterFunction registers a custom operator. Standard operators
// always use their built-in semantics and cannot be overridden.
func (p *DataProcessor) RegisterFilterFunction(operator Operator, fn PredicateFunction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.predicates[operator] = fn
	p.logger.Info("Registered filter function", zap.String("operator", string(operator)))
}

// RegisterTransformFunction registers a named transform, replacing any
// transform already registered under name.
func (p *DataProcessor) RegisterTransformFunction(name string, fn TransformFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transforms[name] = fn
	p.logger.Info("Registered transform function", zap.String("name", name))
}

// RegisterTransformFunctions registers multiple named transforms from a map.
func (p *DataProcessor) RegisterTransformFunctions(functionMap map[string]TransformFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, fn := range functionMap {
		p.transforms[name] = fn
		p.logger.Info("Registered transform function", zap.String("name", name))
	}
}

// TransformByName looks up a registered transform.
func (p *DataProcessor) TransformByName(name string) (TransformFunc, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn, ok := p.transforms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, name)
	}
	return fn, nil
}

// Validate checks that every spec names a known operator.
func (p *DataProcessor) Validate(specs []FilterSpec) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.validate(specs)
}

func (p *DataProcessor) validate(specs []FilterSpec) error {
	for i, spec := range specs {
		op := spec.Operator.OrDefault()
		if op.IsStandard() {
			continue
		}
		if _, ok := p.predicates[op]; !ok {
			return fmt.Errorf("filter %d on field %q: %w: %s", i, spec.Field, ErrUnknownOperator, op)
		}
	}
	return nil
}

// Process applies filters and then transforms, the way a data source is
// prepared before expansion.
func (p *DataProcessor) Process(rows []record.Row, filters []FilterSpec, transforms []TransformSpec) ([]record.Row, error) {
	filtered, err := p.Filter(rows, filters)
	if err != nil {
		return nil, fmt.Errorf("filter failed: %w", err)
	}
	p.logger.Debug("Rows remaining after filters", zap.Int("count", len(filtered)))

	transformed, err := p.Transform(filtered, transforms)
	if err != nil {
		return nil, fmt.Errorf("transform failed: %w", err)
	}
	return transformed, nil
}

// Filter keeps the rows that satisfy every spec, preserving order. With no
// specs the input is returned unchanged.
func (p *DataProcessor) Filter(rows []record.Row, specs []FilterSpec) ([]record.Row, error) {
	if len(specs) == 0 {
		return rows, nil
	}

	predicates, err := p.predicatesFor(specs)
	if err != nil {
		return nil, err
	}

	filtered := make([]record.Row, 0, len(rows))
	for i, row := range rows {
		passes, err := match(predicates, row, specs)
		if err != nil {
			return nil, fmt.Errorf("error evaluating filters for row %d: %w", i+1, err)
		}
		if passes {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

// Match reports whether row satisfies every spec.
func (p *DataProcessor) Match(row record.Row, specs []FilterSpec) (bool, error) {
	predicates, err := p.predicatesFor(specs)
	if err != nil {
		return false, err
	}
	return match(predicates, row, specs)
}

// predicatesFor validates specs and copies the custom predicates they use, so
// rows are evaluated without holding the lock.
func (p *DataProcessor) predicatesFor(specs []FilterSpec) (map[Operator]PredicateFunction, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.validate(specs); err != nil {
		return nil, err
	}
	predicates := make(map[Operator]PredicateFunction)
	for _, spec := range specs {
		if op := spec.Operator.OrDefault(); !op.IsStandard() {
			predicates[op] = p.predicates[op]
		}
	}
	return predicates, nil
}

func match(predicates map[Operator]PredicateFunction, row record.Row, specs []FilterSpec) (bool, error) {
	for _, spec := range specs {
		passes, err := evaluate(predicates, row, spec)
		if err != nil || !passes {
			return false, err
		}
	}
	return true, nil
}

// evaluate applies a single spec. A field missing from the row fails every
// standard operator.
func evaluate(predicates map[Operator]PredicateFunction, row record.Row, spec FilterSpec) (bool, error) {
	op := spec.Operator.OrDefault()
	if !op.IsStandard() {
		return predicates[op](row, spec.Field, spec.Value)
	}

	value, ok := row.Get(spec.Field)
	if !ok {
		return false, nil
	}

	switch op {
	case OperatorEquals:
		return value == Stringify(spec.Value), nil
	case OperatorContains:
		return strings.Contains(value, Stringify(spec.Value)), nil
	case OperatorGreaterThan:
		// NaN on either side compares false.
		return ParseFloat(value) > ToNumber(spec.Value), nil
	case OperatorLessThan:
		return ParseFloat(value) < ToNumber(spec.Value), nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
}

// Transform applies every spec to every row, in order, producing new rows.
// The input rows are left untouched. With no specs the input is returned
// unchanged.
func (p *DataProcessor) Transform(rows []record.Row, specs []TransformSpec) ([]record.Row, error) {
	if len(specs) == 0 {
		return rows, nil
	}

	out := make([]record.Row, len(rows))
	for i, row := range rows {
		current := row
		for _, spec := range specs {
			value, ok := current.Get(spec.Field)
			if !ok {
				continue
			}
			if spec.Transform == nil {
				return nil, fmt.Errorf("transform on field %q has no function", spec.Field)
			}
			result, err := spec.Transform(value)
			if err != nil {
				return nil, fmt.Errorf("error transforming field %q of row %d: %w", spec.Field, i+1, err)
			}
			current = current.With(spec.Field, Stringify(result))
		}
		out[i] = current
	}
	p.logger.Debug("Rows transformed", zap.Int("count", len(out)), zap.Int("transforms", len(specs)))
	return out, nil
}
