package query

import "github.com/asaidimu/go-rowcase/core/record"

// QueryDSL is a complete row pipeline: the filters that select rows and the
// transforms applied to the rows that remain.
type QueryDSL struct {
	Filters    []FilterSpec    `json:"filters,omitempty" yaml:"filters,omitempty"`
	Transforms []TransformSpec `json:"-" yaml:"-"`
}

// QueryBuilder provides a fluent API for building a QueryDSL.
//
//	dsl := query.NewQueryBuilder().
//		Where("story").Eq("Shopping Cart").
//		Where("max").Gt(40).
//		Transform("min", query.Scale(2)).
//		Build()
type QueryBuilder struct {
	query QueryDSL
}

// NewQueryBuilder creates a new, empty query builder instance.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// Build returns the constructed QueryDSL.
func (qb *QueryBuilder) Build() QueryDSL {
	return QueryDSL{
		Filters:    append([]FilterSpec(nil), qb.query.Filters...),
		Transforms: append([]TransformSpec(nil), qb.query.Transforms...),
	}
}

// Clone creates an independent copy of the builder.
func (qb *QueryBuilder) Clone() *QueryBuilder {
	return &QueryBuilder{query: qb.Build()}
}

// Reset clears the builder.
func (qb *QueryBuilder) Reset() *QueryBuilder {
	qb.query = QueryDSL{}
	return qb
}

// FilterConditionBuilder builds a single filter condition on a field.
type FilterConditionBuilder struct {
	parent *QueryBuilder
	field  string
}

// Where begins a filter condition for field. Conditions are combined with AND.
func (qb *QueryBuilder) Where(field string) *FilterConditionBuilder {
	return &FilterConditionBuilder{parent: qb, field: field}
}

// Eq keeps rows whose field equals value.
func (fcb *FilterConditionBuilder) Eq(value any) *QueryBuilder {
	return fcb.addCondition(OperatorEquals, value)
}

// Contains keeps rows whose field contains value.
func (fcb *FilterConditionBuilder) Contains(value any) *QueryBuilder {
	return fcb.addCondition(OperatorContains, value)
}

// Gt keeps rows whose field is numerically greater than value.
func (fcb *FilterConditionBuilder) Gt(value any) *QueryBuilder {
	return fcb.addCondition(OperatorGreaterThan, value)
}

// Lt keeps rows whose field is numerically less than value.
func (fcb *FilterConditionBuilder) Lt(value any) *QueryBuilder {
	return fcb.addCondition(OperatorLessThan, value)
}

// Custom adds a condition using an operator registered with
// DataProcessor.RegisterFilterFunction.
func (fcb *FilterConditionBuilder) Custom(operator Operator, value any) *QueryBuilder {
	return fcb.addCondition(operator, value)
}

func (fcb *FilterConditionBuilder) addCondition(operator Operator, value any) *QueryBuilder {
	fcb.parent.query.Filters = append(fcb.parent.query.Filters, FilterSpec{
		Field:    fcb.field,
		Value:    value,
		Operator: operator,
	})
	return fcb.parent
}

// Transform appends a transform for field. Transforms run in the order added.
func (qb *QueryBuilder) Transform(field string, fn TransformFunc) *QueryBuilder {
	qb.query.Transforms = append(qb.query.Transforms, TransformSpec{Field: field, Transform: fn})
	return qb
}

// Execute runs the filters and then the transforms of dsl over rows.
func (p *DataProcessor) Execute(rows []record.Row, dsl QueryDSL) ([]record.Row, error) {
	return p.Process(rows, dsl.Filters, dsl.Transforms)
}
