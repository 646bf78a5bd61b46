// Package source decides where the rows of a data-driven suite come from.
// Runtime parameters (environment variables, then command-line flags) take
// precedence over the data source declared by the suite.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/asaidimu/go-rowcase/core/loader"
	"github.com/asaidimu/go-rowcase/core/query"
	"github.com/asaidimu/go-rowcase/core/record"
)

var (
	// ErrMissingSource is returned when a data source declares no origin.
	ErrMissingSource = errors.New("either a csv path, a single row or a loader must be provided")
	// ErrConflictingSource is returned when a data source declares more than one origin.
	ErrConflictingSource = errors.New("only one of csv path, single row or loader may be provided")
)

// RowLoader is a custom origin of rows, such as a database query.
type RowLoader interface {
	Load(ctx context.Context) ([]record.Row, error)
}

// DataSource declares the rows of a suite. Exactly one of CSVPath,
// SingleRow and Loader must be set.
type DataSource struct {
	// CSVPath is a tabular file, resolved against the working directory.
	// CSV, TSV and XLSX files are recognised by extension.
	CSVPath string
	// Sheet selects the sheet of an XLSX file.
	Sheet     string
	SingleRow *record.Row
	Loader    RowLoader

	Filters    []query.FilterSpec
	Transforms []query.TransformSpec
}

// Validate checks that exactly one origin is declared.
func (ds DataSource) Validate() error {
	set := 0
	if ds.CSVPath != "" {
		set++
	}
	if ds.SingleRow != nil {
		set++
	}
	if ds.Loader != nil {
		set++
	}
	switch {
	case set == 0:
		return ErrMissingSource
	case set > 1:
		return ErrConflictingSource
	}
	return nil
}

// Describe names the origin for logs and events.
func (ds DataSource) Describe() string {
	switch {
	case ds.SingleRow != nil:
		return "single row"
	case ds.CSVPath != "":
		return ds.CSVPath
	case ds.Loader != nil:
		if s, ok := ds.Loader.(fmt.Stringer); ok {
			return s.String()
		}
		return fmt.Sprintf("%T", ds.Loader)
	}
	return "none"
}

// Rows produces the raw rows of ds, before filters and transforms.
func Rows(ctx context.Context, ds DataSource) ([]record.Row, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	switch {
	case ds.SingleRow != nil:
		return []record.Row{SingleRow(*ds.SingleRow)}, nil
	case ds.CSVPath != "":
		return loader.Load(ds.CSVPath, loader.Options{Sheet: ds.Sheet})
	default:
		rows, err := ds.Loader.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading rows from %s: %w", ds.Describe(), err)
		}
		return rows, nil
	}
}

// LoadData produces the rows of ds with its filters and transforms applied.
func LoadData(ctx context.Context, ds DataSource, p *query.DataProcessor) ([]record.Row, error) {
	rows, err := Rows(ctx, ds)
	if err != nil {
		return nil, err
	}
	return p.Process(rows, ds.Filters, ds.Transforms)
}

// SingleRow completes a partial row: the canonical fields always exist,
// defaulting to "", and come first; other fields follow in their given order.
func SingleRow(partial record.Row) record.Row {
	fields := make([]string, 0, len(record.CanonicalFields)+partial.Len())
	values := make([]string, 0, cap(fields))
	for _, f := range record.CanonicalFields {
		fields = append(fields, f)
		values = append(values, partial.Value(f))
	}
	for _, f := range partial.Fields() {
		if isCanonical(f) {
			continue
		}
		fields = append(fields, f)
		values = append(values, partial.Value(f))
	}
	return record.New(fields, values)
}

func isCanonical(field string) bool {
	for _, f := range record.CanonicalFields {
		if f == field {
			return true
		}
	}
	return false
}
