// Package config reads data-driven suites from YAML files.
//
// A suite file lists suites by name. Each suite declares one origin of rows
// (csvPath, singleRow or sqlite) plus optional filters and transforms:
//
//	suites:
//	  - name: Shopping Cart Validation
//	    parallel: true
//	    dataSource:
//	      csvPath: ./data/validation-rules.csv
//	      filters:
//	        - {field: story, value: Shopping Cart, operator: equals}
//	      transforms:
//	        - {field: min, expr: "parseInt(value) * 2"}
//	        - {field: rule, use: upper}
//
// ${VAR} and ${VAR:-default} are replaced with environment values before the
// file is parsed. Relative file paths resolve against the suite file's
// directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/asaidimu/go-rowcase/core"
	"github.com/asaidimu/go-rowcase/core/query"
	"github.com/asaidimu/go-rowcase/core/record"
	"github.com/asaidimu/go-rowcase/core/source"
	"github.com/asaidimu/go-rowcase/sqlite"
)

var (
	// ErrSuiteNotFound is returned when a file has no suite with the requested name.
	ErrSuiteNotFound = errors.New("suite not found")
	// ErrInvalidConfig is returned when a suite file cannot be parsed or a
	// suite declaration is inconsistent.
	ErrInvalidConfig = errors.New("invalid suite configuration")
)

// File is a parsed suite file.
type File struct {
	Suites []Suite `yaml:"suites"`
	// BaseDir is the directory relative paths were resolved against.
	BaseDir string `yaml:"-"`
}

// Suite declares one data-driven suite.
type Suite struct {
	Name       string     `yaml:"name"`
	Parallel   bool       `yaml:"parallel"`
	DataSource DataSource `yaml:"dataSource"`
}

// DataSource mirrors source.DataSource in YAML form.
type DataSource struct {
	CSVPath    string             `yaml:"csvPath"`
	Sheet      string             `yaml:"sheet"`
	SingleRow  *RowNode           `yaml:"singleRow"`
	SQLite     *SQLiteSource      `yaml:"sqlite"`
	Filters    []query.FilterSpec `yaml:"filters"`
	Transforms []Transform        `yaml:"transforms"`
}

// SQLiteSource draws rows from a query against a SQLite database.
type SQLiteSource struct {
	DSN   string `yaml:"dsn"`
	Query string `yaml:"query"`
	Args  []any  `yaml:"args"`
}

// Transform rewrites one field, either with an expression over `value` or
// with a transform registered under the name given by Use.
type Transform struct {
	Field string `yaml:"field"`
	Expr  string `yaml:"expr"`
	Use   string `yaml:"use"`
}

// RowNode is an inline row. YAML mapping order becomes field order.
type RowNode struct {
	record.Row
}

// UnmarshalYAML decodes a mapping of scalars, keeping key order.
func (r *RowNode) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: singleRow must be a mapping", node.Line)
	}
	var row record.Row
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: singleRow field %q must be a scalar", value.Line, key.Value)
		}
		v := value.Value
		if value.Tag == "!!null" {
			v = ""
		}
		row = row.With(key.Value, v)
	}
	r.Row = row
	return nil
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		varName := string(parts[1])
		value := getenv(varName)
		if value == "" && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

// Load reads a suite file, interpolating variables from the process
// environment.
func Load(path string) (*File, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv reads a suite file, interpolating variables with getenv.
func LoadWithEnv(path string, getenv func(string) string) (*File, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	return Parse(interpolateEnv(data, getenv), filepath.Dir(absPath))
}

// Parse decodes suite YAML. Relative paths resolve against baseDir.
func Parse(data []byte, baseDir string) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrInvalidConfig, err)
	}
	f.BaseDir = baseDir

	for i := range f.Suites {
		ds := &f.Suites[i].DataSource
		if ds.CSVPath != "" {
			ds.CSVPath = resolvePath(baseDir, ds.CSVPath)
		}
		if ds.SQLite != nil && isFilePath(ds.SQLite.DSN) {
			ds.SQLite.DSN = resolvePath(baseDir, ds.SQLite.DSN)
		}
	}
	return &f, nil
}

func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// isFilePath reports whether dsn names a plain database file.
func isFilePath(dsn string) bool {
	return dsn != "" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
}

// Names lists the suite names in file order.
func (f *File) Names() []string {
	names := make([]string, len(f.Suites))
	for i, s := range f.Suites {
		names[i] = s.Name
	}
	return names
}

// Suite returns the suite called name.
func (f *File) Suite(name string) (*Suite, error) {
	for i := range f.Suites {
		if f.Suites[i].Name == name {
			return &f.Suites[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrSuiteNotFound, name)
}

// Build turns the suite into a core.Config. Named transforms are resolved
// against p; expressions are compiled.
func (s *Suite) Build(p *query.DataProcessor, logger *zap.Logger) (core.Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if p == nil {
		p = query.NewDataProcessor(logger)
	}

	ds, err := s.DataSource.build(p, logger)
	if err != nil {
		return core.Config{}, fmt.Errorf("suite %q: %w", s.Name, err)
	}
	logger.Debug("Built suite from configuration",
		zap.String("suite", s.Name),
		zap.String("source", ds.Describe()),
		zap.Int("filters", len(ds.Filters)),
		zap.Int("transforms", len(ds.Transforms)))

	return core.Config{DataSource: ds, TestName: s.Name, Parallel: s.Parallel}, nil
}

func (d DataSource) build(p *query.DataProcessor, logger *zap.Logger) (source.DataSource, error) {
	ds := source.DataSource{
		CSVPath: d.CSVPath,
		Sheet:   d.Sheet,
		Filters: d.Filters,
	}
	if d.SingleRow != nil {
		row := d.SingleRow.Row
		ds.SingleRow = &row
	}
	if d.SQLite != nil {
		if d.SQLite.DSN == "" || d.SQLite.Query == "" {
			return source.DataSource{}, fmt.Errorf("%w: sqlite source needs both dsn and query", ErrInvalidConfig)
		}
		ds.Loader = sqlite.NewDSNLoader(d.SQLite.DSN, logger, d.SQLite.Query, d.SQLite.Args...)
	}
	if err := ds.Validate(); err != nil {
		return source.DataSource{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := p.Validate(ds.Filters); err != nil {
		return source.DataSource{}, err
	}

	for i, t := range d.Transforms {
		spec, err := t.build(p)
		if err != nil {
			return source.DataSource{}, fmt.Errorf("transform %d on field %q: %w", i, t.Field, err)
		}
		ds.Transforms = append(ds.Transforms, spec)
	}
	return ds, nil
}

func (t Transform) build(p *query.DataProcessor) (query.TransformSpec, error) {
	switch {
	case t.Field == "":
		return query.TransformSpec{}, fmt.Errorf("%w: field is required", ErrInvalidConfig)
	case t.Expr != "" && t.Use != "":
		return query.TransformSpec{}, fmt.Errorf("%w: expr and use are mutually exclusive", ErrInvalidConfig)
	case t.Expr != "":
		fn, err := CompileTransform(t.Expr)
		if err != nil {
			return query.TransformSpec{}, err
		}
		return query.TransformSpec{Field: t.Field, Transform: fn}, nil
	case t.Use != "":
		fn, err := p.TransformByName(t.Use)
		if err != nil {
			return query.TransformSpec{}, err
		}
		return query.TransformSpec{Field: t.Field, Transform: fn}, nil
	default:
		return query.TransformSpec{}, fmt.Errorf("%w: one of expr or use is required", ErrInvalidConfig)
	}
}
