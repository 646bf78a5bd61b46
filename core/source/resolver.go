package source

import (
	"regexp"

	"github.com/asaidimu/go-rowcase/core/record"
)

// Lookup reads an environment variable. os.LookupEnv satisfies it.
type Lookup func(key string) (string, bool)

// Origin tells which input produced the effective data source.
type Origin string

const (
	OriginEnv    Origin = "env"
	OriginArgs   Origin = "args"
	OriginConfig Origin = "config"
)

// EnvBinding maps an environment variable to a row field.
type EnvBinding struct {
	Var   string
	Field string
}

// EnvBindings are the environment variables consulted by Resolve, in order.
var EnvBindings = []EnvBinding{
	{Var: "TEST_STORY", Field: record.FieldStory},
	{Var: "TEST_RULE", Field: record.FieldRule},
	{Var: "TEST_MIN", Field: record.FieldMin},
	{Var: "TEST_MAX", Field: record.FieldMax},
}

var argPattern = regexp.MustCompile(`(?s)^--(\w+)=(.+)$`)

// Effective is the data source a suite actually uses.
type Effective struct {
	Origin     Origin
	DataSource DataSource
}

// Resolve picks the data source. If any bound environment variable is set,
// a single row built from those variables is used. Otherwise, if argv holds
// any --key=value flags, a single row built from them is used. In both cases
// the declared source, its filters and its transforms are ignored. Otherwise
// the declared source is validated and returned unchanged.
func Resolve(lookup Lookup, argv []string, declared DataSource) (Effective, error) {
	if row := FromEnv(lookup); row.Len() > 0 {
		return Effective{Origin: OriginEnv, DataSource: DataSource{SingleRow: &row}}, nil
	}
	if row := ParseArgs(argv); row.Len() > 0 {
		return Effective{Origin: OriginArgs, DataSource: DataSource{SingleRow: &row}}, nil
	}
	if err := declared.Validate(); err != nil {
		return Effective{}, err
	}
	return Effective{Origin: OriginConfig, DataSource: declared}, nil
}

// FromEnv builds a partial row from the bound environment variables that are
// set to a non-empty value. A nil lookup reads nothing.
func FromEnv(lookup Lookup) record.Row {
	var row record.Row
	if lookup == nil {
		return row
	}
	for _, b := range EnvBindings {
		if v, ok := lookup(b.Var); ok && v != "" {
			row = row.With(b.Field, v)
		}
	}
	return row
}

// ParseArgs builds a partial row from --key=value tokens. Keys are word
// characters; a value wrapped in matching single or double quotes is
// unwrapped. Any other token is ignored. A repeated key keeps its last value.
func ParseArgs(argv []string) record.Row {
	var row record.Row
	for _, arg := range argv {
		m := argPattern.FindStringSubmatch(arg)
		if m == nil {
			continue
		}
		row = row.With(m[1], unquote(m[2]))
	}
	return row
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}
