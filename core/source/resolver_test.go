package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asaidimu/go-rowcase/core/loader"
	"github.com/asaidimu/go-rowcase/core/query"
	"github.com/asaidimu/go-rowcase/core/record"
)

func envOf(vars map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func csvSource() DataSource {
	return DataSource{
		CSVPath: "./data/validation-rules.csv",
		Filters: []query.FilterSpec{{Field: "story", Value: "Login"}},
	}
}

func TestResolve_Env(t *testing.T) {
	eff, err := Resolve(envOf(map[string]string{"TEST_STORY": "Env Story", "TEST_MAX": "9"}), nil, csvSource())
	require.NoError(t, err)

	assert.Equal(t, OriginEnv, eff.Origin)
	require.NotNil(t, eff.DataSource.SingleRow)
	assert.Equal(t, []string{"story", "max"}, eff.DataSource.SingleRow.Fields())
	assert.Equal(t, "Env Story", eff.DataSource.SingleRow.Value("story"))
	assert.Empty(t, eff.DataSource.CSVPath)
	assert.Empty(t, eff.DataSource.Filters)
	assert.Empty(t, eff.DataSource.Transforms)
}

func TestResolve_EnvBeatsArgs(t *testing.T) {
	eff, err := Resolve(
		envOf(map[string]string{"TEST_MIN": "1"}),
		[]string{"--min=5", "--story=Args"},
		csvSource(),
	)
	require.NoError(t, err)
	assert.Equal(t, OriginEnv, eff.Origin)
	assert.Equal(t, "1", eff.DataSource.SingleRow.Value("min"))
	assert.False(t, eff.DataSource.SingleRow.Has("story"))
}

func TestResolve_EmptyEnvIsUnset(t *testing.T) {
	eff, err := Resolve(envOf(map[string]string{"TEST_STORY": ""}), []string{"--story=X"}, csvSource())
	require.NoError(t, err)
	assert.Equal(t, OriginArgs, eff.Origin)
	assert.Equal(t, "X", eff.DataSource.SingleRow.Value("story"))
}

func TestResolve_Args(t *testing.T) {
	eff, err := Resolve(nil, []string{"-test.v=true", "--story=X", "--min=5", "positional"}, csvSource())
	require.NoError(t, err)

	assert.Equal(t, OriginArgs, eff.Origin)
	row := eff.DataSource.SingleRow
	require.NotNil(t, row)
	assert.True(t, row.Equal(record.FromPairs("story", "X", "min", "5")))
	assert.Empty(t, eff.DataSource.Filters)
}

func TestResolve_Config(t *testing.T) {
	declared := csvSource()
	eff, err := Resolve(envOf(nil), []string{"-v", "--bad-key=1"}, declared)
	require.NoError(t, err)
	assert.Equal(t, OriginConfig, eff.Origin)
	assert.Equal(t, declared.CSVPath, eff.DataSource.CSVPath)
	assert.Equal(t, declared.Filters, eff.DataSource.Filters)
}

func TestResolve_InvalidConfig(t *testing.T) {
	_, err := Resolve(nil, nil, DataSource{})
	assert.True(t, errors.Is(err, ErrMissingSource))

	row := record.FromPairs("story", "x")
	_, err = Resolve(nil, nil, DataSource{CSVPath: "a.csv", SingleRow: &row})
	assert.True(t, errors.Is(err, ErrConflictingSource))

	// Runtime parameters replace the declared source entirely.
	eff, err := Resolve(nil, []string{"--story=x"}, DataSource{})
	require.NoError(t, err)
	assert.Equal(t, OriginArgs, eff.Origin)
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name     string
		argv     []string
		expected record.Row
	}{
		{"Plain", []string{"--story=User Story"}, record.FromPairs("story", "User Story")},
		{"Double quoted", []string{`--rule="Business Rule"`}, record.FromPairs("rule", "Business Rule")},
		{"Single quoted", []string{`--rule='x'`}, record.FromPairs("rule", "x")},
		{"Unmatched quotes kept", []string{`--rule="x'`}, record.FromPairs("rule", `"x'`)},
		{"Empty quoted value", []string{`--rule=""`}, record.FromPairs("rule", "")},
		{"Value with equals", []string{"--expr=a=b"}, record.FromPairs("expr", "a=b")},
		{"Custom field", []string{"--owner=qa"}, record.FromPairs("owner", "qa")},
		{"Last value wins", []string{"--min=1", "--min=2"}, record.FromPairs("min", "2")},
		{"No equals", []string{"--story"}, record.Row{}},
		{"Empty value", []string{"--story="}, record.Row{}},
		{"Non-word key", []string{"--my-key=1", "--a.b=2"}, record.Row{}},
		{"Single dash", []string{"-story=1"}, record.Row{}},
		{"Not a prefix", []string{"x--story=1"}, record.Row{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseArgs(tt.argv)
			assert.True(t, tt.expected.Equal(got), "got %s", got)
		})
	}
}

func TestFromEnv(t *testing.T) {
	assert.Equal(t, 0, FromEnv(nil).Len())

	row := FromEnv(envOf(map[string]string{
		"TEST_MAX":   "10",
		"TEST_STORY": "S",
		"TEST_OTHER": "ignored",
	}))
	assert.Equal(t, []string{"story", "max"}, row.Fields())
}

func TestSingleRow(t *testing.T) {
	row := SingleRow(record.FromPairs("owner", "qa", "min", "5", "story", "X"))
	assert.Equal(t, []string{"story", "rule", "min", "max", "owner"}, row.Fields())
	assert.Equal(t, "X", row.Value("story"))
	assert.Equal(t, "", row.Value("rule"))
	assert.Equal(t, "5", row.Value("min"))
	assert.Equal(t, "qa", row.Value("owner"))
}

type staticLoader struct {
	rows []record.Row
	err  error
}

func (l staticLoader) Load(context.Context) ([]record.Row, error) { return l.rows, l.err }

func TestRows(t *testing.T) {
	ctx := context.Background()

	t.Run("Single row", func(t *testing.T) {
		partial := record.FromPairs("story", "X")
		rows, err := Rows(ctx, DataSource{SingleRow: &partial})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 4, rows[0].Len())
	})

	t.Run("CSV", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "d.csv")
		require.NoError(t, os.WriteFile(path, []byte("story,rule\nA,B\nC,D\n"), 0o644))
		rows, err := Rows(ctx, DataSource{CSVPath: path})
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("Missing CSV", func(t *testing.T) {
		_, err := Rows(ctx, DataSource{CSVPath: filepath.Join(t.TempDir(), "none.csv")})
		assert.ErrorIs(t, err, loader.ErrFileNotFound)
	})

	t.Run("Loader", func(t *testing.T) {
		rows, err := Rows(ctx, DataSource{Loader: staticLoader{rows: []record.Row{record.FromPairs("a", "1")}}})
		require.NoError(t, err)
		assert.Len(t, rows, 1)

		boom := errors.New("boom")
		_, err = Rows(ctx, DataSource{Loader: staticLoader{err: boom}})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("Nothing", func(t *testing.T) {
		_, err := Rows(ctx, DataSource{})
		assert.ErrorIs(t, err, ErrMissingSource)
	})
}

func TestLoadData(t *testing.T) {
	rows := []record.Row{
		record.FromPairs("story", "A", "min", "5"),
		record.FromPairs("story", "B", "min", "7"),
	}
	ds := DataSource{
		Loader:     staticLoader{rows: rows},
		Filters:    []query.FilterSpec{{Field: "story", Value: "A"}},
		Transforms: []query.TransformSpec{{Field: "min", Transform: query.Scale(2)}},
	}
	out, err := LoadData(context.Background(), ds, query.NewDataProcessor(nil))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "10", out[0].Value("min"))
	assert.Equal(t, "5", rows[0].Value("min"))
}

func TestDataSource_Describe(t *testing.T) {
	row := record.Row{}
	assert.Equal(t, "single row", DataSource{SingleRow: &row}.Describe())
	assert.Equal(t, "a.csv", DataSource{CSVPath: "a.csv"}.Describe())
	assert.Equal(t, "source.staticLoader", DataSource{Loader: staticLoader{}}.Describe())
	assert.Equal(t, "none", DataSource{}.Describe())
}
