package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r := New([]string{"story", "rule", "min"}, []string{"Login", ">", "0"})
	assert.Equal(t, []string{"story", "rule", "min"}, r.Fields())
	assert.Equal(t, "Login", r.Value("story"))
	assert.Equal(t, 3, r.Len())

	t.Run("Mismatched lengths", func(t *testing.T) {
		r := New([]string{"a", "b"}, []string{"1"})
		assert.Equal(t, []string{"a"}, r.Fields())
	})

	t.Run("Repeated field keeps first position", func(t *testing.T) {
		r := New([]string{"a", "b", "a"}, []string{"1", "2", "3"})
		assert.Equal(t, []string{"a", "b"}, r.Fields())
		assert.Equal(t, "3", r.Value("a"))
	})
}

func TestRow_Lookup(t *testing.T) {
	r := FromPairs("story", "Login", "rule", "")

	v, ok := r.Get("rule")
	assert.True(t, ok)
	assert.Equal(t, "", v)

	v, ok = r.Get("max")
	assert.False(t, ok)
	assert.Equal(t, "", v)
	assert.Equal(t, "", r.Value("max"))
	assert.True(t, r.Has("story"))
	assert.False(t, r.Has("max"))
}

func TestRow_WithDoesNotMutate(t *testing.T) {
	original := FromPairs("story", "Login", "min", "5")
	changed := original.With("min", "10").With("extra", "x")

	assert.Equal(t, "5", original.Value("min"))
	assert.False(t, original.Has("extra"))
	assert.Equal(t, "10", changed.Value("min"))
	assert.Equal(t, []string{"story", "min", "extra"}, changed.Fields())
}

func TestRow_ZeroValue(t *testing.T) {
	var r Row
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, "", r.Value("story"))
	assert.Equal(t, "{}", r.String())

	r2 := r.With("story", "x")
	assert.Equal(t, "x", r2.Value("story"))
	assert.Equal(t, 0, r.Len())
}

func TestRow_Equal(t *testing.T) {
	a := FromPairs("a", "1", "b", "2")
	assert.True(t, a.Equal(FromPairs("a", "1", "b", "2")))
	assert.False(t, a.Equal(FromPairs("b", "2", "a", "1")))
	assert.False(t, a.Equal(FromPairs("a", "1")))
	assert.False(t, a.Equal(FromPairs("a", "1", "b", "3")))
}

func TestRow_MapIsCopy(t *testing.T) {
	r := FromPairs("a", "1")
	m := r.Map()
	m["a"] = "changed"
	assert.Equal(t, "1", r.Value("a"))
}

func TestRow_JSON(t *testing.T) {
	r := FromPairs("story", "User \"Registration\"", "min", "1", "aardvark", "z")
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"story":"User \"Registration\"","min":"1","aardvark":"z"}`, string(data))

	var decoded Row
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, r.Equal(decoded))

	var bad Row
	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &bad))
}
