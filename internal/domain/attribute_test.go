package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttrNameOrder(t *testing.T) {
	tests := []struct {
		name string
		a, b AttrName
		want int
	}{
		{"index before key", Index(10), Key("a"), -1},
		{"key after index", Key("a"), Index(0), 1},
		{"indices by value", Index(1), Index(2), -1},
		{"keys by value", Key("y"), Key("x"), 1},
		{"equal indices", Index(3), Index(3), 0},
		{"equal keys", Key("ref"), Key("ref"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
		})
	}
}

func TestAttrNameAccessors(t *testing.T) {
	i, ok := Index(4).Index()
	assert.True(t, ok)
	assert.Equal(t, 4, i)
	_, ok = Index(4).Key()
	assert.False(t, ok)

	k, ok := Key("red").Key()
	assert.True(t, ok)
	assert.Equal(t, "red", k)
	assert.True(t, Key("red").IsKey())

	assert.Equal(t, "#0", Index(0).String())
	assert.Equal(t, "red", Key("red").String())
}

func TestAttributesSetOverwrites(t *testing.T) {
	var a Attributes
	a.Set(Key("ref"), "1")
	a.Set(Key("ref"), "2")

	assert.Equal(t, 1, a.Len())
	v, ok := a.Get(Key("ref"))
	require.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestAttributesAtIsDense(t *testing.T) {
	var a Attributes
	a.Set(Key("b"), "kb")
	a.Set(Index(1), "i1")
	a.Set(Key("a"), "ka")
	a.Set(Index(0), "i0")

	want := []struct {
		name  AttrName
		value string
	}{
		{Index(0), "i0"},
		{Index(1), "i1"},
		{Key("a"), "ka"},
		{Key("b"), "kb"},
	}

	for i, w := range want {
		name, value, ok := a.At(i)
		require.True(t, ok, "At(%d)", i)
		assert.Equal(t, 0, name.Compare(w.name), "At(%d) name = %s, want %s", i, name, w.name)
		assert.Equal(t, w.value, value)
	}

	for i := a.Len(); i < a.Len()+5; i++ {
		_, _, ok := a.At(i)
		assert.False(t, ok, "At(%d) should be out of range", i)
	}
	_, _, ok := a.At(-1)
	assert.False(t, ok)
}

func TestAttributesGetMissing(t *testing.T) {
	var a Attributes
	_, ok := a.Get(Index(0))
	assert.False(t, ok)

	a.Set(Index(0), "5")
	_, ok = a.Get(Key("0"))
	assert.False(t, ok, "Index(0) and Key(\"0\") are distinct names")
}

func TestAttributesClone(t *testing.T) {
	a := NewAttributes(Attribute{Name: Index(0), Value: "1"})
	b := a.Clone()
	b.Set(Index(0), "2")

	v, _ := a.Get(Index(0))
	assert.Equal(t, "1", v)
}

func TestAttributesAll(t *testing.T) {
	a := NewAttributes(
		Attribute{Name: Key("y"), Value: "2"},
		Attribute{Name: Key("x"), Value: "1"},
	)

	var keys []string
	for name := range a.All() {
		keys = append(keys, name.String())
	}
	assert.Equal(t, []string{"x", "y"}, keys)
}
