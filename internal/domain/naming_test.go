package domain

import (
	"errors"
	"testing"

	"multimesh/internal/mesherr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNameMedit(t *testing.T) {
	tests := []struct {
		raw  string
		kind EntityKind
		ok   bool
	}{
		{"Vertices", KindNode, true},
		{"Normals", KindNode, true},
		{"Tangents", KindNode, true},
		{"Normals", KindVector, true},
		{"Vertices", KindVector, false},
		{"Triangles", KindElement, true},
		{"Hexahedra", KindElement, true},
		{"Potato", KindElement, false},
		{"Triangles", KindNode, false},
		{"Corners", KindOther, true},
		{"vertices", KindNode, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw+"/"+tt.kind.String(), func(t *testing.T) {
			name, ok := ParseName(tt.raw, FormatMedit, tt.kind)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.raw, name.Raw())
				assert.Equal(t, FormatMedit, name.Format())
				assert.Equal(t, tt.kind, name.Kind())
			}
		})
	}
}

func TestParseNamePly(t *testing.T) {
	_, ok := ParseName("vertex", FormatPly, KindOther)
	assert.True(t, ok)

	_, ok = ParseName("", FormatPly, KindOther)
	assert.False(t, ok)

	_, ok = ParseName("two words", FormatPly, KindOther)
	assert.False(t, ok)
}

func TestNameAs(t *testing.T) {
	name, ok := ParseName("Triangles", FormatMedit, KindElement)
	require.True(t, ok)

	s, err := name.As(FormatMedit)
	require.NoError(t, err)
	assert.Equal(t, "Triangles", s)

	_, err = name.As(FormatPly)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mesherr.ErrUnsupported))
}

func TestMeditArity(t *testing.T) {
	want := map[string]int{
		"Edges":          2,
		"Triangles":      3,
		"Quadrilaterals": 4,
		"Tetrahedra":     4,
		"Hexahedra":      8,
	}
	for name, arity := range want {
		got, ok := MeditArity(name)
		assert.True(t, ok, name)
		assert.Equal(t, arity, got, name)
	}

	_, ok := MeditArity("Vertices")
	assert.False(t, ok)
}

func TestParseFormatAndKind(t *testing.T) {
	for _, f := range Formats {
		got, err := ParseFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseFormat("stl")
	assert.Error(t, err)

	for _, k := range EntityKinds {
		got, err := ParseEntityKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err = ParseEntityKind("face")
	assert.Error(t, err)
}
