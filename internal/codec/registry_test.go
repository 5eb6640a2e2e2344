package codec

import (
	"errors"
	"testing"

	"multimesh/internal/mesherr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	var names []string
	for _, e := range r.Formats() {
		names = append(names, e.Format)
	}
	assert.Equal(t, []string{"json", "medit", "ply", "yaml"}, names)

	for _, name := range names {
		d, err := r.Deserializer(name)
		require.NoError(t, err)
		assert.Equal(t, name, d.Format())

		s, err := r.Serializer(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Format())
	}
}

func TestRegistryFormatForPath(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		path string
		want string
	}{
		{"cube.mesh", "medit"},
		{"/tmp/scan.PLY", "ply"},
		{"doc.yml", "yaml"},
		{"doc.yaml", "yaml"},
		{"out/doc.json", "json"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := r.FormatForPath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := r.FormatForPath("model.stl")
	assert.True(t, errors.Is(err, mesherr.ErrUnsupported))
	_, err = r.FormatForPath("Makefile")
	assert.True(t, errors.Is(err, mesherr.ErrUnsupported))
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	medit := NewMeditCodec()

	require.NoError(t, r.Register(Entry{Format: "medit", Extensions: []string{"mesh"}, Deserializer: medit}))

	err := r.Register(Entry{Format: "medit", Serializer: medit})
	assert.Error(t, err, "duplicate format")

	err = r.Register(Entry{Format: "medit2", Extensions: []string{".MESH"}, Serializer: medit})
	assert.Error(t, err, "duplicate extension")

	err = r.Register(Entry{Format: "empty"})
	assert.Error(t, err, "no codecs")

	format, err := r.FormatForPath("a.mesh")
	require.NoError(t, err)
	assert.Equal(t, "medit", format)

	_, err = r.Serializer("medit")
	assert.True(t, errors.Is(err, mesherr.ErrUnsupported), "read-only entry has no writer")
	_, err = r.Deserializer("ply")
	assert.True(t, errors.Is(err, mesherr.ErrUnsupported))
}
