package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"multimesh/internal/domain"
	"multimesh/internal/mesherr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cubeMedit = `MeshVersionFormatted 1
# unit square split in two triangles

Dimension 3
Vertices
4
0 0 0 1
1 0 0 1
1 1 0 2
0 1 0 2

Triangles
2
1 2 3 10
1 3 4 11

Edges
1
1 2 0
End
`

func parseMedit(t *testing.T, input string) (*domain.Mesh, error) {
	t.Helper()
	mesh := domain.NewMesh()
	err := NewMeditCodec().Deserialize(strings.NewReader(input), mesh)
	return mesh, err
}

func TestMeditDeserialize(t *testing.T) {
	mesh, err := parseMedit(t, cubeMedit)
	require.NoError(t, err)

	assert.Equal(t, 3, mesh.Dimension())
	require.Len(t, mesh.NodeGroups(), 1)
	require.Len(t, mesh.ElementGroups(), 2)

	verts := mesh.NodeGroups()[0]
	assert.Equal(t, "Vertices", verts.Data.Name().Raw())
	require.Equal(t, 4, verts.Len())
	assert.Equal(t, []float64{1, 1, 0}, verts.Items[2].Position)
	ref, ok := verts.Items[2].Attrs.Get(domain.Index(0))
	require.True(t, ok)
	assert.Equal(t, "2", ref)

	tris := mesh.ElementGroups()[0]
	assert.Equal(t, "Triangles", tris.Data.Name().Raw())
	assert.Equal(t, []int{1, 3, 4}, tris.Items[1].Indices)

	edges := mesh.ElementGroups()[1]
	assert.Equal(t, []int{1, 2}, edges.Items[0].Indices)

	assert.NotEqual(t, tris.Data.UID(), edges.Data.UID())
}

func TestMeditSingleTriangle(t *testing.T) {
	mesh, err := parseMedit(t, "Dimension 3\nTriangles\n1\n0 1 2 5\n")
	require.NoError(t, err)

	require.Len(t, mesh.ElementGroups(), 1)
	group := mesh.ElementGroups()[0]
	require.Equal(t, 1, group.Len())

	el := group.Items[0]
	assert.Equal(t, []int{0, 1, 2}, el.Indices)
	assert.Equal(t, 1, el.Attrs.Len())
	v, ok := el.Attrs.Get(domain.Index(0))
	require.True(t, ok)
	assert.Equal(t, "5", v)
}

func TestMeditNormalsHaveNoReference(t *testing.T) {
	mesh, err := parseMedit(t, "Dimension 2\nNormals\n2\n0 1\n1 0\nEnd")
	require.NoError(t, err)

	group := mesh.NodeGroups()[0]
	require.Equal(t, 2, group.Len())
	assert.Equal(t, []float64{1, 0}, group.Items[1].Position)
	assert.Equal(t, 0, group.Items[1].Attrs.Len())
}

func TestMeditEndIgnoresTrailingBytes(t *testing.T) {
	mesh, err := parseMedit(t, "Dimension 2\nEnd\nFrobnicate \x00\xff garbage 1 2 3\nTriangles\nx")
	require.NoError(t, err)
	assert.Equal(t, 2, mesh.Dimension())
	assert.Empty(t, mesh.ElementGroups())
}

func TestMeditErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  error
		line  int
	}{
		{"unknown keyword", "Dimension 3\n\nFrobnicate\n", mesherr.ErrSyntax, 3},
		{"vertices before dimension", "Vertices\n1\n0 0 0 1\n", mesherr.ErrSyntax, 1},
		{"unsupported version", "MeshVersionFormatted 2\n", mesherr.ErrUnsupported, 0},
		{"missing version", "MeshVersionFormatted", mesherr.ErrSyntax, 1},
		{"zero dimension", "Dimension 0\n", mesherr.ErrSyntax, 1},
		{"bad dimension", "Dimension three\n", mesherr.ErrSyntax, 1},
		{"huge dimension", "Dimension 4611686018427387903\nVertices\n1\n0 0 0 1\n", mesherr.ErrSyntax, 1},
		{"dimension above bound", "Dimension 256\n", mesherr.ErrSyntax, 1},
		{"bad coordinate", "Dimension 2\nVertices\n1\n0 zero 1\n", mesherr.ErrSyntax, 4},
		{"bad reference", "Dimension 2\nVertices\n1\n0 0 ref\n", mesherr.ErrSyntax, 4},
		{"negative index", "Dimension 2\nEdges\n1\n-1 2 0\n", mesherr.ErrSyntax, 4},
		{"float index", "Dimension 2\nEdges\n1\n1.5 2 0\n", mesherr.ErrSyntax, 4},
		{"truncated group", "Dimension 3\nTriangles\n2\n0 1 2 5\n", mesherr.ErrSyntax, 4},
		{"missing element reference", "Dimension 3\nTriangles\n1\n0 1 2\n", mesherr.ErrSyntax, 4},
		{"bad count", "Dimension 3\nTriangles\nmany\n", mesherr.ErrSyntax, 3},
		{"lowercase keyword", "Dimension 3\ntriangles\n", mesherr.ErrSyntax, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseMedit(t, tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			if tt.line > 0 {
				var merr *mesherr.Error
				require.True(t, errors.As(err, &merr))
				assert.Equal(t, tt.line, merr.Line)
			}
		})
	}
}

func TestMeditCommentsAtKeywordPosition(t *testing.T) {
	mesh, err := parseMedit(t, "Dimension 2 # planar mesh\n  # indented comment\nVertices\n1\n0 0 1\n#End\nEdges\n0\nEnd\n")
	require.NoError(t, err)
	assert.Equal(t, 2, mesh.Dimension())
	require.Len(t, mesh.NodeGroups(), 1)
	require.Len(t, mesh.ElementGroups(), 1)
	assert.Equal(t, 0, mesh.ElementGroups()[0].Len())
}

func TestMeditReadFailure(t *testing.T) {
	err := NewMeditCodec().Deserialize(iotest.ErrReader(errors.New("disk on fire")), domain.NewMesh())
	require.Error(t, err)
	assert.True(t, errors.Is(err, mesherr.ErrIo))
	assert.Contains(t, err.Error(), "disk on fire")
}

// rejectingTarget fails every GroupBegin with a foreign error.
type rejectingTarget struct{ *domain.Mesh }

func (rejectingTarget) GroupBegin(domain.GroupData) error {
	return errors.New("quota exceeded")
}

func TestMeditTargetErrorsPropagate(t *testing.T) {
	err := NewMeditCodec().Deserialize(strings.NewReader(cubeMedit), rejectingTarget{domain.NewMesh()})
	require.Error(t, err)
	assert.Equal(t, mesherr.KindOtherExternal, mesherr.KindOf(err))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestMeditSerialize(t *testing.T) {
	mesh, err := parseMedit(t, "Dimension 2\nVertices\n2\n0 0 1\n1 0.5 2\nEdges\n1\n0 1 7\n")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewMeditCodec().Serialize(mesh, &buf))

	want := `MeshVersionFormatted 1
# MEDIT mesh file, generated by multimesh
Dimension 2

Vertices
2
0 0 1
1 0.5 2

Edges
1
0 1 7

End
`
	assert.Equal(t, want, buf.String())
}

func TestMeditRoundTrip(t *testing.T) {
	first, err := parseMedit(t, cubeMedit)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewMeditCodec().Serialize(first, &buf))

	second, err := parseMedit(t, buf.String())
	require.NoError(t, err)

	assert.Equal(t, first.Dimension(), second.Dimension())
	require.Len(t, second.NodeGroups(), len(first.NodeGroups()))
	require.Len(t, second.ElementGroups(), len(first.ElementGroups()))
	for i, g := range first.NodeGroups() {
		assert.Equal(t, g.Len(), second.NodeGroups()[i].Len())
		assert.Equal(t, g.Items, second.NodeGroups()[i].Items)
	}
	for i, g := range first.ElementGroups() {
		assert.Equal(t, g.Data.Name().Raw(), second.ElementGroups()[i].Data.Name().Raw())
		assert.Equal(t, g.Items, second.ElementGroups()[i].Items)
	}
}

func TestMeditSerializeErrors(t *testing.T) {
	t.Run("other groups are unsupported", func(t *testing.T) {
		mesh := domain.NewMesh()
		require.NoError(t, NewPlyCodec().Deserialize(strings.NewReader(samplePly), mesh))

		var buf bytes.Buffer
		err := NewMeditCodec().Serialize(mesh, &buf)
		assert.True(t, errors.Is(err, mesherr.ErrUnsupported))
		assert.Zero(t, buf.Len(), "nothing is written on rejection")
	})

	t.Run("position must match dimension", func(t *testing.T) {
		mesh := domain.NewMesh()
		require.NoError(t, mesh.SetDimension(3))
		name, _ := domain.ParseName("Vertices", domain.FormatMedit, domain.KindNode)
		gd := domain.NewGroupData(1, name, 1, domain.KindNode)
		require.NoError(t, mesh.GroupBegin(gd))
		require.NoError(t, mesh.AddNode(&domain.Node{Position: []float64{1, 2}}, gd))
		require.NoError(t, mesh.GroupEnd(gd))

		err := NewMeditCodec().Serialize(mesh, &bytes.Buffer{})
		assert.True(t, errors.Is(err, mesherr.ErrBrokenInvariant))
	})

	t.Run("element arity must match name", func(t *testing.T) {
		mesh := domain.NewMesh()
		require.NoError(t, mesh.SetDimension(3))
		name, _ := domain.ParseName("Triangles", domain.FormatMedit, domain.KindElement)
		gd := domain.NewGroupData(1, name, 1, domain.KindElement)
		require.NoError(t, mesh.GroupBegin(gd))
		require.NoError(t, mesh.AddElement(&domain.Element{Indices: []int{1, 2}}, gd))
		require.NoError(t, mesh.GroupEnd(gd))

		err := NewMeditCodec().Serialize(mesh, &bytes.Buffer{})
		assert.True(t, errors.Is(err, mesherr.ErrBrokenInvariant))
	})

	t.Run("missing reference defaults to zero", func(t *testing.T) {
		mesh := domain.NewMesh()
		require.NoError(t, mesh.SetDimension(2))
		name, _ := domain.ParseName("Edges", domain.FormatMedit, domain.KindElement)
		gd := domain.NewGroupData(1, name, 1, domain.KindElement)
		require.NoError(t, mesh.GroupBegin(gd))
		require.NoError(t, mesh.AddElement(&domain.Element{Indices: []int{3, 4}}, gd))
		require.NoError(t, mesh.GroupEnd(gd))

		var buf bytes.Buffer
		require.NoError(t, NewMeditCodec().Serialize(mesh, &buf))
		assert.Contains(t, buf.String(), "Edges\n1\n3 4 0\n")
	})

	t.Run("write failures are io errors", func(t *testing.T) {
		mesh, err := parseMedit(t, cubeMedit)
		require.NoError(t, err)

		err = NewMeditCodec().Serialize(mesh, failingWriter{})
		assert.True(t, errors.Is(err, mesherr.ErrIo))
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("pipe closed")
}
