package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"multimesh/internal/codec"
	"multimesh/internal/domain"
	"multimesh/internal/repository/sqlite"
	"multimesh/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const triangleMesh = `MeshVersionFormatted 1
Dimension 2
Vertices
3
0 0 0
1 0 0
0 1 0
Triangles
1
1 2 3 5
End
`

func newTestServer(t *testing.T) (*MeshHandler, http.Handler) {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	h := NewMeshHandler(service.NewMeshService(repo, codec.DefaultRegistry()), nil)
	mux := http.NewServeMux()
	h.Register(mux)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return h, Chain(mux, Recover(logger), CORS, Logger(logger))
}

func do(t *testing.T, srv http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func importMesh(t *testing.T, srv http.Handler) domain.MeshRecord {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/meshes?name=tri&format=medit", triangleMesh)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Mesh    domain.MeshRecord `json:"mesh"`
		Existed bool              `json:"existed"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Existed)
	return resp.Mesh
}

func TestListFormats(t *testing.T) {
	_, srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/formats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var formats []FormatInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&formats))
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, f.Format)
		assert.True(t, f.Read)
		assert.True(t, f.Write)
	}
	assert.Equal(t, []string{"json", "medit", "ply", "yaml"}, names)
}

func TestConvert(t *testing.T) {
	_, srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/convert?from=medit&to=json", triangleMesh)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.EqualValues(t, 2, doc["dimension"])
}

func TestConvertErrors(t *testing.T) {
	_, srv := newTestServer(t)

	tests := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{"missing formats", "/api/convert?from=medit", triangleMesh, http.StatusBadRequest},
		{"unknown format", "/api/convert?from=stl&to=json", triangleMesh, http.StatusBadRequest},
		{"syntax error", "/api/convert?from=medit&to=json", "Dimension 2\nNope\n", http.StatusBadRequest},
		{"unsupported version", "/api/convert?from=medit&to=json", "MeshVersionFormatted 2\n", http.StatusBadRequest},
		{"medit names in ply", "/api/convert?from=medit&to=ply", triangleMesh, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			resp := decodeError(t, rec)
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.Details)
		})
	}
}

func TestConvertBodyTooLarge(t *testing.T) {
	h, srv := newTestServer(t)
	h.SetMaxBodyBytes(16)

	rec := do(t, srv, http.MethodPost, "/api/convert?from=medit&to=json", triangleMesh)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMeshLifecycle(t *testing.T) {
	_, srv := newTestServer(t)
	mesh := importMesh(t, srv)
	assert.Equal(t, "tri", mesh.Name)
	assert.Equal(t, 4, mesh.EntityCount)

	again := do(t, srv, http.MethodPost, "/api/meshes?format=medit", triangleMesh)
	assert.Equal(t, http.StatusOK, again.Code)

	rec := do(t, srv, http.MethodGet, "/api/meshes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.MeshRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, mesh.ID, list[0].ID)

	rec = do(t, srv, http.MethodGet, "/api/meshes/"+mesh.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/meshes/"+mesh.ID+"/export?format=medit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), mesh.ID+".medit")
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte("Triangles\n1\n1 2 3 5\n")))

	rec = do(t, srv, http.MethodDelete, "/api/meshes/"+mesh.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/meshes/"+mesh.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, srv, http.MethodDelete, "/api/meshes/"+mesh.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportErrors(t *testing.T) {
	_, srv := newTestServer(t)
	mesh := importMesh(t, srv)

	rec := do(t, srv, http.MethodGet, "/api/meshes/"+mesh.ID+"/export", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/meshes/"+mesh.ID+"/export?format=ply", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))

	rec = do(t, srv, http.MethodGet, "/api/meshes/missing/export?format=medit", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportRequiresFormat(t *testing.T) {
	_, srv := newTestServer(t)
	rec := do(t, srv, http.MethodPost, "/api/meshes", triangleMesh)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	_, srv := newTestServer(t)
	rec := do(t, srv, http.MethodOptions, "/api/meshes", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecover(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
