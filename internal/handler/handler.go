package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"multimesh/internal/mesherr"
	"multimesh/internal/repository"
	"multimesh/internal/service"
)

// DefaultMaxBodyBytes caps uploaded mesh documents
const DefaultMaxBodyBytes = 64 << 20

// MeshHandler handles the mesh conversion and catalog API
type MeshHandler struct {
	svc          *service.MeshService
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewMeshHandler creates a new mesh handler
func NewMeshHandler(svc *service.MeshService, logger *slog.Logger) *MeshHandler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &MeshHandler{svc: svc, logger: logger, maxBodyBytes: DefaultMaxBodyBytes}
}

// SetMaxBodyBytes overrides the request body limit
func (h *MeshHandler) SetMaxBodyBytes(n int64) {
	if n > 0 {
		h.maxBodyBytes = n
	}
}

// Register installs the API routes on mux
func (h *MeshHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/formats", h.ListFormats)
	mux.HandleFunc("POST /api/convert", h.Convert)

	mux.HandleFunc("GET /api/meshes", h.ListMeshes)
	mux.HandleFunc("POST /api/meshes", h.ImportMesh)
	mux.HandleFunc("GET /api/meshes/{id}", h.GetMesh)
	mux.HandleFunc("DELETE /api/meshes/{id}", h.DeleteMesh)
	mux.HandleFunc("GET /api/meshes/{id}/export", h.ExportMesh)
}

// Error response structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// FormatInfo describes a registered format
type FormatInfo struct {
	Format     string   `json:"format"`
	Extensions []string `json:"extensions"`
	Read       bool     `json:"read"`
	Write      bool     `json:"write"`
}

// ImportResponse is returned by ImportMesh
type ImportResponse struct {
	Mesh    any  `json:"mesh"`
	Existed bool `json:"existed"`
}

// ListFormats returns the formats the server can read and write
func (h *MeshHandler) ListFormats(w http.ResponseWriter, r *http.Request) {
	entries := h.svc.Registry().Formats()
	formats := make([]FormatInfo, 0, len(entries))
	for _, e := range entries {
		formats = append(formats, FormatInfo{
			Format:     e.Format,
			Extensions: e.Extensions,
			Read:       e.Deserializer != nil,
			Write:      e.Serializer != nil,
		})
	}
	h.writeJSON(w, formats, http.StatusOK)
}

// Convert converts the request body between two formats
func (h *MeshHandler) Convert(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		h.writeError(w, "Invalid request", "both from and to are required", http.StatusBadRequest)
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	// The service buffers its output, so nothing reaches w unless the
	// conversion succeeded.
	w.Header().Set("Content-Type", contentType(to))
	result, err := h.svc.Convert(r.Context(), from, body, to, w)
	if err != nil {
		h.fail(w, "Conversion failed", err)
		return
	}

	h.logger.Debug("converted upload", "from", from, "to", to, "entities", result.Entities)
}

// ListMeshes returns all catalog records
func (h *MeshHandler) ListMeshes(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, "Failed to list meshes", err)
		return
	}
	h.writeJSON(w, records, http.StatusOK)
}

// ImportMesh stores the request body in the catalog
func (h *MeshHandler) ImportMesh(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		h.writeError(w, "Invalid request", "format is required", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.fail(w, "Failed to read request body", err)
		return
	}

	rec, existed, err := h.svc.Import(r.Context(), r.URL.Query().Get("name"), format, data)
	if err != nil {
		h.fail(w, "Failed to import mesh", err)
		return
	}

	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	h.writeJSON(w, ImportResponse{Mesh: rec, Existed: existed}, status)
}

// GetMesh returns a single catalog record
func (h *MeshHandler) GetMesh(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "Failed to get mesh", err)
		return
	}
	h.writeJSON(w, rec, http.StatusOK)
}

// DeleteMesh removes a mesh from the catalog
func (h *MeshHandler) DeleteMesh(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, "Failed to delete mesh", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportMesh writes a stored mesh in the requested format
func (h *MeshHandler) ExportMesh(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	format := r.URL.Query().Get("format")
	if format == "" {
		h.writeError(w, "Invalid request", "format is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.%s", id, format))
	if err := h.svc.Export(r.Context(), id, format, w); err != nil {
		w.Header().Del("Content-Disposition")
		h.fail(w, "Failed to export mesh", err)
	}
}

// fail maps err onto a status code and writes the error response
func (h *MeshHandler) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
	} else {
		h.logger.Debug(msg, "error", err, "status", status)
	}
	h.writeError(w, msg, err.Error(), status)
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	}

	switch mesherr.KindOf(err) {
	case mesherr.KindSyntax, mesherr.KindUnsupported:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func contentType(format string) string {
	switch format {
	case "json":
		return "application/json"
	case "yaml":
		return "application/yaml"
	default:
		return "text/plain; charset=utf-8"
	}
}

func (h *MeshHandler) writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *MeshHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	h.writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}
