package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"multimesh/internal/codec"
	"multimesh/internal/domain"
	"multimesh/internal/inspect"
	"multimesh/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

var (
	// ErrNoCatalog is returned by catalog operations on a service built
	// without a repository.
	ErrNoCatalog = errors.New("mesh catalog is not configured")

	// ErrTargetExists is returned when a conversion would replace a file
	// and overwriting is disabled.
	ErrTargetExists = errors.New("target file already exists")
)

// MeshService provides the conversion and catalog workflows
type MeshService struct {
	repo     repository.MeshRepository
	registry *codec.Registry
	eventBus *EventBus
	logger   *slog.Logger
	workers  int
}

// Option configures a MeshService
type Option func(*MeshService)

// WithEventBus publishes service events on bus
func WithEventBus(bus *EventBus) Option {
	return func(s *MeshService) { s.eventBus = bus }
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *MeshService) { s.logger = logger }
}

// WithWorkers bounds the number of batch jobs run at once
func WithWorkers(n int) Option {
	return func(s *MeshService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewMeshService creates a new mesh service. repo may be nil when only
// file conversions are needed.
func NewMeshService(repo repository.MeshRepository, registry *codec.Registry, opts ...Option) *MeshService {
	s := &MeshService{
		repo:     repo,
		registry: registry,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		workers:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the codec registry the service resolves formats with
func (s *MeshService) Registry() *codec.Registry {
	return s.registry
}

// ConvertResult summarizes one conversion
type ConvertResult struct {
	From       string        `json:"from"`
	To         string        `json:"to"`
	Dimension  int           `json:"dimension"`
	Groups     int           `json:"groups"`
	Entities   int           `json:"entities"`
	BytesIn    int64         `json:"bytes_in"`
	BytesOut   int64         `json:"bytes_out"`
	Duration   time.Duration `json:"duration"`
	SourcePath string        `json:"source_path,omitempty"`
	TargetPath string        `json:"target_path,omitempty"`
}

// parse reads r in format from into a fresh mesh
func (s *MeshService) parse(ctx context.Context, from string, r io.Reader) (*domain.Mesh, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	deserializer, err := s.registry.Deserializer(from)
	if err != nil {
		return nil, 0, err
	}

	counted := &countingReader{r: r}
	mesh := domain.NewMesh()
	if err := deserializer.Deserialize(counted, mesh); err != nil {
		return nil, counted.n, fmt.Errorf("failed to read %s: %w", from, err)
	}
	return mesh, counted.n, nil
}

// render writes src in format to into memory so callers never see a
// partially written document.
func (s *MeshService) render(ctx context.Context, src domain.Source, to string) (*bytes.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	serializer, err := s.registry.Serializer(to)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := serializer.Serialize(src, &buf); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", to, err)
	}
	return &buf, nil
}

// Convert reads a document in format from and writes it to w in format to
func (s *MeshService) Convert(ctx context.Context, from string, r io.Reader, to string, w io.Writer) (*ConvertResult, error) {
	start := time.Now()

	mesh, n, err := s.parse(ctx, from, r)
	if err != nil {
		return nil, err
	}
	buf, err := s.render(ctx, mesh, to)
	if err != nil {
		return nil, err
	}

	out, err := buf.WriteTo(w)
	if err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}

	groups, entities := domain.Summarize(mesh)
	result := &ConvertResult{
		From:      from,
		To:        to,
		Dimension: mesh.Dimension(),
		Groups:    groups,
		Entities:  entities,
		BytesIn:   n,
		BytesOut:  out,
		Duration:  time.Since(start),
	}

	s.logger.Debug("converted mesh",
		"from", from, "to", to,
		"groups", groups, "entities", entities,
		"duration", result.Duration)
	return result, nil
}

// ConvertRequest describes a file to file conversion
type ConvertRequest struct {
	Source    string
	Target    string
	From      string // inferred from Source when empty
	To        string // inferred from Target when empty
	Overwrite bool
}

// ConvertFile converts one file into another. The target is written to a
// temporary file first and renamed into place, so a failed conversion
// leaves any existing target untouched.
func (s *MeshService) ConvertFile(ctx context.Context, req ConvertRequest) (*ConvertResult, error) {
	from, to, err := s.resolveFormats(req)
	if err != nil {
		return nil, err
	}

	if !req.Overwrite {
		if _, err := os.Stat(req.Target); err == nil {
			return nil, fmt.Errorf("%s: %w", req.Target, ErrTargetExists)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat target: %w", err)
		}
	}

	in, err := os.Open(req.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	if dir := filepath.Dir(req.Target); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create target directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(req.Target), "."+filepath.Base(req.Target)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	result, err := s.Convert(ctx, from, in, to, tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close temporary file: %w", closeErr)
	}
	if err != nil {
		s.logger.Warn("conversion failed", "source", req.Source, "target", req.Target, "error", err)
		return nil, err
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to set target permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), req.Target); err != nil {
		return nil, fmt.Errorf("failed to move output into place: %w", err)
	}

	result.SourcePath = req.Source
	result.TargetPath = req.Target
	s.logger.Info("converted file",
		"source", req.Source, "target", req.Target,
		"from", from, "to", to,
		"entities", result.Entities, "duration", result.Duration)
	s.eventBus.Publish(Event{Type: EventMeshConverted, Payload: result})
	return result, nil
}

func (s *MeshService) resolveFormats(req ConvertRequest) (string, string, error) {
	from, to := req.From, req.To
	var err error
	if from == "" {
		if from, err = s.registry.FormatForPath(req.Source); err != nil {
			return "", "", fmt.Errorf("source format: %w", err)
		}
	}
	if to == "" {
		if to, err = s.registry.FormatForPath(req.Target); err != nil {
			return "", "", fmt.Errorf("target format: %w", err)
		}
	}
	return from, to, nil
}

// Inspect parses a document and writes its metadata summary to w
func (s *MeshService) Inspect(ctx context.Context, from string, r io.Reader, w io.Writer) error {
	mesh, _, err := s.parse(ctx, from, r)
	if err != nil {
		return err
	}
	return inspect.WriteMetadata(w, mesh)
}

// Checksum returns the hex BLAKE2b-256 digest identifying imported bytes
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Import parses data and stores it in the catalog. Importing bytes that
// are already stored returns the existing record and true.
func (s *MeshService) Import(ctx context.Context, name, from string, data []byte) (*domain.MeshRecord, bool, error) {
	if s.repo == nil {
		return nil, false, ErrNoCatalog
	}

	checksum := Checksum(data)
	existing, err := s.repo.FindByChecksum(ctx, checksum)
	if err == nil {
		s.logger.Info("mesh already imported", "id", existing.ID, "checksum", checksum)
		return existing, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	mesh, _, err := s.parse(ctx, from, bytes.NewReader(data))
	if err != nil {
		return nil, false, err
	}

	if name == "" {
		name = checksum[:12]
	}
	rec := &domain.MeshRecord{
		ID:           uuid.NewString(),
		Name:         name,
		SourceFormat: from,
		Checksum:     checksum,
	}
	if err := s.repo.Save(ctx, rec, mesh); err != nil {
		return nil, false, fmt.Errorf("failed to save mesh: %w", err)
	}

	s.logger.Info("imported mesh",
		"id", rec.ID, "name", rec.Name, "format", from,
		"groups", rec.GroupCount, "entities", rec.EntityCount)
	s.eventBus.Publish(Event{Type: EventMeshImported, Payload: rec})
	return rec, false, nil
}

// ImportFile imports a file, inferring the format from its extension when
// from is empty and naming the mesh after the file when name is empty.
func (s *MeshService) ImportFile(ctx context.Context, path, from, name string) (*domain.MeshRecord, bool, error) {
	if from == "" {
		var err error
		if from, err = s.registry.FormatForPath(path); err != nil {
			return nil, false, err
		}
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read file: %w", err)
	}
	return s.Import(ctx, name, from, data)
}

// Export writes a stored mesh to w in format to
func (s *MeshService) Export(ctx context.Context, id, to string, w io.Writer) error {
	if s.repo == nil {
		return ErrNoCatalog
	}

	mesh := domain.NewMesh()
	if err := s.repo.Load(ctx, id, mesh); err != nil {
		return err
	}
	buf, err := s.render(ctx, mesh, to)
	if err != nil {
		return err
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	s.logger.Debug("exported mesh", "id", id, "format", to)
	return nil
}

// Get returns a catalog record
func (s *MeshService) Get(ctx context.Context, id string) (*domain.MeshRecord, error) {
	if s.repo == nil {
		return nil, ErrNoCatalog
	}
	return s.repo.Get(ctx, id)
}

// List returns every catalog record
func (s *MeshService) List(ctx context.Context) ([]*domain.MeshRecord, error) {
	if s.repo == nil {
		return nil, ErrNoCatalog
	}
	return s.repo.List(ctx)
}

// Delete removes a mesh from the catalog
func (s *MeshService) Delete(ctx context.Context, id string) error {
	if s.repo == nil {
		return ErrNoCatalog
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("deleted mesh", "id", id)
	s.eventBus.Publish(Event{
		Type:    EventMeshDeleted,
		Payload: map[string]string{"mesh_id": id},
	})
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
