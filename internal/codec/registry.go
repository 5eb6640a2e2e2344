package codec

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"multimesh/internal/mesherr"
)

// Entry binds a format identifier to its codecs and file extensions.
// Either codec may be nil for read-only or write-only formats.
type Entry struct {
	Format       string
	Extensions   []string
	Deserializer Deserializer
	Serializer   Serializer
}

// Registry looks up codecs by format name or file extension.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	extensions map[string]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries:    make(map[string]Entry),
		extensions: make(map[string]string),
	}
}

// DefaultRegistry returns a registry with every built-in format.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	medit := NewMeditCodec()
	ply := NewPlyCodec()
	yamlCodec := NewYAMLCodec()
	jsonCodec := NewJSONCodec()

	for _, e := range []Entry{
		{Format: medit.Format(), Extensions: []string{".mesh"}, Deserializer: medit, Serializer: medit},
		{Format: ply.Format(), Extensions: []string{".ply"}, Deserializer: ply, Serializer: ply},
		{Format: yamlCodec.Format(), Extensions: []string{".yaml", ".yml"}, Deserializer: yamlCodec, Serializer: yamlCodec},
		{Format: jsonCodec.Format(), Extensions: []string{".json"}, Deserializer: jsonCodec, Serializer: jsonCodec},
	} {
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a format. Format names and extensions must be unique.
func (r *Registry) Register(e Entry) error {
	if e.Format == "" {
		return fmt.Errorf("format name is required")
	}
	if e.Deserializer == nil && e.Serializer == nil {
		return fmt.Errorf("format %s has no codec", e.Format)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.Format]; exists {
		return fmt.Errorf("format %s already registered", e.Format)
	}
	exts := make([]string, 0, len(e.Extensions))
	for _, ext := range e.Extensions {
		ext = normalizeExt(ext)
		if owner, exists := r.extensions[ext]; exists {
			return fmt.Errorf("extension %s already registered for %s", ext, owner)
		}
		exts = append(exts, ext)
	}

	e.Extensions = exts
	r.entries[e.Format] = e
	for _, ext := range exts {
		r.extensions[ext] = e.Format
	}
	return nil
}

// Deserializer returns the reader for format.
func (r *Registry) Deserializer(format string) (Deserializer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[format]
	if !ok || e.Deserializer == nil {
		return nil, mesherr.Unsupported("no reader for format %q", format)
	}
	return e.Deserializer, nil
}

// Serializer returns the writer for format.
func (r *Registry) Serializer(format string) (Serializer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[format]
	if !ok || e.Serializer == nil {
		return nil, mesherr.Unsupported("no writer for format %q", format)
	}
	return e.Serializer, nil
}

// FormatForPath infers the format from the file extension of path.
func (r *Registry) FormatForPath(path string) (string, error) {
	ext := normalizeExt(filepath.Ext(path))
	if ext == "" {
		return "", mesherr.Unsupported("cannot infer format of %s without an extension", path)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	format, ok := r.extensions[ext]
	if !ok {
		return "", mesherr.Unsupported("unknown file extension %s", ext)
	}
	return format, nil
}

// Formats returns the registered entries sorted by format name.
func (r *Registry) Formats() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Format, b.Format) })
	return entries
}

func normalizeExt(ext string) string {
	if ext == "" {
		return ""
	}
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
