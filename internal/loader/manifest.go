// Package loader reads batch conversion manifests.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestVersion is the only manifest version understood.
const ManifestVersion = "1"

// Manifest represents a batch conversion file
type Manifest struct {
	Version   string `yaml:"version"`
	Overwrite bool   `yaml:"overwrite,omitempty"`
	Jobs      []Job  `yaml:"jobs"`
}

// Job converts one file. From and To may be left empty to infer the
// formats from the file extensions.
type Job struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	From   string `yaml:"from,omitempty"`
	To     string `yaml:"to,omitempty"`
}

// LoadManifest reads and validates a manifest file. Relative job paths are
// resolved against the directory of the manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}
	return ParseManifest(data, filepath.Dir(abs))
}

// ParseManifest parses manifest YAML, resolving relative paths against baseDir
func ParseManifest(data []byte, baseDir string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if m.Version == "" {
		m.Version = ManifestVersion
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	for i := range m.Jobs {
		m.Jobs[i].Source = resolve(baseDir, m.Jobs[i].Source)
		m.Jobs[i].Target = resolve(baseDir, m.Jobs[i].Target)
	}
	return &m, nil
}

// Validate checks the manifest for structural errors
func (m *Manifest) Validate() error {
	if m.Version != ManifestVersion {
		return fmt.Errorf("unsupported manifest version %q", m.Version)
	}
	if len(m.Jobs) == 0 {
		return errors.New("manifest has no jobs")
	}

	targets := make(map[string]int, len(m.Jobs))
	for i, job := range m.Jobs {
		if job.Source == "" {
			return fmt.Errorf("job %d: source is required", i)
		}
		if job.Target == "" {
			return fmt.Errorf("job %d: target is required", i)
		}
		if filepath.Clean(job.Source) == filepath.Clean(job.Target) {
			return fmt.Errorf("job %d: source and target are the same file", i)
		}
		if prev, dup := targets[filepath.Clean(job.Target)]; dup {
			return fmt.Errorf("job %d: target %s is also written by job %d", i, job.Target, prev)
		}
		targets[filepath.Clean(job.Target)] = i
	}
	return nil
}

// ExportManifest serializes a manifest back to YAML
func ExportManifest(m *Manifest) ([]byte, error) {
	return yaml.Marshal(m)
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
