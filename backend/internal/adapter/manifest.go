package adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"uhnw-graph/backend/internal/record"
	apperrors "uhnw-graph/backend/pkg/errors"
)

// Source is one manifest entry.
type Source struct {
	Kind  string `yaml:"kind"`
	Path  string `yaml:"path"`
	Limit int    `yaml:"limit,omitempty"`
}

// Manifest lists the sources of a multi-source load in the order they are
// fed to the run.
type Manifest struct {
	Sources []Source `yaml:"sources"`
}

// LoadManifest reads a YAML manifest. Relative source paths are resolved
// against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i, s := range m.Sources {
		if s.Kind == "" || s.Path == "" {
			return nil, fmt.Errorf("manifest %s: source %d needs kind and path", path, i)
		}
		if _, ok := fileParsers[s.Kind]; !ok && s.Kind != KindAnnualReport {
			return nil, apperrors.NewUnknownSourceKind(s.Kind)
		}
		if !filepath.IsAbs(s.Path) {
			m.Sources[i].Path = filepath.Join(base, s.Path)
		}
	}
	return &m, nil
}

// Load parses every source of the manifest in order. A per-source limit
// overrides opts.Limit.
func (m *Manifest) Load(ctx context.Context, opts Options) ([]record.Batch, error) {
	var batches []record.Batch
	for _, s := range m.Sources {
		o := opts
		if s.Limit > 0 {
			o.Limit = s.Limit
		}
		b, err := Load(ctx, s.Kind, s.Path, o)
		if err != nil {
			return nil, err
		}
		opts.logger().Debug("Manifest source loaded",
			zap.String("source_kind", s.Kind),
			zap.String("path", s.Path),
			zap.Int("batches", len(b)),
		)
		batches = append(batches, b...)
	}
	return batches, nil
}
