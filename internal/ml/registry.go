package ml

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"pbpd/internal/material"
)

// ModelLoadError marks a material group's artifact as missing or corrupt.
// The group stays unusable for the process lifetime; other groups are
// unaffected.
type ModelLoadError struct {
	Material material.Group
	Path     string
	cause    error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load %s model from %s: %v", e.Material, e.Path, e.cause)
}

func (e *ModelLoadError) Unwrap() error { return e.cause }

// MetricsInterface defines the metrics methods the registry needs.
type MetricsInterface interface {
	ModelLoadsInc()
	ModelLoadFailuresInc()
}

// Registry maps each material group to its loaded model. Loading is lazy:
// the artifact is read on first Resolve and the result, success or failure,
// is cached for the process lifetime.
type Registry struct {
	paths   map[material.Group]string
	fetcher *ArtifactFetcher
	metrics MetricsInterface
	slots   [material.Count]registrySlot
	loads   atomic.Int64
}

type registrySlot struct {
	once  sync.Once
	model Model
	err   error
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithFetcher enables loading artifacts from http(s) URLs.
func WithFetcher(f *ArtifactFetcher) RegistryOption {
	return func(r *Registry) { r.fetcher = f }
}

// WithMetrics wires load metrics into the registry.
func WithMetrics(m MetricsInterface) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates a registry over the configured per-group artifact
// paths. Nothing is loaded until first use.
func NewRegistry(paths map[material.Group]string, opts ...RegistryOption) *Registry {
	r := &Registry{paths: paths}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the model for a group, loading it on first use. Concurrent
// first-use callers block until the single load completes; all receive the
// same cached instance or the same cached error.
func (r *Registry) Resolve(g material.Group) (Model, error) {
	if !g.Valid() {
		return nil, &ModelLoadError{Material: g, cause: fmt.Errorf("invalid material group %d", int(g))}
	}

	slot := &r.slots[g]
	slot.once.Do(func() {
		slot.model, slot.err = r.load(g)
	})
	return slot.model, slot.err
}

func (r *Registry) load(g material.Group) (Model, error) {
	r.loads.Add(1)

	path, ok := r.paths[g]
	if !ok || path == "" {
		err := &ModelLoadError{Material: g, Path: path, cause: fmt.Errorf("no artifact path configured")}
		r.failed(err)
		return nil, err
	}

	data, err := r.read(path)
	if err != nil {
		e := &ModelLoadError{Material: g, Path: path, cause: err}
		r.failed(e)
		return nil, e
	}

	model, err := parseArtifact(data, g)
	if err != nil {
		e := &ModelLoadError{Material: g, Path: path, cause: err}
		r.failed(e)
		return nil, e
	}

	if r.metrics != nil {
		r.metrics.ModelLoadsInc()
	}
	log.Info().
		Str("material", g.Key()).
		Str("path", path).
		Str("version", model.Version()).
		Int("features", len(model.Schema())).
		Msg("model loaded")
	return model, nil
}

func (r *Registry) read(path string) ([]byte, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		if r.fetcher == nil {
			return nil, fmt.Errorf("remote artifact %s but no fetcher configured", path)
		}
		return r.fetcher.Fetch(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

func (r *Registry) failed(err *ModelLoadError) {
	if r.metrics != nil {
		r.metrics.ModelLoadFailuresInc()
	}
	log.Error().Err(err.cause).Str("material", err.Material.Key()).Str("path", err.Path).Msg("model load failed")
}

// LoadCount returns how many artifact loads were actually performed. Used to
// verify the at-most-one-load-per-group guarantee.
func (r *Registry) LoadCount() int64 {
	return r.loads.Load()
}
