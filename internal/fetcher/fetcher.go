package fetcher

import (
	"context"
	"time"

	"github.com/aleister1102/driftwatch/internal/models"

	"github.com/rs/zerolog"
)

// Backend identifiers registered by default.
const (
	BackendHTTP    = "http"
	BackendBrowser = "browser"
)

// Request carries everything one fetch needs.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
	Timeout time.Duration
	Proxy   *models.ProxyDescriptor
}

// Response is the raw fetch result handed to the pipeline.
type Response struct {
	Content     []byte
	StatusCode  int
	Headers     map[string]string
	ContentType string
	Screenshot  []byte // browser backend only
	Elements    []byte // browser backend only: structured element dump
}

// Backend is the fetch contract. Failures come back as *models.CheckError
// so the pipeline can switch on the kind explicitly.
type Backend interface {
	Name() string
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// Registry maps backend identifiers to implementations. Unknown or empty
// keys resolve to the default backend, decided once at construction.
type Registry struct {
	backends    map[string]Backend
	defaultName string
	logger      zerolog.Logger
}

// NewRegistry creates a registry whose fallback is defaultName.
func NewRegistry(defaultName string, logger zerolog.Logger) *Registry {
	return &Registry{
		backends:    make(map[string]Backend),
		defaultName: defaultName,
		logger:      logger.With().Str("component", "FetcherRegistry").Logger(),
	}
}

// Register adds a backend under its own name.
func (r *Registry) Register(b Backend) {
	r.backends[b.Name()] = b
}

// Resolve returns the backend for the given key, falling back to the
// default for unknown or unset keys.
func (r *Registry) Resolve(name string) Backend {
	if name != "" {
		if b, ok := r.backends[name]; ok {
			return b
		}
		r.logger.Warn().Str("backend", name).Str("fallback", r.defaultName).Msg("Unknown fetch backend, falling back to default")
	}
	return r.backends[r.defaultName]
}
