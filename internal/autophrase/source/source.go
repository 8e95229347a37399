// Package source reads phrase lists from the places a deployment keeps them:
// plain files, a Postgres table, a Redis list or a SQLite file. A Router
// picks the loader from the resource string's scheme.
package source

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
)

// Resource schemes.
const (
	SchemeFile     = "file"
	SchemePostgres = "postgres"
	SchemeRedis    = "redis"
	SchemeSQLite   = "sqlite"
)

// Loader returns the raw lines of a phrase list. location is the resource
// with its scheme removed.
type Loader interface {
	Lines(ctx context.Context, location string) ([]string, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, location string) ([]string, error)

func (f LoaderFunc) Lines(ctx context.Context, location string) ([]string, error) {
	return f(ctx, location)
}

// Resource is a parsed phrase resource string.
type Resource struct {
	Scheme   string
	Location string
}

func (r Resource) String() string {
	return r.Scheme + ":" + r.Location
}

// ParseResource splits "scheme:location". A string without a known scheme
// is a file path.
func ParseResource(s string) Resource {
	s = strings.TrimSpace(s)
	if scheme, loc, ok := strings.Cut(s, ":"); ok {
		switch scheme {
		case SchemeFile, SchemePostgres, SchemeRedis, SchemeSQLite:
			return Resource{Scheme: scheme, Location: loc}
		}
	}
	return Resource{Scheme: SchemeFile, Location: s}
}

// Router dispatches a resource to the loader registered for its scheme.
// It satisfies phrase.LineSource.
type Router struct {
	mu      sync.RWMutex
	loaders map[string]Loader
}

func NewRouter() *Router {
	return &Router{loaders: make(map[string]Loader)}
}

// Handle registers loader for scheme, replacing any previous one.
func (r *Router) Handle(scheme string, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[scheme] = loader
}

// Schemes returns the registered schemes, sorted.
func (r *Router) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.loaders))
	for s := range r.loaders {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (r *Router) Lines(ctx context.Context, resource string) ([]string, error) {
	res := ParseResource(resource)
	if res.Location == "" {
		return nil, fmt.Errorf("%w: empty phrase resource %q", apperrors.ErrConfiguration, resource)
	}
	r.mu.RLock()
	loader, ok := r.loaders[res.Scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no loader configured for %s resources", apperrors.ErrConfiguration, res.Scheme)
	}
	return loader.Lines(ctx, res.Location)
}
