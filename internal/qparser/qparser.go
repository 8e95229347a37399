// Package qparser holds the downstream query parsers that consume a
// rewritten query string, and the registry they are looked up in by name.
package qparser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
)

// Request is the per-query execution context handed through to a parser.
// The rewrite step forwards it untouched.
type Request struct {
	ID string
}

// Parser turns a query string into an executable Plan.
type Parser interface {
	Parse(ctx context.Context) (*Plan, error)
}

// Factory builds a Parser for one query. params are the request parameters
// and localParams the parser-local ones; both are passed through as received.
type Factory interface {
	CreateParser(query string, params, localParams url.Values, req *Request) (Parser, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(query string, params, localParams url.Values, req *Request) (Parser, error)

func (f FactoryFunc) CreateParser(query string, params, localParams url.Values, req *Request) (Parser, error) {
	return f(query, params, localParams, req)
}

type QueryType int

const (
	QueryAND QueryType = iota
	QueryOR
)

func (t QueryType) String() string {
	if t == QueryOR {
		return "OR"
	}
	return "AND"
}

func (t QueryType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *QueryType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "AND":
		*t = QueryAND
	case "OR":
		*t = QueryOR
	default:
		return fmt.Errorf("unknown query type %q", s)
	}
	return nil
}

// Plan is what a downstream parser produces from a rewritten query.
type Plan struct {
	Parser       string            `json:"parser"`
	RawQuery     string            `json:"raw_query"`
	Type         QueryType         `json:"type"`
	Terms        []string          `json:"terms"`
	ExcludeTerms []string          `json:"exclude_terms"`
	Phrases      []string          `json:"phrases,omitempty"`
	Filters      map[string]string `json:"filters,omitempty"`
	Rows         int               `json:"rows,omitempty"`
}

// Registry maps parser names to factories.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates a Registry with the built-in parsers registered.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
	}
	r.factories[BooleanParserName] = FactoryFunc(newBooleanParser)
	r.factories[TermsParserName] = FactoryFunc(newTermsParser)
	return r
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownParser, name)
	}
	return f, nil
}

// Register adds a parser factory under a new name.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("parser already registered: %q", name)
	}
	r.factories[name] = f
	return nil
}

// Names returns the registered parser names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
