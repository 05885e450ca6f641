// Package discovery finds new leads for tenants. Concrete sources (search
// engines, directories) plug in behind the Source interface; the service
// owns dedup, exclusion and lead creation.
package discovery

import (
	"context"
	"fmt"
)

// Result is one candidate business returned by a source.
type Result struct {
	URL          string
	CompanyName  string
	ICO          string
	ContactEmail string
}

// Source yields candidate businesses for a query.
type Source interface {
	Name() string
	Discover(ctx context.Context, query string, limit int) ([]Result, error)
}

// Registry maps source names to implementations.
type Registry struct {
	sources map[string]Source
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Source{}}
}

// Register adds a source. Registering a name twice is a programming error.
func (r *Registry) Register(s Source) {
	if _, dup := r.sources[s.Name()]; dup {
		panic(fmt.Sprintf("discovery: source %s registered twice", s.Name()))
	}
	r.sources[s.Name()] = s
}

// Get returns the source for a name, or nil.
func (r *Registry) Get(name string) Source {
	return r.sources[name]
}
