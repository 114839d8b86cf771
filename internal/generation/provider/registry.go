package provider

import (
	"sort"
	"strings"

	"github.com/smallbiznis/creditgate/internal/generation/domain"
)

type Registry struct {
	providers map[string]domain.Provider
	fallback  string
}

// NewRegistry indexes providers by name. The first provider is the fallback
// for requests that do not name one.
func NewRegistry(providers ...domain.Provider) *Registry {
	r := &Registry{providers: make(map[string]domain.Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		name := strings.ToLower(p.Name())
		if r.fallback == "" {
			r.fallback = name
		}
		r.providers[name] = p
	}
	return r
}

func (r *Registry) Resolve(name string) (domain.Provider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = r.fallback
	}
	p, ok := r.providers[key]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return p, nil
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
