package extractor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/samber/mo"
)

// Registry holds extractors by name.
type Registry interface {
	Register(e Extractor) error
	Get(name string) mo.Option[Extractor]
	// All returns extractors in registration order.
	All() []Extractor
}

type defaultRegistry struct {
	extractors map[string]Extractor
	order      []string
	mu         sync.RWMutex
}

// NewRegistry creates a registry holding extractors.
func NewRegistry(extractors ...Extractor) (Registry, error) {
	r := &defaultRegistry{extractors: make(map[string]Extractor, len(extractors))}
	for _, e := range extractors {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NormalizeName is the registry key for an extractor name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *defaultRegistry) Register(e Extractor) error {
	if e == nil {
		return fmt.Errorf("nil extractor")
	}
	name := NormalizeName(e.Name())
	if name == "" {
		return fmt.Errorf("extractor without a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.extractors[name]; exists {
		return fmt.Errorf("extractor %q already registered", name)
	}
	r.extractors[name] = e
	r.order = append(r.order, name)
	return nil
}

func (r *defaultRegistry) Get(name string) mo.Option[Extractor] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[NormalizeName(name)]
	if !ok {
		return mo.None[Extractor]()
	}
	return mo.Some(e)
}

func (r *defaultRegistry) All() []Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Extractor, 0, len(r.order))
	for _, name := range r.order {
		all = append(all, r.extractors[name])
	}
	return all
}
