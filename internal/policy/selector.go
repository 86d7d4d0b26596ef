package policy

import (
	"github.com/samber/lo"
	"github.com/samber/mo"

	"github.com/famomatic/mediaresolve/internal/extractor"
)

// Selector decides which extractors may handle a reference, and in which
// order.
type Selector interface {
	Candidates(reference string) []extractor.Extractor
	// Lookup returns the named extractor unless it is skipped.
	Lookup(name string) mo.Option[extractor.Extractor]
	Registry() extractor.Registry
}

type defaultSelector struct {
	registry extractor.Registry
	order    []string
	skip     map[string]struct{}
}

// NewSelector builds a Selector over registry. An empty order means
// registration order; names in skip are never used.
func NewSelector(registry extractor.Registry, order []string, skip []string) Selector {
	skipped := make(map[string]struct{}, len(skip))
	for _, name := range skip {
		normalized := extractor.NormalizeName(name)
		if normalized == "" {
			continue
		}
		skipped[normalized] = struct{}{}
	}
	return &defaultSelector{
		registry: registry,
		order:    order,
		skip:     skipped,
	}
}

func (s *defaultSelector) Registry() extractor.Registry {
	return s.registry
}

func (s *defaultSelector) Lookup(name string) mo.Option[extractor.Extractor] {
	if _, skipped := s.skip[extractor.NormalizeName(name)]; skipped {
		return mo.None[extractor.Extractor]()
	}
	return s.registry.Get(name)
}

func (s *defaultSelector) Candidates(reference string) []extractor.Extractor {
	return lo.Filter(s.ordered(), func(e extractor.Extractor, _ int) bool {
		return e.Match(reference)
	})
}

func (s *defaultSelector) ordered() []extractor.Extractor {
	var out []extractor.Extractor
	seen := make(map[string]struct{}, len(s.order))
	for _, name := range s.order {
		normalized := extractor.NormalizeName(name)
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		if e, ok := s.Lookup(normalized).Get(); ok {
			out = append(out, e)
		}
	}

	// If overrides were provided but all invalid, fall back to defaults.
	if len(out) == 0 {
		out = lo.Filter(s.registry.All(), func(e extractor.Extractor, _ int) bool {
			_, skipped := s.skip[extractor.NormalizeName(e.Name())]
			return !skipped
		})
	}
	return out
}
