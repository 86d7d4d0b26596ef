package extractor

import (
	"context"
	"errors"

	"github.com/famomatic/mediaresolve/internal/types"
)

// ErrNotMatched is returned by Resolve when the extractor turns out not to
// handle the reference after all. The resolver moves on to the next
// candidate. Any other error stops resolution of the reference.
var ErrNotMatched = errors.New("reference not handled by extractor")

// Extractor is the capability every site collaborator provides.
type Extractor interface {
	// Name returns the extractor name (e.g. "direct", "hls").
	Name() string

	// Match reports whether the extractor can handle reference.
	Match(reference string) bool

	// Resolve returns the raw result for reference.
	Resolve(ctx context.Context, reference string) (*types.Result, error)
}

// Func adapts plain functions to Extractor.
type Func struct {
	ExtractorName string
	MatchFunc     func(reference string) bool
	ResolveFunc   func(ctx context.Context, reference string) (*types.Result, error)
}

func (f Func) Name() string { return f.ExtractorName }

func (f Func) Match(reference string) bool {
	if f.MatchFunc == nil {
		return false
	}
	return f.MatchFunc(reference)
}

func (f Func) Resolve(ctx context.Context, reference string) (*types.Result, error) {
	if f.ResolveFunc == nil {
		return nil, ErrNotMatched
	}
	return f.ResolveFunc(ctx, reference)
}
