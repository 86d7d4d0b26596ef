package challenge

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/lo"
)

// Decipherer decrypts obfuscated tokens for one client script.
type Decipherer interface {
	DecipherSignature(ctx context.Context, challenge string) (string, error)
}

// Provider loads a Decipherer for a client script URL.
type Provider interface {
	Load(ctx context.Context, scriptURL string) (Decipherer, error)
}

// BatchSolver collects the tokens of one result and solves them against a
// single script load.
type BatchSolver interface {
	AddSig(challenge string)
	Solve(ctx context.Context, scriptURL string) error
	Sig(challenge string) (string, bool)
	Err(challenge string) error
}

type providerBatchSolver struct {
	providers []Provider

	mu      sync.RWMutex
	pending []string
	solved  map[string]string
	errs    map[string]error
}

// NewProviderBatchSolver solves every token through provider.
func NewProviderBatchSolver(provider Provider) BatchSolver {
	return NewFallbackProviderBatchSolver(provider)
}

// NewFallbackProviderBatchSolver tries providers in order. Tokens a provider
// cannot solve are retried with the next one.
func NewFallbackProviderBatchSolver(providers ...Provider) BatchSolver {
	return &providerBatchSolver{
		providers: lo.Filter(providers, func(p Provider, _ int) bool { return p != nil }),
		solved:    make(map[string]string),
		errs:      make(map[string]error),
	}
}

func (s *providerBatchSolver) AddSig(challenge string) {
	if challenge == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.solved[challenge]; done {
		return
	}
	if lo.Contains(s.pending, challenge) {
		return
	}
	s.pending = append(s.pending, challenge)
}

func (s *providerBatchSolver) Solve(ctx context.Context, scriptURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}
	if len(s.providers) == 0 {
		return errors.New("no challenge providers configured")
	}

	var loadErr error
	loaded := false
	for _, provider := range s.providers {
		if len(s.pending) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		dec, err := provider.Load(ctx, scriptURL)
		if err != nil {
			loadErr = err
			continue
		}
		loaded = true

		remaining := s.pending[:0]
		for _, challenge := range s.pending {
			out, err := dec.DecipherSignature(ctx, challenge)
			if err != nil {
				s.errs[challenge] = err
				remaining = append(remaining, challenge)
				continue
			}
			s.solved[challenge] = out
			delete(s.errs, challenge)
		}
		s.pending = remaining
	}
	if !loaded {
		for _, challenge := range s.pending {
			s.errs[challenge] = loadErr
		}
		return loadErr
	}
	return nil
}

func (s *providerBatchSolver) Sig(challenge string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, ok := s.solved[challenge]
	return out, ok
}

func (s *providerBatchSolver) Err(challenge string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errs[challenge]
}
