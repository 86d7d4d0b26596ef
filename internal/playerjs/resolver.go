package playerjs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/famomatic/mediaresolve/internal/fetch"
)

// ScriptSource loads client script bodies.
type ScriptSource interface {
	Script(ctx context.Context, scriptURL string) (string, error)
}

// ResolverConfig contains externally tunable settings for script fetches.
type ResolverConfig struct {
	// BaseURL resolves relative script URLs.
	BaseURL string
	Headers http.Header
}

type defaultResolver struct {
	fetcher fetch.Fetcher
	cache   Cache
	config  ResolverConfig
}

// NewResolver returns a ScriptSource that fetches through fetcher and keeps
// bodies in cache keyed by script id or URL.
func NewResolver(fetcher fetch.Fetcher, cache Cache, cfg ...ResolverConfig) ScriptSource {
	resolverConfig := ResolverConfig{}
	if len(cfg) > 0 {
		resolverConfig = cfg[0]
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &defaultResolver{
		fetcher: fetcher,
		cache:   cache,
		config:  resolverConfig,
	}
}

func (r *defaultResolver) Script(ctx context.Context, scriptURL string) (string, error) {
	fullURL, err := r.absoluteURL(scriptURL)
	if err != nil {
		return "", err
	}
	cacheKey := scriptIDFromURL(fullURL)
	if cacheKey == "" {
		cacheKey = fullURL
	}
	if body, ok := r.cache.Get(cacheKey); ok {
		return body, nil
	}

	body, err := r.fetcher.Fetch(ctx, fullURL, r.config.Headers)
	if err != nil {
		return "", fmt.Errorf("failed to fetch client script: %w", err)
	}
	r.cache.Set(cacheKey, string(body))
	return string(body), nil
}

func (r *defaultResolver) absoluteURL(scriptURL string) (string, error) {
	if strings.HasPrefix(scriptURL, "http://") || strings.HasPrefix(scriptURL, "https://") {
		return scriptURL, nil
	}
	if r.config.BaseURL == "" {
		return "", fmt.Errorf("relative script url %q without base url", scriptURL)
	}
	base, err := url.Parse(r.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	ref, err := url.Parse(scriptURL)
	if err != nil {
		return "", fmt.Errorf("invalid script url: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// StaticSource serves scripts from memory, keyed by URL.
type StaticSource map[string]string

func (s StaticSource) Script(_ context.Context, scriptURL string) (string, error) {
	body, ok := s[scriptURL]
	if !ok {
		return "", fmt.Errorf("script %s not available", scriptURL)
	}
	return body, nil
}
