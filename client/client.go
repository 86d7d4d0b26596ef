package client

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"

	"github.com/famomatic/mediaresolve/internal/challenge"
	"github.com/famomatic/mediaresolve/internal/extractor"
	"github.com/famomatic/mediaresolve/internal/extractor/generic"
	"github.com/famomatic/mediaresolve/internal/fetch"
	"github.com/famomatic/mediaresolve/internal/formats"
	"github.com/famomatic/mediaresolve/internal/orchestrator"
	"github.com/famomatic/mediaresolve/internal/playerjs"
	"github.com/famomatic/mediaresolve/internal/policy"
	"github.com/famomatic/mediaresolve/internal/selector"
	"github.com/famomatic/mediaresolve/internal/types"
)

// DefaultWorkers is the ResolveAll concurrency when none is given.
const DefaultWorkers = 4

// Client resolves media references into playable formats.
type Client struct {
	config   Config
	engine   *orchestrator.Engine
	decrypt  *playerjs.Engine
	fetcher  fetch.Fetcher
	registry extractor.Registry
	logger   Logger
}

// New creates a client. It fails on an invalid proxy URL, selection
// expression or token pattern, and on conflicting extractor names.
func New(config Config) (*Client, error) {
	if config.HTTPClient == nil {
		httpClient, err := newHTTPClient(config.ProxyURL)
		if err != nil {
			return nil, err
		}
		config.HTTPClient = httpClient
	}
	if config.CookieJar != nil {
		httpClient := *config.HTTPClient
		httpClient.Jar = config.CookieJar
		config.HTTPClient = &httpClient
	}
	logger := config.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	fetcher := fetch.New(config.HTTPClient, fetch.Config{
		UserAgent: config.UserAgent,
		Headers:   config.Headers,
		Transport: fetch.TransportConfig{
			MaxRetries:     config.MaxRetries,
			InitialBackoff: config.InitialBackoff,
			MaxBackoff:     config.MaxBackoff,
		},
		OnRetry: func(rawURL string, attempt uint, err error) {
			logger.Debugf("retrying %s (attempt %d): %v", rawURL, attempt, err)
		},
	})

	var pattern *regexp.Regexp
	if strings.TrimSpace(config.TokenPattern) != "" {
		compiled, err := regexp.Compile(config.TokenPattern)
		if err != nil {
			return nil, fmt.Errorf("token pattern: %w", err)
		}
		pattern = compiled
	}

	programCache := playerjs.NewMemoryProgramCache(config.ProgramCacheTTL)
	if config.ProgramCachePath != "" {
		fs := config.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		programCache = playerjs.NewLayeredProgramCache(
			programCache,
			playerjs.NewPersistedProgramCache(fs, config.ProgramCachePath, config.ProgramCacheTTL),
		)
	}
	decrypt := playerjs.NewEngine(playerjs.EngineConfig{
		Source: playerjs.NewResolver(fetcher, playerjs.NewMemoryCache(), playerjs.ResolverConfig{
			BaseURL: config.ScriptBaseURL,
			Headers: config.Headers,
		}),
		Cache:        programCache,
		DisableKnown: config.DisableKnownPrograms,
		TokenPattern: pattern,
		Probe:        config.ProbeHelpers,
	})

	extractors := append([]Extractor(nil), config.Extractors...)
	if !config.DisableGenericExtractors {
		extractors = append(extractors, generic.Extractors(fetcher)...)
	}
	registry, err := extractor.NewRegistry(extractors...)
	if err != nil {
		return nil, err
	}

	var selection *selector.Selector
	if strings.TrimSpace(config.Selection) != "" {
		selection, err = ParseSelection(config.Selection)
		if err != nil {
			return nil, fmt.Errorf("selection: %w", err)
		}
	}

	engine := orchestrator.NewEngine(orchestrator.Config{
		Selector:  policy.NewSelector(registry, config.ExtractorOrder, config.ExtractorSkip),
		Fetcher:   fetcher,
		Providers: []challenge.Provider{challenge.NewEngineProvider(decrypt)},
		MaxDepth:  config.MaxDepth,
		Selection: selection,
		Logger:    logger,
	})

	return &Client{
		config:   config,
		engine:   engine,
		decrypt:  decrypt,
		fetcher:  fetcher,
		registry: registry,
		logger:   logger,
	}, nil
}

// Resolve resolves reference into its entries. With a playlist, entries
// that fail are reported in Resolution.Failures and the call succeeds as
// long as one entry resolved.
func (c *Client) Resolve(ctx context.Context, reference string) (*Resolution, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, &ResolveError{Category: ErrInvalidInput, Err: fmt.Errorf("empty reference")}
	}
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	res, err := c.engine.Resolve(ctx, reference)
	return res, mapError(reference, err)
}

// ResolveResult resolves a raw result built by the caller, for instance one
// an extractor produced outside of this client.
func (c *Client) ResolveResult(ctx context.Context, node *Result) (*Resolution, error) {
	if node == nil {
		return nil, &ResolveError{Category: ErrInvalidInput, Err: fmt.Errorf("nil result")}
	}
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	res, err := c.engine.ResolveResult(ctx, node)
	return res, mapError("", err)
}

// ResolveAll resolves references concurrently with at most workers at a
// time. Outcomes are returned in the order of references.
func (c *Client) ResolveAll(ctx context.Context, references []string, workers int) []Outcome {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	outcomes := make([]Outcome, len(references))
	p := pool.New().WithMaxGoroutines(workers)
	for i, reference := range references {
		p.Go(func() {
			reqCtx := types.WithRequestID(ctx, "")
			res, err := c.Resolve(reqCtx, reference)
			outcomes[i] = Outcome{Reference: reference, Resolution: res, Err: err}
		})
	}
	p.Wait()
	return outcomes
}

// Fragments returns the fragments of f. Deferred HLS formats have their
// media playlist fetched on every call, so live playlists refresh.
func (c *Client) Fragments(ctx context.Context, f Format) ([]Fragment, error) {
	return formats.ResolveFragments(ctx, c.fetcher, f)
}

// Decrypt decrypts one stream token against the client script at scriptURL.
func (c *Client) Decrypt(ctx context.Context, scriptURL, token string) (string, error) {
	return c.decrypt.Decrypt(ctx, scriptURL, token)
}

// Fetch retrieves a document with the client's headers and retry policy.
func (c *Client) Fetch(ctx context.Context, rawURL string, headers http.Header) ([]byte, error) {
	return c.fetcher.Fetch(ctx, rawURL, headers)
}

// Extractors lists the registered extractor names in registration order.
func (c *Client) Extractors() []string {
	all := c.registry.All()
	names := make([]string, len(all))
	for i, e := range all {
		names[i] = e.Name()
	}
	return names
}

// ClearProgramCache forgets every derived token transform.
func (c *Client) ClearProgramCache() {
	c.decrypt.Cache().Clear()
}
