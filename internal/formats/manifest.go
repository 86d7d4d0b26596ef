package formats

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/famomatic/mediaresolve/internal/fetch"
	"github.com/famomatic/mediaresolve/internal/types"
)

// MaxFragments bounds the fragments of a single format. Representations
// expanding to more are skipped with a warning.
const MaxFragments = 100000

var errTooManyFragments = fmt.Errorf("more than %d fragments", MaxFragments)

// Options controls how manifest entries become Formats.
type Options struct {
	// FormatIDPrefix is prepended to every generated format id.
	FormatIDPrefix string
	Preference     int
	// Ext is the container assumed for HLS variants. Defaults to mp4.
	Ext     string
	Headers http.Header
	// ContextID names the item the manifest belongs to in warnings.
	ContextID string
}

// Manifest is the outcome of parsing one manifest document.
type Manifest struct {
	Formats   []types.Format
	Subtitles map[string][]types.Subtitle
	Warnings  []string
	// DRM is set when the document declares protection the parser cannot
	// describe as individual formats.
	DRM    bool
	IsLive bool
}

func newManifest() *Manifest {
	return &Manifest{Subtitles: make(map[string][]types.Subtitle)}
}

func (m *Manifest) warnf(opts Options, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if opts.ContextID != "" {
		msg = opts.ContextID + ": " + msg
	}
	m.Warnings = append(m.Warnings, msg)
}

func (m *Manifest) addSubtitle(lang string, sub types.Subtitle) {
	if lang == "" {
		lang = "und"
	}
	m.Subtitles[lang] = append(m.Subtitles[lang], sub)
}

// ExtractOptions configures Extract.
type ExtractOptions struct {
	Options
	// NonFatal reports fetch and parse failures as a warning on an empty
	// manifest instead of returning them.
	NonFatal bool
	// RewriteURL runs before the fetch, e.g. to decrypt a token in the URL.
	RewriteURL func(ctx context.Context, manifestURL string) (string, error)
}

// Extract fetches the manifest at manifestURL and parses it as kind.
func Extract(ctx context.Context, fetcher fetch.Fetcher, kind types.ManifestKind, manifestURL string, opts ExtractOptions) (*Manifest, error) {
	m, err := extract(ctx, fetcher, kind, manifestURL, opts)
	if err == nil {
		return m, nil
	}
	if !opts.NonFatal || ctx.Err() != nil {
		return nil, err
	}
	out := newManifest()
	out.warnf(opts.Options, "%s manifest %s skipped: %v", kind, manifestURL, err)
	return out, nil
}

// ExtractHLS is Extract for HLS playlists.
func ExtractHLS(ctx context.Context, fetcher fetch.Fetcher, manifestURL string, opts ExtractOptions) (*Manifest, error) {
	return Extract(ctx, fetcher, types.ManifestHLS, manifestURL, opts)
}

// ExtractDASH is Extract for DASH MPDs.
func ExtractDASH(ctx context.Context, fetcher fetch.Fetcher, manifestURL string, opts ExtractOptions) (*Manifest, error) {
	return Extract(ctx, fetcher, types.ManifestDASH, manifestURL, opts)
}

// ExtractISM is Extract for Smooth Streaming manifests.
func ExtractISM(ctx context.Context, fetcher fetch.Fetcher, manifestURL string, opts ExtractOptions) (*Manifest, error) {
	return Extract(ctx, fetcher, types.ManifestISM, manifestURL, opts)
}

func extract(ctx context.Context, fetcher fetch.Fetcher, kind types.ManifestKind, manifestURL string, opts ExtractOptions) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.RewriteURL != nil {
		rewritten, err := opts.RewriteURL(ctx, manifestURL)
		if err != nil {
			return nil, fmt.Errorf("rewrite manifest url: %w", err)
		}
		manifestURL = rewritten
	}
	body, err := fetcher.Fetch(ctx, manifestURL, opts.Headers)
	if err != nil {
		return nil, fmt.Errorf("fetch %s manifest: %w", kind, err)
	}

	switch kind {
	case types.ManifestHLS:
		return ParseHLSManifest(string(body), manifestURL, opts.Options)
	case types.ManifestDASH:
		return ParseDASHManifest(body, manifestURL, opts.Options)
	case types.ManifestISM:
		return ParseISMManifest(body, manifestURL, opts.Options)
	}
	return nil, fmt.Errorf("unsupported manifest kind %q", kind)
}

func joinID(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "-")
}

func resolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func isAbsoluteURL(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}
