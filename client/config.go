package client

import (
	"net/http"
	"time"

	"github.com/spf13/afero"
)

// Config holds configuration for the resolver client. The zero value is
// usable.
type Config struct {
	// HTTPClient is the client used for making requests. If nil, New uses
	// http.DefaultClient, or a client routed through ProxyURL when set.
	HTTPClient *http.Client

	// ProxyURL is the optional proxy URL to use for requests.
	// If HTTPClient is provided, this field is ignored.
	ProxyURL string

	// CookieJar is installed on HTTPClient when set.
	CookieJar http.CookieJar

	// UserAgent and Headers are sent with every fetch.
	UserAgent string
	Headers   http.Header

	// RequestTimeout bounds one Resolve call when the context has no
	// deadline. Zero means no timeout.
	RequestTimeout time.Duration

	// MaxRetries is the number of retries for transient fetch failures.
	// Zero uses the package default, negative disables retries.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// MaxDepth bounds nesting of indirections and playlists (default 10).
	MaxDepth int

	// Selection is a format selection expression applied to every entry,
	// e.g. "bestvideo+bestaudio/best". Empty leaves selection to the caller.
	Selection string

	// DisableKnownPrograms skips the table of known-good token transforms
	// and always derives the transform from the live client script.
	DisableKnownPrograms bool

	// ProbeHelpers evaluates helper functions that cannot be classified
	// statically in a sandboxed interpreter.
	ProbeHelpers bool

	// TokenPattern overrides the shape a decrypted token must have for a
	// known transform to be accepted.
	TokenPattern string

	// ProgramCacheTTL expires derived token transforms. Zero keeps them for
	// the lifetime of the client.
	ProgramCacheTTL time.Duration

	// ProgramCachePath persists derived transforms to a file on Fs.
	ProgramCachePath string
	// Fs is the filesystem for ProgramCachePath. Defaults to the OS.
	Fs afero.Fs

	// ScriptBaseURL resolves relative client script URLs.
	ScriptBaseURL string

	// ExtractorOrder sets the extractor trial order by name. Empty uses
	// registration order: Extractors first, then the generic ones.
	ExtractorOrder []string
	// ExtractorSkip names extractors that are never used.
	ExtractorSkip []string
	// Extractors are site extractors registered ahead of the generic ones.
	Extractors []Extractor
	// DisableGenericExtractors leaves only Extractors registered.
	DisableGenericExtractors bool

	// Logger receives non-fatal warnings. Defaults to a no-op logger.
	Logger Logger
}
