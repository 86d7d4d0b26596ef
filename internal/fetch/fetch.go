package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxBodyBytes bounds a single document fetch.
const maxBodyBytes = 64 << 20

// ErrBodyTooLarge is returned for documents over the size limit.
var ErrBodyTooLarge = errors.New("response body too large")

// Fetcher retrieves documents: manifests, client scripts and pages.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, headers http.Header) ([]byte, error)
}

// Config configures an HTTPFetcher.
type Config struct {
	UserAgent string
	Headers   http.Header
	Transport TransportConfig
	// OnRetry is called before each retry.
	OnRetry func(rawURL string, attempt uint, err error)
}

// HTTPFetcher is a Fetcher over net/http with bounded retries for transient
// failures. Permanent failures are returned on the first attempt.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	headers   http.Header
	transport effectiveTransportConfig
	onRetry   func(string, uint, error)
	maxBody   int64
}

// New creates an HTTPFetcher. A nil client uses http.DefaultClient.
func New(client *http.Client, cfg Config) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &HTTPFetcher{
		client:    client,
		userAgent: ua,
		headers:   CloneHeader(cfg.Headers),
		transport: normalizeTransportConfig(cfg.Transport),
		onRetry:   cfg.OnRetry,
		maxBody:   maxBodyBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, headers http.Header) ([]byte, error) {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(f.transport.MaxRetries + 1)),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return isRetryableError(err, f.transport)
		}),
		// Retry-After is honored up to MaxBackoff.
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			backoff := f.transport.backoffFor(int(n))
			var statusErr *HTTPStatusError
			if errors.As(err, &statusErr) && statusErr.RetryAfter > backoff {
				backoff = statusErr.RetryAfter
			}
			return min(backoff, f.transport.MaxBackoff)
		}),
		retry.MaxDelay(f.transport.MaxBackoff),
	}
	if f.onRetry != nil {
		opts = append(opts, retry.OnRetry(func(n uint, err error) {
			f.onRetry(rawURL, n+1, err)
		}))
	}
	return retry.DoWithData(func() ([]byte, error) {
		return f.fetchOnce(ctx, rawURL, headers)
	}, opts...)
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string, headers http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	applyRequestHeaders(req, f.headers)
	for k, vals := range headers {
		req.Header.Del(k)
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, retry.Unrecoverable(fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, rawURL, f.maxBody))
	}
	return body, nil
}

// FetchFunc adapts a function to the Fetcher interface.
type FetchFunc func(ctx context.Context, rawURL string, headers http.Header) ([]byte, error)

func (fn FetchFunc) Fetch(ctx context.Context, rawURL string, headers http.Header) ([]byte, error) {
	return fn(ctx, rawURL, headers)
}
