package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// newHTTPClient returns http.DefaultClient, or a client routed through
// proxyURL when one is set. http, https and socks5 proxies are supported.
func newHTTPClient(proxyURL string) (*http.Client, error) {
	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL == "" {
		return http.DefaultClient, nil
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("proxy url: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("proxy url %q: unsupported scheme %q", proxyURL, parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("proxy url %q: missing host", proxyURL)
	}
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("default transport is %T, cannot attach a proxy", http.DefaultTransport)
	}
	transport := baseTransport.Clone()
	transport.Proxy = http.ProxyURL(parsed)
	return &http.Client{Transport: transport}, nil
}
