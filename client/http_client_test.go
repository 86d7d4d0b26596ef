package client

import (
	"net/http"
	"testing"
)

func TestNewHTTPClient_Proxy(t *testing.T) {
	httpClient, err := newHTTPClient(" socks5://127.0.0.1:1080 ")
	if err != nil {
		t.Fatalf("newHTTPClient() error = %v", err)
	}
	transport, ok := httpClient.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport type = %T, want *http.Transport", httpClient.Transport)
	}
	req, err := http.NewRequest(http.MethodGet, "https://media.example.test/clip.mp4", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	proxyURL, err := transport.Proxy(req)
	if err != nil {
		t.Fatalf("proxy function error: %v", err)
	}
	if proxyURL == nil || proxyURL.String() != "socks5://127.0.0.1:1080" {
		t.Fatalf("proxyURL = %v, want socks5://127.0.0.1:1080", proxyURL)
	}
}

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		proxy   string
		wantErr bool
	}{
		{proxy: "", wantErr: false},
		{proxy: "://bad-url", wantErr: true},
		{proxy: "ftp://proxy.example.test", wantErr: true},
		{proxy: "http://", wantErr: true},
	}
	for _, tt := range tests {
		got, err := newHTTPClient(tt.proxy)
		if (err != nil) != tt.wantErr {
			t.Fatalf("newHTTPClient(%q) error = %v, wantErr %v", tt.proxy, err, tt.wantErr)
		}
		if tt.proxy == "" && got != http.DefaultClient {
			t.Fatalf("newHTTPClient(\"\") = %p, want http.DefaultClient", got)
		}
	}
}

func TestNew_HTTPClientDefaults(t *testing.T) {
	if c := mustNew(t, Config{}); c.config.HTTPClient != http.DefaultClient {
		t.Fatalf("HTTPClient = %p, want http.DefaultClient", c.config.HTTPClient)
	}

	c := mustNew(t, Config{ProxyURL: "http://proxy.example.test:8080"})
	transport, ok := c.config.HTTPClient.Transport.(*http.Transport)
	if !ok || transport.Proxy == nil {
		t.Fatalf("transport = %T, want *http.Transport with a proxy", c.config.HTTPClient.Transport)
	}
	req, err := http.NewRequest(http.MethodGet, "https://media.example.test/clip.mp4", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if proxyURL, err := transport.Proxy(req); err != nil || proxyURL.Host != "proxy.example.test:8080" {
		t.Fatalf("proxy = %v, %v; want proxy.example.test:8080", proxyURL, err)
	}

	custom := &http.Client{}
	if c := mustNew(t, Config{HTTPClient: custom, ProxyURL: "http://ignored.example.test"}); c.config.HTTPClient != custom {
		t.Fatalf("HTTPClient was replaced despite being set")
	}
}
