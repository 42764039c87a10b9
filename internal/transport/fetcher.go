package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultUserAgent is sent when no other User-Agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_11_5) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/50.0.2661.102 Safari/537.36"

// HTTPFetcher fetches URLs with an *http.Client.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header. An empty value keeps the default.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithHeaders adds headers to every request, redirects included.
// A "User-Agent" entry overrides WithUserAgent.
func WithHeaders(headers map[string]string) Option {
	return func(f *HTTPFetcher) {
		if len(headers) > 0 {
			f.wrap(func(t *headerInjectingTransport) { t.headers = headers })
		}
	}
}

// WithCookie adds a raw cookie string ("name=value; other=x") to every request.
func WithCookie(cookie string) Option {
	return func(f *HTTPFetcher) {
		if cookie != "" {
			f.wrap(func(t *headerInjectingTransport) { t.cookie = cookie })
		}
	}
}

// WithLogger sets the logger used for request-level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// NewHTTPFetcher returns a fetcher using client. The client is copied, so
// header options do not affect the caller's client.
func NewHTTPFetcher(client *http.Client, opts ...Option) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	c := *client

	f := &HTTPFetcher{
		client:    &c,
		userAgent: DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.logger == nil {
		f.logger = slog.Default()
	}

	return f
}

// Fetch performs a GET for rawURL and returns the response body.
// Non-2xx responses are returned as *StatusError with the body closed.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	target := EncodeURL(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}

	f.logger.Debug("fetched",
		"url", rawURL,
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for reuse
		_ = resp.Body.Close()                                          //nolint:errcheck // status error is returned
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	return resp.Body, nil
}

// wrap installs a headerInjectingTransport on the client if needed and
// applies set to it.
func (f *HTTPFetcher) wrap(set func(*headerInjectingTransport)) {
	t, ok := f.client.Transport.(*headerInjectingTransport)
	if !ok {
		base := f.client.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		t = &headerInjectingTransport{base: base}
		f.client.Transport = t
	}
	set(t)
}

// EncodeURL percent-encodes control characters, spaces and non-ASCII bytes
// of rawURL. Existing escapes and reserved characters are left alone, so an
// already valid URL is returned unchanged.
func EncodeURL(rawURL string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	for i := 0; i < len(rawURL); i++ {
		c := rawURL[i]
		if c > ' ' && c < 0x7f {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

// headerInjectingTransport adds configured headers and a cookie to every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
