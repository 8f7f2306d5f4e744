// Package httpapi implements fetch.Opener against an HTTP item API.
//
// The API exposes two endpoints per item:
//
//	GET {base}/items/{author}/{id}          detail record as a JSON object
//	GET {base}/items/{author}/{id}/related  related records as NDJSON
//
// Every Open builds a fresh http.Client with its own cookie jar and
// connection pool, so no session state leaks between items. The rate limiter
// is shared by all sessions of one Opener.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/nao1215/relcrawl/internal/fetch"
	"github.com/nao1215/relcrawl/internal/model"
)

// Defaults.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "relcrawl"

	// maxErrorBody caps how much of an error response is kept for the message.
	maxErrorBody = 512
)

var (
	// ErrUnexpectedStatus is matched by StatusError.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrMissingKey is returned when a key has no id or no author.
	ErrMissingKey = errors.New("item key is incomplete")
)

// StatusError reports a non-200 response.
type StatusError struct {
	Code int
	Body string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %d", ErrUnexpectedStatus, e.Code)
	}
	return fmt.Sprintf("%s %d: %s", ErrUnexpectedStatus, e.Code, e.Body)
}

// Is reports ErrUnexpectedStatus as matching.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Opener opens HTTP sessions against one API base URL.
type Opener struct {
	base      *url.URL
	timeout   time.Duration
	limiter   *rate.Limiter
	dialer    proxy.ContextDialer
	headers   map[string]string
	cookie    string
	userAgent string
	logger    *slog.Logger
}

var _ fetch.Opener = (*Opener)(nil)

// Option configures an Opener.
type Option func(*Opener)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opener) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRateLimit allows one request per interval across all sessions.
// Zero or negative disables the limit.
func WithRateLimit(interval time.Duration) Option {
	return func(o *Opener) {
		if interval <= 0 {
			o.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		o.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithDialer routes every connection through d, typically a SOCKS5 proxy.
func WithDialer(d proxy.ContextDialer) Option {
	return func(o *Opener) {
		o.dialer = d
	}
}

// WithHeaders adds headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(o *Opener) {
		o.headers = headers
	}
}

// WithCookie adds a raw cookie string (e.g. "msToken=abc") to every request.
func WithCookie(cookie string) Option {
	return func(o *Opener) {
		o.cookie = cookie
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *Opener) {
		o.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Opener) {
		o.logger = logger
	}
}

// New returns an Opener for baseURL.
func New(baseURL string, opts ...Option) (*Opener, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", baseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base URL has no host: %q", baseURL)
	}
	base.Path = strings.TrimSuffix(base.Path, "/")

	o := &Opener{
		base:      base,
		timeout:   DefaultTimeout,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o, nil
}

// Open implements fetch.Opener.
func (o *Opener) Open(ctx context.Context) (fetch.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}
	if o.dialer != nil {
		transport.Proxy = nil
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return o.dialer.DialContext(ctx, network, addr)
		}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := &http.Client{
		Transport: &headerInjectingTransport{
			base:      transport,
			cookie:    o.cookie,
			headers:   o.headers,
			userAgent: o.userAgent,
		},
		Timeout: o.timeout,
		Jar:     jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &session{opener: o, client: client, transport: transport}, nil
}

// itemURL builds the URL of key, with optional trailing segments.
func (o *Opener) itemURL(key model.ItemKey, suffix ...string) (string, error) {
	if key.ID == "" || key.AuthorID == "" {
		return "", fmt.Errorf("%w: %q", ErrMissingKey, key.String())
	}

	segments := append([]string{"items", key.AuthorID, key.ID}, suffix...)
	return o.base.JoinPath(segments...).String(), nil
}

// headerInjectingTransport adds configured headers and cookies to every
// request, redirects included.
type headerInjectingTransport struct {
	base      http.RoundTripper
	cookie    string
	headers   map[string]string
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
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

// session is one item's HTTP client.
type session struct {
	opener    *Opener
	client    *http.Client
	transport *http.Transport
}

// get waits for the limiter and performs a GET, returning the body of a
// 200 response. The caller closes the body.
func (s *session) get(ctx context.Context, rawURL, accept string) (io.ReadCloser, error) {
	if err := s.opener.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort message
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp.Body, nil
}

// FetchDetail implements fetch.Client.
func (s *session) FetchDetail(ctx context.Context, key model.ItemKey) (model.Item, error) {
	rawURL, err := s.opener.itemURL(key)
	if err != nil {
		return nil, err
	}

	body, err := s.get(ctx, rawURL, "application/json")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.UseNumber()
	var it model.Item
	if err := dec.Decode(&it); err != nil {
		return nil, fmt.Errorf("failed to decode detail: %w", err)
	}
	if it.ID() == "" {
		return nil, fmt.Errorf("detail for %s has no id", key)
	}

	s.opener.logger.Debug("fetched detail", "key", key.String())
	return it, nil
}

// StreamRelated implements fetch.Client. Records are decoded one at a time
// as the response body arrives.
func (s *session) StreamRelated(ctx context.Context, key model.ItemKey) iter.Seq2[model.Item, error] {
	return func(yield func(model.Item, error) bool) {
		rawURL, err := s.opener.itemURL(key, "related")
		if err != nil {
			yield(nil, err)
			return
		}

		body, err := s.get(ctx, rawURL, "application/x-ndjson")
		if err != nil {
			yield(nil, err)
			return
		}
		defer body.Close()

		dec := json.NewDecoder(body)
		dec.UseNumber()
		for n := 1; ; n++ {
			var it model.Item
			err := dec.Decode(&it)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("failed to decode related item %d: %w", n, err))
				return
			}
			if it == nil {
				continue
			}
			if !yield(it, nil) {
				return
			}
		}
	}
}

// Close implements fetch.Session.
func (s *session) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}
