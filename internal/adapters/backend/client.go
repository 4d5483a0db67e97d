// Package backend is the single funnel for requests to the case-management
// REST backend. It attaches credentials, unwraps the response envelope, maps
// failures to a uniform error shape, and clears the browser session when the
// backend answers 401.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	domainauth "github.com/lanoire/lanoire-web/internal/domain/auth"
	obserrors "github.com/lanoire/lanoire-web/internal/observability/errors"
	"github.com/lanoire/lanoire-web/internal/observability/statsd"
	"github.com/lanoire/lanoire-web/internal/ports"
	"github.com/lanoire/lanoire-web/internal/requestid"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 8 << 20
)

// Config describes how to reach the backend.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.example.com/api/v1". A trailing slash is ignored.
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Metrics    statsd.Sink
	Logger     *slog.Logger
}

// Client holds the shared transport configuration. Bind it to a browser
// context's session with WithSession before issuing requests.
type Client struct {
	base    string
	hc      *http.Client
	metrics statsd.Sink
	logger  *slog.Logger
}

var _ ports.Transport = (*Client)(nil)

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("backend base url is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse backend base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend base url must be http or https, got %q", u.Scheme)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{base: base, hc: hc, metrics: cfg.Metrics, logger: logger}, nil
}

var repeatedSlashes = regexp.MustCompile(`([^:]/)/+`)

// URL joins a relative resource path to the base URL with single slashes.
func (c *Client) URL(path string) string {
	return repeatedSlashes.ReplaceAllString(c.base+"/"+path, "$1")
}

// WithSession returns a caller whose authenticated verbs read the access
// credential from store and whose 401 responses clear it.
//
//nolint:ireturn // callers depend on the port so services can be tested with mocks.
func (c *Client) WithSession(store ports.SessionStore) ports.API {
	return &Caller{client: c, store: store}
}

// Caller is a Client bound to one browser context's session store.
type Caller struct {
	client *Client
	store  ports.SessionStore
}

var _ ports.API = (*Caller)(nil)

type call struct {
	method   string
	path     string
	body     any
	withBody bool
	auth     bool
}

// Get issues an authenticated GET.
func (c *Caller) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, call{method: http.MethodGet, path: path, auth: true})
}

// Post issues an authenticated POST with a JSON body.
func (c *Caller) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, call{method: http.MethodPost, path: path, body: body, withBody: true, auth: true})
}

// Put issues an authenticated PUT with a JSON body.
func (c *Caller) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, call{method: http.MethodPut, path: path, body: body, withBody: true, auth: true})
}

// Patch issues an authenticated PATCH with a JSON body.
func (c *Caller) Patch(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, call{method: http.MethodPatch, path: path, body: body, withBody: true, auth: true})
}

// Delete issues an authenticated DELETE.
func (c *Caller) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, call{method: http.MethodDelete, path: path, auth: true})
}

// GetPublic issues a GET that never carries credentials.
func (c *Caller) GetPublic(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, call{method: http.MethodGet, path: path})
}

// PostPublic issues a POST that never carries credentials. Use it for sign-in
// and registration so a stale token cannot cause a 401 first.
func (c *Caller) PostPublic(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, call{method: http.MethodPost, path: path, body: body, withBody: true})
}

func (c *Caller) do(ctx context.Context, in call) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, in)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.client.hc.Do(req)
	if err != nil {
		c.client.observe(in.method, 0, time.Since(start))
		c.client.observeFailure(in.method, err)
		return nil, fmt.Errorf("%s %s: %w", in.method, in.path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.client.logger.DebugContext(ctx, "close response body", "error", cerr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.client.observe(in.method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", in.method, in.path, err)
	}

	c.client.logger.DebugContext(ctx, "backend request",
		"method", in.method,
		"path", in.path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	return c.handle(ctx, resp.StatusCode, reasonPhrase(resp), body)
}

func (c *Caller) newRequest(ctx context.Context, in call) (*http.Request, error) {
	var reader io.Reader
	if in.withBody && in.body != nil {
		data, err := json.Marshal(in.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", in.method, in.path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, in.method, c.client.URL(in.path), reader)
	if err != nil {
		return nil, fmt.Errorf("create %s %s request: %w", in.method, in.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in.withBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if in.auth {
		if token := c.accessToken(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}
	return req, nil
}

func (c *Caller) handle(ctx context.Context, status int, statusText string, body []byte) (json.RawMessage, error) {
	if status == http.StatusUnauthorized {
		return nil, c.invalidate(ctx, statusText, body)
	}

	out, err := Classify(status, statusText, body)
	if err != nil {
		return nil, err
	}
	if out.Kind == KindFailure {
		return nil, &RequestFailedError{
			Status:  status,
			Message: out.Message,
			Body:    out.Body,
			Raw:     out.Payload,
		}
	}
	return out.Payload, nil
}

// invalidate clears the session and builds the Unauthorized error. The body is
// only consulted for a message; an unparseable body still clears the session.
func (c *Caller) invalidate(ctx context.Context, statusText string, body []byte) error {
	var clearErr error
	if c.store != nil {
		if clearErr = c.store.Clear(ctx); clearErr != nil {
			c.client.logger.WarnContext(ctx, "clear session after 401 failed", "error", clearErr)
		}
	}

	msg := statusText
	if out, err := Classify(http.StatusUnauthorized, statusText, body); err == nil && out.Kind == KindFailure {
		msg = out.Message
	}
	if msg == "" {
		msg = "Request failed with status 401"
	}
	return &UnauthorizedError{Message: msg, ClearErr: clearErr}
}

func (c *Caller) accessToken(ctx context.Context) string {
	if c.store == nil {
		return ""
	}
	token, err := c.store.Get(ctx, domainauth.KeyAccessToken)
	if err != nil {
		c.client.logger.WarnContext(ctx, "read access token failed", "error", err)
		return ""
	}
	return token
}

func (c *Client) observe(method string, status int, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	tags := map[string]string{"method": method, "status": strconv.Itoa(status)}
	c.metrics.Count("backend.request", 1, tags)
	c.metrics.Timing("backend.request.duration", elapsed, tags)
}

// observeFailure counts requests that never produced a response.
func (c *Client) observeFailure(method string, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.Count("backend.request.error", 1, map[string]string{"method": method, "error": obserrors.Classify(err)})
}

// reasonPhrase returns the text after the status code in resp.Status.
func reasonPhrase(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, code))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
