// Package qbclient provides the HTTP client for the accounting platform API.
// It owns bearer-token injection, the single forced-refresh retry on 401 and
// the translation of provider failures into typed errors. Backoff policy is
// deliberately left to callers.
package qbclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/eaur/qbsync/internal/credentials"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response size (50MB), which
	// comfortably covers PDF downloads.
	MaxResponseSize = 50 * 1024 * 1024

	// UserAgent is the user agent string for HTTP requests
	UserAgent = "qbsync/1.0"
)

// TokenSource supplies bearer tokens and forced refreshes. The credential
// lifecycle manager is the production implementation.
type TokenSource interface {
	AccessToken(ctx context.Context, tenantID string) (string, error)
	Refresh(ctx context.Context, tenantID string) error
}

type managerTokenSource struct {
	m *credentials.Manager
}

// NewManagerTokenSource adapts a credential lifecycle manager into a
// TokenSource.
func NewManagerTokenSource(m *credentials.Manager) TokenSource {
	return &managerTokenSource{m: m}
}

func (s *managerTokenSource) AccessToken(ctx context.Context, tenantID string) (string, error) {
	return s.m.AccessToken(ctx, tenantID)
}

func (s *managerTokenSource) Refresh(ctx context.Context, tenantID string) error {
	_, err := s.m.Refresh(ctx, tenantID)
	return err
}

// ResultKind discriminates the two response payload shapes.
type ResultKind int

const (
	// JSONResult marks a structured JSON response
	JSONResult ResultKind = iota

	// BinaryResult marks a raw binary response such as a PDF
	BinaryResult
)

// Result is the outcome of a successful API call.
type Result struct {
	Kind        ResultKind
	StatusCode  int
	ContentType string

	// Body holds the JSON payload bytes for JSONResult and the raw bytes for
	// BinaryResult.
	Body []byte
}

// Decode unmarshals a JSON result body into v.
func (r *Result) Decode(v interface{}) error {
	if r.Kind != JSONResult {
		return fmt.Errorf("cannot decode %s result as JSON", r.ContentType)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Request describes one API call. Path is relative to the tenant's company
// root; Body is JSON-marshaled when non-nil.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}
	Binary bool
}

// Client calls the accounting platform API for a single tenant.
type Client struct {
	tokens       TokenSource
	tenantID     string
	baseURL      string
	minorVersion string
	client       *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout overrides the per-call timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// WithMinorVersion sets the API minor version appended to every call.
func WithMinorVersion(v string) ClientOption {
	return func(c *Client) {
		c.minorVersion = v
	}
}

// New creates a client for the given tenant against the given API base URL.
func New(tokens TokenSource, tenantID, baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		tokens:   tokens,
		tenantID: tenantID,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call executes one API request. On a 401 the token is refreshed once and the
// request retried; a second 401 is an *AuthenticationError. 429 becomes
// *RateLimitError, other failures *RemoteError. Only GET, POST and PUT are
// accepted, rejected before any I/O.
func (c *Client) Call(ctx context.Context, req Request) (*Result, error) {
	switch req.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, req.Method)
	}

	fullURL, err := c.buildURL(req)
	if err != nil {
		return nil, err
	}

	var bodyBytes []byte
	if req.Body != nil {
		bodyBytes, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	token, err := c.tokens.AccessToken(ctx, c.tenantID)
	if err != nil {
		return nil, err
	}

	status, header, respBody, err := c.doOnce(ctx, req, fullURL, bodyBytes, token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		// The stored token may have been revoked out-of-band. Force one
		// refresh and retry; a second rejection is credential-terminal.
		if err := c.tokens.Refresh(ctx, c.tenantID); err != nil {
			return nil, err
		}
		token, err = c.tokens.AccessToken(ctx, c.tenantID)
		if err != nil {
			return nil, err
		}
		status, header, respBody, err = c.doOnce(ctx, req, fullURL, bodyBytes, token)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, &AuthenticationError{Body: string(respBody)}
		}
	}

	switch {
	case status == http.StatusTooManyRequests:
		return nil, &RateLimitError{
			RetryAfter: parseRetryAfter(header.Get("Retry-After")),
			Body:       string(respBody),
		}
	case status < 200 || status > 299:
		return nil, &RemoteError{StatusCode: status, Body: string(respBody), URL: fullURL}
	}

	result := &Result{
		StatusCode:  status,
		ContentType: header.Get("Content-Type"),
		Body:        respBody,
	}
	if req.Binary {
		result.Kind = BinaryResult
	} else {
		result.Kind = JSONResult
	}
	return result, nil
}

func (c *Client) buildURL(req Request) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid API base URL: %w", err)
	}

	full := base.JoinPath("v3", "company", c.tenantID, req.Path)

	q := url.Values{}
	for k, vs := range req.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if c.minorVersion != "" {
		q.Set("minorversion", c.minorVersion)
	}
	full.RawQuery = q.Encode()

	return full.String(), nil
}

func (c *Client) doOnce(
	ctx context.Context,
	req Request,
	fullURL string,
	bodyBytes []byte,
	token string,
) (int, http.Header, []byte, error) {
	var bodyReader io.Reader
	if bodyBytes != nil {
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, bodyReader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("User-Agent", UserAgent)
	if req.Binary {
		httpReq.Header.Set("Accept", "application/pdf")
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}
	if bodyBytes != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
	respBody, err := io.ReadAll(limitedReader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(respBody)) > MaxResponseSize {
		return 0, nil, nil, fmt.Errorf("response size exceeds maximum allowed size of %d bytes", MaxResponseSize)
	}

	return resp.StatusCode, resp.Header, respBody, nil
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms of the
// Retry-After header. Unparseable values fall back to zero so the caller
// applies its own default pause.
func parseRetryAfter(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(raw); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
