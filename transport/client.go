package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	headerRequestID = "X-Request-ID"

	defaultTimeout = 30 * time.Second
)

// Client issues single HTTP calls against the CMS API. It never retries and
// never refreshes credentials; that is the refresh coordinator's job.
type Client struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	tokens     oauth2.TokenSource
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client for making requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTokenSource attaches bearer credentials from ts to every request. The
// source must not refresh on its own.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "go-cms-admin",
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do performs exactly one HTTP call. Statuses >= 400 come back as a
// *StatusError carrying the response; transport failures are returned as-is.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newHTTPRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	requestID := req.Header.Get(headerRequestID)

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Str("request_id", requestID).Msg("request failed")
		return nil, fmt.Errorf("[transport Do] %s %s: %w", req.Method, r.Path, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("[transport Do] read body: %w", err)
	}

	resp := &Response{
		Status:    httpResp.StatusCode,
		Header:    httpResp.Header,
		Body:      body,
		RequestID: requestID,
	}
	log.Debug().
		Str("method", req.Method).
		Str("path", r.Path).
		Int("status", resp.Status).
		Dur("elapsed", time.Since(start)).
		Str("request_id", requestID).
		Msg("api call")

	if resp.Status >= http.StatusBadRequest {
		return nil, newStatusError(resp)
	}
	return resp, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, r Request) (*http.Request, error) {
	target := c.ResolveURL(r.Path)
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("[transport Do] build request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if req.Header.Get(headerRequestID) == "" {
		req.Header.Set(headerRequestID, uuid.NewString())
	}

	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			// Unauthenticated requests are allowed through; the API answers 401.
			log.Debug().Err(err).Msg("no access token for request")
		} else if tok != nil && tok.AccessToken != "" {
			tok.SetAuthHeader(req)
		}
	}
	return req, nil
}

// ResolveURL joins a relative API path onto the base URL. Absolute URLs pass through.
func (c *Client) ResolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}
