// Package upstream is the only place the console talks to the school REST
// backend. Every response is decoded into a typed schema and validated here
// so callers never branch on the shape of a payload.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-console/pkg/errors"
	"github.com/noah-isme/sma-console/pkg/middleware/requestid"
)

const (
	csrfHeader   = "X-CSRF-TOKEN"
	maxBodyBytes = 8 << 20

	// statusCSRFExpired is the backend's "page expired" status for a stale CSRF token.
	statusCSRFExpired = 419
)

// Observer receives one observation per upstream call.
type Observer interface {
	ObserveUpstream(entity, operation string, status int, duration time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	CSRFEnabled bool
	HTTPClient  *http.Client
	Logger      *zap.Logger
	Observer    Observer
}

// Client calls the school backend on behalf of one console user.
type Client struct {
	baseURL     string
	http        *http.Client
	token       string
	csrfEnabled bool
	logger      *zap.Logger
	observer    Observer

	csrfMu sync.Mutex
	csrf   string
}

// New constructs an unauthenticated client. Use WithToken to bind a user.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		http:        httpClient,
		csrfEnabled: opts.CSRFEnabled,
		logger:      logger,
		observer:    opts.Observer,
	}
}

// WithToken returns a client that forwards token as the bearer credential.
// The copy keeps its own CSRF token cache.
func (c *Client) WithToken(token string) *Client {
	return &Client{
		baseURL:     c.baseURL,
		http:        c.http,
		token:       token,
		csrfEnabled: c.csrfEnabled,
		logger:      c.logger,
		observer:    c.observer,
	}
}

// CSRFToken returns the cached session token, fetching it on first use.
// The lock only guards the cached value; the fetch runs without it.
func (c *Client) CSRFToken(ctx context.Context) (string, error) {
	c.csrfMu.Lock()
	token := c.csrf
	c.csrfMu.Unlock()
	if token != "" {
		return token, nil
	}

	var payload struct {
		Token string `json:"token"`
	}
	if _, err := c.doJSON(ctx, "csrf", http.MethodGet, "/api/csrf-token", nil, nil, &payload); err != nil {
		return "", err
	}
	if payload.Token == "" {
		return "", appErrors.Clone(appErrors.ErrMalformedResponse, "csrf endpoint returned no token")
	}

	c.csrfMu.Lock()
	c.csrf = payload.Token
	c.csrfMu.Unlock()
	return payload.Token, nil
}

func (c *Client) invalidateCSRF() {
	c.csrfMu.Lock()
	c.csrf = ""
	c.csrfMu.Unlock()
}

// request is a fully described upstream call.
type request struct {
	entity    string
	operation string
	method    string
	path      string
	query     url.Values
	body      interface{}
}

// doJSON performs a call and decodes a JSON body into dest when dest is non-nil.
// The raw body is returned for callers that need to inspect it.
func (c *Client) doJSON(ctx context.Context, operation, method, path string, query url.Values, body, dest interface{}) ([]byte, error) {
	return c.do(ctx, request{operation: operation, method: method, path: path, query: query, body: body}, dest)
}

func (c *Client) do(ctx context.Context, req request, dest interface{}) ([]byte, error) {
	var reader io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode request")
		}
		reader = bytes.NewReader(payload)
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, reader)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		httpReq.Header.Set(requestid.Header, reqID)
	}
	if c.csrfEnabled && isMutating(req.method) {
		token, err := c.CSRFToken(ctx)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set(csrfHeader, token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		c.observe(req, 0, duration)
		c.logger.Warn("upstream request failed",
			zap.String("operation", req.operation),
			zap.String("entity", req.entity),
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	}
	defer resp.Body.Close()
	c.observe(req, resp.StatusCode, duration)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == statusCSRFExpired {
			c.invalidateCSRF()
		}
		c.logger.Debug("upstream rejected request",
			zap.String("operation", req.operation),
			zap.String("entity", req.entity),
			zap.Int("status", resp.StatusCode))
		return raw, statusError(resp.StatusCode, raw)
	}

	if dest != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := decodeJSON(raw, dest); err != nil {
			return raw, appErrors.Wrap(err, appErrors.ErrMalformedResponse.Code, appErrors.ErrMalformedResponse.Status, appErrors.ErrMalformedResponse.Message)
		}
	}
	return raw, nil
}

func (c *Client) observe(req request, status int, duration time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveUpstream(req.entity, req.operation, status, duration)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// decodeJSON keeps numbers as json.Number so row ids survive untouched.
func decodeJSON(raw []byte, dest interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError maps a non-2xx response onto the console error taxonomy.
func statusError(status int, raw []byte) error {
	var body struct {
		Message string                 `json:"message"`
		Errors  map[string]interface{} `json:"errors"`
	}
	_ = json.Unmarshal(raw, &body)

	switch status {
	case http.StatusUnauthorized:
		return appErrors.Clone(appErrors.ErrUnauthorized, body.Message)
	case http.StatusNotFound:
		return appErrors.Clone(appErrors.ErrNotFound, body.Message)
	case http.StatusUnprocessableEntity:
		err := appErrors.WithFields(appErrors.ErrServerValidation, fieldMessages(body.Errors))
		if body.Message != "" {
			err.Message = body.Message
		}
		return err
	case statusCSRFExpired:
		return appErrors.Clone(appErrors.ErrUpstream, "session expired, please retry")
	default:
		return appErrors.Wrap(fmt.Errorf("upstream status %d", status), appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	}
}

// fieldMessages flattens {"field": ["msg", ...]} or {"field": "msg"} into one message per field.
func fieldMessages(in map[string]interface{}) map[string]string {
	out := make(map[string]string, len(in))
	for field, v := range in {
		switch t := v.(type) {
		case string:
			out[field] = t
		case []interface{}:
			if len(t) > 0 {
				out[field] = fmt.Sprint(t[0])
			}
		default:
			out[field] = fmt.Sprint(t)
		}
	}
	return out
}
