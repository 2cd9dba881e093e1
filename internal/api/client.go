package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultUserAgent is sent when the caller does not configure one.
	DefaultUserAgent = "mpayctl/0.1"

	// HeaderRequestID carries a per-dispatch UUID so backend logs can be
	// correlated with ours.
	HeaderRequestID = "X-Request-Id"

	// maxErrorBody caps how much of an error response we buffer.
	maxErrorBody = 64 << 10
)

// Client dispatches single HTTP requests against the mpay backend.
// It does not attach credentials and never retries; both are the
// session pipeline's job.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string

	// newRequestID generates the X-Request-Id value. Tests override it.
	newRequestID func() string
}

// NewClient creates a backend client. baseURL has no trailing slash,
// e.g. "http://localhost:8080".
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger, userAgent string) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		baseURL:      baseURL,
		httpClient:   httpClient,
		logger:       logger,
		userAgent:    userAgent,
		newRequestID: uuid.NewString,
	}
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// NewRequest builds a request for path relative to the base URL. A non-nil
// body is sent as JSON; because it is backed by a bytes.Reader the request
// can be cloned and re-sent.
func (c *Client) NewRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("api: creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// Do dispatches req exactly once. Responses below 400 are returned as is
// and the caller closes the body. For 4xx/5xx the body is drained and an
// *Error wrapping the matching sentinel is returned. Transport failures wrap
// ErrNetwork unless the request context ended, in which case the context
// error is returned instead.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	reqID := c.newRequestID()
	req.Header.Set(HeaderRequestID, reqID)

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("api: request canceled: %w", ctx.Err())
		}

		c.logger.Warn("request failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, req.Method, req.URL.Path, err)
	}

	sentinel := classifyStatus(resp.StatusCode)
	if sentinel == nil {
		c.logger.Debug("request succeeded",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)),
		)

		return resp, nil
	}

	errBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()

	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	code, msg := parseErrorBody(errBody)

	c.logger.Debug("request returned error status",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", reqID),
	)

	return nil, &Error{
		StatusCode: resp.StatusCode,
		Code:       code,
		RequestID:  reqID,
		Message:    msg,
		Err:        sentinel,
	}
}

// PostJSON marshals in, POSTs it to path without credentials, and decodes
// the envelope data into out. Used for the login and refresh exchanges,
// which must never go through the authenticated pipeline.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("api: encoding request: %w", err)
	}

	req, err := c.NewRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}

	return Decode(resp, out)
}
