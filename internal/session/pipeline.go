package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nonfou/mpayctl/internal/api"
	"github.com/nonfou/mpayctl/internal/credstore"
)

// RetryState records whether a request has already been replayed after an
// authentication failure.
type RetryState int

const (
	NotRetried RetryState = iota
	Retried
)

func (s RetryState) String() string {
	if s == Retried {
		return "retried"
	}

	return "not-retried"
}

// Request is an outbound call awaiting dispatch. Body is kept as bytes so
// the request can be replayed once after a refresh.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header

	retry RetryState
}

// NewRequest creates a request with no extra headers.
func NewRequest(method, path string, body []byte) *Request {
	return &Request{Method: method, Path: path, Body: body, Header: make(http.Header)}
}

// NewJSONRequest marshals v as the request body. A nil v sends no body.
func NewJSONRequest(method, path string, v any) (*Request, error) {
	if v == nil {
		return NewRequest(method, path, nil), nil
	}

	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("session: encoding request body: %w", err)
	}

	return NewRequest(method, path, body), nil
}

// RetryState reports whether the request has been replayed.
func (r *Request) RetryState() RetryState {
	return r.retry
}

// SessionEnder drops all local session state without talking to the
// backend. The controller implements it.
type SessionEnder interface {
	EndSession(ctx context.Context)
}

// Pipeline sends requests with the current bearer token and recovers from
// an expired token by refreshing once and replaying the request once.
type Pipeline struct {
	client      *api.Client
	store       *credstore.Store
	refresher   *Refresher
	ender       SessionEnder
	navigator   Navigator
	diagnostics Diagnostics
	logger      *slog.Logger
	metrics     *Metrics
}

// NewPipeline wires a pipeline. navigator and diagnostics may be nil.
func NewPipeline(
	client *api.Client,
	store *credstore.Store,
	refresher *Refresher,
	ender SessionEnder,
	navigator Navigator,
	diagnostics Diagnostics,
	logger *slog.Logger,
	metrics *Metrics,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	if navigator == nil {
		navigator = nopNavigator{}
	}

	if diagnostics == nil {
		diagnostics = logDiagnostics{logger: logger}
	}

	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Pipeline{
		client:      client,
		store:       store,
		refresher:   refresher,
		ender:       ender,
		navigator:   navigator,
		diagnostics: diagnostics,
		logger:      logger,
		metrics:     metrics,
	}
}

// Send dispatches req with the current credential.
//
//   - Below 400 the response is returned as is; the caller closes the body.
//   - A first 401 triggers one refresh (shared with any refresh already in
//     flight) and one replay with the new token. The replay's outcome is
//     returned whatever it is.
//   - If no refresh is possible or it fails, the session is ended, the
//     navigator is sent to login, and the original 401 error is returned.
//   - A second 401, a 403, and every other failure are returned unchanged
//     without touching the session. 403 is also reported to Diagnostics.
//
// A canceled ctx never triggers a refresh or a session change.
func (p *Pipeline) Send(ctx context.Context, req *Request) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("session: request canceled: %w", err)
	}

	cred, gen := p.store.Current()

	resp, err := p.dispatch(ctx, req, cred)
	if err == nil {
		return resp, nil
	}

	if ctx.Err() != nil {
		return nil, err
	}

	switch {
	case errors.Is(err, api.ErrUnauthorized):
		return p.recoverUnauthorized(ctx, req, gen, err)
	case errors.Is(err, api.ErrForbidden):
		p.permissionDenied(ctx, req)
		return nil, err
	default:
		return nil, err
	}
}

// recoverUnauthorized handles a 401. sentGen is the store generation of the
// credential the failed attempt carried.
func (p *Pipeline) recoverUnauthorized(ctx context.Context, req *Request, sentGen uint64, origErr error) (*http.Response, error) {
	if req.retry == Retried {
		p.logger.Debug("401 on replayed request, giving up",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
		)

		return nil, origErr
	}

	req.retry = Retried

	fresh, ok := p.freshCredential(ctx, req, sentGen)
	if !ok {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("session: request canceled: %w", ctx.Err())
		}

		p.sessionLost(ctx, req)

		return nil, origErr
	}

	p.metrics.AuthRetries.Inc()
	p.logger.Debug("replaying request with refreshed token",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
	)

	resp, err := p.dispatch(ctx, req, fresh)
	if err != nil && errors.Is(err, api.ErrForbidden) {
		p.permissionDenied(ctx, req)
	}

	return resp, err
}

// freshCredential finds the credential to replay with. If the store moved
// on since the request was sent, a concurrent refresh (or a login) already
// produced a newer token and no exchange is needed.
func (p *Pipeline) freshCredential(ctx context.Context, req *Request, sentGen uint64) (credstore.Credential, bool) {
	cur, gen := p.store.Current()
	if gen != sentGen && cur.Authenticated() {
		return cur, true
	}

	if !cur.HasRefreshToken() {
		p.logger.Info("401 without refresh token, ending session",
			slog.String("path", req.Path),
		)

		return credstore.Credential{}, false
	}

	fresh, err := p.refresher.Refresh(ctx)
	if err != nil {
		p.logger.Info("refresh after 401 failed, ending session",
			slog.String("path", req.Path),
			slog.String("error", err.Error()),
		)

		return credstore.Credential{}, false
	}

	return fresh, true
}

func (p *Pipeline) sessionLost(ctx context.Context, req *Request) {
	p.metrics.SessionsLost.Inc()

	if p.ender != nil {
		p.ender.EndSession(ctx)
	} else {
		_ = p.store.Clear(context.WithoutCancel(ctx))
	}

	p.navigator.RedirectToLogin(ctx, req.Path)
}

func (p *Pipeline) permissionDenied(ctx context.Context, req *Request) {
	p.metrics.PermissionDenied.Inc()
	p.diagnostics.PermissionDenied(ctx, req.Method, req.Path)
}

func (p *Pipeline) dispatch(ctx context.Context, req *Request, cred credstore.Credential) (*http.Response, error) {
	httpReq, err := p.client.NewRequest(ctx, req.Method, req.Path, req.Body)
	if err != nil {
		return nil, err
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	if cred.Authenticated() {
		cred.Token().SetAuthHeader(httpReq)
	}

	p.metrics.Requests.Inc()

	return p.client.Do(httpReq)
}

// Do sends a JSON request through the pipeline and decodes the envelope
// data into out. in and out may be nil.
func (p *Pipeline) Do(ctx context.Context, method, path string, in, out any) error {
	req, err := NewJSONRequest(method, path, in)
	if err != nil {
		return err
	}

	resp, err := p.Send(ctx, req)
	if err != nil {
		return err
	}

	return api.Decode(resp, out)
}

// GetJSON is Do for a GET without a body.
func (p *Pipeline) GetJSON(ctx context.Context, path string, out any) error {
	return p.Do(ctx, http.MethodGet, path, nil, out)
}

// PostJSON is Do for a POST.
func (p *Pipeline) PostJSON(ctx context.Context, path string, in, out any) error {
	return p.Do(ctx, http.MethodPost, path, in, out)
}
