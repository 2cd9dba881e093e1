package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nonfou/mpayctl/internal/api"
	"github.com/nonfou/mpayctl/internal/credstore"
)

// DefaultRefreshTimeout bounds one refresh exchange.
const DefaultRefreshTimeout = 15 * time.Second

// refreshKey is the singleflight key. There is one credential per store,
// so every refresh shares a key.
const refreshKey = "refresh"

// Refresher exchanges the refresh token for a new credential. Overlapping
// Refresh calls share one backend exchange and all observe its outcome,
// which keeps a backend that rotates refresh tokens from seeing the same
// token twice.
type Refresher struct {
	client  *api.Client
	store   *credstore.Store
	logger  *slog.Logger
	metrics *Metrics
	timeout time.Duration
	group   singleflight.Group

	nowFunc func() time.Time
}

// NewRefresher builds a refresher. timeout <= 0 selects
// DefaultRefreshTimeout.
func NewRefresher(client *api.Client, store *credstore.Store, logger *slog.Logger, metrics *Metrics, timeout time.Duration) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}

	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}

	return &Refresher{
		client:  client,
		store:   store,
		logger:  logger,
		metrics: metrics,
		timeout: timeout,
		nowFunc: time.Now,
	}
}

// Refresh returns a freshly issued credential, already committed to the
// store. Without a refresh token it fails with ErrNoRefreshToken. When the
// exchange fails the store is cleared and the error wraps ErrRefreshFailed.
//
// The exchange itself runs detached from ctx so that one caller giving up
// does not fail the others sharing it; ctx only bounds how long this
// caller waits.
func (r *Refresher) Refresh(ctx context.Context) (credstore.Credential, error) {
	cred, gen := r.store.Current()
	if !cred.HasRefreshToken() {
		return credstore.Credential{}, ErrNoRefreshToken
	}

	ch := r.group.DoChan(refreshKey, func() (any, error) {
		// A flight that finished between our read and DoChan may already
		// have rotated the refresh token we hold. Spending it again would
		// be rejected and wipe a good session.
		cur, curGen := r.store.Current()
		if curGen != gen {
			if cur.Authenticated() {
				return cur, nil
			}

			if !cur.HasRefreshToken() {
				return nil, ErrNoRefreshToken
			}
		}

		exCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		return r.exchange(exCtx, cur.RefreshToken)
	})

	select {
	case <-ctx.Done():
		return credstore.Credential{}, fmt.Errorf("session: waiting for refresh: %w", ctx.Err())
	case res := <-ch:
		if res.Shared {
			r.metrics.RefreshShared.Inc()
		}

		if res.Err != nil {
			return credstore.Credential{}, res.Err
		}

		c, _ := res.Val.(credstore.Credential)

		return c, nil
	}
}

func (r *Refresher) exchange(ctx context.Context, refreshToken string) (credstore.Credential, error) {
	r.metrics.RefreshAttempts.Inc()
	r.logger.Debug("refreshing access token")

	var tr api.TokenResponse

	err := r.client.PostJSON(ctx, api.PathRefresh, api.RefreshRequest{RefreshToken: refreshToken}, &tr)

	var cred credstore.Credential
	if err == nil {
		cred, err = credentialFromResponse(tr, refreshToken, r.nowFunc())
	}

	if err != nil {
		r.metrics.RefreshFailures.Inc()
		r.logger.Warn("token refresh failed, clearing credential",
			slog.Int("status", api.StatusCode(err)),
			slog.String("error", err.Error()),
		)

		// Persistence failures are logged by the store; the in-memory
		// snapshot is cleared regardless.
		_ = r.store.Clear(ctx)

		return credstore.Credential{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	// Same as above: a persistence failure leaves a valid in-memory token.
	_ = r.store.Set(ctx, cred)

	r.logger.Info("access token refreshed",
		slog.Time("expiry", cred.Expiry),
	)

	return cred, nil
}
