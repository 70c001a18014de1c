package refresh

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/jrsteele09/go-cms-admin/internal/errors"
	"github.com/jrsteele09/go-cms-admin/transport"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrAuthorizationRequired is the terminal failure returned once the session
// has been signed out. Callers should send the operator back to sign-in.
var ErrAuthorizationRequired = apperrors.ErrAuthorizationRequired

// slotKey is the single key of the in-flight refresh slot.
const slotKey = "refresh"

// Task performs one HTTP call. It may be invoked twice: once, and once more
// after a successful refresh.
type Task func(ctx context.Context) (*transport.Response, error)

// Func exchanges the current credentials for new ones. A 200 status means
// the refresh succeeded; anything else, or an error, is terminal.
type Func func(ctx context.Context) (*transport.Response, error)

// SessionSink is the only session capability the coordinator needs.
type SessionSink interface {
	SignOut()
}

// SessionSinkFunc adapts a plain function to SessionSink.
type SessionSinkFunc func()

func (f SessionSinkFunc) SignOut() { f() }

// Coordinator guarantees that concurrent calls failing with 401 share at most
// one outstanding refresh, and that each of them is retried exactly once.
type Coordinator struct {
	refresh Func
	session SessionSink
	timeout time.Duration
	metrics *Metrics

	// inflight is the refresh slot. singleflight publishes the first caller's
	// refresh under slotKey and forgets it when it settles.
	inflight singleflight.Group
}

// Option is a functional option for configuring a Coordinator.
type Option func(*Coordinator)

// WithRefreshTimeout bounds each refresh call. Zero (the default) waits indefinitely.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithMetrics records refresh and retry outcomes.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func NewCoordinator(refresh Func, session SessionSink, opts ...Option) *Coordinator {
	c := &Coordinator{
		refresh: refresh,
		session: session,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do runs task, refreshing credentials and retrying once if it comes back 401.
// Outcomes other than 401, and errors that carry no HTTP response, are
// returned exactly as the task produced them.
func (c *Coordinator) Do(ctx context.Context, task Task) (*transport.Response, error) {
	resp, err := task(ctx)
	if !unauthorized(resp, err) {
		return resp, err
	}

	if err := c.awaitRefresh(ctx); err != nil {
		return nil, err
	}

	resp, err = task(ctx)
	if unauthorized(resp, err) {
		c.metrics.retried("unauthorized")
		c.signOut("retried call still unauthorized")
		return nil, fmt.Errorf("[refresh Coordinator] retry after refresh: %w", ErrAuthorizationRequired)
	}
	if err != nil {
		c.metrics.retried("error")
	} else {
		c.metrics.retried("ok")
	}
	return resp, err
}

// awaitRefresh joins the in-flight refresh or starts one. The refresh is
// detached from ctx so a caller that gives up does not fail the other waiters.
func (c *Coordinator) awaitRefresh(ctx context.Context) error {
	c.metrics.waited()
	ch := c.inflight.DoChan(slotKey, func() (any, error) {
		return nil, c.runRefresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runRefresh executes the refresh once on behalf of every waiter. A failed
// refresh signs the session out here, once, rather than once per waiter.
func (c *Coordinator) runRefresh(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log.Debug().Msg("access token rejected, refreshing")
	start := time.Now()
	resp, err := c.refresh(ctx)
	if err != nil {
		c.metrics.refreshed("error")
		c.signOut("refresh failed")
		log.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("token refresh failed")
		return fmt.Errorf("[refresh Coordinator] token refresh: %w: %w", ErrAuthorizationRequired, err)
	}
	if resp == nil || resp.Status != http.StatusOK {
		status := 0
		if resp != nil {
			status = resp.Status
		}
		c.metrics.refreshed("rejected")
		c.signOut("refresh rejected")
		log.Warn().Int("status", status).Dur("elapsed", time.Since(start)).Msg("token refresh rejected")
		return fmt.Errorf("[refresh Coordinator] token refresh returned status %d: %w", status, ErrAuthorizationRequired)
	}

	c.metrics.refreshed("success")
	log.Debug().Dur("elapsed", time.Since(start)).Msg("token refreshed")
	return nil
}

func (c *Coordinator) signOut(reason string) {
	c.metrics.signedOut()
	log.Info().Str("reason", reason).Msg("forcing sign-out")
	if c.session != nil {
		c.session.SignOut()
	}
}

func unauthorized(resp *transport.Response, err error) bool {
	return transport.StatusOf(resp, err) == http.StatusUnauthorized
}
