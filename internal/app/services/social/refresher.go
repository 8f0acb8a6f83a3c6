package social

import (
	"context"
	"sync"
	"time"

	"github.com/postlane/platform/internal/app/domain/social"
	"github.com/postlane/platform/internal/app/system"
	"github.com/postlane/platform/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// TokenRefresher exchanges a refresh token for a fresh credential.
type TokenRefresher interface {
	Refresh(ctx context.Context, acct social.Account) (accessToken, refreshToken string, expiresAt time.Time, err error)
}

// TokenRefresherFunc adapts a function to the TokenRefresher interface.
type TokenRefresherFunc func(ctx context.Context, acct social.Account) (string, string, time.Time, error)

func (f TokenRefresherFunc) Refresh(ctx context.Context, acct social.Account) (string, string, time.Time, error) {
	if f == nil {
		return "", "", time.Time{}, nil
	}
	return f(ctx, acct)
}

// Refresher periodically scans linked accounts and refreshes credentials that
// expire within the lookahead window.
type Refresher struct {
	service   *Service
	log       *logger.Logger
	interval  time.Duration
	lookahead time.Duration
	refresher TokenRefresher

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRefresher creates a lifecycle-managed credential refresher.
func NewRefresher(service *Service, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("social-refresher")
	}
	return &Refresher{
		service:   service,
		log:       log,
		interval:  time.Minute,
		lookahead: 15 * time.Minute,
	}
}

// WithRefresher assigns the token refresher implementation.
func (r *Refresher) WithRefresher(refresher TokenRefresher) {
	r.mu.Lock()
	r.refresher = refresher
	r.mu.Unlock()
}

func (r *Refresher) Name() string { return "social-refresher" }

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.Info("social credential refresher started")
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("social credential refresher stopped")
	return nil
}

func (r *Refresher) tick(ctx context.Context) {
	if r.service == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	r.mu.Lock()
	refresher := r.refresher
	r.mu.Unlock()

	if refresher == nil {
		return
	}

	accounts, err := r.service.ListExpiring(ctx, r.lookahead)
	if err != nil {
		r.log.WithError(err).Warn("credential refresher tick failed")
		return
	}

	for _, acct := range accounts {
		access, refresh, expiresAt, err := refresher.Refresh(ctx, acct)
		if err != nil {
			r.log.WithError(err).
				WithField("account_id", acct.ID).
				WithField("platform", acct.Platform).
				Warn("token refresh failed")
			continue
		}
		if _, err := r.service.UpdateCredential(ctx, acct.ID, access, refresh, expiresAt); err != nil {
			r.log.WithError(err).
				WithField("account_id", acct.ID).
				Warn("store refreshed credential failed")
		}
	}
}
