package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/tenant-session/internal/domain"
)

const defaultCheckInterval = 15 * time.Second

// SessionRefresher is the part of an identity provider the worker drives.
type SessionRefresher interface {
	GetSession(ctx context.Context) (*domain.Grant, error)
	RefreshSession(ctx context.Context) (domain.Grant, error)
}

// TokenRefresher rotates the provider's tokens shortly before the access
// token expires. The provider announces each rotation as TokenRefreshed.
type TokenRefresher struct {
	provider SessionRefresher
	margin   time.Duration
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewTokenRefresher builds a worker that refreshes margin ahead of expiry.
func NewTokenRefresher(provider SessionRefresher, margin time.Duration, logger *zap.Logger) *TokenRefresher {
	interval := defaultCheckInterval
	if margin > 0 && margin/2 < interval {
		interval = margin / 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenRefresher{
		provider: provider,
		margin:   margin,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run checks the session every interval until ctx is done.
func (w *TokenRefresher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("token refresher started", zap.Duration("margin", w.margin), zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("token refresher stopped")
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick refreshes the held session if it expires within the margin. It
// reports whether a refresh was attempted.
func (w *TokenRefresher) Tick(ctx context.Context) bool {
	grant, err := w.provider.GetSession(ctx)
	if err != nil {
		w.logger.Warn("session check failed", zap.Error(err))
		return false
	}
	if grant == nil || grant.Session.ExpiresAt.IsZero() {
		return false
	}
	if grant.Session.ExpiresAt.Sub(w.now()) > w.margin {
		return false
	}

	if _, err := w.provider.RefreshSession(ctx); err != nil {
		w.logger.Warn("background token refresh failed", zap.String("session_id", grant.Session.ID), zap.Error(err))
		return true
	}
	w.logger.Debug("tokens refreshed", zap.String("session_id", grant.Session.ID))
	return true
}
