// Package identity holds the identity provider port and the local,
// Postgres-backed provider implementation.
package identity

import (
	"context"

	"github.com/spec-kit/tenant-session/internal/domain"
	"github.com/spec-kit/tenant-session/internal/events"
)

// Provider authenticates principals and issues opaque sessions. It
// announces session changes on its event stream.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (domain.Grant, error)
	SignOut(ctx context.Context) error
	RefreshSession(ctx context.Context) (domain.Grant, error)
	// GetSession returns the grant currently held, or nil.
	GetSession(ctx context.Context) (*domain.Grant, error)
	Subscribe() *events.Subscription
}
