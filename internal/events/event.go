package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/tenant-session/internal/domain"
)

// EventType enumerates identity provider notifications.
type EventType string

const (
	EventSignedIn       EventType = "signed_in"
	EventSignedOut      EventType = "signed_out"
	EventTokenRefreshed EventType = "token_refreshed"
	EventSessionExpired EventType = "session_expired"
)

// Event is a provider notification. Session and Principal are set for
// SignedIn; TokenRefreshed carries only Session.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Session   *domain.Session   `json:"session,omitempty"`
	Principal *domain.Principal `json:"principal,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// SignedIn builds a sign-in notification.
func SignedIn(session domain.Session, principal domain.Principal) Event {
	return newEvent(EventSignedIn, &session, &principal)
}

// TokenRefreshed builds a token rotation notification.
func TokenRefreshed(session domain.Session) Event {
	return newEvent(EventTokenRefreshed, &session, nil)
}

// SignedOut builds a sign-out notification.
func SignedOut() Event {
	return newEvent(EventSignedOut, nil, nil)
}

// SessionExpired builds an expiry notification.
func SessionExpired() Event {
	return newEvent(EventSessionExpired, nil, nil)
}

func newEvent(t EventType, session *domain.Session, principal *domain.Principal) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Session:   session,
		Principal: principal,
		Timestamp: time.Now().UTC(),
	}
}
