package dto

import (
	"time"

	"github.com/spec-kit/tenant-session/internal/domain"
	"github.com/spec-kit/tenant-session/internal/service"
	"github.com/spec-kit/tenant-session/internal/session"
)

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionSummary describes a session without exposing its tokens.
type SessionSummary struct {
	ID        string    `json:"id"`
	TokenType string    `json:"token_type"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthStateResponse is the consumer-facing view of the session store.
type AuthStateResponse struct {
	User            *domain.AuthUser `json:"user"`
	Session         *SessionSummary  `json:"session"`
	IsLoading       bool             `json:"isLoading"`
	IsAuthenticated bool             `json:"isAuthenticated"`
	Status          service.Status   `json:"status"`
}

// NewAuthStateResponse projects a store snapshot.
func NewAuthStateResponse(st session.State, status service.Status) AuthStateResponse {
	resp := AuthStateResponse{
		User:            st.User,
		IsLoading:       st.Loading,
		IsAuthenticated: st.Session != nil && st.User != nil,
		Status:          status,
	}
	if st.Session != nil {
		resp.Session = &SessionSummary{
			ID:        st.Session.ID,
			TokenType: st.Session.TokenType,
			IssuedAt:  st.Session.IssuedAt,
			ExpiresAt: st.Session.ExpiresAt,
		}
	}
	return resp
}
