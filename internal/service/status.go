package service

import (
	"github.com/spec-kit/tenant-session/internal/domain"
	"github.com/spec-kit/tenant-session/internal/session"
)

// Phase is the coarse lifecycle position of the controller.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseInitializing  Phase = "initializing"
	PhaseAnonymous     Phase = "anonymous"
	PhaseAuthenticated Phase = "authenticated"
	PhaseTerminated    Phase = "terminated"
)

// Status is Phase plus the role when authenticated.
type Status struct {
	Phase Phase       `json:"phase"`
	Role  domain.Role `json:"role,omitempty"`
}

func deriveStatus(lc lifecycle, st session.State) Status {
	switch {
	case lc == lifecycleNew:
		return Status{Phase: PhaseUninitialized}
	case lc == lifecycleDisposed:
		return Status{Phase: PhaseTerminated}
	case st.Loading:
		return Status{Phase: PhaseInitializing}
	case st.Session != nil && st.User != nil:
		return Status{Phase: PhaseAuthenticated, Role: st.User.Role}
	default:
		return Status{Phase: PhaseAnonymous}
	}
}
