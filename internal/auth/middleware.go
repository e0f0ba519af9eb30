package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tenant-session/internal/domain"
	apperrors "github.com/spec-kit/tenant-session/pkg/util/errorutil"
)

const claimsKey = "auth_claims"

// SessionSource exposes the session currently held by the process.
type SessionSource interface {
	Session() *domain.Session
}

// AuthMiddleware admits requests whose bearer token is the access token of
// the session currently held.
type AuthMiddleware struct {
	tokens  *TokenManager
	current SessionSource
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, current SessionSource) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, current: current}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], bearerType) {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1], TokenAccess)
	if err != nil {
		if err == ErrTokenExpired {
			return apperrors.NewSessionExpired(err)
		}
		return apperrors.NewUnauthorized("invalid token")
	}

	held := m.current.Session()
	if held == nil || held.ID != claims.SessionID || held.AccessToken != parts[1] {
		return apperrors.NewUnauthorized("token does not belong to the active session")
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

// ClaimsFromContext retrieves the verified token claims.
func ClaimsFromContext(c *fiber.Ctx) (*Claims, bool) {
	val := c.Locals(claimsKey)
	if val == nil {
		return nil, false
	}
	claims, ok := val.(*Claims)
	return claims, ok
}
