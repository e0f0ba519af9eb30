package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/tenant-session/internal/config"
	"github.com/spec-kit/tenant-session/internal/domain"
)

// TokenKind separates access tokens from refresh tokens.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"

	bearerType = "Bearer"
)

var (
	// ErrTokenExpired is returned for a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers signature, issuer and kind mismatches.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims describes the JWT payload.
type Claims struct {
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Kind      TokenKind `json:"kind"`
	SessionID string    `json:"sid"`
	jwt.RegisteredClaims
}

// Principal returns the identity carried by the token.
func (c *Claims) Principal() domain.Principal {
	return domain.Principal{ID: c.Subject, Email: c.Email, DisplayName: c.Name}
}

// TokenManager issues and validates access and refresh tokens.
type TokenManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager builds a manager from auth settings.
func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL(),
		refreshTTL: cfg.RefreshTTL(),
		now:        time.Now,
	}
}

// WithClock returns a copy of tm that reads time from now.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	c := *tm
	c.now = now
	return &c
}

// IssueSession signs a fresh access/refresh pair for principal under sessionID.
// An empty sessionID starts a new session.
func (tm *TokenManager) IssueSession(p domain.Principal, sessionID string) (domain.Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	issuedAt := tm.now().UTC().Truncate(time.Second)

	access, accessExp, err := tm.sign(p, sessionID, TokenAccess, issuedAt, tm.accessTTL)
	if err != nil {
		return domain.Session{}, err
	}
	refresh, _, err := tm.sign(p, sessionID, TokenRefresh, issuedAt, tm.refreshTTL)
	if err != nil {
		return domain.Session{}, err
	}

	return domain.Session{
		ID:           sessionID,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    bearerType,
		IssuedAt:     issuedAt,
		ExpiresAt:    accessExp,
	}, nil
}

func (tm *TokenManager) sign(p domain.Principal, sessionID string, kind TokenKind, issuedAt time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := issuedAt.Add(ttl)
	claims := &Claims{
		Email:     p.Email,
		Name:      p.DisplayName,
		Kind:      kind,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tm.issuer,
			Subject:   p.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseToken validates a token of the expected kind and returns its claims.
func (tm *TokenManager) ParseToken(tokenStr string, kind TokenKind) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	},
		jwt.WithIssuer(tm.issuer),
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Join(ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Kind != kind || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
