package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tenant-session/internal/api/dto"
	"github.com/spec-kit/tenant-session/internal/auth"
	"github.com/spec-kit/tenant-session/internal/service"
	"github.com/spec-kit/tenant-session/internal/session"
	apperrors "github.com/spec-kit/tenant-session/pkg/util/errorutil"
)

// SessionController is the consumer surface of the auth controller.
type SessionController interface {
	Login(ctx context.Context, email, password string) service.LoginResult
	Logout(ctx context.Context)
	RefreshSession(ctx context.Context) service.RefreshResult
	State() session.State
	Status() service.Status
}

// AuthHandler exposes the session lifecycle over HTTP.
type AuthHandler struct {
	controller SessionController
}

// NewAuthHandler constructs handler.
func NewAuthHandler(controller SessionController) *AuthHandler {
	return &AuthHandler{controller: controller}
}

// State handles GET /auth/state.
func (h *AuthHandler) State(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"data": dto.NewAuthStateResponse(h.controller.State(), h.controller.Status()),
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	result := h.controller.Login(c.UserContext(), req.Email, req.Password)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnauthorized
	}
	return c.Status(status).JSON(fiber.Map{"data": result})
}

// Logout handles POST /auth/logout. It always succeeds.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.controller.Logout(c.UserContext())
	return c.SendStatus(http.StatusNoContent)
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	result := h.controller.RefreshSession(c.UserContext())
	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	return c.Status(status).JSON(fiber.Map{"data": result})
}

// Me handles GET /auth/me for callers holding the current access token.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("missing claims")
	}
	user := h.controller.State().User
	if user == nil || user.ID != claims.Subject {
		return apperrors.NewUnauthorized("session has no resolved user")
	}
	return c.JSON(fiber.Map{"data": user})
}
