package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes shared by the controller, the provider and the HTTP layer.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeCredential         = "CREDENTIAL_ERROR"
	CodeLookupFailure      = "LOOKUP_FAILURE"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeProfileUnavailable = "PROFILE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// ProfileUnavailableMessage is surfaced when credentials were accepted but no
// identity could be resolved for the principal.
const ProfileUnavailableMessage = "Failed to fetch user profile"

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

// NewCredentialError carries the identity provider's message verbatim.
func NewCredentialError(message string) error {
	return NewDomainError(CodeCredential, message, http.StatusUnauthorized, nil)
}

// NewSessionExpired reports a grant the provider no longer accepts.
func NewSessionExpired(err error) error {
	return &DomainError{
		Code:       CodeSessionExpired,
		Message:    "session expired",
		HTTPStatus: http.StatusUnauthorized,
		Err:        err,
	}
}

// NewLookupFailure wraps a single role probe failure. It is logged and absorbed
// by the resolver, never returned to callers.
func NewLookupFailure(tier string, err error) error {
	return &DomainError{
		Code:       CodeLookupFailure,
		Message:    fmt.Sprintf("%s lookup failed", tier),
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"tier": tier},
		Err:        err,
	}
}

func NewProfileUnavailable(err error) error {
	return &DomainError{
		Code:       CodeProfileUnavailable,
		Message:    ProfileUnavailableMessage,
		HTTPStatus: http.StatusUnauthorized,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err is a DomainError with the given code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
