package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest         = &AppError{Code: http.StatusBadRequest, Message: "bad request"}
	ErrUnauthorized       = &AppError{Code: http.StatusUnauthorized, Message: "unauthorized"}
	ErrForbidden          = &AppError{Code: http.StatusForbidden, Message: "forbidden"}
	ErrNotFound           = &AppError{Code: http.StatusNotFound, Message: "not found"}
	ErrConflict           = &AppError{Code: http.StatusConflict, Message: "conflict"}
	ErrInternalServer     = &AppError{Code: http.StatusInternalServerError, Message: "internal server error"}
	ErrInvalidCredentials = &AppError{Code: http.StatusUnauthorized, Message: "invalid email or password"}
	ErrEmailAlreadyExists = &AppError{Code: http.StatusConflict, Message: "email already registered"}
	ErrInvalidToken       = &AppError{Code: http.StatusUnauthorized, Message: "invalid or expired token"}
	ErrAdminOnly          = &AppError{Code: http.StatusForbidden, Message: "admin access required"}
)

func NewBadRequestError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func NewValidationError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

// LimitExceededError is returned when a quota check fails. It carries the
// numbers the client needs to render "X/Y, resets in N days" without a
// second round trip.
type LimitExceededError struct {
	Counter  string    `json:"counter"`
	Current  uint32    `json:"current"`
	Limit    uint32    `json:"limit"`
	ResetsAt time.Time `json:"resets_at"`
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit exceeded: %d/%d, resets in %d days",
		e.Counter, e.Current, e.Limit, e.DaysUntilReset())
}

// DaysUntilReset returns the whole days remaining until the window rolls,
// never less than zero.
func (e *LimitExceededError) DaysUntilReset() int {
	d := int(time.Until(e.ResetsAt).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// ModelUnavailableError is returned when a pooled model was explicitly
// requested but no active shared key currently serves it, or the caller's
// tier is not entitled to the pooled path.
type ModelUnavailableError struct {
	Model string
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %q is not available from the shared pool", e.Model)
}

// CredentialMissingError is returned when the own-key path was selected but
// the user has no credential on file for the inferred provider.
type CredentialMissingError struct {
	Provider string
}

func (e *CredentialMissingError) Error() string {
	return fmt.Sprintf("no %s API key configured for this account", e.Provider)
}

// InvalidModelError is returned when a model id maps to no known provider.
type InvalidModelError struct {
	Model string
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("model %q does not match any supported provider", e.Model)
}

// HandleError maps domain errors to HTTP responses. Quota and resolution
// failures get specific status codes and payloads so clients can render a
// precise message rather than a generic failure page.
func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONErrorMessage(w, appErr.Code, appErr.Message)
		return
	}

	var limitErr *LimitExceededError
	if errors.As(err, &limitErr) {
		JSONErrorDetails(w, http.StatusTooManyRequests, limitErr.Error(), map[string]any{
			"counter":          limitErr.Counter,
			"current":          limitErr.Current,
			"limit":            limitErr.Limit,
			"resets_at":        limitErr.ResetsAt,
			"days_until_reset": limitErr.DaysUntilReset(),
		})
		return
	}

	var modelErr *ModelUnavailableError
	if errors.As(err, &modelErr) {
		JSONErrorMessage(w, http.StatusConflict, modelErr.Error())
		return
	}

	var credErr *CredentialMissingError
	if errors.As(err, &credErr) {
		JSONErrorMessage(w, http.StatusPreconditionFailed, credErr.Error())
		return
	}

	var invalidErr *InvalidModelError
	if errors.As(err, &invalidErr) {
		JSONErrorMessage(w, http.StatusBadRequest, invalidErr.Error())
		return
	}

	JSONErrorMessage(w, http.StatusInternalServerError, "internal server error")
}
