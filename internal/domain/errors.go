package domain

import (
	"errors"
	"fmt"
)

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Error codes shared by handlers and tests.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeValidation        = "VALIDATION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInternal          = "INTERNAL_ERROR"
	CodeEnergyEmpty       = "ENERGY_EMPTY"
	CodeInsufficientCoins = "INSUFFICIENT_COINS"
	CodeMaxLevel          = "MAX_LEVEL"
	CodeAlreadyClaimed    = "ALREADY_CLAIMED"
	CodeUnavailable       = "REMOTE_UNAVAILABLE"
)

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: CodeConflict, Message: msg, Status: 409}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: CodeValidation, Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: CodeForbidden, Message: msg, Status: 403}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: msg, Status: 429}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: msg, Status: 500, Cause: cause}
}

// Game rejections. The reducer returns these instead of mutating state.

func ErrEnergyEmpty() *AppError {
	return &AppError{Code: CodeEnergyEmpty, Message: "not enough energy, wait for it to regenerate", Status: 409}
}

func ErrInsufficientCoins(have, need int64) *AppError {
	return &AppError{Code: CodeInsufficientCoins, Message: fmt.Sprintf("need %d coins, have %d", need, have), Status: 409}
}

func ErrMaxLevel(level int) *AppError {
	return &AppError{Code: CodeMaxLevel, Message: fmt.Sprintf("character is already at max level %d", level), Status: 409}
}

func ErrAlreadyClaimed(what string) *AppError {
	return &AppError{Code: CodeAlreadyClaimed, Message: fmt.Sprintf("%s already claimed", what), Status: 409}
}

// ErrUnavailable marks a failed call to the backing store. Adapters return it next to a
// usable fallback value so callers can choose to ignore it.
func ErrUnavailable(resource string, cause error) *AppError {
	return &AppError{Code: CodeUnavailable, Message: fmt.Sprintf("%s unavailable", resource), Status: 503, Cause: cause}
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
