package domain

import "fmt"

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

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Status: 409}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

// ErrEmptyInput signals a ledger upload with no parsable data rows.
// The parser applies this strictly: empty or header-only input is rejected
// rather than yielding an empty result.
func ErrEmptyInput() *AppError {
	return &AppError{Code: "EMPTY_INPUT", Message: "ledger has no data rows", Status: 400}
}

// ErrNoValidPlayers signals a session whose rows yield zero valid players.
// Such a session is never constructed or stored.
func ErrNoValidPlayers() *AppError {
	return &AppError{Code: "NO_VALID_PLAYERS", Message: "ledger has no valid player rows", Status: 400}
}

func ErrMirrorDisabled() *AppError {
	return &AppError{Code: "MIRROR_DISABLED", Message: "remote mirror is not configured", Status: 503}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}
