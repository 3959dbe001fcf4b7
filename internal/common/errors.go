// Package common defines shared constants and sentinel errors used across
// FileKeeper server and client layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// Service-level errors.
	ErrorInternal      = errors.New("internal error")
	ErrBadRequest      = errors.New("bad request")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidFileType = errors.New("invalid file type")

	// Registration errors.
	ErrInvalidEmail      = errors.New("invalid email")
	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrPasswordTooShort  = errors.New("password too short")
	ErrIncorrectUsername = errors.New("incorrect username")
	ErrIncorrectPassword = errors.New("incorrect password")

	// Token errors (expired, malformed, or signed with another key).
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
)

// ConflictError reports which unique field was violated on insert.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return "conflict on " + e.Field
}

// Is lets errors.Is(err, ErrConflict) match any *ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
