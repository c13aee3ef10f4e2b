package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// ErrUsernameTaken narrows ErrConflict to the username constraint so
	// callers can retry with a different name.
	ErrUsernameTaken = fmt.Errorf("%w: username taken", ErrConflict)

	// Sign-in outcomes
	ErrInvalidOrExpiredCode      = errors.New("invalid or expired code")
	ErrAccountProvenanceMismatch = errors.New("account was created with a different sign-in method")
	ErrUserCreationFailed        = errors.New("failed to create user")
	ErrMailDeliveryFailed        = errors.New("failed to deliver email")

	// Session errors
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrCsrfValidationFailed = errors.New("csrf validation failed")

	// Token parsing failures. Callers outside the session core only ever see
	// ErrInvalidRefreshToken or ErrUnauthorized.
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
)
