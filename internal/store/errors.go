package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrClientIDConflict is returned when a client_id is already registered
	ErrClientIDConflict = errors.New("client_id already registered")

	// ErrAuthCodeAlreadyConsumed is returned by ConsumeAuthorizationCode when
	// the code was already consumed by a concurrent request (0 rows updated).
	ErrAuthCodeAlreadyConsumed = errors.New("authorization code already consumed")

	// ErrRefreshTokenNotActive is returned by RotateRefreshToken when the
	// parent token was rotated or revoked between read and update.
	ErrRefreshTokenNotActive = errors.New("refresh token is not active")
)
