package keys

import "errors"

// Verification errors. Callers treat all three as "unauthenticated".
var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrMalformedToken   = errors.New("malformed token")
)

var (
	ErrNoSigningKey = errors.New("no signing key available")
	ErrKeyTooSmall  = errors.New("rsa key is smaller than 2048 bits")
	ErrDuplicateKID = errors.New("key id already in use")
)
