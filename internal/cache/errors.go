package cache

import "errors"

var (
	// ErrCacheMiss: the key is absent or expired. Callers fall through to the store.
	ErrCacheMiss = errors.New("cache: miss")

	// ErrCacheUnavailable wraps transport errors from Redis.
	ErrCacheUnavailable = errors.New("cache: backend unavailable")

	// ErrInvalidValue wraps JSON encode and decode failures.
	ErrInvalidValue = errors.New("cache: invalid value")
)
