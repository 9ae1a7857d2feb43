package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")

	// HTTP API errors
	ErrHTTPAPIConnection  = errors.New("failed to connect to user directory API")
	ErrHTTPAPIAuthFailed  = errors.New("user directory API rejected credentials")
	ErrHTTPAPIInvalidResp = errors.New("invalid response from user directory API")
)
