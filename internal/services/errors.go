package services

import (
	"errors"
	"net/http"
)

// OAuth error codes (RFC 6749 §5.2, §4.1.2.1)
const (
	CodeInvalidRequest          = "invalid_request"
	CodeInvalidClient           = "invalid_client"
	CodeInvalidGrant            = "invalid_grant"
	CodeInvalidScope            = "invalid_scope"
	CodeUnauthorizedClient      = "unauthorized_client"
	CodeUnsupportedGrantType    = "unsupported_grant_type"
	CodeUnsupportedResponseType = "unsupported_response_type"
	CodeAccessDenied            = "access_denied"
	CodeServerError             = "server_error"
)

var (
	ErrInvalidRequest          = errors.New(CodeInvalidRequest)
	ErrInvalidClient           = errors.New(CodeInvalidClient)
	ErrInvalidGrant            = errors.New(CodeInvalidGrant)
	ErrInvalidScope            = errors.New(CodeInvalidScope)
	ErrUnauthorizedClient      = errors.New(CodeUnauthorizedClient)
	ErrUnsupportedGrantType    = errors.New(CodeUnsupportedGrantType)
	ErrUnsupportedResponseType = errors.New(CodeUnsupportedResponseType)
	ErrAccessDenied            = errors.New(CodeAccessDenied)

	// ErrInvalidRedirectURI is reported to the user agent, never by redirect.
	ErrInvalidRedirectURI = errors.New("invalid redirect_uri")
)

// RedirectableError is an authorization request failure that may be sent
// to RedirectURI. It is only produced after the client and its redirect_uri
// have been verified.
type RedirectableError struct {
	RedirectURI string
	Err         error
}

func (e *RedirectableError) Error() string { return e.Err.Error() }

func (e *RedirectableError) Unwrap() error { return e.Err }

var oauthErrors = []struct {
	err         error
	code        string
	status      int
	description string
}{
	{ErrInvalidClient, CodeInvalidClient, http.StatusUnauthorized, "Client authentication failed"},
	{ErrInvalidGrant, CodeInvalidGrant, http.StatusBadRequest, "The provided authorization grant is invalid, expired, or revoked"},
	{ErrInvalidScope, CodeInvalidScope, http.StatusBadRequest, "The requested scope is invalid or exceeds the granted scope"},
	{ErrUnauthorizedClient, CodeUnauthorizedClient, http.StatusBadRequest, "The client is not authorized to use this grant type"},
	{ErrUnsupportedGrantType, CodeUnsupportedGrantType, http.StatusBadRequest, "The grant type is not supported"},
	{ErrUnsupportedResponseType, CodeUnsupportedResponseType, http.StatusBadRequest, "Only response_type=code is supported"},
	{ErrInvalidRedirectURI, CodeInvalidRequest, http.StatusBadRequest, "The redirect_uri is not registered for this client"},
	{ErrAccessDenied, CodeAccessDenied, http.StatusForbidden, "The resource owner denied the request"},
	{ErrInvalidRequest, CodeInvalidRequest, http.StatusBadRequest, "The request is missing a parameter or is otherwise malformed"},
}

// OAuthError maps err to the OAuth error code, HTTP status and a
// description safe to return to clients. Unknown errors become
// server_error; their detail must only be logged.
func OAuthError(err error) (code string, status int, description string) {
	for _, e := range oauthErrors {
		if errors.Is(err, e.err) {
			return e.code, e.status, e.description
		}
	}
	return CodeServerError, http.StatusInternalServerError, "The server encountered an unexpected error"
}
