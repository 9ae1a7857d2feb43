package services

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOAuthError(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{fmt.Errorf("%w: unknown client", ErrInvalidClient), "invalid_client", http.StatusUnauthorized},
		{fmt.Errorf("%w: code expired", ErrInvalidGrant), "invalid_grant", http.StatusBadRequest},
		{ErrInvalidScope, "invalid_scope", http.StatusBadRequest},
		{ErrUnauthorizedClient, "unauthorized_client", http.StatusBadRequest},
		{ErrUnsupportedGrantType, "unsupported_grant_type", http.StatusBadRequest},
		{ErrInvalidRequest, "invalid_request", http.StatusBadRequest},
		{ErrInvalidRedirectURI, "invalid_request", http.StatusBadRequest},
		{errors.New("connection refused"), "server_error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			code, status, description := OAuthError(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, description)
			assert.NotContains(t, description, "connection refused")
		})
	}
}
