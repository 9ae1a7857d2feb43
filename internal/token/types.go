package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type constants
const (
	TokenTypeBearer = "Bearer"
)

// AccessClaims is the claim set of every access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Scope    string `json:"scope"`
	ClientID string `json:"client_id"`
}

// Result is a freshly minted access token.
type Result struct {
	TokenString string
	TokenType   string
	ID          string // jti
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Scopes      []string
}

// ExpiresIn returns the lifetime in whole seconds, as reported to clients.
func (r *Result) ExpiresIn() int64 {
	return int64(r.ExpiresAt.Sub(r.IssuedAt) / time.Second)
}
