package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-authgate/grantd/internal/keys"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Signer signs and verifies JWTs. *keys.Manager satisfies it.
type Signer interface {
	Sign(claims jwt.Claims) (string, error)
	Verify(tokenString string, claims jwt.Claims, opts ...jwt.ParserOption) error
}

// JWTProvider mints and validates RS256 access tokens.
type JWTProvider struct {
	signer   Signer
	issuer   string
	audience string
	now      func() time.Time
}

// NewJWTProvider creates a provider that stamps issuer and audience on every token.
func NewJWTProvider(signer Signer, issuer, audience string) *JWTProvider {
	return &JWTProvider{signer: signer, issuer: issuer, audience: audience, now: time.Now}
}

// GenerateAccessToken creates a signed access token for subject.
// For client_credentials the subject is the client id itself.
func (p *JWTProvider) GenerateAccessToken(
	subject, clientID string,
	scopes []string,
	ttl time.Duration,
) (*Result, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: non-positive ttl %s", ErrTokenGeneration, ttl)
	}

	// JWT timestamps have second precision; truncate so expires_in is exact.
	issuedAt := p.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)
	jti := uuid.New().String()

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
		Scope:    JoinScope(scopes),
		ClientID: clientID,
	}

	signed, err := p.signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	return &Result{
		TokenString: signed,
		TokenType:   TokenTypeBearer,
		ID:          jti,
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
		Scopes:      scopes,
	}, nil
}

// ValidateAccessToken verifies signature, expiry, issuer and audience.
func (p *JWTProvider) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	var claims AccessClaims
	err := p.signer.Verify(
		tokenString,
		&claims,
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
	)
	switch {
	case err == nil:
		return &claims, nil
	case errors.Is(err, keys.ErrExpired):
		return nil, ErrExpiredToken
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}
