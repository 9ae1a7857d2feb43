package models

import "time"

// PKCE challenge methods (RFC 7636)
const (
	PKCEMethodPlain = "plain"
	PKCEMethodS256  = "S256"
)

// AuthorizationCode is a single-use code issued at the end of the
// authorization step. Only the SHA-256 hash of the code is stored.
type AuthorizationCode struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	CodeHash   string `gorm:"uniqueIndex;not null"`
	CodePrefix string `gorm:"index;not null;size:8"` // first 8 chars, for logs

	ClientID    string `gorm:"not null;index"`
	Subject     string `gorm:"not null;index"` // resource owner
	RedirectURI string `gorm:"not null"`
	Scopes      string `gorm:"not null"` // space-separated

	CodeChallenge       string `gorm:"not null;default:''"` // empty when PKCE was not used
	CodeChallengeMethod string `gorm:"not null;default:''"`

	IssuedAt   time.Time `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"not null"`
	ConsumedAt *time.Time
}

// IsExpiredAt reports whether the code is past its expiry at now.
func (a *AuthorizationCode) IsExpiredAt(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

func (a *AuthorizationCode) IsConsumed() bool {
	return a.ConsumedAt != nil
}

func (a *AuthorizationCode) HasPKCE() bool {
	return a.CodeChallenge != ""
}

func (AuthorizationCode) TableName() string {
	return "authorization_codes"
}
