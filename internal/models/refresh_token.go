package models

import "time"

// Refresh token statuses
const (
	RefreshTokenActive  = "active"
	RefreshTokenRotated = "rotated" // replaced by a newer token in the same family
	RefreshTokenRevoked = "revoked"
)

// RefreshToken is an opaque, stateful credential. Tokens produced from one
// original grant share a FamilyID; rotation links each token to its parent.
type RefreshToken struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	TokenHash   string `gorm:"uniqueIndex;not null"`
	TokenPrefix string `gorm:"not null;size:8"`
	RawToken    string `gorm:"-"` // in-memory only; never persisted

	ClientID string `gorm:"not null;index"`
	Subject  string `gorm:"not null;index"`
	Scopes   string `gorm:"not null"` // space-separated

	FamilyID            string `gorm:"not null;index;type:varchar(36)"`
	ParentID            string `gorm:"index;type:varchar(36)"`
	AuthorizationCodeID *uint  `gorm:"index"` // code that started the family

	Status     string `gorm:"not null;default:'active';index"`
	IssuedAt   time.Time
	ExpiresAt  time.Time
	LastUsedAt *time.Time
}

// IsExpiredAt reports whether the token is past its expiry at now.
func (t *RefreshToken) IsExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *RefreshToken) IsActive() bool {
	return t.Status == RefreshTokenActive
}

func (t *RefreshToken) IsRotated() bool {
	return t.Status == RefreshTokenRotated
}

func (t *RefreshToken) IsRevoked() bool {
	return t.Status == RefreshTokenRevoked
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}
