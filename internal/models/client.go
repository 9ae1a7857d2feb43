package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Client types (RFC 6749 §2.1)
const (
	ClientTypeConfidential = "confidential"
	ClientTypePublic       = "public"
)

// Grant types handled by the token endpoint
const (
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// RegisteredClient is an OAuth client known to the authorization server.
// Records are read-mostly; changes go through store.UpdateClient.
type RegisteredClient struct {
	ID               int64       `gorm:"primaryKey;autoIncrement"`
	ClientID         string      `gorm:"uniqueIndex;not null"`
	ClientSecretHash string      `gorm:"not null;default:''"` // bcrypt, empty for public clients
	Name             string      `gorm:"not null;default:''"`
	ClientType       string      `gorm:"not null;default:'confidential'"`
	GrantTypes       string      `gorm:"not null"` // space-separated
	Scopes           string      `gorm:"not null"` // space-separated
	RedirectURIs     StringArray `gorm:"type:json"`
	RequirePKCE      bool        `gorm:"not null;default:false"`

	AccessTokenTTL  time.Duration `gorm:"not null;default:0"`
	RefreshTokenTTL time.Duration `gorm:"not null;default:0"`
	// ReuseRefreshTokens keeps a refresh token valid across uses instead of rotating it.
	ReuseRefreshTokens bool `gorm:"not null;default:false"`

	IsActive  bool `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SetSecret hashes secret with bcrypt and stores only the hash.
func (c *RegisteredClient) SetSecret(secret string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	c.ClientSecretHash = string(hashed)
	return nil
}

// ValidateSecret compares secret against the stored bcrypt hash.
func (c *RegisteredClient) ValidateSecret(secret string) bool {
	if c.ClientSecretHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.ClientSecretHash), []byte(secret)) == nil
}

func (c *RegisteredClient) IsPublic() bool {
	return c.ClientType == ClientTypePublic
}

// ScopeList returns the allowed scopes as a slice.
func (c *RegisteredClient) ScopeList() []string {
	return strings.Fields(c.Scopes)
}

// GrantTypeList returns the allowed grant types as a slice.
func (c *RegisteredClient) GrantTypeList() []string {
	return strings.Fields(c.GrantTypes)
}

func (c *RegisteredClient) HasGrantType(grantType string) bool {
	return slices.Contains(c.GrantTypeList(), grantType)
}

func (RegisteredClient) TableName() string {
	return "registered_clients"
}

// StringArray is a []string stored as a JSON column.
type StringArray []string

// Scan implements sql.Scanner interface
func (s *StringArray) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = StringArray{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("failed to unmarshal JSON value")
	}
	return json.Unmarshal(raw, s)
}

// Value implements driver.Valuer interface
func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
