package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	// Resource owner events
	EventLoginSuccess EventType = "LOGIN_SUCCESS"
	EventLoginFailure EventType = "LOGIN_FAILURE"
	EventLogout       EventType = "LOGOUT"

	// Client authentication
	EventClientAuthFailure EventType = "CLIENT_AUTH_FAILURE"

	// Authorization code events
	EventAuthorizationCodeIssued   EventType = "AUTHORIZATION_CODE_ISSUED"
	EventAuthorizationCodeRedeemed EventType = "AUTHORIZATION_CODE_REDEEMED"
	EventAuthorizationDenied       EventType = "AUTHORIZATION_DENIED"
	EventAuthCodeReplay            EventType = "AUTH_CODE_REPLAY"

	// Token events
	EventAccessTokenIssued  EventType = "ACCESS_TOKEN_ISSUED"
	EventRefreshTokenIssued EventType = "REFRESH_TOKEN_ISSUED"
	EventTokenRefreshed     EventType = "TOKEN_REFRESHED"
	EventRefreshTokenReuse  EventType = "REFRESH_TOKEN_REUSE"
	EventTokenFamilyRevoked EventType = "TOKEN_FAMILY_REVOKED"

	// Key management
	EventSigningKeyRotated EventType = "SIGNING_KEY_ROTATED"

	// Security events
	EventRateLimitExceeded EventType = "RATE_LIMIT_EXCEEDED"
)

// EventSeverity represents the severity level of an audit event
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "INFO"
	SeverityWarning  EventSeverity = "WARNING"
	SeverityError    EventSeverity = "ERROR"
	SeverityCritical EventSeverity = "CRITICAL"
)

// ResourceType represents the type of resource being operated on
type ResourceType string

const (
	ResourceUser              ResourceType = "USER"
	ResourceClient            ResourceType = "CLIENT"
	ResourceToken             ResourceType = "TOKEN"
	ResourceAuthorizationCode ResourceType = "AUTHORIZATION_CODE"
	ResourceSigningKey        ResourceType = "SIGNING_KEY"
)

// AuditDetails stores additional event-specific information as JSON
type AuditDetails map[string]any

// Value implements the driver.Valuer interface for database storage
func (a AuditDetails) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil //nolint:nilnil // nil driver.Value represents SQL NULL, which is valid here
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for database retrieval
func (a *AuditDetails) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal AuditDetails value: %v", value)
	}

	result := make(AuditDetails)
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}

	*a = result
	return nil
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`

	// Event information
	EventType EventType     `gorm:"type:varchar(50);index;not null" json:"event_type"`
	EventTime time.Time     `gorm:"index;not null"                  json:"event_time"`
	Severity  EventSeverity `gorm:"type:varchar(20);not null"       json:"severity"`

	// Actor information: a resource owner subject or a client id
	ActorID       string `gorm:"type:varchar(255);index" json:"actor_id"`
	ActorClientID string `gorm:"type:varchar(255);index" json:"actor_client_id"`
	ActorIP       string `gorm:"type:varchar(45);index"  json:"actor_ip"` // Support IPv6

	// Resource information
	ResourceType ResourceType `gorm:"type:varchar(50);index" json:"resource_type"`
	ResourceID   string       `gorm:"type:varchar(255);index" json:"resource_id"`

	// Operation details
	Action       string       `gorm:"type:varchar(255);not null" json:"action"`
	Details      AuditDetails `gorm:"type:json"                  json:"details"`
	Success      bool         `gorm:"index;not null"             json:"success"`
	ErrorMessage string       `gorm:"type:text"                  json:"error_message,omitempty"`

	// Request metadata
	RequestPath string `gorm:"type:varchar(500)" json:"request_path,omitempty"`

	// Timestamps (no UpdatedAt - immutable logs)
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "audit_logs"
}
