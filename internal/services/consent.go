package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-authgate/grantd/internal/token"
)

// Consent is what a resource owner approved for a client during one
// authorization step. It lives in the browser session only.
type Consent struct {
	ClientID   string    `json:"client_id"`
	Subject    string    `json:"sub"`
	Scopes     []string  `json:"scopes"`
	ApprovedAt time.Time `json:"approved_at"`
}

// Covers reports whether the consent approves scopes for clientID on
// behalf of subject.
func (c *Consent) Covers(clientID, subject string, scopes []string) bool {
	if c.ClientID != clientID || c.Subject != subject {
		return false
	}
	return token.IsSubset(scopes, token.JoinScope(c.Scopes))
}

// PendingAuthorization is a validated authorization request waiting for
// the resource owner's decision.
type PendingAuthorization struct {
	ClientID            string   `json:"client_id"`
	ClientName          string   `json:"client_name"`
	RedirectURI         string   `json:"redirect_uri"`
	Scopes              []string `json:"scopes"`
	State               string   `json:"state,omitempty"`
	CodeChallenge       string   `json:"code_challenge,omitempty"`
	CodeChallengeMethod string   `json:"code_challenge_method,omitempty"`
}

func NewPendingAuthorization(req *AuthorizationRequest) *PendingAuthorization {
	return &PendingAuthorization{
		ClientID:            req.Client.ClientID,
		ClientName:          req.Client.Name,
		RedirectURI:         req.RedirectURI,
		Scopes:              req.Scopes,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	}
}

// Approve records subject's approval of the pending request.
func (p *PendingAuthorization) Approve(subject string, now time.Time) Consent {
	return Consent{
		ClientID:   p.ClientID,
		Subject:    subject,
		Scopes:     p.Scopes,
		ApprovedAt: now,
	}
}

// EncodeSessionValue serialises v for storage in a cookie session, which
// only holds gob-registered types.
func EncodeSessionValue(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeSessionValue is the inverse of EncodeSessionValue.
func DecodeSessionValue(raw any, v any) error {
	s, ok := raw.(string)
	if !ok || s == "" {
		return fmt.Errorf("%w: no session value", ErrInvalidRequest)
	}
	return json.Unmarshal([]byte(s), v)
}
