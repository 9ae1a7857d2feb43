package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-authgate/grantd/internal/core"
	"github.com/go-authgate/grantd/internal/models"
	"github.com/go-authgate/grantd/internal/store"
	"github.com/go-authgate/grantd/internal/token"
	"github.com/go-authgate/grantd/internal/util"
)

// Redemption results reported to metrics
const (
	redeemSuccess  = "success"
	redeemInvalid  = "invalid"
	redeemExpired  = "expired"
	redeemReplay   = "replay"
	redeemMismatch = "mismatch"
)

type codeStore interface {
	CreateAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) error
	GetAuthorizationCodeByHash(ctx context.Context, hash string) (*models.AuthorizationCode, error)
	ConsumeAuthorizationCode(ctx context.Context, id uint, now time.Time) error
	RevokeTokensByAuthorizationCode(ctx context.Context, codeID uint) (int64, error)
}

// AuthorizationRequest holds validated parameters for an authorization request
type AuthorizationRequest struct {
	Client              *models.RegisteredClient
	RedirectURI         string
	Scopes              []string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// IssueCodeRequest is what the authorization step hands over once the
// resource owner approved.
type IssueCodeRequest struct {
	ClientID            string
	RedirectURI         string
	Scopes              []string
	Subject             string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizationCodeService issues and redeems single-use authorization codes.
type AuthorizationCodeService struct {
	store    codeStore
	registry *ClientRegistry
	ttl      time.Duration
	metrics  core.Recorder
	audit    *AuditService
	now      func() time.Time
}

func NewAuthorizationCodeService(
	s codeStore,
	registry *ClientRegistry,
	ttl time.Duration,
	metrics core.Recorder,
	audit *AuditService,
) *AuthorizationCodeService {
	return &AuthorizationCodeService{
		store:    s,
		registry: registry,
		ttl:      ttl,
		metrics:  metrics,
		audit:    audit,
		now:      time.Now,
	}
}

// ValidateAuthorizationRequest checks an incoming /oauth2/authorize request.
// ErrInvalidClient and ErrInvalidRedirectURI must be shown to the user
// agent; every other error can be returned to the redirect URI.
func (s *AuthorizationCodeService) ValidateAuthorizationRequest(
	ctx context.Context,
	clientID, redirectURI, responseType, scope, state, codeChallenge, codeChallengeMethod string,
) (*AuthorizationRequest, error) {
	client, err := s.registry.FindByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !s.registry.IsRedirectURIAllowed(client, redirectURI) {
		return nil, ErrInvalidRedirectURI
	}
	redirectable := func(err error) error {
		return &RedirectableError{RedirectURI: redirectURI, Err: err}
	}

	if responseType != "code" {
		return nil, redirectable(ErrUnsupportedResponseType)
	}
	if !s.registry.IsGrantAllowed(client, models.GrantTypeAuthorizationCode) {
		return nil, redirectable(ErrUnauthorizedClient)
	}

	scopes, err := s.registry.NarrowScope(client, token.ParseScope(scope))
	if err != nil {
		return nil, redirectable(err)
	}

	method, err := normalizeChallengeMethod(codeChallenge, codeChallengeMethod)
	if err != nil {
		return nil, redirectable(err)
	}
	if codeChallenge == "" && (client.IsPublic() || client.RequirePKCE) {
		return nil, redirectable(fmt.Errorf("%w: code_challenge required", ErrInvalidRequest))
	}

	return &AuthorizationRequest{
		Client:              client,
		RedirectURI:         redirectURI,
		Scopes:              scopes,
		State:               state,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: method,
	}, nil
}

// normalizeChallengeMethod applies the RFC 7636 default of "plain" when a
// challenge is sent without a method.
func normalizeChallengeMethod(challenge, method string) (string, error) {
	if challenge == "" {
		if method != "" {
			return "", fmt.Errorf("%w: code_challenge_method without code_challenge", ErrInvalidRequest)
		}
		return "", nil
	}
	switch method {
	case "":
		return models.PKCEMethodPlain, nil
	case models.PKCEMethodPlain, models.PKCEMethodS256:
		return method, nil
	default:
		return "", fmt.Errorf("%w: unsupported code_challenge_method %q", ErrInvalidRequest, method)
	}
}

// Issue creates a code and returns its plaintext. Only the SHA-256 hash is stored.
func (s *AuthorizationCodeService) Issue(ctx context.Context, req IssueCodeRequest) (string, error) {
	method, err := normalizeChallengeMethod(req.CodeChallenge, req.CodeChallengeMethod)
	if err != nil {
		return "", err
	}

	plainCode, err := util.RandomToken(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}

	now := s.now()
	record := &models.AuthorizationCode{
		CodeHash:            util.SHA256Hex(plainCode),
		CodePrefix:          util.Prefix(plainCode, 8),
		ClientID:            req.ClientID,
		Subject:             req.Subject,
		RedirectURI:         req.RedirectURI,
		Scopes:              token.JoinScope(req.Scopes),
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: method,
		IssuedAt:            now,
		ExpiresAt:           now.Add(s.ttl),
	}
	if err := s.store.CreateAuthorizationCode(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save authorization code: %w", err)
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:     models.EventAuthorizationCodeIssued,
		Severity:      models.SeverityInfo,
		ActorID:       req.Subject,
		ActorClientID: req.ClientID,
		ResourceType:  models.ResourceAuthorizationCode,
		ResourceID:    record.CodePrefix,
		Action:        "Authorization code issued",
		Details: models.AuditDetails{
			"scopes":       record.Scopes,
			"pkce":         record.HasPKCE(),
			"redirect_uri": req.RedirectURI,
		},
		Success: true,
	})

	return plainCode, nil
}

// Redeem validates plainCode for clientID and consumes it. Every failure is
// ErrInvalidGrant. Presenting an already consumed code revokes the refresh
// tokens issued from it.
func (s *AuthorizationCodeService) Redeem(
	ctx context.Context,
	plainCode, clientID, redirectURI, codeVerifier string,
) (*models.AuthorizationCode, error) {
	if plainCode == "" {
		s.metrics.RecordAuthCodeRedemption(redeemInvalid)
		return nil, fmt.Errorf("%w: missing code", ErrInvalidGrant)
	}

	record, err := s.store.GetAuthorizationCodeByHash(ctx, util.SHA256Hex(plainCode))
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			s.metrics.RecordAuthCodeRedemption(redeemInvalid)
			return nil, fmt.Errorf("%w: unknown code", ErrInvalidGrant)
		}
		return nil, fmt.Errorf("failed to load authorization code: %w", err)
	}

	if record.IsConsumed() {
		s.handleReplay(ctx, record)
		return nil, fmt.Errorf("%w: code already used", ErrInvalidGrant)
	}

	now := s.now()
	if record.IsExpiredAt(now) {
		s.metrics.RecordAuthCodeRedemption(redeemExpired)
		return nil, fmt.Errorf("%w: code expired", ErrInvalidGrant)
	}
	if record.ClientID != clientID {
		s.metrics.RecordAuthCodeRedemption(redeemMismatch)
		return nil, fmt.Errorf("%w: code was issued to another client", ErrInvalidGrant)
	}
	if record.RedirectURI != redirectURI {
		s.metrics.RecordAuthCodeRedemption(redeemMismatch)
		return nil, fmt.Errorf("%w: redirect_uri mismatch", ErrInvalidGrant)
	}
	if !checkCodeVerifier(record, codeVerifier) {
		s.metrics.RecordAuthCodeRedemption(redeemMismatch)
		return nil, fmt.Errorf("%w: code_verifier mismatch", ErrInvalidGrant)
	}

	if err := s.store.ConsumeAuthorizationCode(ctx, record.ID, now); err != nil {
		if errors.Is(err, store.ErrAuthCodeAlreadyConsumed) {
			// Lost a race against a concurrent redemption of the same code.
			s.metrics.RecordAuthCodeRedemption(redeemReplay)
			return nil, fmt.Errorf("%w: code already used", ErrInvalidGrant)
		}
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}
	record.ConsumedAt = &now

	s.metrics.RecordAuthCodeRedemption(redeemSuccess)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:     models.EventAuthorizationCodeRedeemed,
		Severity:      models.SeverityInfo,
		ActorID:       record.Subject,
		ActorClientID: clientID,
		ResourceType:  models.ResourceAuthorizationCode,
		ResourceID:    record.CodePrefix,
		Action:        "Authorization code redeemed",
		Details:       models.AuditDetails{"scopes": record.Scopes},
		Success:       true,
	})
	return record, nil
}

func (s *AuthorizationCodeService) handleReplay(ctx context.Context, record *models.AuthorizationCode) {
	s.metrics.RecordAuthCodeRedemption(redeemReplay)

	revoked, err := s.store.RevokeTokensByAuthorizationCode(ctx, record.ID)
	if err != nil {
		log.Printf("[AuthCode] Failed to revoke tokens for replayed code %s: %v", record.CodePrefix, err)
	}
	log.Printf("[AuthCode] Replay of code %s for client %s, revoked %d refresh tokens",
		record.CodePrefix, record.ClientID, revoked)

	if err := s.audit.LogSync(ctx, AuditLogEntry{
		EventType:     models.EventAuthCodeReplay,
		Severity:      models.SeverityCritical,
		ActorID:       record.Subject,
		ActorClientID: record.ClientID,
		ResourceType:  models.ResourceAuthorizationCode,
		ResourceID:    record.CodePrefix,
		Action:        "Consumed authorization code presented again",
		Details:       models.AuditDetails{"revoked_refresh_tokens": revoked},
	}); err != nil {
		log.Printf("[AuthCode] Failed to write replay audit record: %v", err)
	}
}

// checkCodeVerifier enforces PKCE. A verifier sent for a code issued
// without a challenge is rejected as well.
func checkCodeVerifier(record *models.AuthorizationCode, verifier string) bool {
	if !record.HasPKCE() {
		return verifier == ""
	}
	return verifyPKCE(record.CodeChallenge, record.CodeChallengeMethod, verifier)
}

func verifyPKCE(codeChallenge, method, codeVerifier string) bool {
	if codeVerifier == "" {
		return false
	}
	switch method {
	case models.PKCEMethodS256:
		sum := sha256.Sum256([]byte(codeVerifier))
		return util.ConstantTimeEqual(base64.RawURLEncoding.EncodeToString(sum[:]), codeChallenge)
	case models.PKCEMethodPlain, "":
		return util.ConstantTimeEqual(codeVerifier, codeChallenge)
	default:
		return false
	}
}
