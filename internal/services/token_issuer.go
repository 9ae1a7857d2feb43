package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-authgate/grantd/internal/core"
	"github.com/go-authgate/grantd/internal/models"
	"github.com/go-authgate/grantd/internal/store"
	"github.com/go-authgate/grantd/internal/token"
	"github.com/go-authgate/grantd/internal/util"

	"github.com/google/uuid"
)

type refreshTokenStore interface {
	CreateRefreshToken(ctx context.Context, t *models.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, parentID string, next *models.RefreshToken, now time.Time) error
	TouchRefreshToken(ctx context.Context, id string, now time.Time) error
	RevokeTokenFamily(ctx context.Context, familyID string) (int64, error)
}

// TokenSet is the token endpoint's success payload.
type TokenSet struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	Scopes       []string
	RefreshToken string // empty when none was issued
}

// Scope renders the granted scopes for the response body.
func (t *TokenSet) Scope() string {
	return token.JoinScope(t.Scopes)
}

// TokenIssuer mints access tokens and manages refresh token families.
type TokenIssuer struct {
	jwt               *token.JWTProvider
	store             refreshTokenStore
	defaultAccessTTL  time.Duration
	defaultRefreshTTL time.Duration
	metrics           core.Recorder
	audit             *AuditService
	now               func() time.Time
}

func NewTokenIssuer(
	jwtProvider *token.JWTProvider,
	s refreshTokenStore,
	defaultAccessTTL, defaultRefreshTTL time.Duration,
	metrics core.Recorder,
	audit *AuditService,
) *TokenIssuer {
	return &TokenIssuer{
		jwt:               jwtProvider,
		store:             s,
		defaultAccessTTL:  defaultAccessTTL,
		defaultRefreshTTL: defaultRefreshTTL,
		metrics:           metrics,
		audit:             audit,
		now:               time.Now,
	}
}

func (i *TokenIssuer) accessTTL(client *models.RegisteredClient) time.Duration {
	if client.AccessTokenTTL > 0 {
		return client.AccessTokenTTL
	}
	return i.defaultAccessTTL
}

func (i *TokenIssuer) refreshTTL(client *models.RegisteredClient) time.Duration {
	if client.RefreshTokenTTL > 0 {
		return client.RefreshTokenTTL
	}
	return i.defaultRefreshTTL
}

// IssueForClientCredentials mints an access token whose subject is the
// client itself. No refresh token is issued (RFC 6749 §4.4.3).
func (i *TokenIssuer) IssueForClientCredentials(
	ctx context.Context,
	client *models.RegisteredClient,
	scopes []string,
) (*TokenSet, error) {
	if !token.IsSubset(scopes, client.Scopes) {
		return nil, fmt.Errorf("%w: scope exceeds client registration", ErrInvalidScope)
	}

	access, err := i.signAccess(client.ClientID, client, scopes)
	if err != nil {
		return nil, err
	}
	i.recordAccessIssued(ctx, access, client.ClientID, client, models.GrantTypeClientCredentials)
	return &TokenSet{
		AccessToken: access.TokenString,
		TokenType:   access.TokenType,
		ExpiresIn:   access.ExpiresIn(),
		Scopes:      scopes,
	}, nil
}

// IssueForAuthorizationCode mints tokens for the resource owner behind a
// redeemed code. A refresh token starting a new family is issued when the
// client may use the refresh_token grant. Nothing is persisted or recorded
// unless every token in the set was produced.
func (i *TokenIssuer) IssueForAuthorizationCode(
	ctx context.Context,
	client *models.RegisteredClient,
	code *models.AuthorizationCode,
) (*TokenSet, error) {
	scopes := token.ParseScope(code.Scopes)
	if !token.IsSubset(scopes, client.Scopes) {
		return nil, fmt.Errorf("%w: scope exceeds client registration", ErrInvalidScope)
	}

	access, err := i.signAccess(code.Subject, client, scopes)
	if err != nil {
		return nil, err
	}
	set := &TokenSet{
		AccessToken: access.TokenString,
		TokenType:   access.TokenType,
		ExpiresIn:   access.ExpiresIn(),
		Scopes:      scopes,
	}

	if client.HasGrantType(models.GrantTypeRefreshToken) {
		codeID := code.ID
		refresh, err := i.newRefreshToken(client, code.Subject, code.Scopes, uuid.New().String(), "", &codeID)
		if err != nil {
			return nil, err
		}
		if err := i.store.CreateRefreshToken(ctx, refresh); err != nil {
			return nil, fmt.Errorf("failed to save refresh token: %w", err)
		}
		i.recordRefreshIssued(ctx, refresh, models.GrantTypeAuthorizationCode)
		set.RefreshToken = refresh.RawToken
	}

	i.recordAccessIssued(ctx, access, code.Subject, client, models.GrantTypeAuthorizationCode)
	return set, nil
}

// IssueForRefreshToken exchanges a refresh token. requested may narrow the
// original scopes but never widen them. Presenting a token that was
// already rotated revokes its whole family.
func (i *TokenIssuer) IssueForRefreshToken(
	ctx context.Context,
	client *models.RegisteredClient,
	presented string,
	requested []string,
) (*TokenSet, error) {
	set, err := i.refresh(ctx, client, presented, requested)
	i.metrics.RecordTokenRefresh(err == nil)
	return set, err
}

func (i *TokenIssuer) refresh(
	ctx context.Context,
	client *models.RegisteredClient,
	presented string,
	requested []string,
) (*TokenSet, error) {
	if presented == "" {
		return nil, fmt.Errorf("%w: missing refresh_token", ErrInvalidRequest)
	}

	current, err := i.store.GetRefreshTokenByHash(ctx, util.SHA256Hex(presented))
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown refresh token", ErrInvalidGrant)
		}
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}

	if current.ClientID != client.ClientID {
		return nil, fmt.Errorf("%w: refresh token was issued to another client", ErrInvalidGrant)
	}
	switch {
	case current.IsRotated():
		i.handleReuse(ctx, current)
		return nil, fmt.Errorf("%w: refresh token already used", ErrInvalidGrant)
	case !current.IsActive():
		return nil, fmt.Errorf("%w: refresh token revoked", ErrInvalidGrant)
	}

	now := i.now()
	if current.IsExpiredAt(now) {
		return nil, fmt.Errorf("%w: refresh token expired", ErrInvalidGrant)
	}

	scopes := token.ParseScope(current.Scopes)
	if len(requested) > 0 {
		if !token.IsSubset(requested, current.Scopes) {
			return nil, fmt.Errorf("%w: scope exceeds the original grant", ErrInvalidScope)
		}
		scopes = requested
	}
	// The client registration may have shrunk since the grant.
	if !token.IsSubset(scopes, client.Scopes) {
		return nil, fmt.Errorf("%w: scope exceeds client registration", ErrInvalidScope)
	}

	// Sign before the compare-and-swap: once the presented token is spent
	// the response must carry its successor.
	access, err := i.signAccess(current.Subject, client, scopes)
	if err != nil {
		return nil, err
	}

	rawRefresh := presented
	if client.ReuseRefreshTokens {
		if err := i.store.TouchRefreshToken(ctx, current.ID, now); err != nil {
			if errors.Is(err, store.ErrRefreshTokenNotActive) {
				return nil, fmt.Errorf("%w: refresh token revoked", ErrInvalidGrant)
			}
			return nil, fmt.Errorf("failed to update refresh token: %w", err)
		}
	} else {
		// The new token keeps the original grant's scopes so a later
		// refresh can still ask for any of them.
		next, err := i.newRefreshToken(
			client, current.Subject, current.Scopes,
			current.FamilyID, current.ID, current.AuthorizationCodeID,
		)
		if err != nil {
			return nil, err
		}
		if err := i.store.RotateRefreshToken(ctx, current.ID, next, now); err != nil {
			if errors.Is(err, store.ErrRefreshTokenNotActive) {
				// Another request spent the same token first.
				i.handleReuse(ctx, current)
				return nil, fmt.Errorf("%w: refresh token already used", ErrInvalidGrant)
			}
			return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
		}
		i.recordRefreshIssued(ctx, next, models.GrantTypeRefreshToken)
		rawRefresh = next.RawToken
	}

	i.recordAccessIssued(ctx, access, current.Subject, client, models.GrantTypeRefreshToken)
	i.audit.Log(ctx, AuditLogEntry{
		EventType:     models.EventTokenRefreshed,
		Severity:      models.SeverityInfo,
		ActorID:       current.Subject,
		ActorClientID: client.ClientID,
		ResourceType:  models.ResourceToken,
		ResourceID:    current.ID,
		Action:        "Refresh token exchanged",
		Details: models.AuditDetails{
			"family_id": current.FamilyID,
			"rotated":   !client.ReuseRefreshTokens,
			"scopes":    token.JoinScope(scopes),
		},
		Success: true,
	})

	return &TokenSet{
		AccessToken:  access.TokenString,
		TokenType:    access.TokenType,
		ExpiresIn:    access.ExpiresIn(),
		Scopes:       scopes,
		RefreshToken: rawRefresh,
	}, nil
}

func (i *TokenIssuer) handleReuse(ctx context.Context, reused *models.RefreshToken) {
	i.metrics.RecordRefreshReuseDetected()

	revoked, err := i.store.RevokeTokenFamily(ctx, reused.FamilyID)
	if err != nil {
		log.Printf("[Token] Failed to revoke family %s: %v", reused.FamilyID, err)
	}
	log.Printf("[Token] Refresh token reuse: token=%s client=%s family=%s revoked=%d",
		reused.TokenPrefix, reused.ClientID, reused.FamilyID, revoked)

	if err := i.audit.LogSync(ctx, AuditLogEntry{
		EventType:     models.EventRefreshTokenReuse,
		Severity:      models.SeverityCritical,
		ActorID:       reused.Subject,
		ActorClientID: reused.ClientID,
		ResourceType:  models.ResourceToken,
		ResourceID:    reused.ID,
		Action:        "Rotated refresh token presented again, family revoked",
		Details: models.AuditDetails{
			"family_id":      reused.FamilyID,
			"revoked_tokens": revoked,
		},
	}); err != nil {
		log.Printf("[Token] Failed to write reuse audit record: %v", err)
	}
}

// signedAccess is an access token that has been signed but not yet handed out.
type signedAccess struct {
	*token.Result
	took time.Duration
}

func (i *TokenIssuer) signAccess(
	subject string,
	client *models.RegisteredClient,
	scopes []string,
) (*signedAccess, error) {
	start := time.Now()
	access, err := i.jwt.GenerateAccessToken(subject, client.ClientID, scopes, i.accessTTL(client))
	if err != nil {
		return nil, err
	}
	return &signedAccess{Result: access, took: time.Since(start)}, nil
}

func (i *TokenIssuer) recordAccessIssued(
	ctx context.Context,
	access *signedAccess,
	subject string,
	client *models.RegisteredClient,
	grantType string,
) {
	scopes := access.Scopes
	i.metrics.RecordTokenIssued("access", grantType, access.took)

	i.audit.Log(ctx, AuditLogEntry{
		EventType:     models.EventAccessTokenIssued,
		Severity:      models.SeverityInfo,
		ActorID:       subject,
		ActorClientID: client.ClientID,
		ResourceType:  models.ResourceToken,
		ResourceID:    access.ID,
		Action:        "Access token issued",
		Details: models.AuditDetails{
			"grant_type": grantType,
			"scopes":     token.JoinScope(scopes),
			"jti":        access.ID,
		},
		Success: true,
	})
}

func (i *TokenIssuer) newRefreshToken(
	client *models.RegisteredClient,
	subject, scopes, familyID, parentID string,
	codeID *uint,
) (*models.RefreshToken, error) {
	raw, err := util.RandomToken(32)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", token.ErrTokenGeneration, err)
	}
	now := i.now()
	return &models.RefreshToken{
		ID:                  uuid.New().String(),
		TokenHash:           util.SHA256Hex(raw),
		TokenPrefix:         util.Prefix(raw, 8),
		RawToken:            raw,
		ClientID:            client.ClientID,
		Subject:             subject,
		Scopes:              scopes,
		FamilyID:            familyID,
		ParentID:            parentID,
		AuthorizationCodeID: codeID,
		Status:              models.RefreshTokenActive,
		IssuedAt:            now,
		ExpiresAt:           now.Add(i.refreshTTL(client)),
	}, nil
}

func (i *TokenIssuer) recordRefreshIssued(ctx context.Context, t *models.RefreshToken, grantType string) {
	i.metrics.RecordTokenIssued("refresh", grantType, 0)
	i.audit.Log(ctx, AuditLogEntry{
		EventType:     models.EventRefreshTokenIssued,
		Severity:      models.SeverityInfo,
		ActorID:       t.Subject,
		ActorClientID: t.ClientID,
		ResourceType:  models.ResourceToken,
		ResourceID:    t.ID,
		Action:        "Refresh token issued",
		Details: models.AuditDetails{
			"family_id": t.FamilyID,
			"parent_id": t.ParentID,
		},
		Success: true,
	})
}
