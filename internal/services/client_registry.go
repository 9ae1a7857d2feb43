package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/go-authgate/grantd/internal/core"
	"github.com/go-authgate/grantd/internal/models"
	"github.com/go-authgate/grantd/internal/store"
	"github.com/go-authgate/grantd/internal/token"

	"golang.org/x/crypto/bcrypt"
)

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// dummySecretHash is compared against when the client does not exist, so
// unknown and known client ids take the same time to reject.
func dummySecretHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("grantd-unknown-client"), bcrypt.DefaultCost)
	})
	return dummyHash
}

// ClientRegistry answers questions about registered clients.
type ClientRegistry struct {
	clients core.ClientStore
	metrics core.Recorder
	audit   *AuditService
}

func NewClientRegistry(clients core.ClientStore, metrics core.Recorder, audit *AuditService) *ClientRegistry {
	return &ClientRegistry{clients: clients, metrics: metrics, audit: audit}
}

// FindByID returns an active client. Unknown and inactive clients are both
// ErrInvalidClient.
func (r *ClientRegistry) FindByID(ctx context.Context, clientID string) (*models.RegisteredClient, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", ErrInvalidClient)
	}
	client, err := r.clients.Load(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown client", ErrInvalidClient)
		}
		return nil, fmt.Errorf("failed to load client: %w", err)
	}
	if !client.IsActive {
		return nil, fmt.Errorf("%w: client is inactive", ErrInvalidClient)
	}
	return client, nil
}

// Authenticate verifies a confidential client's secret with bcrypt.
func (r *ClientRegistry) Authenticate(
	ctx context.Context,
	clientID, secret string,
) (*models.RegisteredClient, error) {
	client, err := r.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrInvalidClient) {
			_ = bcrypt.CompareHashAndPassword(dummySecretHash(), []byte(secret))
			r.recordFailure(ctx, clientID, "unknown or inactive client")
		}
		return nil, err
	}

	if secret == "" || !client.ValidateSecret(secret) {
		r.recordFailure(ctx, clientID, "bad client secret")
		return nil, fmt.Errorf("%w: bad client credentials", ErrInvalidClient)
	}

	r.metrics.RecordClientAuth(true)
	return client, nil
}

func (r *ClientRegistry) recordFailure(ctx context.Context, clientID, reason string) {
	r.metrics.RecordClientAuth(false)
	r.audit.Log(ctx, AuditLogEntry{
		EventType:     models.EventClientAuthFailure,
		Severity:      models.SeverityWarning,
		ActorClientID: clientID,
		ResourceType:  models.ResourceClient,
		ResourceID:    clientID,
		Action:        "Client authentication failed",
		ErrorMessage:  reason,
	})
}

func (r *ClientRegistry) IsGrantAllowed(client *models.RegisteredClient, grantType string) bool {
	return client.HasGrantType(grantType)
}

// IsRedirectURIAllowed requires an exact string match with a registered URI.
func (r *ClientRegistry) IsRedirectURIAllowed(client *models.RegisteredClient, uri string) bool {
	return uri != "" && slices.Contains(client.RedirectURIs, uri)
}

// NarrowScope returns the scopes the client may receive for requested. An
// empty request yields everything the client is allowed; otherwise unknown
// scopes are dropped, and nothing left is ErrInvalidScope.
func (r *ClientRegistry) NarrowScope(client *models.RegisteredClient, requested []string) ([]string, error) {
	allowed := client.ScopeList()
	if len(requested) == 0 {
		if len(allowed) == 0 {
			return nil, fmt.Errorf("%w: client has no scopes", ErrInvalidScope)
		}
		return allowed, nil
	}

	narrowed := token.Intersect(requested, allowed)
	if len(narrowed) == 0 {
		return nil, fmt.Errorf("%w: none of the requested scopes are allowed", ErrInvalidScope)
	}
	return narrowed, nil
}
