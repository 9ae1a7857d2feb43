package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-authgate/grantd/internal/models"
)

type seedClient struct {
	clientID        string
	secret          string
	name            string
	grantTypes      string
	scopes          string
	redirectURIs    []string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

var defaultSeeds = []seedClient{
	{
		clientID:       "test-client",
		secret:         "test-secret",
		name:           "Test Client",
		grantTypes:     models.GrantTypeClientCredentials,
		scopes:         "read write",
		accessTokenTTL: time.Hour,
	},
	{
		clientID:   "web-client",
		secret:     "web-secret",
		name:       "Web Client",
		grantTypes: models.GrantTypeAuthorizationCode + " " + models.GrantTypeRefreshToken,
		scopes:     "openid profile email read write",
		redirectURIs: []string{
			"http://localhost:3000/authorized",
			"http://localhost:8080/login/oauth2/code/web-client",
		},
		accessTokenTTL:  30 * time.Minute,
		refreshTokenTTL: 30 * 24 * time.Hour,
	},
}

// DefaultClients returns the development clients test-client and
// web-client with freshly hashed secrets.
func DefaultClients() ([]*models.RegisteredClient, error) {
	clients := make([]*models.RegisteredClient, 0, len(defaultSeeds))
	for _, s := range defaultSeeds {
		client := &models.RegisteredClient{
			ClientID:        s.clientID,
			Name:            s.name,
			ClientType:      models.ClientTypeConfidential,
			GrantTypes:      s.grantTypes,
			Scopes:          s.scopes,
			RedirectURIs:    models.StringArray(s.redirectURIs),
			AccessTokenTTL:  s.accessTokenTTL,
			RefreshTokenTTL: s.refreshTokenTTL,
			IsActive:        true,
		}
		if err := client.SetSecret(s.secret); err != nil {
			return nil, fmt.Errorf("failed to hash secret for %s: %w", s.clientID, err)
		}
		clients = append(clients, client)
	}
	return clients, nil
}

// SeedClients registers each client whose client_id is not taken yet.
// Existing records are left untouched.
func (s *Store) SeedClients(ctx context.Context, clients []*models.RegisteredClient) error {
	for _, client := range clients {
		err := s.CreateClient(ctx, client)
		switch {
		case err == nil:
			log.Printf("[Store] Seeded client: %s (%s)", client.ClientID, client.Name)
		case errors.Is(err, ErrClientIDConflict):
			continue
		default:
			return fmt.Errorf("failed to seed client %s: %w", client.ClientID, err)
		}
	}
	return nil
}
