package core

import (
	"context"

	"github.com/go-authgate/grantd/internal/models"
)

// ClientStore loads registered clients by identifier.
// Implementations return store.ErrRecordNotFound for unknown clients.
type ClientStore interface {
	Load(ctx context.Context, clientID string) (*models.RegisteredClient, error)
}
