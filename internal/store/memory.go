package store

import (
	"context"
	"sync"

	"github.com/go-authgate/grantd/internal/core"
	"github.com/go-authgate/grantd/internal/models"
)

var _ core.ClientStore = (*MemoryClientStore)(nil)

// MemoryClientStore keeps registered clients in a map. Used for tests and
// for deployments that configure clients at startup only.
type MemoryClientStore struct {
	mu      sync.RWMutex
	clients map[string]models.RegisteredClient
}

func NewMemoryClientStore(clients ...*models.RegisteredClient) *MemoryClientStore {
	m := &MemoryClientStore{clients: make(map[string]models.RegisteredClient, len(clients))}
	for _, c := range clients {
		m.clients[c.ClientID] = *c
	}
	return m
}

// Load returns a copy of the stored client.
func (m *MemoryClientStore) Load(_ context.Context, clientID string) (*models.RegisteredClient, error) {
	m.mu.RLock()
	client, ok := m.clients[clientID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &client, nil
}

// Put adds or replaces a client.
func (m *MemoryClientStore) Put(client *models.RegisteredClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[client.ClientID] = *client
}
