package bootstrap

import (
	"context"
	"fmt"
	"log"
	"slices"

	"github.com/go-authgate/grantd/internal/config"
	"github.com/go-authgate/grantd/internal/store"
)

// initializeDatabase creates and initializes the database connection
func initializeDatabase(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	// Create timeout context for this specific operation
	ctx, cancel := context.WithTimeout(ctx, cfg.DBInitTimeout)
	defer cancel()

	db, err := store.New(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.SeedDefaultClients {
		clients, err := store.DefaultClients()
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := db.SeedClients(ctx, clients); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to seed clients: %w", err)
		}
	}

	count, err := db.CountClients(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to count clients: %w", err)
	}
	log.Printf("Database ready (driver: %s, clients: %d)", cfg.DatabaseDriver, count)
	return db, nil
}

// advertisedScopes is the union of scopes across active clients, sorted,
// for the discovery document.
func advertisedScopes(ctx context.Context, db *store.Store) ([]string, error) {
	clients, err := db.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	seen := make(map[string]bool)
	var scopes []string
	for i := range clients {
		if !clients[i].IsActive {
			continue
		}
		for _, s := range clients[i].ScopeList() {
			if !seen[s] {
				seen[s] = true
				scopes = append(scopes, s)
			}
		}
	}
	slices.Sort(scopes)
	return scopes, nil
}
