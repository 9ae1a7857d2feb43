package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-authgate/grantd/internal/core"
	"github.com/go-authgate/grantd/internal/models"

	"gorm.io/gorm"
)

var _ core.ClientStore = (*Store)(nil)

// Load returns the client registered under clientID, active or not.
func (s *Store) Load(ctx context.Context, clientID string) (*models.RegisteredClient, error) {
	var client models.RegisteredClient
	err := s.db.WithContext(ctx).Where("client_id = ?", clientID).First(&client).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &client, nil
}

func (s *Store) ListClients(ctx context.Context) ([]models.RegisteredClient, error) {
	var clients []models.RegisteredClient
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func (s *Store) CountClients(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.RegisteredClient{}).Count(&count).Error
	return count, err
}

func (s *Store) CreateClient(ctx context.Context, client *models.RegisteredClient) error {
	var existing models.RegisteredClient
	err := s.db.WithContext(ctx).Where("client_id = ?", client.ClientID).First(&existing).Error
	if err == nil {
		return ErrClientIDConflict
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check client_id: %w", err)
	}
	return s.db.WithContext(ctx).Create(client).Error
}

// UpdateClient saves every column, including zero values such as
// IsActive=false.
func (s *Store) UpdateClient(ctx context.Context, client *models.RegisteredClient) error {
	return s.db.WithContext(ctx).Save(client).Error
}
