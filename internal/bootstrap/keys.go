package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/go-authgate/grantd/internal/config"
	"github.com/go-authgate/grantd/internal/core"
	"github.com/go-authgate/grantd/internal/keys"
	"github.com/go-authgate/grantd/internal/models"
	"github.com/go-authgate/grantd/internal/services"
)

// keyProvider picks the PEM file when one is configured, otherwise a
// generated key that lives only as long as the process.
func keyProvider(cfg *config.Config) core.KeyProvider {
	if cfg.SigningKeyPath != "" {
		return keys.PEMFileProvider{Path: cfg.SigningKeyPath}
	}
	return keys.GeneratedKeyProvider{Bits: cfg.SigningKeyBits}
}

func initializeKeyManager(
	ctx context.Context,
	cfg *config.Config,
	recorder core.Recorder,
) (*keys.Manager, error) {
	manager, err := keys.NewManager(ctx, keyProvider(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signing key: %w", err)
	}

	kid, _ := manager.CurrentSigningKey()
	if cfg.SigningKeyPath != "" {
		log.Printf("Signing key loaded from %s (kid=%s)", cfg.SigningKeyPath, kid)
	} else {
		log.Printf("Signing key generated (kid=%s, bits=%d); tokens will not survive a restart",
			kid, cfg.SigningKeyBits)
	}

	active, retired := manager.Counts()
	recorder.SetSigningKeysCount(active, retired)
	return manager, nil
}

// rotateSigningKey installs a freshly generated key, then drops retired
// keys whose tokens have all expired.
func rotateSigningKey(
	ctx context.Context,
	cfg *config.Config,
	manager *keys.Manager,
	recorder core.Recorder,
	audit *services.AuditService,
) error {
	previous, _ := manager.CurrentSigningKey()

	kid, key, err := keys.GeneratedKeyProvider{Bits: cfg.SigningKeyBits}.PrivateKey(ctx)
	if err != nil {
		return err
	}
	if err := manager.Rotate(kid, key); err != nil {
		return err
	}

	audit.Log(ctx, services.AuditLogEntry{
		EventType:    models.EventSigningKeyRotated,
		Severity:     models.SeverityInfo,
		ResourceType: models.ResourceSigningKey,
		ResourceID:   kid,
		Action:       "Signing key rotated",
		Details:      models.AuditDetails{"retired_kid": previous},
		Success:      true,
	})

	manager.PruneExpired()
	active, retired := manager.Counts()
	recorder.SetSigningKeysCount(active, retired)
	return nil
}
