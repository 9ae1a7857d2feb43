package bootstrap

import (
	"fmt"
	"log"

	"github.com/go-authgate/grantd/internal/config"
)

// validateAllConfiguration validates all configuration settings
func validateAllConfiguration(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.UserDirectoryMode == config.UserDirectoryModeStatic && len(cfg.StaticUsers) == 0 {
		log.Println("Warning: STATIC_USERS is empty, nobody can log in")
	}
	if cfg.MetricsEnabled && cfg.MetricsToken == "" && cfg.IsProduction {
		log.Println("Warning: /metrics is exposed without METRICS_TOKEN")
	}
	return nil
}
