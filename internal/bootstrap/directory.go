package bootstrap

import (
	"fmt"
	"log"

	"github.com/go-authgate/grantd/internal/auth"
	"github.com/go-authgate/grantd/internal/config"
	"github.com/go-authgate/grantd/internal/core"
)

// initializeUserDirectory builds the resource owner directory for USER_DIRECTORY_MODE
func initializeUserDirectory(cfg *config.Config, recorder core.Recorder) (core.UserDirectory, error) {
	switch cfg.UserDirectoryMode {
	case config.UserDirectoryModeHTTPAPI:
		directory, err := auth.NewHTTPAPIUserDirectory(cfg, recorder)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize http_api user directory: %w", err)
		}
		log.Printf("User directory: http_api (url=%s, auth_mode=%s)", cfg.UserAPIURL, cfg.UserAPIAuthMode)
		return directory, nil

	default:
		directory, err := auth.NewStaticUserDirectory(cfg.StaticUsers)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize static user directory: %w", err)
		}
		log.Printf("User directory: static (%d users)", len(cfg.StaticUsers))
		return directory, nil
	}
}
