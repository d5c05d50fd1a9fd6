package jwtkeys

import (
	"context"
	"time"

	"github.com/richxcame/fraud-screening/pkg/config"
)

// NewManagerFromConfig assembles a Manager the way services configure it:
// Vault-backed when the auth section names a Vault path, file-backed
// otherwise, with the static JWT secret carried as the legacy key so
// pre-rotation tokens keep verifying.
func NewManagerFromConfig(ctx context.Context, cfg config.AuthConfig, readOnly bool) (*Manager, error) {
	var store Store
	if cfg.VaultPath != "" && cfg.VaultAddress != "" && cfg.VaultToken != "" {
		var err error
		store, err = newVaultStore(VaultConfig{
			Address:   cfg.VaultAddress,
			Token:     cfg.VaultToken,
			Path:      cfg.VaultPath,
			Namespace: cfg.VaultNamespace,
		})
		if err != nil {
			return nil, err
		}
	}

	keyFile := cfg.KeyFile
	if store != nil {
		keyFile = ""
	}

	return NewManager(ctx, Config{
		Store:            store,
		KeyFilePath:      keyFile,
		RotationInterval: time.Duration(cfg.RotationHours) * time.Hour,
		GracePeriod:      time.Duration(cfg.GraceHours) * time.Hour,
		LegacySecret:     cfg.JWTSecret,
		ReadOnly:         readOnly,
	})
}
