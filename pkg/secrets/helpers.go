package secrets

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/richxcame/fraud-screening/pkg/config"
)

// NewManagerFromConfig builds a Manager from the application-level secrets
// configuration. Callers own the returned manager and must Close it.
func NewManagerFromConfig(ctx context.Context, cfg config.SecretsConfig, log *zap.Logger) (Manager, error) {
	return NewManager(ctx, Config{
		Provider: ProviderType(cfg.Provider),
		CacheTTL: time.Duration(cfg.CacheTTLSeconds) * time.Second,
		Logger:   log,
		Vault: VaultConfig{
			Address:   cfg.VaultAddress,
			Token:     cfg.VaultToken,
			MountPath: cfg.VaultMountPath,
		},
		AWS: AWSConfig{
			Region:   cfg.AWSRegion,
			Endpoint: cfg.AWSEndpoint,
		},
		GCP: GCPConfig{
			ProjectID:       cfg.GCPProjectID,
			CredentialsFile: cfg.GCPCredentials,
		},
		Kubernetes: KubernetesConfig{
			BasePath: cfg.KubernetesDir,
		},
	})
}

// ResolveDatabaseCredentials replaces the configured database user and
// password with values fetched from the referenced secret. It is a no-op
// when no provider or no credentials reference is configured, so services
// can call it unconditionally before opening their connection pool.
func ResolveDatabaseCredentials(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.Secrets.Provider == "" || cfg.Database.CredentialsRef == "" {
		return nil
	}

	mgr, err := NewManagerFromConfig(ctx, cfg.Secrets, log)
	if err != nil {
		return fmt.Errorf("build secrets manager: %w", err)
	}
	defer mgr.Close()

	ref, err := ParseReference("database", SecretDatabase, cfg.Database.CredentialsRef)
	if err != nil {
		return fmt.Errorf("parse database credentials reference: %w", err)
	}

	secret, err := mgr.GetSecret(ctx, ref)
	if err != nil {
		return fmt.Errorf("fetch database credentials: %w", err)
	}

	user, ok := secret.Value("user")
	if !ok {
		return fmt.Errorf("%w: %q has no \"user\" entry", ErrKeyNotFound, cfg.Database.CredentialsRef)
	}
	password, ok := secret.Value("password")
	if !ok {
		return fmt.Errorf("%w: %q has no \"password\" entry", ErrKeyNotFound, cfg.Database.CredentialsRef)
	}

	cfg.Database.User = user
	cfg.Database.Password = password

	log.Info("Database credentials resolved",
		zap.String("provider", cfg.Secrets.Provider),
		zap.String("ref", cfg.Database.CredentialsRef),
	)
	return nil
}
