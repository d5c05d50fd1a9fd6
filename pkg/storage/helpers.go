package storage

import (
	"go.uber.org/zap"

	"github.com/richxcame/fraud-screening/pkg/config"
)

// NewResolverFromConfig builds a Resolver from the application-level storage
// configuration.
func NewResolverFromConfig(cfg config.StorageConfig, log *zap.Logger) *Resolver {
	return NewResolver(Config{
		Provider:  Provider(cfg.Provider),
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		LocalPath: cfg.LocalPath,
	}, log)
}
