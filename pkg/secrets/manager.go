// Package secrets resolves credentials from an external secret store at
// startup, so database passwords and bucket keys never have to live in the
// environment or in .env files. Four backends are supported: HashiCorp
// Vault, AWS Secrets Manager, Google Secret Manager, and Kubernetes secret
// volume mounts. Resolved secrets are cached in memory for a short TTL to
// keep restarts and retries from hammering the backend.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultCacheTTL = 5 * time.Minute

// Metadata describes the resolved secret version.
type Metadata struct {
	Version     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RetrievedAt time.Time
}

// Secret is a resolved payload: named string entries plus version metadata.
type Secret struct {
	Data     map[string]string
	Metadata Metadata
}

// Value returns one entry of the payload. Entries that exist but are empty
// report ok=false, since an empty credential is never usable.
func (s Secret) Value(key string) (string, bool) {
	if s.Data == nil {
		return "", false
	}
	val, ok := s.Data[key]
	return val, ok && val != ""
}

func (s Secret) clone() Secret {
	dup := Secret{
		Data:     make(map[string]string, len(s.Data)),
		Metadata: s.Metadata,
	}
	for k, v := range s.Data {
		dup.Data[k] = v
	}
	return dup
}

// decodeFields interprets a raw payload as a JSON object of string fields.
// Opaque payloads become a single "value" entry, which keeps plain-string
// secrets (an API token, a PEM block) addressable through the same API.
func decodeFields(raw []byte) map[string]string {
	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err == nil && fields != nil {
		return fields
	}
	return map[string]string{"value": string(raw)}
}

// Config selects and configures the backend for a Manager.
type Config struct {
	Provider   ProviderType
	CacheTTL   time.Duration
	Logger     *zap.Logger
	Vault      VaultConfig
	AWS        AWSConfig
	GCP        GCPConfig
	Kubernetes KubernetesConfig
}

// Manager resolves secrets from one configured backend, with caching and
// access logging. Implementations are safe for concurrent use.
type Manager interface {
	// GetSecret resolves the full payload for a reference.
	GetSecret(ctx context.Context, ref Reference) (Secret, error)
	// GetString resolves the single entry selected by the reference's key.
	GetString(ctx context.Context, ref Reference) (string, error)
	// Close releases backend resources.
	Close() error
}

// backend is one concrete secret store.
type backend interface {
	Kind() ProviderType
	Load(ctx context.Context, ref Reference) (Secret, error)
	Close() error
}

type manager struct {
	store backend
	ttl   time.Duration
	log   *zap.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	secret    Secret
	expiresAt time.Time
}

// NewManager builds a Manager for the configured provider. The context
// bounds backend client construction (AWS config discovery, GCP dialing).
func NewManager(ctx context.Context, cfg Config) (Manager, error) {
	var (
		store backend
		err   error
	)

	switch cfg.Provider {
	case ProviderNone:
		return nil, ErrProviderNotConfigured
	case ProviderVault:
		store, err = newVaultBackend(cfg.Vault)
	case ProviderAWS:
		store, err = newAWSBackend(ctx, cfg.AWS)
	case ProviderGCP:
		store, err = newGCPBackend(ctx, cfg.GCP)
	case ProviderKubernetes:
		store, err = newKubernetesBackend(cfg.Kubernetes)
	default:
		err = fmt.Errorf("secrets: unsupported provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &manager{
		store: store,
		ttl:   ttl,
		log:   log,
		cache: make(map[string]cacheEntry),
	}, nil
}

func (m *manager) GetSecret(ctx context.Context, ref Reference) (Secret, error) {
	if err := m.checkRef(ref); err != nil {
		return Secret{}, err
	}

	if secret, ok := m.fromCache(ref); ok {
		return secret, nil
	}

	secret, err := m.store.Load(ctx, ref)
	if err != nil {
		m.log.Warn("Secret fetch failed",
			zap.String("secret_name", ref.Name),
			zap.String("secret_type", string(ref.Type)),
			zap.String("provider", string(m.store.Kind())),
			zap.Error(err))
		return Secret{}, err
	}
	secret.Metadata.RetrievedAt = time.Now().UTC()

	m.toCache(ref, secret)
	m.log.Debug("Secret fetched",
		zap.String("secret_name", ref.Name),
		zap.String("secret_type", string(ref.Type)),
		zap.String("provider", string(m.store.Kind())),
		zap.String("version", secret.Metadata.Version))

	return secret, nil
}

func (m *manager) GetString(ctx context.Context, ref Reference) (string, error) {
	if ref.Key == "" {
		return "", fmt.Errorf("%w: reference %q selects no key", ErrKeyNotFound, ref.Name)
	}

	secret, err := m.GetSecret(ctx, ref)
	if err != nil {
		return "", err
	}

	value, ok := secret.Value(ref.Key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, ref.Key)
	}
	return value, nil
}

func (m *manager) Close() error {
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

func (m *manager) checkRef(ref Reference) error {
	if ref.Path == "" {
		return ErrInvalidReference
	}
	if ref.Provider != ProviderNone && ref.Provider != m.store.Kind() {
		return fmt.Errorf("secrets: reference wants provider %q but manager uses %q", ref.Provider, m.store.Kind())
	}
	return nil
}

// fromCache returns a copy so callers cannot poison the cached payload.
func (m *manager) fromCache(ref Reference) (Secret, bool) {
	m.mu.RLock()
	entry, ok := m.cache[ref.CacheKey()]
	m.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return Secret{}, false
	}
	return entry.secret.clone(), true
}

func (m *manager) toCache(ref Reference, secret Secret) {
	if m.ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.cache[ref.CacheKey()] = cacheEntry{
		secret:    secret.clone(),
		expiresAt: time.Now().Add(m.ttl),
	}
	m.mu.Unlock()
}
