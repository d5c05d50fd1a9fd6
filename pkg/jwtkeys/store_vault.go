package jwtkeys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// defaultVaultKeyPath is where the key set lives when AUTH_VAULT_PATH names
// only a mount.
const defaultVaultKeyPath = "jwt_keys"

// VaultConfig connects the key store to a HashiCorp Vault KV v2 engine, so
// every replica of the service sees the same signing key set.
type VaultConfig struct {
	Address   string
	Token     string
	Path      string
	Namespace string
}

// vaultStore keeps the whole key set as one JSON document under a single
// KV v2 entry; writes replace it atomically.
type vaultStore struct {
	kv      *vault.KVv2
	keyPath string
}

func newVaultStore(cfg VaultConfig) (Store, error) {
	if cfg.Address == "" || cfg.Token == "" || cfg.Path == "" {
		return nil, errors.New("vault key store requires an address, a token, and a path")
	}

	mount, keyPath, err := normalizeVaultPath(cfg.Path)
	if err != nil {
		return nil, err
	}

	clientCfg := vault.DefaultConfig()
	clientCfg.Address = cfg.Address

	client, err := vault.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	return &vaultStore{
		kv:      client.KVv2(mount),
		keyPath: keyPath,
	}, nil
}

// Load returns nil when the entry does not exist yet, so a fresh Vault
// mount behaves like an empty key file.
func (s *vaultStore) Load(ctx context.Context) ([]SigningKey, error) {
	entry, err := s.kv.Get(ctx, s.keyPath)
	if err != nil {
		var respErr *vault.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("load signing keys from vault: %w", err)
	}

	raw, ok := entry.Data["keys"].(string)
	if !ok || raw == "" {
		return nil, nil
	}

	var keys []SigningKey
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("parse signing keys from vault: %w", err)
	}
	return keys, nil
}

func (s *vaultStore) Save(ctx context.Context, keys []SigningKey) error {
	payload, err := json.Marshal(keys)
	if err != nil {
		return err
	}

	if _, err := s.kv.Put(ctx, s.keyPath, map[string]interface{}{"keys": string(payload)}); err != nil {
		return fmt.Errorf("persist signing keys to vault: %w", err)
	}
	return nil
}

// normalizeVaultPath splits a configured "mount/key/path" value. The KV v2
// API prefixes vault CLI output inserts (data/, metadata/) are dropped so
// either form of the path works.
func normalizeVaultPath(path string) (mount, keyPath string, err error) {
	clean := strings.Trim(path, "/")
	if clean == "" {
		return "", "", errors.New("vault path must name a mount, e.g. secret/jwt_keys")
	}

	mount, rest, found := strings.Cut(clean, "/")
	if !found || rest == "" {
		return mount, defaultVaultKeyPath, nil
	}

	rest = strings.TrimPrefix(rest, "data/")
	rest = strings.TrimPrefix(rest, "metadata/")
	if rest == "" {
		rest = defaultVaultKeyPath
	}
	return mount, rest, nil
}
