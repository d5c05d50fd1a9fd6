package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig configures the HashiCorp Vault backend. Secrets are read from
// a KV v2 engine mounted at MountPath; references can override the mount.
type VaultConfig struct {
	Address       string
	Token         string
	Namespace     string
	MountPath     string
	CACert        string
	CAPath        string
	ClientCert    string
	ClientKey     string
	TLSSkipVerify bool
}

type vaultBackend struct {
	client *vault.Client
	mount  string
}

func newVaultBackend(cfg VaultConfig) (backend, error) {
	if cfg.Address == "" || cfg.Token == "" {
		return nil, errors.New("secrets: vault backend requires an address and a token")
	}
	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}

	clientCfg := vault.DefaultConfig()
	clientCfg.Address = cfg.Address

	if cfg.CACert != "" || cfg.CAPath != "" || cfg.ClientCert != "" || cfg.ClientKey != "" || cfg.TLSSkipVerify {
		tls := &vault.TLSConfig{
			CACert:     cfg.CACert,
			CAPath:     cfg.CAPath,
			ClientCert: cfg.ClientCert,
			ClientKey:  cfg.ClientKey,
			Insecure:   cfg.TLSSkipVerify,
		}
		if err := clientCfg.ConfigureTLS(tls); err != nil {
			return nil, fmt.Errorf("secrets: configure vault tls: %w", err)
		}
	}

	client, err := vault.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("secrets: create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	return &vaultBackend{
		client: client,
		mount:  strings.Trim(cfg.MountPath, "/"),
	}, nil
}

func (b *vaultBackend) Kind() ProviderType { return ProviderVault }

// Close is a no-op; the Vault client holds no persistent connection.
func (b *vaultBackend) Close() error { return nil }

func (b *vaultBackend) Load(ctx context.Context, ref Reference) (Secret, error) {
	mount := b.mount
	if ref.Mount != "" {
		mount = strings.Trim(ref.Mount, "/")
	}

	// Tolerate paths pasted from vault CLI output, which include the KV v2
	// API prefix the SDK adds on its own.
	path := strings.Trim(ref.Path, "/")
	path = strings.TrimPrefix(path, "data/")
	path = strings.Trim(path, "/")
	if mount == "" || path == "" {
		return Secret{}, ErrInvalidReference
	}

	kv := b.client.KVv2(mount)

	var (
		kvSecret *vault.KVSecret
		err      error
	)
	if ref.Version != "" {
		version, convErr := strconv.Atoi(ref.Version)
		if convErr != nil {
			return Secret{}, fmt.Errorf("secrets: vault version %q is not a number: %w", ref.Version, convErr)
		}
		kvSecret, err = kv.GetVersion(ctx, path, version)
	} else {
		kvSecret, err = kv.Get(ctx, path)
	}
	if err != nil {
		var respErr *vault.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return Secret{}, fmt.Errorf("%w: vault path %s/%s", ErrNotFound, mount, path)
		}
		return Secret{}, fmt.Errorf("secrets: vault read %s/%s: %w", mount, path, err)
	}

	data := make(map[string]string, len(kvSecret.Data))
	for k, v := range kvSecret.Data {
		data[k] = fmt.Sprint(v)
	}

	meta := Metadata{}
	if vm := kvSecret.VersionMetadata; vm != nil {
		meta.Version = strconv.Itoa(vm.Version)
		meta.CreatedAt = vm.CreatedTime
		meta.UpdatedAt = vm.CreatedTime
	}

	return Secret{Data: data, Metadata: meta}, nil
}
