package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// KubernetesConfig configures the secret-volume backend used when running
// in a cluster: each mounted secret is a directory under BasePath with one
// file per key.
type KubernetesConfig struct {
	BasePath string
}

type k8sBackend struct {
	base string
}

func newKubernetesBackend(cfg KubernetesConfig) (backend, error) {
	base := cfg.BasePath
	if base == "" {
		base = "/var/run/secrets"
	}

	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("secrets: kubernetes mount %s not accessible: %w", base, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets: kubernetes mount %s is not a directory", base)
	}

	return &k8sBackend{base: base}, nil
}

func (b *k8sBackend) Kind() ProviderType { return ProviderKubernetes }

func (b *k8sBackend) Close() error { return nil }

func (b *k8sBackend) Load(ctx context.Context, ref Reference) (Secret, error) {
	// Root the reference under the mount so "../" cannot climb out of it.
	target := filepath.Join(b.base, filepath.Clean("/"+ref.Path))

	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Secret{}, fmt.Errorf("%w: kubernetes path %s", ErrNotFound, ref.Path)
		}
		return Secret{}, fmt.Errorf("secrets: kubernetes read %s: %w", ref.Path, err)
	}

	data := make(map[string]string)

	if !info.IsDir() {
		value, err := os.ReadFile(target)
		if err != nil {
			return Secret{}, fmt.Errorf("secrets: kubernetes read %s: %w", ref.Path, err)
		}
		data[filepath.Base(target)] = strings.TrimSpace(string(value))
		return Secret{Data: data}, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return Secret{}, fmt.Errorf("secrets: kubernetes read %s: %w", ref.Path, err)
	}
	for _, entry := range entries {
		// The kubelet keeps ..data and ..<timestamp> bookkeeping entries
		// inside every secret volume; only the per-key files are payload.
		if entry.IsDir() || strings.HasPrefix(entry.Name(), "..") {
			continue
		}
		value, err := os.ReadFile(filepath.Join(target, entry.Name()))
		if err != nil {
			return Secret{}, fmt.Errorf("secrets: kubernetes read %s/%s: %w", ref.Path, entry.Name(), err)
		}
		// Manifest authors routinely leave a trailing newline in stringData.
		data[entry.Name()] = strings.TrimSpace(string(value))
	}

	return Secret{Data: data}, nil
}
