package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

// GCPConfig configures the Google Secret Manager backend. Credentials fall
// back to application default credentials when neither inline JSON nor a
// file path is given.
type GCPConfig struct {
	ProjectID       string
	CredentialsJSON string
	CredentialsFile string
}

type gcpBackend struct {
	client  *secretmanager.Client
	project string
}

func newGCPBackend(ctx context.Context, cfg GCPConfig) (backend, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("secrets: gcp backend requires a project id")
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secrets: create gcp secret manager client: %w", err)
	}

	return &gcpBackend{client: client, project: cfg.ProjectID}, nil
}

func (b *gcpBackend) Kind() ProviderType { return ProviderGCP }

func (b *gcpBackend) Close() error { return b.client.Close() }

func (b *gcpBackend) Load(ctx context.Context, ref Reference) (Secret, error) {
	// Accept either a bare secret name (expanded against the configured
	// project) or a full resource name copied from the console.
	name := ref.Path
	if !strings.HasPrefix(name, "projects/") {
		version := ref.Version
		if version == "" {
			version = "latest"
		}
		name = fmt.Sprintf("projects/%s/secrets/%s/versions/%s", b.project, strings.Trim(ref.Path, "/"), version)
	}

	resp, err := b.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return Secret{}, fmt.Errorf("secrets: gcp read %s: %w", name, err)
	}

	data := make(map[string]string)
	if resp.Payload != nil && len(resp.Payload.Data) > 0 {
		data = decodeFields(resp.Payload.Data)
	}

	// The response name ends in /versions/<n>; keep just the number.
	meta := Metadata{Version: resp.Name}
	if idx := strings.LastIndex(resp.Name, "/versions/"); idx >= 0 {
		meta.Version = resp.Name[idx+len("/versions/"):]
	}

	return Secret{Data: data, Metadata: meta}, nil
}
