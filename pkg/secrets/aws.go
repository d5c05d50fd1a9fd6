package secrets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/google/uuid"
)

// AWSConfig configures the AWS Secrets Manager backend. With only Region
// set, credentials come from the default chain (env, shared config, IAM
// role); static keys and a custom endpoint are for local stacks.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Profile         string
	Endpoint        string
}

type awsBackend struct {
	sm *secretsmanager.Client
}

func newAWSBackend(ctx context.Context, cfg AWSConfig) (backend, error) {
	if cfg.Region == "" {
		return nil, errors.New("secrets: aws backend requires a region")
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("secrets: load aws config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &awsBackend{sm: client}, nil
}

func (b *awsBackend) Kind() ProviderType { return ProviderAWS }

func (b *awsBackend) Close() error { return nil }

func (b *awsBackend) Load(ctx context.Context, ref Reference) (Secret, error) {
	in := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref.Path),
	}
	// Secrets Manager version ids are UUIDs; anything else in the version
	// slot is a staging label such as AWSCURRENT or AWSPREVIOUS.
	switch {
	case ref.Version == "":
	case isVersionID(ref.Version):
		in.VersionId = aws.String(ref.Version)
	default:
		in.VersionStage = aws.String(ref.Version)
	}

	out, err := b.sm.GetSecretValue(ctx, in)
	if err != nil {
		var missing *types.ResourceNotFoundException
		if errors.As(err, &missing) {
			return Secret{}, fmt.Errorf("%w: aws secret %s", ErrNotFound, ref.Path)
		}
		return Secret{}, fmt.Errorf("secrets: aws read %s: %w", ref.Path, err)
	}

	data := make(map[string]string)
	if out.SecretString != nil {
		data = decodeFields([]byte(*out.SecretString))
	}
	if len(out.SecretBinary) > 0 {
		data["binary"] = base64.StdEncoding.EncodeToString(out.SecretBinary)
	}

	meta := Metadata{}
	if out.VersionId != nil {
		meta.Version = *out.VersionId
	}
	if out.CreatedDate != nil {
		meta.CreatedAt = *out.CreatedDate
		meta.UpdatedAt = *out.CreatedDate
	}

	return Secret{Data: data, Metadata: meta}, nil
}

func isVersionID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
