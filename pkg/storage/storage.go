package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Provider represents a storage provider type
type Provider string

const (
	ProviderS3    Provider = "s3"
	ProviderLocal Provider = "local"
)

// ErrInvalidURI marks a batch URI the resolver cannot map onto a store.
var ErrInvalidURI = errors.New("storage: invalid batch URI")

// Config holds storage configuration
type Config struct {
	Provider  Provider
	Bucket    string
	Region    string
	Endpoint  string // for S3-compatible storage (MinIO, etc.)
	AccessKey string
	SecretKey string
	LocalPath string // root directory for local batch files
}

// Store streams batch objects for ingestion runs.
type Store interface {
	// Open streams the object at key. The caller owns the returned reader.
	// A missing object satisfies errors.Is(err, fs.ErrNotExist).
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether the object at key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

var (
	_ Store = (*S3Store)(nil)
	_ Store = (*LocalStore)(nil)
)

// ParseS3URI splits an s3://bucket/key URI. ok is false when raw is not an
// s3 URI or names no key.
func ParseS3URI(raw string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(raw, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Resolver maps batch URIs onto stores. URIs of the form s3://bucket/key
// stream from the object store, as do bare keys when the configured provider
// is s3; anything else is read from the local filesystem.
type Resolver struct {
	cfg   Config
	log   *zap.Logger
	local *LocalStore

	mu     sync.Mutex
	remote map[string]*S3Store // one client per bucket, built on first use
}

// NewResolver creates a resolver over the configured stores.
func NewResolver(cfg Config, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		cfg:    cfg,
		log:    log,
		local:  NewLocalStore(cfg.LocalPath),
		remote: make(map[string]*S3Store),
	}
}

// Open streams the batch object uri names.
func (r *Resolver) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	store, key, err := r.route(ctx, uri)
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, key)
}

// Exists reports whether the batch object uri names is present.
func (r *Resolver) Exists(ctx context.Context, uri string) (bool, error) {
	store, key, err := r.route(ctx, uri)
	if err != nil {
		return false, err
	}
	return store.Exists(ctx, key)
}

func (r *Resolver) route(ctx context.Context, uri string) (Store, string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, "", fmt.Errorf("%w: empty", ErrInvalidURI)
	}

	if strings.HasPrefix(uri, "s3://") {
		bucket, key, ok := ParseS3URI(uri)
		if !ok {
			return nil, "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
		}
		store, err := r.storeFor(ctx, bucket)
		if err != nil {
			return nil, "", err
		}
		return store, key, nil
	}

	if r.cfg.Provider == ProviderS3 {
		if r.cfg.Bucket == "" {
			return nil, "", fmt.Errorf("%w: bare key %q needs a configured bucket", ErrInvalidURI, uri)
		}
		store, err := r.storeFor(ctx, r.cfg.Bucket)
		if err != nil {
			return nil, "", err
		}
		return store, uri, nil
	}

	return r.local, uri, nil
}

func (r *Resolver) storeFor(ctx context.Context, bucket string) (*S3Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if store, ok := r.remote[bucket]; ok {
		return store, nil
	}

	store, err := NewS3Store(ctx, S3Config{
		Bucket:    bucket,
		Region:    r.cfg.Region,
		Endpoint:  r.cfg.Endpoint,
		AccessKey: r.cfg.AccessKey,
		SecretKey: r.cfg.SecretKey,
	}, r.log)
	if err != nil {
		return nil, err
	}
	r.remote[bucket] = store
	return store, nil
}
