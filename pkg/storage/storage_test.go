package storage

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		bucket string
		key    string
		ok     bool
	}{
		{"bucket and key", "s3://batches/2024/tx.csv", "batches", "2024/tx.csv", true},
		{"single segment key", "s3://batches/tx.csv", "batches", "tx.csv", true},
		{"no key", "s3://batches", "", "", false},
		{"trailing slash only", "s3://batches/", "", "", false},
		{"empty bucket", "s3:///tx.csv", "", "", false},
		{"scheme only", "s3://", "", "", false},
		{"absolute path", "/data/tx.csv", "", "", false},
		{"relative path", "tx.csv", "", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bucket, key, ok := ParseS3URI(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.bucket, bucket)
			assert.Equal(t, tc.key, key)
		})
	}
}

func TestLocalStore_OpenAndExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch.csv"), []byte("transaction_id\n"), 0600))

	store := NewLocalStore(dir)

	ok, err := store.Exists(context.Background(), "batch.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := store.Open(context.Background(), "batch.csv")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "transaction_id\n", string(data))
}

func TestLocalStore_AbsoluteKeyIgnoresRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.csv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	store := NewLocalStore("/nonexistent-root")

	ok, err := store.Exists(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalStore_Missing(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	ok, err := store.Exists(context.Background(), "absent.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Open(context.Background(), "absent.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

// fakeS3 serves objects keyed by "bucket/key" the way a path-style S3
// endpoint would.
func fakeS3(objects map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		body, ok := objects[path]

		switch r.Method {
		case http.MethodHead:
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		case http.MethodGet:
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
				return
			}
			io.WriteString(w, body)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
}

func newTestS3Store(t *testing.T, srv *httptest.Server, bucket string) *S3Store {
	t.Helper()
	store, err := NewS3Store(context.Background(), S3Config{
		Bucket:    bucket,
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
	}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestS3Store_Open(t *testing.T) {
	srv := fakeS3(map[string]string{
		"batches/runs/tx.csv": "transaction_id,agent_name\n",
	})
	defer srv.Close()

	store := newTestS3Store(t, srv, "batches")

	rc, err := store.Open(context.Background(), "runs/tx.csv")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "transaction_id,agent_name\n", string(data))
}

func TestS3Store_Open_Missing(t *testing.T) {
	srv := fakeS3(nil)
	defer srv.Close()

	store := newTestS3Store(t, srv, "batches")

	_, err := store.Open(context.Background(), "runs/absent.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestS3Store_Exists(t *testing.T) {
	srv := fakeS3(map[string]string{"batches/tx.csv": "x"})
	defer srv.Close()

	store := newTestS3Store(t, srv, "batches")

	ok, err := store.Exists(context.Background(), "tx.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(context.Background(), "absent.csv")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolver_LocalPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tx.csv"), []byte("a,b\n"), 0600))

	r := NewResolver(Config{Provider: ProviderLocal, LocalPath: dir}, zap.NewNop())

	ok, err := r.Exists(context.Background(), "tx.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := r.Open(context.Background(), "tx.csv")
	require.NoError(t, err)
	require.NoError(t, rc.Close())
}

func TestResolver_S3URI(t *testing.T) {
	srv := fakeS3(map[string]string{"batches/runs/tx.csv": "a,b\n"})
	defer srv.Close()

	r := NewResolver(Config{
		Provider:  ProviderS3,
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
	}, zap.NewNop())

	rc, err := r.Open(context.Background(), "s3://batches/runs/tx.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "a,b\n", string(data))

	// A second open of the same bucket reuses the client.
	rc, err = r.Open(context.Background(), "s3://batches/runs/tx.csv")
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Len(t, r.remote, 1)
}

func TestResolver_BareKeyUsesDefaultBucket(t *testing.T) {
	srv := fakeS3(map[string]string{"batches/tx.csv": "x"})
	defer srv.Close()

	r := NewResolver(Config{
		Provider:  ProviderS3,
		Bucket:    "batches",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
	}, zap.NewNop())

	ok, err := r.Exists(context.Background(), "tx.csv")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolver_BareKeyWithoutBucket(t *testing.T) {
	r := NewResolver(Config{Provider: ProviderS3}, nil)

	_, err := r.Open(context.Background(), "batches/tx.csv")
	assert.ErrorIs(t, err, ErrInvalidURI)
}

func TestResolver_MalformedS3URI(t *testing.T) {
	r := NewResolver(Config{Provider: ProviderLocal}, nil)

	_, err := r.Open(context.Background(), "s3://bucket-without-key")
	assert.ErrorIs(t, err, ErrInvalidURI)
}

func TestResolver_EmptyURI(t *testing.T) {
	r := NewResolver(Config{}, nil)

	_, err := r.Open(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidURI)
}
