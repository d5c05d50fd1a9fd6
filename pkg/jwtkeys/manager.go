package jwtkeys

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

const (
	defaultRotationInterval = 30 * 24 * time.Hour
	defaultGracePeriod      = 30 * 24 * time.Hour

	// secretLength is the HMAC key size in bytes (384 bits).
	secretLength = 48
)

var (
	// ErrKeyNotFound reports an unknown, revoked, or expired key ID.
	ErrKeyNotFound = errors.New("jwtkeys: signing key not found")

	errNoActiveKey = errors.New("jwtkeys: no active signing key available")
	errReadOnly    = errors.New("jwtkeys: manager is read-only")
)

// SigningKey is one HMAC signing key plus its rotation metadata. Secret is
// base64 encoded so the key set survives JSON round-trips through any Store.
type SigningKey struct {
	ID        string    `json:"id"`
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked,omitempty"`
}

// SecretBytes decodes the raw key material.
func (k *SigningKey) SecretBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(k.Secret)
}

// Clone returns a copy so callers cannot mutate the manager's key set.
func (k *SigningKey) Clone() *SigningKey {
	if k == nil {
		return nil
	}
	cp := *k
	return &cp
}

// Store persists the signing key set across restarts.
type Store interface {
	Load(ctx context.Context) ([]SigningKey, error)
	Save(ctx context.Context, keys []SigningKey) error
}

// KeyProvider resolves verification keys by key ID. Implemented by Manager
// for rotating deployments and by StaticProvider for fixed-secret ones.
type KeyProvider interface {
	ResolveKey(kid string) ([]byte, error)
	LegacyKey() []byte
}

// Config configures a Manager.
type Config struct {
	// Store persists keys. When nil, KeyFilePath selects a local file store
	// and an in-memory store is the final fallback.
	Store       Store
	KeyFilePath string

	// RotationInterval is how long a key signs new tokens; GracePeriod is
	// how long it remains valid for verification afterwards. Both default
	// to thirty days.
	RotationInterval time.Duration
	GracePeriod      time.Duration

	// LegacySecret seeds the first key so tokens signed before rotation was
	// enabled keep verifying.
	LegacySecret string

	// ReadOnly managers verify tokens but never generate or persist keys.
	ReadOnly bool
}

// Manager issues and rotates HMAC signing keys. The newest non-revoked key
// signs new tokens; older keys stay resolvable until their grace period ends.
type Manager struct {
	mu               sync.RWMutex
	store            Store
	rotationInterval time.Duration
	gracePeriod      time.Duration
	legacySecret     string
	readOnly         bool

	keys     map[string]SigningKey
	activeID string
}

// NewManager loads the persisted key set and, unless read-only, seeds an
// initial key when the store is empty.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	store := cfg.Store
	if store == nil && cfg.KeyFilePath != "" {
		store = newFileStore(cfg.KeyFilePath)
	}
	if store == nil {
		store = newMemoryStore()
	}

	rotation := cfg.RotationInterval
	if rotation <= 0 {
		rotation = defaultRotationInterval
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}

	m := &Manager{
		store:            store,
		rotationInterval: rotation,
		gracePeriod:      grace,
		legacySecret:     cfg.LegacySecret,
		readOnly:         cfg.ReadOnly,
		keys:             make(map[string]SigningKey),
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing keys: %w", err)
	}
	for _, key := range loaded {
		m.keys[key.ID] = key
	}
	m.activeID = m.newestNonRevokedLocked()

	if m.activeID == "" && !m.readOnly {
		if err := m.rotateLocked(ctx, time.Now().UTC()); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// CurrentSigningKey returns a copy of the key new tokens are signed with.
func (m *Manager) CurrentSigningKey() (*SigningKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.activeID == "" {
		return nil, errNoActiveKey
	}
	key, ok := m.keys[m.activeID]
	if !ok {
		return nil, errNoActiveKey
	}
	return key.Clone(), nil
}

// ResolveKey returns the key material for a token's kid header. Unknown,
// revoked, and expired keys all report ErrKeyNotFound.
func (m *Manager) ResolveKey(kid string) ([]byte, error) {
	if kid == "" {
		return nil, ErrKeyNotFound
	}

	m.mu.RLock()
	key, ok := m.keys[kid]
	m.mu.RUnlock()

	if !ok || key.Revoked {
		return nil, ErrKeyNotFound
	}
	if !key.ExpiresAt.IsZero() && time.Now().After(key.ExpiresAt) {
		return nil, ErrKeyNotFound
	}
	return key.SecretBytes()
}

// LegacyKey returns the pre-rotation static secret, if one was configured.
func (m *Manager) LegacyKey() []byte {
	if m.legacySecret == "" {
		return nil
	}
	return []byte(m.legacySecret)
}

// EnsureRotation prunes keys past their grace period and generates a new
// signing key once the active one is older than the rotation interval.
// Read-only managers instead refresh the key set from the store, picking up
// rotations performed elsewhere.
func (m *Manager) EnsureRotation(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()

	if m.readOnly {
		return m.reloadLocked(ctx)
	}

	changed := m.pruneLocked(now)

	rotate := m.activeID == ""
	if !rotate {
		active, ok := m.keys[m.activeID]
		rotate = !ok || now.Sub(active.CreatedAt) >= m.rotationInterval
	}

	if rotate {
		return m.rotateLocked(ctx, now)
	}
	if changed {
		return m.persistLocked(ctx)
	}
	return nil
}

// rotateLocked creates and activates a new key, then persists the set.
func (m *Manager) rotateLocked(ctx context.Context, now time.Time) error {
	var secret []byte
	if m.legacySecret != "" && len(m.keys) == 0 {
		// The first key carries the legacy secret so existing tokens verify.
		secret = []byte(m.legacySecret)
	} else {
		var err error
		secret, err = generateSecret()
		if err != nil {
			return err
		}
	}

	key := SigningKey{
		ID:        generateKeyID(now),
		Secret:    base64.StdEncoding.EncodeToString(secret),
		CreatedAt: now,
		ExpiresAt: now.Add(m.rotationInterval + m.gracePeriod),
	}

	m.keys[key.ID] = key
	m.activeID = key.ID
	return m.persistLocked(ctx)
}

// pruneLocked drops keys past their grace period. Reports whether the key
// set changed.
func (m *Manager) pruneLocked(now time.Time) bool {
	changed := false
	for id, key := range m.keys {
		if !key.ExpiresAt.IsZero() && now.After(key.ExpiresAt) {
			delete(m.keys, id)
			if id == m.activeID {
				m.activeID = ""
			}
			changed = true
		}
	}
	return changed
}

// reloadLocked replaces the in-memory key set with the store's contents.
func (m *Manager) reloadLocked(ctx context.Context) error {
	loaded, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload signing keys: %w", err)
	}

	keys := make(map[string]SigningKey, len(loaded))
	for _, key := range loaded {
		keys[key.ID] = key
	}
	m.keys = keys
	m.activeID = m.newestNonRevokedLocked()
	return nil
}

func (m *Manager) persistLocked(ctx context.Context) error {
	if m.readOnly {
		return errReadOnly
	}

	keys := make([]SigningKey, 0, len(m.keys))
	for _, key := range m.keys {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.Before(keys[j].CreatedAt) })

	if err := m.store.Save(ctx, keys); err != nil {
		return fmt.Errorf("failed to persist signing keys: %w", err)
	}
	return nil
}

func (m *Manager) newestNonRevokedLocked() string {
	var newestID string
	var newestAt time.Time
	for id, key := range m.keys {
		if key.Revoked {
			continue
		}
		if newestID == "" || key.CreatedAt.After(newestAt) {
			newestID = id
			newestAt = key.CreatedAt
		}
	}
	return newestID
}

func generateKeyID(now time.Time) string {
	return "kid_" + strconv.FormatInt(now.UnixNano(), 36)
}

func generateSecret() ([]byte, error) {
	secret := make([]byte, secretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return secret, nil
}

// StaticProvider is a KeyProvider backed by one fixed secret, for
// deployments that have not enabled key rotation.
type StaticProvider struct {
	secret []byte
}

// NewStaticProvider creates a provider that resolves every kid to the same
// secret.
func NewStaticProvider(secret string) *StaticProvider {
	return &StaticProvider{secret: []byte(secret)}
}

// ResolveKey ignores the kid and returns the static secret.
func (p *StaticProvider) ResolveKey(string) ([]byte, error) {
	if len(p.secret) == 0 {
		return nil, ErrKeyNotFound
	}
	return p.secret, nil
}

// LegacyKey returns the static secret, or nil when unset.
func (p *StaticProvider) LegacyKey() []byte {
	if len(p.secret) == 0 {
		return nil
	}
	return p.secret
}

// memoryStore is the fallback Store when no persistence is configured.
// Keys do not survive process restarts.
type memoryStore struct {
	mu   sync.Mutex
	keys []SigningKey
}

func newMemoryStore() *memoryStore {
	return &memoryStore{}
}

func (s *memoryStore) Load(_ context.Context) ([]SigningKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]SigningKey, len(s.keys))
	copy(cp, s.keys)
	return cp, nil
}

func (s *memoryStore) Save(_ context.Context, keys []SigningKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys = make([]SigningKey, len(keys))
	copy(s.keys, keys)
	return nil
}
