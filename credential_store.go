package sessionkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerlane/sessionkit/store"
)

// Record is what a [CredentialStore] durably holds.
type Record struct {
	// Credential is empty when nobody is signed in.
	Credential string
	// Identity is the persisted profile, nil when absent or unreadable.
	Identity *Identity
	// SavedAt is when Identity was written; zero for legacy snapshots.
	SavedAt time.Time
	// SnapshotCorrupt is set when a profile was stored but could not be
	// decoded.
	SnapshotCorrupt bool
	// Orphaned is set when a profile is stored without a credential.
	Orphaned bool
}

// CredentialStore persists the credential and the identity snapshot as two
// independently keyed entries of one backend.
type CredentialStore struct {
	backend store.Backend
	credKey string
	idKey   string
	writer  string
	now     func() time.Time
}

// NewCredentialStore returns a store using the keys in cfg.
func NewCredentialStore(backend store.Backend, cfg StorageConfig) *CredentialStore {
	return newCredentialStore(backend, cfg, "")
}

func newCredentialStore(backend store.Backend, cfg StorageConfig, writer string) *CredentialStore {
	def := defaultConfig().Storage
	if cfg.CredentialKey == "" {
		cfg.CredentialKey = def.CredentialKey
	}
	if cfg.IdentityKey == "" {
		cfg.IdentityKey = def.IdentityKey
	}
	return &CredentialStore{
		backend: backend,
		credKey: cfg.CredentialKey,
		idKey:   cfg.IdentityKey,
		writer:  writer,
		now:     time.Now,
	}
}

func (s *CredentialStore) tag(ctx context.Context) context.Context {
	if s.writer == "" {
		return ctx
	}
	return store.WithWriter(ctx, s.writer)
}

// Save writes the credential and identity together, replacing whatever was
// stored. A nil identity stores the credential alone.
func (s *CredentialStore) Save(ctx context.Context, credential string, identity *Identity) error {
	if credential == "" {
		return errors.New("sessionkit: empty credential")
	}

	var snap []byte
	if identity != nil {
		var err error
		snap, err = encodeSnapshot(*identity, s.now())
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
	}

	// An empty snapshot value reads as absent, so the pair is still
	// replaced in a single write.
	err := s.backend.Put(s.tag(ctx),
		store.Entry{Key: s.credKey, Value: []byte(credential)},
		store.Entry{Key: s.idKey, Value: snap},
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// SaveIdentity replaces the snapshot while the stored credential is still
// credential. It reports false, and writes nothing, when it is not. The
// credential entry itself is never rewritten, so a concurrent logout by
// another writer cannot be undone by it.
func (s *CredentialStore) SaveIdentity(ctx context.Context, credential string, identity Identity) (bool, error) {
	current, err := s.Credential(ctx)
	if err != nil {
		return false, err
	}
	if current == "" || current != credential {
		return false, nil
	}
	snap, err := encodeSnapshot(identity, s.now())
	if err != nil {
		return false, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.backend.Put(s.tag(ctx), store.Entry{Key: s.idKey, Value: snap}); err != nil {
		return false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return true, nil
}

// Load reads both entries in one snapshot. Undecodable snapshots never fail
// the load: they come back as a nil Identity with SnapshotCorrupt set.
func (s *CredentialStore) Load(ctx context.Context) (Record, error) {
	vals, err := s.backend.Get(ctx, s.credKey, s.idKey)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	rec := Record{Credential: string(vals[0])}
	if len(vals[1]) == 0 {
		return rec, nil
	}
	if rec.Credential == "" {
		rec.Orphaned = true
		return rec, nil
	}

	id, savedAt, err := decodeSnapshot(vals[1])
	if err != nil {
		rec.SnapshotCorrupt = true
		return rec, nil
	}
	rec.Identity = &id
	rec.SavedAt = savedAt
	return rec, nil
}

// Credential returns the stored credential, or "" when there is none.
func (s *CredentialStore) Credential(ctx context.Context) (string, error) {
	vals, err := s.backend.Get(ctx, s.credKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return string(vals[0]), nil
}

// Clear removes both entries. Clearing an empty store is not an error.
func (s *CredentialStore) Clear(ctx context.Context) error {
	if err := s.backend.Delete(s.tag(ctx), s.credKey, s.idKey); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// ClearIf removes both entries only while the stored credential equals
// credential, so tearing down a rejected credential never wipes a newer
// login.
func (s *CredentialStore) ClearIf(ctx context.Context, credential string) (bool, error) {
	if credential == "" {
		return false, nil
	}
	ok, err := s.backend.DeleteIf(s.tag(ctx), s.credKey, []byte(credential), s.credKey, s.idKey)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return ok, nil
}

func (s *CredentialStore) owns(key string) bool {
	return key == s.credKey || key == s.idKey
}
