package sessionkit

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ledgerlane/sessionkit/store"
	"github.com/redis/go-redis/v9"
)

func sampleIdentity() Identity {
	return Identity{
		ID:                 7,
		Username:           "alice",
		Email:              "alice@example.com",
		FirstName:          "Alice",
		ThemePreference:    "dark",
		CurrencyPreference: "EUR",
		EmailNotifications: true,
	}
}

func storeBackends(t *testing.T) map[string]store.Backend {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	file, err := store.NewFile(t.TempDir(), "test")
	if err != nil {
		t.Fatalf("file backend: %v", err)
	}
	return map[string]store.Backend{
		"memory": store.NewMemory(),
		"file":   file,
		"redis":  store.NewRedis(rdb, "sk", "test"),
	}
}

func TestCredentialStoreRoundTrip(t *testing.T) {
	for name, b := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewCredentialStore(b, DefaultConfig().Storage)
			id := sampleIdentity()

			if err := s.Save(ctx, "tok1", &id); err != nil {
				t.Fatalf("save: %v", err)
			}
			rec, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if rec.Credential != "tok1" || rec.Identity == nil || *rec.Identity != id {
				t.Fatalf("round trip mismatch: %+v", rec)
			}
			if rec.SavedAt.IsZero() {
				t.Fatalf("expected saved_at to be recorded")
			}

			if err := s.Clear(ctx); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if err := s.Clear(ctx); err != nil {
				t.Fatalf("second clear: %v", err)
			}
			rec, _ = s.Load(ctx)
			if rec.Credential != "" || rec.Identity != nil {
				t.Fatalf("expected empty store, got %+v", rec)
			}
		})
	}
}

func TestCredentialStoreCredentialOnly(t *testing.T) {
	ctx := context.Background()
	s := NewCredentialStore(store.NewMemory(), StorageConfig{})
	id := sampleIdentity()
	_ = s.Save(ctx, "tok1", &id)

	if err := s.Save(ctx, "tok2", nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, _ := s.Load(ctx)
	if rec.Credential != "tok2" || rec.Identity != nil || rec.SnapshotCorrupt {
		t.Fatalf("previous snapshot must not survive: %+v", rec)
	}
	if err := s.Save(ctx, "", nil); err == nil {
		t.Fatalf("expected empty credential to be refused")
	}
}

func TestCredentialStoreCorruptSnapshotDegrades(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "{oops"},
		{name: "array", raw: "[1,2]"},
		{name: "unknown version", raw: `{"v":9,"identity":{"id":1,"username":"a"}}`},
		{name: "envelope without identity", raw: `{"v":1}`},
		{name: "empty object", raw: `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b := store.NewMemory()
			cfg := DefaultConfig().Storage
			_ = b.Put(ctx,
				store.Entry{Key: cfg.CredentialKey, Value: []byte("tok1")},
				store.Entry{Key: cfg.IdentityKey, Value: []byte(tt.raw)},
			)
			rec, err := NewCredentialStore(b, cfg).Load(ctx)
			if err != nil {
				t.Fatalf("corrupt snapshot must not fail load: %v", err)
			}
			if rec.Credential != "tok1" || rec.Identity != nil || !rec.SnapshotCorrupt {
				t.Fatalf("expected credential-only degraded record, got %+v", rec)
			}
		})
	}
}

func TestCredentialStoreReadsLegacySnapshot(t *testing.T) {
	ctx := context.Background()
	b := store.NewMemory()
	cfg := DefaultConfig().Storage
	legacy := `{"id":3,"username":"bob","email":"bob@example.com","first_name":"Bob","last_name":"","theme_preference":"light","currency_preference":"USD","email_notifications":false}`
	_ = b.Put(ctx,
		store.Entry{Key: cfg.CredentialKey, Value: []byte("tok9")},
		store.Entry{Key: cfg.IdentityKey, Value: []byte(legacy)},
	)

	rec, err := NewCredentialStore(b, cfg).Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.Identity == nil || rec.Identity.Username != "bob" || rec.Identity.ThemePreference != "light" {
		t.Fatalf("legacy snapshot not migrated: %+v", rec)
	}
	if !rec.SavedAt.IsZero() {
		t.Fatalf("legacy snapshot has no saved_at")
	}
}

func TestCredentialStoreOrphanedSnapshot(t *testing.T) {
	ctx := context.Background()
	b := store.NewMemory()
	cfg := DefaultConfig().Storage
	_ = b.Put(ctx, store.Entry{Key: cfg.IdentityKey, Value: []byte(`{"id":1,"username":"x"}`)})

	rec, _ := NewCredentialStore(b, cfg).Load(ctx)
	if rec.Identity != nil || !rec.Orphaned {
		t.Fatalf("identity without credential must not load: %+v", rec)
	}
}

func TestCredentialStoreClearIfGuardsNewerLogin(t *testing.T) {
	for name, b := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewCredentialStore(b, DefaultConfig().Storage)
			id := sampleIdentity()
			_ = s.Save(ctx, "new", &id)

			cleared, err := s.ClearIf(ctx, "old")
			if err != nil || cleared {
				t.Fatalf("stale clear must not apply: %v %v", cleared, err)
			}
			if cred, _ := s.Credential(ctx); cred != "new" {
				t.Fatalf("newer login wiped, got %q", cred)
			}

			cleared, err = s.ClearIf(ctx, "new")
			if err != nil || !cleared {
				t.Fatalf("expected clear, got %v %v", cleared, err)
			}
			cleared, _ = s.ClearIf(ctx, "new")
			if cleared {
				t.Fatalf("second clear must report false")
			}
		})
	}
}

func TestCredentialStoreSaveIdentityRequiresCredential(t *testing.T) {
	ctx := context.Background()
	s := NewCredentialStore(store.NewMemory(), DefaultConfig().Storage)
	id := sampleIdentity()

	ok, err := s.SaveIdentity(ctx, "tok1", id)
	if err != nil || ok {
		t.Fatalf("no credential stored, expected no write: %v %v", ok, err)
	}
	rec, _ := s.Load(ctx)
	if rec.Orphaned {
		t.Fatalf("SaveIdentity must not write without the credential")
	}

	_ = s.Save(ctx, "tok1", nil)
	id.FirstName = "Alicia"
	ok, err = s.SaveIdentity(ctx, "tok1", id)
	if err != nil || !ok {
		t.Fatalf("expected write, got %v %v", ok, err)
	}
	rec, _ = s.Load(ctx)
	if rec.Identity == nil || rec.Identity.FirstName != "Alicia" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestCredentialStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	s := NewCredentialStore(store.NewRedis(rdb, "", ""), DefaultConfig().Storage)
	mr.Close()

	_, err := s.Load(context.Background())
	if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected wrapped unavailable error, got %v", err)
	}
}
