//go:build integration
// +build integration

package test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ledgerlane/sessionkit"
	"github.com/ledgerlane/sessionkit/authapi"
	"github.com/ledgerlane/sessionkit/authapi/authapitest"
	"github.com/ledgerlane/sessionkit/store"
)

// redisMode describes which Redis backend the suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the set of Redis backends to test. miniredis is
// always available; real Redis is used when REDIS_ADDR is set.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				if err := rdb.Ping(context.Background()).Err(); err != nil {
					t.Skipf("redis at %s unreachable: %v", addr, err)
				}
				return rdb, func() { _ = rdb.Close() }
			},
		})
	}
	return modes
}

// namespace isolates one test's keys on a shared real Redis.
func namespace(t *testing.T) string {
	return "it-" + t.Name() + "-" + time.Now().Format("150405.000000000")
}

type fixture struct {
	t   *testing.T
	srv *authapitest.Server
	rdb redis.UniversalClient
	ns  string
}

func newFixture(t *testing.T, rdb redis.UniversalClient) *fixture {
	t.Helper()
	srv := authapitest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddUser(authapi.User{ID: 1, Username: "alice", Email: "alice@example.com", FirstName: "Alice"}, "correct-horse")
	return &fixture{t: t, srv: srv, rdb: rdb, ns: namespace(t)}
}

func (f *fixture) backend() *store.Redis {
	return store.NewRedis(f.rdb, "it", f.ns)
}

func (f *fixture) config() sessionkit.Config {
	cfg := sessionkit.DefaultConfig()
	cfg.API.BaseURL = f.srv.URL()
	cfg.API.Timeout = 5 * time.Second
	cfg.Reconcile.MinInterval = 0
	cfg.Storage.Namespace = f.ns
	return cfg
}

// tab builds and boots one controller; resets are counted on the channel.
func (f *fixture) tab() (*sessionkit.Controller, <-chan sessionkit.ResetReason) {
	f.t.Helper()
	resets := make(chan sessionkit.ResetReason, 8)
	c, err := sessionkit.New().
		WithConfig(f.config()).
		WithBackend(f.backend()).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithEntryPoint(sessionkit.EntryPointFunc(func(_ context.Context, r sessionkit.ResetReason) { resets <- r })).
		Build()
	if err != nil {
		f.t.Fatalf("build: %v", err)
	}
	f.t.Cleanup(c.Close)
	if err := c.Boot(context.Background()); err != nil {
		f.t.Fatalf("boot: %v", err)
	}
	return c, resets
}

func (f *fixture) credentials() *sessionkit.CredentialStore {
	return sessionkit.NewCredentialStore(f.backend(), f.config().Storage)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
