//go:build integration
// +build integration

package test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ledgerlane/sessionkit"
	"github.com/ledgerlane/sessionkit/store"
)

// cmdCounter is a go-redis Hook that counts Redis round-trips: single
// commands and pipeline (including MULTI/EXEC) calls.
type cmdCounter struct {
	singles   atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.singles.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.pipelines.Add(1)
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset() {
	h.singles.Store(0)
	h.pipelines.Store(0)
}

func (h *cmdCounter) RoundTrips() int64 { return h.singles.Load() + h.pipelines.Load() }

// newCountedCredentials returns a CredentialStore on miniredis with a
// counter installed after connection warmup.
func newCountedCredentials(t *testing.T) (*sessionkit.CredentialStore, *cmdCounter) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	// go-redis may issue handshake commands on first use; keep them out
	// of the budget.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("warmup ping: %v", err)
	}
	counter := &cmdCounter{}
	rdb.AddHook(counter)

	cs := sessionkit.NewCredentialStore(store.NewRedis(rdb, "budget", "default"), sessionkit.DefaultConfig().Storage)
	return cs, counter
}

func TestCredentialStoreRedisBudget(t *testing.T) {
	cs, counter := newCountedCredentials(t)
	ctx := context.Background()
	id := &sessionkit.Identity{ID: 1, Username: "alice"}

	// Load the DeleteIf script once so EVALSHA hits.
	if _, err := cs.ClearIf(ctx, "warmup"); err != nil {
		t.Fatalf("warmup ClearIf: %v", err)
	}

	steps := []struct {
		name   string
		budget int64
		run    func() error
	}{
		{"Save", 1, func() error { return cs.Save(ctx, "tok-1", id) }},
		{"Load", 1, func() error { _, err := cs.Load(ctx); return err }},
		{"Credential", 1, func() error { _, err := cs.Credential(ctx); return err }},
		{"SaveIdentity", 2, func() error { _, err := cs.SaveIdentity(ctx, "tok-1", *id); return err }},
		{"ClearIf", 1, func() error { _, err := cs.ClearIf(ctx, "tok-1"); return err }},
		{"Clear", 1, func() error { return cs.Clear(ctx) }},
	}
	for _, step := range steps {
		counter.Reset()
		if err := step.run(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if got := counter.RoundTrips(); got > step.budget {
			t.Errorf("%s used %d round-trips, budget %d", step.name, got, step.budget)
		}
	}
}
