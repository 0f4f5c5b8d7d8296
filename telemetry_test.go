package sessionkit

import (
	"context"
	"slices"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestLoginEmitsEventsAndSpans(t *testing.T) {
	h := newHarness(t)
	h.addAlice()

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	sink := NewChannelSink(32)

	c, _ := h.controller(func(cfg *Config) {
		cfg.Events.Enabled = true
		cfg.Events.BufferSize = 32
		cfg.Events.DropIfFull = false
	}, func(b *Builder) {
		b.WithTracerProvider(tp).WithEventSink(sink)
	})

	ctx := context.Background()
	if err := c.Boot(ctx); err != nil {
		t.Fatalf("boot: %v", err)
	}
	if _, err := c.Login(ctx, "alice", "wrong"); err == nil {
		t.Fatalf("expected failure")
	}
	if _, err := c.Login(ctx, "alice", "correct-horse"); err != nil {
		t.Fatalf("login: %v", err)
	}

	var got []SessionEvent
	deadline := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case ev := <-sink.Events():
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for events, have %+v", got)
		}
	}
	if got[0].Type != EventBoot || got[1].Type != EventLogin || got[1].Success {
		t.Fatalf("unexpected leading events %+v", got[:2])
	}
	if got[2].Type != EventLogin || !got[2].Success || got[2].UserID != "1" || got[2].Instance != c.Instance() {
		t.Fatalf("unexpected login event %+v", got[2])
	}

	var names []string
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
	}
	for _, want := range []string{"sessionkit.Boot", "sessionkit.Login", "HTTP POST"} {
		if !slices.Contains(names, want) {
			t.Fatalf("missing span %q in %v", want, names)
		}
	}
}

func TestMetricsDisabledController(t *testing.T) {
	h := newHarness(t)
	c, _ := h.controller(nil, func(b *Builder) { b.WithMetricsEnabled(false) })
	_ = c.Boot(context.Background())
	if snap := c.MetricsSnapshot(); len(snap.Counters) != 0 {
		t.Fatalf("disabled metrics must be empty, got %v", snap.Counters)
	}
}

func TestBuilderValidation(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatalf("expected missing backend error")
	}

	cfg := DefaultConfig()
	cfg.API.BaseURL = "not a url"
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatalf("expected invalid config error")
	}

	b := New().WithBackend(newHarness(t).backend)
	c, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()
	if _, err := b.Build(); err == nil {
		t.Fatalf("builder must be single use")
	}
}
