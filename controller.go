package sessionkit

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ledgerlane/sessionkit/authapi"
	"github.com/ledgerlane/sessionkit/preference"
	"github.com/ledgerlane/sessionkit/store"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Controller owns the session: who is signed in, with which credential, and
// what the application currently shows about them. Build one with [New].
//
// All methods are safe for concurrent use. Commits are serialized by an
// internal write lock; readers of [Controller.View] never wait on I/O.
type Controller struct {
	cfg      Config
	logger   *slog.Logger
	tracer   trace.Tracer
	backend  store.Backend
	creds    *CredentialStore
	api      *authapi.Client
	http     *http.Client
	prefs    *preference.Synchronizer
	entry    EntryPoint
	metrics  *Metrics
	events   *eventDispatcher
	instance string
	now      func() time.Time

	limiter   *rate.Limiter
	reconcile singleflight.Group

	// writeMu serializes persist+publish. appliedSeq is guarded by it.
	writeMu    sync.Mutex
	seq        atomic.Uint64
	appliedSeq uint64

	mu          sync.RWMutex
	state       State
	credential  string
	identity    *Identity
	reconciling int
	version     uint64

	notifyMu     sync.Mutex
	lastNotified uint64
	subMu        sync.Mutex
	subs         map[int]func(View)
	nextSub      int

	booted    atomic.Bool
	closed    atomic.Bool
	bgCtx     context.Context
	cancel    context.CancelFunc
	bg        sync.WaitGroup
	closeOnce sync.Once
}

// View returns the current session snapshot.
func (c *Controller) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	v := View{
		State:       c.state,
		Reconciling: c.reconciling > 0,
		Version:     c.version,
	}
	if c.identity != nil {
		id := *c.identity
		v.Identity = &id
	}
	return v
}

// Subscribe registers fn to receive every new View, in version order. fn runs
// synchronously on the goroutine that made the change and must not call
// mutating Controller methods. The returned function unsubscribes.
func (c *Controller) Subscribe(fn func(View)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	v := c.View()
	if v.Version <= c.lastNotified {
		return
	}
	c.lastNotified = v.Version

	c.subMu.Lock()
	fns := make([]func(View), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// HTTPClient returns the client every domain request must go through. It
// attaches the credential and tears the session down on a 401.
func (c *Controller) HTTPClient() *http.Client { return c.http }

// API returns the auth service client, sharing [Controller.HTTPClient].
func (c *Controller) API() *authapi.Client { return c.api }

// Preferences returns the theme synchronizer bound to the same store.
func (c *Controller) Preferences() *preference.Synchronizer { return c.prefs }

// Store returns the credential store.
func (c *Controller) Store() *CredentialStore { return c.creds }

// Instance is the id this controller tags its store writes with.
func (c *Controller) Instance() string { return c.instance }

// Close stops the store watcher, waits for background reconciliations and
// flushes pending events. The controller cannot be booted afterwards.
func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		c.bg.Wait()
		c.events.Close()
	})
}

func (c *Controller) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// EventsDropped reports events shed because the dispatcher buffer was full.
func (c *Controller) EventsDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.events.Dropped()
}

func (c *Controller) ready() error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.booted.Load() {
		return ErrNotBooted
	}
	return nil
}

func (c *Controller) nextSeq() uint64 {
	return c.seq.Add(1)
}

// session reads the active credential and identity together.
func (c *Controller) session() (State, string, *Identity) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return c.state, c.credential, nil
	}
	id := *c.identity
	return c.state, c.credential, &id
}

// setLocked replaces the visible session. c.mu must be held.
func (c *Controller) setLocked(st State, credential string, identity *Identity) {
	c.state = st
	c.credential = credential
	c.identity = identity
	c.version++
}

func (c *Controller) setReconciling(delta int) {
	c.mu.Lock()
	c.reconciling += delta
	c.version++
	c.mu.Unlock()
	c.notify()
}
