package preference

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ledgerlane/sessionkit/store"
)

// DefaultKey is the device storage key the web client used.
const DefaultKey = "theme"

// Option configures a [Synchronizer].
type Option func(*Synchronizer)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Synchronizer) {
		if key != "" {
			s.key = key
		}
	}
}

// WithMirror sets the server mirror.
func WithMirror(m Mirror) Option { return func(s *Synchronizer) { s.mirror = m } }

// WithAppearance sets the OS signal source.
func WithAppearance(a Appearance) Option { return func(s *Synchronizer) { s.appearance = a } }

// WithLogger sets the logger used for swallowed mirror failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// Synchronizer owns the theme choice. All methods are safe for concurrent
// use.
type Synchronizer struct {
	backend    store.Backend
	key        string
	mirror     Mirror
	appearance Appearance
	logger     *slog.Logger

	// writeMu serializes storage writes with the in-memory update.
	writeMu sync.Mutex

	mu     sync.Mutex
	choice Preference // "" when nothing is stored
	osDark bool
	loaded bool

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// New returns a Synchronizer persisting to backend.
func New(backend store.Backend, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		backend:    backend,
		key:        DefaultKey,
		appearance: StaticAppearance(false),
		logger:     slog.Default(),
		subs:       make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.osDark = s.appearance.Dark()
	return s
}

// Load reads the stored choice. An unreadable or unknown value is treated as
// no choice. Calling it again picks up writes made by another instance and
// notifies subscribers when the state changed.
func (s *Synchronizer) Load(ctx context.Context) error {
	s.writeMu.Lock()
	vals, err := s.backend.Get(ctx, s.key)
	s.mu.Lock()
	before, wasLoaded := s.stateLocked(), s.loaded
	s.loaded = true
	s.choice = ""
	if err == nil && vals[0] != nil {
		if p, perr := Parse(string(vals[0])); perr == nil {
			s.choice = p
		}
	}
	after := s.stateLocked()
	s.mu.Unlock()
	s.writeMu.Unlock()

	if err != nil {
		return fmt.Errorf("preference: load: %w", err)
	}
	if wasLoaded && before != after {
		s.notify(after)
	}
	return nil
}

// State returns the current state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Synchronizer) stateLocked() State {
	st := State{Choice: System, Dark: s.osDark}
	if s.choice != "" {
		st.Choice = s.choice
		st.Explicit = true
		switch s.choice {
		case Light:
			st.Dark = false
		case Dark:
			st.Dark = true
		}
	}
	return st
}

// Current returns the effective choice (System when none is stored).
func (s *Synchronizer) Current() Preference { return s.State().Choice }

// Dark reports the effective appearance.
func (s *Synchronizer) Dark() bool { return s.State().Dark }

// Set records an explicit choice on the device, then mirrors it to the
// server. Mirror failures are logged and never returned: the device choice
// already took effect.
func (s *Synchronizer) Set(ctx context.Context, p Preference) error {
	if _, err := Parse(string(p)); err != nil {
		return err
	}
	s.writeMu.Lock()
	if err := s.backend.Put(ctx, store.Entry{Key: s.key, Value: []byte(p)}); err != nil {
		s.writeMu.Unlock()
		return fmt.Errorf("preference: save: %w", err)
	}
	s.mu.Lock()
	s.choice = p
	st := s.stateLocked()
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.notify(st)
	s.mirrorChoice(ctx, p)
	return nil
}

// Toggle flips the effective appearance and stores the result as an
// explicit choice.
func (s *Synchronizer) Toggle(ctx context.Context) error {
	if s.Dark() {
		return s.Set(ctx, Light)
	}
	return s.Set(ctx, Dark)
}

// Clear forgets the device choice so the OS signal applies again.
func (s *Synchronizer) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.backend.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("preference: clear: %w", err)
	}
	s.mu.Lock()
	s.choice = ""
	st := s.stateLocked()
	s.mu.Unlock()
	s.notify(st)
	return nil
}

// AdoptRemote applies a server-side preference, but only when this device
// has no choice of its own. It reports whether the value was adopted. The
// adopted value is stored locally without being mirrored back.
func (s *Synchronizer) AdoptRemote(ctx context.Context, remote string) (bool, error) {
	p, err := Parse(remote)
	if err != nil {
		return false, err
	}
	s.writeMu.Lock()
	s.mu.Lock()
	skip := s.choice != "" || !s.loaded
	s.mu.Unlock()
	if skip {
		s.writeMu.Unlock()
		return false, nil
	}
	if err := s.backend.Put(ctx, store.Entry{Key: s.key, Value: []byte(p)}); err != nil {
		s.writeMu.Unlock()
		return false, fmt.Errorf("preference: save: %w", err)
	}
	s.mu.Lock()
	s.choice = p
	st := s.stateLocked()
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.notify(st)
	return true, nil
}

// Watch follows the OS appearance signal until ctx is done. A change applies
// only while no explicit light/dark choice is stored; with a stored "system"
// choice the change is also mirrored to the server.
func (s *Synchronizer) Watch(ctx context.Context) error {
	ch, err := s.appearance.Watch(ctx)
	if err != nil {
		return fmt.Errorf("preference: watch appearance: %w", err)
	}
	go func() {
		for dark := range ch {
			s.applyOS(ctx, dark)
		}
	}()
	return nil
}

func (s *Synchronizer) applyOS(ctx context.Context, dark bool) {
	s.mu.Lock()
	s.osDark = dark
	choice := s.choice
	st := s.stateLocked()
	s.mu.Unlock()

	if choice == Light || choice == Dark {
		return
	}
	s.notify(st)
	if choice == System {
		s.mirrorChoice(ctx, System)
	}
}

func (s *Synchronizer) mirrorChoice(ctx context.Context, p Preference) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.UpdateThemePreference(ctx, string(p)); err != nil {
		s.logger.WarnContext(ctx, "theme preference mirror failed",
			slog.String("theme", string(p)), slog.Any("error", err))
	}
}

// Subscribe registers fn for state changes and returns a function that
// removes it.
func (s *Synchronizer) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Synchronizer) notify(st State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}
