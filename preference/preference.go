package preference

import (
	"context"
	"fmt"
)

// Preference is a theme choice.
type Preference string

const (
	Light  Preference = "light"
	Dark   Preference = "dark"
	System Preference = "system"
)

// Parse validates s as a [Preference].
func Parse(s string) (Preference, error) {
	switch p := Preference(s); p {
	case Light, Dark, System:
		return p, nil
	}
	return "", fmt.Errorf("preference: unknown theme %q", s)
}

// Mirror receives best-effort copies of explicit choices. authapi.Client
// satisfies it.
type Mirror interface {
	UpdateThemePreference(ctx context.Context, theme string) error
}

// Appearance reports the operating system's dark-mode signal.
type Appearance interface {
	Dark() bool
	// Watch delivers every change of the signal until ctx is done.
	Watch(ctx context.Context) (<-chan bool, error)
}

// State is what a UI needs to render.
type State struct {
	// Choice is the stored device choice, or System when none is stored.
	Choice Preference
	// Explicit is true when Choice came from device storage.
	Explicit bool
	// Dark is the effective appearance.
	Dark bool
}

// StaticAppearance is an [Appearance] that never changes, for hosts without
// an OS signal.
type StaticAppearance bool

// Dark implements [Appearance].
func (a StaticAppearance) Dark() bool { return bool(a) }

// Watch implements [Appearance]; the channel closes when ctx is done.
func (a StaticAppearance) Watch(ctx context.Context) (<-chan bool, error) {
	ch := make(chan bool)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// SignalAppearance is an [Appearance] driven by calls to Set, used when the
// host pushes OS notifications in (and by tests).
type SignalAppearance struct {
	ch   chan bool
	dark chan bool
}

// NewSignalAppearance starts with the given dark value.
func NewSignalAppearance(dark bool) *SignalAppearance {
	a := &SignalAppearance{ch: make(chan bool, 8), dark: make(chan bool, 1)}
	a.dark <- dark
	return a
}

// Dark implements [Appearance].
func (a *SignalAppearance) Dark() bool {
	v := <-a.dark
	a.dark <- v
	return v
}

// Set records a new OS value and forwards it to the watcher.
func (a *SignalAppearance) Set(dark bool) {
	<-a.dark
	a.dark <- dark
	a.ch <- dark
}

// Watch implements [Appearance]. Only one watcher is supported.
func (a *SignalAppearance) Watch(ctx context.Context) (<-chan bool, error) {
	out := make(chan bool)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-a.ch:
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
