package sessionkit

import "errors"

var (
	// ErrInvalidCredentials is wrapped by a [*LoginError] when the server
	// rejected the submitted identifier or secret.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotAuthenticated is returned by operations that need a signed-in
	// user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotBooted is returned when an operation needs Boot to have run.
	ErrNotBooted = errors.New("controller not booted")
	// ErrAlreadyBooted is returned by a second Boot call.
	ErrAlreadyBooted = errors.New("controller already booted")
	// ErrSuperseded is returned when a newer write landed first and this
	// one was discarded.
	ErrSuperseded = errors.New("superseded by a newer session change")
	// ErrRefreshThrottled is returned by Refresh inside the minimum interval.
	ErrRefreshThrottled = errors.New("refresh throttled")
	// ErrStoreUnavailable wraps failures of the durable store.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("controller closed")
)

const (
	loginFallbackMessage    = "Failed to login. Please check your credentials."
	registerFallbackMessage = "Failed to register. Please check your details."
)

// LoginError is returned by Login and Register. Message is safe to show to
// the user.
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string { return e.Message }

func (e *LoginError) Unwrap() error { return e.Err }
