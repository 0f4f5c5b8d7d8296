package sessionkit

import (
	"context"
	"strings"

	"github.com/ledgerlane/sessionkit/authapi"
)

// State is the coarse session state.
type State int

const (
	// StateBooting means durable state has not been resolved yet.
	StateBooting State = iota
	// StateUnauthenticated means no usable credential is held.
	StateUnauthenticated
	// StateAuthenticated means a credential and identity are held.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateBooting:
		return "booting"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// Identity is the signed-in user's profile as last known to the client.
type Identity struct {
	ID                 int64  `json:"id"`
	Username           string `json:"username"`
	Email              string `json:"email"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	PhoneNumber        string `json:"phone_number"`
	ProfilePicture     string `json:"profile_picture"`
	ThemePreference    string `json:"theme_preference"`
	CurrencyPreference string `json:"currency_preference"`
	EmailNotifications bool   `json:"email_notifications"`
}

// DisplayName is "First Last" when either is set, else the username.
func (i Identity) DisplayName() string {
	name := strings.TrimSpace(i.FirstName + " " + i.LastName)
	if name != "" {
		return name
	}
	return i.Username
}

func identityFromUser(u authapi.User) Identity {
	return Identity{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		PhoneNumber:        u.PhoneNumber,
		ProfilePicture:     u.ProfilePicture,
		ThemePreference:    u.ThemePreference,
		CurrencyPreference: u.CurrencyPreference,
		EmailNotifications: u.EmailNotifications,
	}
}

// IdentityPatch is a shallow partial update. Nil fields are left unchanged.
type IdentityPatch struct {
	Username           *string
	Email              *string
	FirstName          *string
	LastName           *string
	PhoneNumber        *string
	ProfilePicture     *string
	ThemePreference    *string
	CurrencyPreference *string
	EmailNotifications *bool
}

// Apply returns id with the patch's non-nil fields replaced.
func (p IdentityPatch) Apply(id Identity) Identity {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&id.Username, p.Username)
	set(&id.Email, p.Email)
	set(&id.FirstName, p.FirstName)
	set(&id.LastName, p.LastName)
	set(&id.PhoneNumber, p.PhoneNumber)
	set(&id.ProfilePicture, p.ProfilePicture)
	set(&id.ThemePreference, p.ThemePreference)
	set(&id.CurrencyPreference, p.CurrencyPreference)
	if p.EmailNotifications != nil {
		id.EmailNotifications = *p.EmailNotifications
	}
	return id
}

// profileUpdate converts the patch to the server's form. The picture is not
// part of it; it travels as a multipart upload.
func (p IdentityPatch) profileUpdate() authapi.ProfileUpdate {
	return authapi.ProfileUpdate{
		Username:           p.Username,
		Email:              p.Email,
		FirstName:          p.FirstName,
		LastName:           p.LastName,
		PhoneNumber:        p.PhoneNumber,
		ThemePreference:    p.ThemePreference,
		CurrencyPreference: p.CurrencyPreference,
		EmailNotifications: p.EmailNotifications,
	}
}

// View is an immutable snapshot of the session handed to readers.
type View struct {
	State State
	// Identity is nil unless State is StateAuthenticated.
	Identity *Identity
	// Reconciling is set while a background profile fetch is in flight.
	Reconciling bool
	// Version increases with every visible change.
	Version uint64
}

// Loading reports whether the UI should show a loading state.
func (v View) Loading() bool { return v.State == StateBooting }

// Authenticated reports whether a user is signed in.
func (v View) Authenticated() bool { return v.State == StateAuthenticated }

// ResetReason says why the application is being sent back to its entry point.
type ResetReason int

const (
	// ResetLogout follows an explicit logout.
	ResetLogout ResetReason = iota
	// ResetAuthorizationFailure follows a server rejection of the credential.
	ResetAuthorizationFailure
	// ResetRemoteLogout follows a logout performed by another instance
	// sharing the store.
	ResetRemoteLogout
)

func (r ResetReason) String() string {
	switch r {
	case ResetLogout:
		return "logout"
	case ResetAuthorizationFailure:
		return "authorization_failure"
	case ResetRemoteLogout:
		return "remote_logout"
	}
	return "unknown"
}

// EntryPoint is the host application's "go back to the start" hook, the
// client analogue of redirecting to the login page.
type EntryPoint interface {
	Reset(ctx context.Context, reason ResetReason)
}

// EntryPointFunc adapts a function to [EntryPoint].
type EntryPointFunc func(ctx context.Context, reason ResetReason)

// Reset implements [EntryPoint].
func (f EntryPointFunc) Reset(ctx context.Context, reason ResetReason) { f(ctx, reason) }

type noopEntryPoint struct{}

func (noopEntryPoint) Reset(context.Context, ResetReason) {}
