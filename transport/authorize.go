package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DefaultScheme is the Authorization scheme the finance backend expects
// (Django REST framework TokenAuthentication).
const DefaultScheme = "Token"

// ErrCredentialUnavailable is returned by the [Authorize] stage when the
// credential source cannot be read. The request is not sent.
var ErrCredentialUnavailable = errors.New("transport: credential unavailable")

// CredentialSource yields the active credential, or "" when none is stored.
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
}

// CredentialFunc adapts a function to [CredentialSource].
type CredentialFunc func(ctx context.Context) (string, error)

// Credential implements [CredentialSource].
func (f CredentialFunc) Credential(ctx context.Context) (string, error) { return f(ctx) }

// Authorize attaches "Authorization: <scheme> <credential>" whenever the
// source holds a credential. Requests made without one go out unchanged. A
// credential pinned with [WithCredential] takes precedence over the source.
func Authorize(source CredentialSource, scheme string) Stage {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			cred, pinned := credentialFromContext(req.Context())
			if !pinned {
				var err error
				cred, err = source.Credential(req.Context())
				if err != nil {
					closeBody(req)
					return nil, fmt.Errorf("%w: %v", ErrCredentialUnavailable, err)
				}
			}
			if cred == "" {
				return next.RoundTrip(req)
			}
			req = cloneRequest(req)
			req.Header.Set("Authorization", scheme+" "+cred)
			return next.RoundTrip(req)
		})
	}
}

// CredentialFromHeader extracts the credential from an Authorization header
// value using scheme.
func CredentialFromHeader(value, scheme string) (string, bool) {
	if scheme == "" {
		scheme = DefaultScheme
	}
	prefix := scheme + " "
	if len(value) <= len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
		return "", false
	}
	cred := strings.TrimSpace(value[len(prefix):])
	if cred == "" {
		return "", false
	}
	return cred, true
}

// closeBody honors the RoundTripper contract of closing the request body even
// when the request is never sent.
func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}
