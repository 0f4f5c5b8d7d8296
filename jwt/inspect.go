package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by [Inspect] for credentials that are not
// three-segment JSON Web Tokens, such as opaque DRF tokens.
var ErrNotJWT = errors.New("credential is not a JWT")

// ErrMalformed is returned when a credential looks like a JWT but its claims
// cannot be decoded.
var ErrMalformed = errors.New("malformed JWT claims")

// Claims is the subset of registered claims the client cares about.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasExpiry reports whether the token carried an exp claim.
func (c Claims) HasExpiry() bool { return !c.ExpiresAt.IsZero() }

var parser = jwt.NewParser(jwt.WithoutClaimsValidation())

// Inspect decodes the registered claims of credential without verifying its
// signature. The client never holds the signing key; the server remains the
// authority and a forged token is simply rejected there.
func Inspect(credential string) (Claims, error) {
	if strings.Count(credential, ".") != 2 {
		return Claims{}, ErrNotJWT
	}
	var rc jwt.RegisteredClaims
	if _, _, err := parser.ParseUnverified(credential, &rc); err != nil {
		return Claims{}, errors.Join(ErrMalformed, err)
	}
	var out Claims
	out.Subject = rc.Subject
	if rc.IssuedAt != nil {
		out.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		out.ExpiresAt = rc.ExpiresAt.Time
	}
	return out, nil
}

// Expired reports whether credential is a JWT whose exp lies before
// now-leeway. Opaque and undecodable credentials are never expired; only the
// server can judge those.
func Expired(credential string, now time.Time, leeway time.Duration) bool {
	claims, err := Inspect(credential)
	if err != nil || !claims.HasExpiry() {
		return false
	}
	return now.After(claims.ExpiresAt.Add(leeway))
}
