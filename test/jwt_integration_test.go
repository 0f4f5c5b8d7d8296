//go:build integration
// +build integration

package test

import (
	"context"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/ledgerlane/sessionkit"
)

func mintJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		Subject:   "1",
		IssuedAt:  gojwt.NewNumericDate(exp.Add(-time.Hour)),
		ExpiresAt: gojwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString([]byte("server-secret-the-client-never-sees"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestBootDropsExpiredJWTFromSharedStore(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()
			f := newFixture(t, rdb)
			ctx := context.Background()

			expired := mintJWT(t, time.Now().Add(-time.Hour))
			if err := f.credentials().Save(ctx, expired, &sessionkit.Identity{ID: 1, Username: "alice"}); err != nil {
				t.Fatalf("seed: %v", err)
			}

			c, _ := f.tab()
			if v := c.View(); v.State != sessionkit.StateUnauthenticated {
				t.Fatalf("expired JWT must not boot signed in, got %v", v.State)
			}
			if cred, _ := f.credentials().Credential(ctx); cred != "" {
				t.Fatalf("expired credential must be cleared, still %q", cred)
			}
			if got := c.MetricsSnapshot().Counters[sessionkit.MetricExpiredCredential]; got != 1 {
				t.Fatalf("expected expired-credential metric 1, got %d", got)
			}
		})
	}
}

func TestBootKeepsLiveJWT(t *testing.T) {
	rdb, cleanup := redisModes(t)[0].setup(t)
	defer cleanup()
	f := newFixture(t, rdb)
	ctx := context.Background()

	live := mintJWT(t, time.Now().Add(time.Hour))
	f.srv.IssueToken(1, live)
	if err := f.credentials().Save(ctx, live, &sessionkit.Identity{ID: 1, Username: "alice"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	c, _ := f.tab()
	if !c.View().Authenticated() {
		t.Fatalf("live JWT with a snapshot must boot signed in, got %v", c.View().State)
	}
}
