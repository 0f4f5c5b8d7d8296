//go:build integration
// +build integration

package test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ledgerlane/sessionkit"
)

// TestCredentialIdentityNeverTorn checks that a reader never sees one
// session's credential paired with another session's profile.
func TestCredentialIdentityNeverTorn(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()
			f := newFixture(t, rdb)
			ctx := context.Background()

			const writers, rounds = 4, 50
			var wg sync.WaitGroup
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					cs := f.credentials()
					for i := 0; i < rounds; i++ {
						cred := fmt.Sprintf("tok-%d-%d", w, i)
						id := &sessionkit.Identity{ID: int64(w + 1), Username: "user-" + cred}
						if err := cs.Save(ctx, cred, id); err != nil {
							t.Errorf("save: %v", err)
							return
						}
					}
				}(w)
			}

			done := make(chan struct{})
			var readErr error
			go func() {
				defer close(done)
				cs := f.credentials()
				for i := 0; i < writers*rounds; i++ {
					rec, err := cs.Load(ctx)
					if err != nil {
						readErr = err
						return
					}
					if rec.Identity == nil {
						continue
					}
					if !strings.HasSuffix(rec.Identity.Username, rec.Credential) {
						readErr = fmt.Errorf("torn read: credential %q with profile %q", rec.Credential, rec.Identity.Username)
						return
					}
				}
			}()

			wg.Wait()
			<-done
			if readErr != nil {
				t.Fatal(readErr)
			}
		})
	}
}
