package sessionkit

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerlane/sessionkit/authapi"
	"github.com/ledgerlane/sessionkit/jwt"
	"github.com/ledgerlane/sessionkit/transport"
)

// Boot resolves the persisted session:
//
//   - no credential: Unauthenticated.
//   - an expired JWT credential: cleared, Unauthenticated.
//   - a credential and a readable profile snapshot: Authenticated at once,
//     then reconciled against the server in the background.
//   - a credential alone: stays Booting while the profile is fetched. On
//     success the profile is persisted and the session is Authenticated;
//     on failure the credential is cleared.
//
// Boot returns an error only when the store cannot be read, in which case
// the session is Unauthenticated.
func (c *Controller) Boot(ctx context.Context) (err error) {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.booted.CompareAndSwap(false, true) {
		return ErrAlreadyBooted
	}
	ctx, span := c.startSpan(ctx, "sessionkit.Boot")
	defer func() { endSpan(span, err) }()

	// Subscribe before reading so no change by another instance is missed.
	c.startWatch()
	c.startPreferences(ctx)

	var (
		rec     Record
		loadErr error
		fetch   bool
	)
	func() {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()

		rec, loadErr = c.creds.Load(ctx)
		expired := loadErr == nil && rec.Credential != "" &&
			jwt.Expired(rec.Credential, c.now(), c.cfg.Reconcile.ExpiryLeeway)
		if expired {
			if _, err := c.creds.ClearIf(ctx, rec.Credential); err != nil {
				c.logger.WarnContext(ctx, "clear expired credential failed", "error", err)
			}
			c.metricInc(MetricExpiredCredential)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		c.appliedSeq = c.nextSeq()

		switch {
		case loadErr != nil, rec.Credential == "", expired:
			c.setLocked(StateUnauthenticated, "", nil)
		case rec.Identity != nil:
			c.setLocked(StateAuthenticated, rec.Credential, rec.Identity)
		default:
			// Keep Booting, but hold the credential so a rejection of it
			// is recognised as ours.
			c.credential = rec.Credential
			fetch = true
		}
	}()
	c.notify()

	if loadErr != nil {
		c.logger.ErrorContext(ctx, "boot: credential store unreadable", "error", loadErr)
		c.metricInc(MetricBootUnauthenticated)
		c.emit(ctx, EventBoot, nil, loadErr, nil)
		return loadErr
	}
	if rec.SnapshotCorrupt {
		c.metricInc(MetricSnapshotCorrupt)
		c.logger.WarnContext(ctx, "persisted profile unreadable, treating as absent")
		c.emit(ctx, EventSnapshotCorrupt, nil, errCorruptSnapshot, nil)
	}

	if fetch {
		c.bootFetch(ctx, rec.Credential)
	} else if st, cred, _ := c.session(); st == StateAuthenticated {
		c.reconcileInBackground(ctx, cred)
		if rec.Identity != nil {
			c.adoptTheme(ctx, rec.Identity.ThemePreference)
		}
	}

	v := c.View()
	if v.Authenticated() {
		c.metricInc(MetricBootAuthenticated)
	} else {
		c.metricInc(MetricBootUnauthenticated)
	}
	c.emit(ctx, EventBoot, v.Identity, nil, map[string]string{"state": v.State.String()})
	c.logger.InfoContext(ctx, "boot complete", "state", v.State.String(), "user_id", userID(v.Identity))
	return nil
}

// bootFetch resolves a credential that has no profile snapshot.
func (c *Controller) bootFetch(ctx context.Context, cred string) {
	err := c.reconcileOnce(ctx, cred)
	if st, _, _ := c.session(); st != StateBooting {
		// Committed, or torn down by a rejection or another instance.
		return
	}

	if err == nil {
		err = errors.New("profile fetch superseded")
	}
	c.logger.WarnContext(ctx, "boot: profile fetch failed, clearing credential", "error", err)

	func() {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()

		if _, clearErr := c.creds.ClearIf(ctx, cred); clearErr != nil {
			c.logger.WarnContext(ctx, "boot: clear credential failed", "error", clearErr)
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state == StateBooting && c.credential == cred {
			c.appliedSeq = c.nextSeq()
			c.setLocked(StateUnauthenticated, "", nil)
		}
	}()
	c.notify()
}

func (c *Controller) startPreferences(ctx context.Context) {
	if err := c.prefs.Load(ctx); err != nil {
		c.logger.WarnContext(ctx, "load theme preference failed", "error", err)
	}
	if err := c.prefs.Watch(c.bgCtx); err != nil {
		c.logger.WarnContext(ctx, "watch appearance failed", "error", err)
	}
}

// adoptTheme offers the server-side theme to the synchronizer, which keeps
// any local choice.
func (c *Controller) adoptTheme(ctx context.Context, theme string) {
	if theme == "" {
		return
	}
	if _, err := c.prefs.AdoptRemote(ctx, theme); err != nil {
		c.logger.DebugContext(ctx, "server theme not adopted", "theme", theme, "error", err)
	}
}

/*
====================================
RECONCILIATION
====================================
*/

// Refresh re-fetches the profile now, e.g. when the window regains focus.
// Calls closer together than Reconcile.MinInterval fail with
// [ErrRefreshThrottled].
func (c *Controller) Refresh(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	st, cred, _ := c.session()
	if st != StateAuthenticated {
		return ErrNotAuthenticated
	}
	if !c.limiter.Allow() {
		c.metricInc(MetricRefreshThrottled)
		return ErrRefreshThrottled
	}
	return c.reconcileShared(ctx, cred)
}

func (c *Controller) reconcileInBackground(ctx context.Context, cred string) {
	if c.closed.Load() {
		return
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		rctx, cancel := reconcileContext(ctx, c.bgCtx, c.cfg.Reconcile.Timeout)
		defer cancel()
		if err := c.reconcileShared(rctx, cred); err != nil {
			// Never a logout: only a rejected request tears the session
			// down, and that happens in the transport.
			c.logger.WarnContext(rctx, "background reconciliation failed", "error", err)
		}
	}()
}

// reconcileShared collapses concurrent reconciliations of one credential.
func (c *Controller) reconcileShared(ctx context.Context, cred string) error {
	_, err, _ := c.reconcile.Do(cred, func() (any, error) {
		return nil, c.reconcileOnce(ctx, cred)
	})
	return err
}

func (c *Controller) reconcileOnce(ctx context.Context, cred string) (err error) {
	ctx, span := c.startSpan(ctx, "sessionkit.Reconcile")
	defer func() { endSpan(span, err) }()

	// The fetch observes the server now; anything committed later wins.
	seq := c.nextSeq()
	c.setReconciling(1)
	defer c.setReconciling(-1)

	start := time.Now()
	u, err := c.api.Profile(transport.WithCredential(ctx, cred))
	c.metrics.Observe(MetricReconcileLatency, time.Since(start))
	if err != nil {
		c.metricInc(MetricReconcileFailure)
		c.emit(ctx, EventReconcile, nil, err, map[string]string{"unauthorized": boolString(errors.Is(err, authapi.ErrUnauthorized))})
		return err
	}

	id := identityFromUser(u)
	applied, err := c.commitIdentity(ctx, seq, cred, id)
	if err != nil {
		c.metricInc(MetricReconcileFailure)
		return err
	}
	if !applied {
		c.metricInc(MetricReconcileDiscarded)
		c.logger.DebugContext(ctx, "reconciliation result discarded", "seq", seq)
		return nil
	}
	c.metricInc(MetricReconcileSuccess)
	c.emit(ctx, EventReconcile, &id, nil, nil)
	c.adoptTheme(ctx, id.ThemePreference)
	return nil
}

// commitIdentity persists and publishes id for cred unless a newer write
// has been applied or cred is no longer the active credential.
func (c *Controller) commitIdentity(ctx context.Context, seq uint64, cred string, id Identity) (bool, error) {
	applied, err := func() (bool, error) {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()

		if seq < c.appliedSeq {
			return false, nil
		}
		st, active, _ := c.session()
		if active != cred || st == StateUnauthenticated {
			return false, nil
		}
		ok, err := c.creds.SaveIdentity(ctx, cred, id)
		if err != nil || !ok {
			return false, err
		}

		c.appliedSeq = seq
		c.mu.Lock()
		c.setLocked(StateAuthenticated, cred, &id)
		c.mu.Unlock()
		return true, nil
	}()
	if applied {
		c.notify()
	}
	return applied, err
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
