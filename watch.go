package sessionkit

import (
	"context"
	"slices"

	"github.com/ledgerlane/sessionkit/store"
)

// startWatch follows writes made by other instances sharing the store, the
// way browser tabs see each other's storage events.
func (c *Controller) startWatch() {
	w, ok := c.backend.(store.Watcher)
	if !ok {
		return
	}
	changes, err := w.Watch(c.bgCtx)
	if err != nil {
		c.logger.Warn("store watch unavailable, other instances will not be followed", "error", err)
		return
	}

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		for ch := range changes {
			if ch.Writer == c.instance {
				continue
			}
			if slices.ContainsFunc(ch.Keys, c.creds.owns) {
				c.applyRemote(c.bgCtx)
			}
			if slices.Contains(ch.Keys, c.cfg.Storage.PreferenceKey) {
				if err := c.prefs.Load(c.bgCtx); err != nil {
					c.logger.Warn("reload theme preference failed", "error", err)
				}
			}
		}
	}()
}

// applyRemote re-reads the store and adopts what another instance wrote.
// The read happens under writeMu so a local commit cannot land between it
// and the state change.
func (c *Controller) applyRemote(ctx context.Context) {
	var (
		rec       Record
		err       error
		loggedOut bool
		adopted   bool
		prev      *Identity
	)
	func() {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()

		rec, err = c.creds.Load(ctx)
		if err != nil {
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.state == StateBooting && c.credential == "" {
			// Boot has not read the store yet and will see this write.
			return
		}

		switch {
		case rec.Credential != "" && rec.Identity != nil:
			if c.credential == rec.Credential && c.identity != nil && *c.identity == *rec.Identity {
				return
			}
			adopted = true
			c.appliedSeq = c.nextSeq()
			c.setLocked(StateAuthenticated, rec.Credential, rec.Identity)

		case rec.Credential == c.credential:
			// Same credential without a readable profile: keep ours.

		case c.state != StateUnauthenticated:
			// Our credential is gone from the store.
			loggedOut = true
			prev = c.identity
			c.appliedSeq = c.nextSeq()
			c.setLocked(StateUnauthenticated, "", nil)
		}
	}()
	if err != nil {
		c.logger.WarnContext(ctx, "reading remote session change failed", "error", err)
		return
	}

	switch {
	case adopted:
		c.announceRemote(ctx, MetricRemoteLogin, EventRemoteLogin, rec.Identity)
	case loggedOut:
		c.announceRemote(ctx, MetricRemoteLogout, EventRemoteLogout, prev)
	}
}

func (c *Controller) announceRemote(ctx context.Context, metric MetricID, event string, id *Identity) {
	c.notify()
	c.metricInc(metric)
	c.emit(ctx, event, id, nil, nil)
	if event == EventRemoteLogin {
		c.logger.InfoContext(ctx, "adopted session written by another instance", "user_id", userID(id))
		return
	}
	c.logger.InfoContext(ctx, "session ended by another instance", "user_id", userID(id))
	c.entry.Reset(ctx, ResetRemoteLogout)
}
