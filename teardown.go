package sessionkit

import "context"

// Logout clears the store, enters Unauthenticated and resets the host
// application to its entry point. Logging out when already signed out does
// nothing.
func (c *Controller) Logout(ctx context.Context) (err error) {
	ctx, span := c.startSpan(ctx, "sessionkit.Logout")
	defer func() { endSpan(span, err) }()

	changed, prev, err := c.teardown(ctx, "")
	if !changed {
		return err
	}

	c.metricInc(MetricLogout)
	c.emit(ctx, EventLogout, prev, err, nil)
	c.logger.InfoContext(ctx, "logout", "user_id", userID(prev))
	c.entry.Reset(ctx, ResetLogout)
	return err
}

// Reject handles a server rejection of credential. When credential is the
// active one the session is torn down like [Controller.Logout], with
// [ResetAuthorizationFailure]. Rejections of any other credential only clear
// the store if it still holds that credential.
//
// Reject implements transport.Rejector; the controller's HTTP client calls
// it before a 401 response reaches the caller. Duplicate calls are no-ops.
func (c *Controller) Reject(ctx context.Context, credential string) error {
	if credential == "" {
		return nil
	}
	changed, prev, err := c.teardown(ctx, credential)
	if !changed {
		return err
	}

	c.metricInc(MetricAuthorizationFailure)
	c.emit(ctx, EventAuthorizationFailure, prev, err, nil)
	c.logger.WarnContext(ctx, "credential rejected by server, session torn down", "user_id", userID(prev))
	c.entry.Reset(ctx, ResetAuthorizationFailure)
	return err
}

// teardown clears the store and the visible session. With a non-empty
// credential both are conditional on it still being current. The visible
// session is dropped even if the store write fails.
func (c *Controller) teardown(ctx context.Context, credential string) (bool, *Identity, error) {
	var (
		changed bool
		prev    *Identity
		err     error
	)
	func() {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()

		if credential == "" {
			err = c.creds.Clear(ctx)
		} else {
			_, err = c.creds.ClearIf(ctx, credential)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state == StateUnauthenticated {
			return
		}
		if credential != "" && credential != c.credential {
			return
		}
		prev = c.identity
		changed = true
		c.appliedSeq = c.nextSeq()
		c.setLocked(StateUnauthenticated, "", nil)
	}()
	if changed {
		c.notify()
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "teardown: clearing credential store failed", "error", err)
	}
	return changed, prev, err
}
