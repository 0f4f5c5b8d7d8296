package sessionkit

import (
	"context"
	"io"

	"github.com/ledgerlane/sessionkit/authapi"
	"github.com/ledgerlane/sessionkit/transport"
)

// UpdateIdentity merges patch into the current identity and re-persists the
// whole value. It is local only; use [Controller.SaveProfile] to change the
// profile on the server.
//
// Outside Authenticated it returns [ErrNotAuthenticated] and changes
// nothing. If a newer write lands between the call and the commit it returns
// [ErrSuperseded].
func (c *Controller) UpdateIdentity(ctx context.Context, patch IdentityPatch) (Identity, error) {
	seq := c.nextSeq()

	var merged Identity
	err := func() error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()

		st, cred, cur := c.session()
		if st != StateAuthenticated || cur == nil {
			return ErrNotAuthenticated
		}
		if seq < c.appliedSeq {
			return ErrSuperseded
		}
		merged = patch.Apply(*cur)
		ok, err := c.creds.SaveIdentity(ctx, cred, merged)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSuperseded
		}

		c.appliedSeq = seq
		c.mu.Lock()
		c.setLocked(StateAuthenticated, cred, &merged)
		c.mu.Unlock()
		return nil
	}()
	if err != nil {
		return Identity{}, err
	}

	c.notify()
	c.metricInc(MetricIdentityUpdated)
	c.emit(ctx, EventIdentityUpdated, &merged, nil, map[string]string{"source": "local"})
	return merged, nil
}

// SaveProfile sends patch to the server and commits the profile it returns.
// The picture field of patch is ignored; see [Controller.SetProfilePicture].
func (c *Controller) SaveProfile(ctx context.Context, patch IdentityPatch) (Identity, error) {
	return c.serverUpdate(ctx, func(ctx context.Context) (authapi.User, error) {
		return c.api.UpdateProfile(ctx, patch.profileUpdate())
	})
}

// SetProfilePicture uploads a new picture and commits the returned profile.
func (c *Controller) SetProfilePicture(ctx context.Context, filename string, r io.Reader) (Identity, error) {
	return c.serverUpdate(ctx, func(ctx context.Context) (authapi.User, error) {
		return c.api.UploadProfilePicture(ctx, filename, r)
	})
}

// RemoveProfilePicture deletes the picture and commits the returned profile.
func (c *Controller) RemoveProfilePicture(ctx context.Context) (Identity, error) {
	return c.serverUpdate(ctx, c.api.RemoveProfilePicture)
}

func (c *Controller) serverUpdate(ctx context.Context, call func(context.Context) (authapi.User, error)) (Identity, error) {
	st, cred, _ := c.session()
	if st != StateAuthenticated {
		return Identity{}, ErrNotAuthenticated
	}

	u, err := call(transport.WithCredential(ctx, cred))
	if err != nil {
		return Identity{}, err
	}

	// Taken after the response: the server's answer is the newest truth.
	id := identityFromUser(u)
	applied, err := c.commitIdentity(ctx, c.nextSeq(), cred, id)
	if err != nil {
		return Identity{}, err
	}
	if !applied {
		return Identity{}, ErrSuperseded
	}

	c.metricInc(MetricIdentityUpdated)
	c.emit(ctx, EventIdentityUpdated, &id, nil, map[string]string{"source": "server"})
	return id, nil
}
