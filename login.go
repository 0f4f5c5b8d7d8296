package sessionkit

import (
	"context"
	"errors"

	"github.com/ledgerlane/sessionkit/authapi"
	"github.com/ledgerlane/sessionkit/transport"
)

// Login exchanges identifier (username or email) and secret for a
// credential. On success the credential and identity are persisted together
// and the session becomes Authenticated. On failure nothing changes and the
// error is a [*LoginError] whose Message can be shown as is.
func (c *Controller) Login(ctx context.Context, identifier, secret string) (id Identity, err error) {
	if err := c.ready(); err != nil {
		return Identity{}, err
	}
	ctx, span := c.startSpan(ctx, "sessionkit.Login")
	defer func() { endSpan(span, err) }()

	// Always anonymous: a stale credential must not ride along and trip a
	// teardown on a 401.
	res, err := c.api.Login(transport.WithCredential(ctx, ""), identifier, secret)
	if err != nil {
		c.metricInc(MetricLoginFailure)
		c.emit(ctx, EventLogin, nil, err, nil)
		return Identity{}, newLoginError(err, loginFallbackMessage)
	}

	id = identityFromUser(res.User)
	if err := c.commitLogin(ctx, res.Token, id); err != nil {
		c.metricInc(MetricLoginFailure)
		c.emit(ctx, EventLogin, &id, err, nil)
		return Identity{}, &LoginError{Message: loginFallbackMessage, Err: err}
	}

	c.metricInc(MetricLoginSuccess)
	c.emit(ctx, EventLogin, &id, nil, nil)
	c.logger.InfoContext(ctx, "login", "user_id", userID(&id))
	c.adoptTheme(ctx, id.ThemePreference)
	return id, nil
}

// Register creates an account and signs in with it, with the same commit
// rules as [Controller.Login].
func (c *Controller) Register(ctx context.Context, r authapi.Registration) (id Identity, err error) {
	if err := c.ready(); err != nil {
		return Identity{}, err
	}
	ctx, span := c.startSpan(ctx, "sessionkit.Register")
	defer func() { endSpan(span, err) }()

	res, err := c.api.Register(transport.WithCredential(ctx, ""), r)
	if err != nil {
		c.metricInc(MetricRegisterFailure)
		c.emit(ctx, EventRegister, nil, err, nil)
		return Identity{}, newRegisterError(err)
	}

	id = identityFromUser(res.User)
	if err := c.commitLogin(ctx, res.Token, id); err != nil {
		c.metricInc(MetricRegisterFailure)
		c.emit(ctx, EventRegister, &id, err, nil)
		return Identity{}, &LoginError{Message: registerFallbackMessage, Err: err}
	}

	c.metricInc(MetricRegisterSuccess)
	c.emit(ctx, EventRegister, &id, nil, nil)
	c.logger.InfoContext(ctx, "registered", "user_id", userID(&id))
	c.adoptTheme(ctx, id.ThemePreference)
	return id, nil
}

// commitLogin lands credential and identity in one store write, then
// publishes them. The sequence number is taken here, once the server has
// answered, so a login always supersedes whatever was in flight before it.
func (c *Controller) commitLogin(ctx context.Context, credential string, id Identity) error {
	err := func() error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()

		if err := c.creds.Save(ctx, credential, &id); err != nil {
			return err
		}
		c.appliedSeq = c.nextSeq()
		c.mu.Lock()
		c.setLocked(StateAuthenticated, credential, &id)
		c.mu.Unlock()
		return nil
	}()
	if err != nil {
		return err
	}
	c.notify()
	return nil
}

func newLoginError(err error, fallback string) *LoginError {
	if contextError(err) != nil {
		return &LoginError{Message: fallback, Err: err}
	}

	var apiErr *authapi.APIError
	if errors.As(err, &apiErr) &&
		(errors.Is(err, authapi.ErrValidation) || errors.Is(err, authapi.ErrUnauthorized)) {
		msg := apiErr.HumanMessage()
		if msg == "" {
			msg = fallback
		}
		return &LoginError{Message: msg, Err: errors.Join(ErrInvalidCredentials, err)}
	}
	return &LoginError{Message: fallback, Err: err}
}

func newRegisterError(err error) *LoginError {
	var apiErr *authapi.APIError
	if errors.As(err, &apiErr) && errors.Is(err, authapi.ErrValidation) {
		if msg := apiErr.HumanMessage(); msg != "" {
			return &LoginError{Message: msg, Err: err}
		}
	}
	return &LoginError{Message: registerFallbackMessage, Err: err}
}

func contextError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	}
	return nil
}
