package authapi

import (
	"context"
	"fmt"
	"net/http"
)

// Login exchanges an identifier (username or email) and password for a
// credential and the user's profile.
func (c *Client) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	in := struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}{identifier, password}

	var out LoginResult
	if err := c.Do(ctx, http.MethodPost, "auth/login/", in, &out); err != nil {
		return LoginResult{}, err
	}
	if out.Token == "" {
		return LoginResult{}, fmt.Errorf("%w: login response without token", ErrDecode)
	}
	return out, nil
}

// Register creates an account and returns its first credential.
func (c *Client) Register(ctx context.Context, r Registration) (RegisterResult, error) {
	var out RegisterResult
	if err := c.Do(ctx, http.MethodPost, "auth/register/", r, &out); err != nil {
		return RegisterResult{}, err
	}
	if out.Token == "" {
		return RegisterResult{}, fmt.Errorf("%w: register response without token", ErrDecode)
	}
	return out, nil
}
