package authapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/ledgerlane/sessionkit/transport"
)

const profilePath = "auth/profile/"

// Profile fetches the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (User, error) {
	var u User
	if err := c.Do(ctx, http.MethodGet, profilePath, nil, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// UpdateProfile applies a partial update and returns the stored profile.
func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) (User, error) {
	var u User
	if err := c.Do(ctx, http.MethodPatch, profilePath, upd, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// UploadProfilePicture replaces the profile picture with the contents of r.
func (c *Client) UploadProfilePicture(ctx context.Context, filename string, r io.Reader) (User, error) {
	return c.patchMultipart(ctx, func(w *multipart.Writer) error {
		part, err := w.CreateFormFile("profile_picture", filepath.Base(filename))
		if err != nil {
			return err
		}
		_, err = io.Copy(part, r)
		return err
	})
}

// RemoveProfilePicture deletes the stored profile picture.
func (c *Client) RemoveProfilePicture(ctx context.Context) (User, error) {
	return c.patchMultipart(ctx, func(w *multipart.Writer) error {
		return w.WriteField("remove_profile_picture", "true")
	})
}

func (c *Client) patchMultipart(ctx context.Context, fill func(*multipart.Writer) error) (User, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := fill(mw); err != nil {
		return User{}, fmt.Errorf("authapi: build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return User{}, fmt.Errorf("authapi: build multipart body: %w", err)
	}

	ctx = transport.WithUpload(ctx, mw.FormDataContentType())
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.URL(profilePath), &buf)
	if err != nil {
		return User{}, fmt.Errorf("authapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var u User
	if err := c.send(req, &u); err != nil {
		return User{}, err
	}
	return u, nil
}
