package authapi

import (
	"context"
	"fmt"
	"net/http"
)

// UpdateSettings applies a partial settings change and returns the echoed
// settings document.
func (c *Client) UpdateSettings(ctx context.Context, s Settings) (Settings, error) {
	var out Settings
	if err := c.Do(ctx, http.MethodPatch, "auth/settings/", s, &out); err != nil {
		return Settings{}, err
	}
	return out, nil
}

// UpdateThemePreference mirrors a theme choice to the server.
func (c *Client) UpdateThemePreference(ctx context.Context, theme string) error {
	if !ValidTheme(theme) {
		return fmt.Errorf("authapi: unknown theme %q", theme)
	}
	_, err := c.UpdateSettings(ctx, Settings{ThemePreference: &theme})
	return err
}
