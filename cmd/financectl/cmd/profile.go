package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ledgerlane/sessionkit"
	"github.com/ledgerlane/sessionkit/authapi"
)

func newProfileCmd(a *app) *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Show and edit the signed-in user's profile",
	}
	profileCmd.AddCommand(newProfileShowCmd(a), newProfileUpdateCmd(a), newProfilePictureCmd(a))
	return profileCmd
}

func newProfileShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the profile, refreshed from the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeAll, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			if err := c.Refresh(cmd.Context()); err != nil {
				a.logger.Debug("profile refresh failed", "error", err)
			}
			v := c.View()
			if !v.Authenticated() {
				return errNotLoggedIn
			}
			return printProfile(*v.Identity)
		},
	}
}

func printProfile(id sessionkit.Identity) error {
	pterm.DefaultSection.Println("Profile")
	return pterm.DefaultTable.WithData(pterm.TableData{
		{"FIELD", "VALUE"},
		{"id", strconv.FormatInt(id.ID, 10)},
		{"username", id.Username},
		{"email", id.Email},
		{"name", id.DisplayName()},
		{"phone", id.PhoneNumber},
		{"picture", id.ProfilePicture},
		{"theme", id.ThemePreference},
		{"currency", id.CurrencyPreference},
		{"email notifications", strconv.FormatBool(id.EmailNotifications)},
	}).WithHasHeader().Render()
}

func newProfileUpdateCmd(a *app) *cobra.Command {
	var (
		values = map[string]*string{}
		notify bool
	)
	stringFlags := []struct{ name, usage string }{
		{"username", "username"},
		{"email", "email address"},
		{"first-name", "first name"},
		{"last-name", "last name"},
		{"phone", "phone number"},
		{"currency", "preferred currency (USD, EUR or GBP)"},
	}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields",
		Long:  `Sends the changed fields to the server and stores the answer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch sessionkit.IdentityPatch
			changed := 0
			set := func(flag string, dst **string) {
				if cmd.Flags().Changed(flag) {
					*dst = values[flag]
					changed++
				}
			}
			set("username", &patch.Username)
			set("email", &patch.Email)
			set("first-name", &patch.FirstName)
			set("last-name", &patch.LastName)
			set("phone", &patch.PhoneNumber)
			set("currency", &patch.CurrencyPreference)
			if cmd.Flags().Changed("email-notifications") {
				patch.EmailNotifications = &notify
				changed++
			}
			if changed == 0 {
				return errors.New("nothing to update")
			}
			if patch.CurrencyPreference != nil && !authapi.ValidCurrency(*patch.CurrencyPreference) {
				return fmt.Errorf("unsupported currency %q", *patch.CurrencyPreference)
			}

			c, closeAll, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			id, err := c.SaveProfile(cmd.Context(), patch)
			if err != nil {
				return profileFailure(err)
			}
			pterm.Success.Printf("Profile updated for %s\n", id.DisplayName())
			return nil
		},
	}
	for _, f := range stringFlags {
		values[f.name] = cmd.Flags().String(f.name, "", f.usage)
	}
	cmd.Flags().BoolVar(&notify, "email-notifications", false, "receive email notifications")
	return cmd
}

func newProfilePictureCmd(a *app) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "picture [file]",
		Short: "Upload or remove the profile picture",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if remove == (len(args) == 1) {
				return errors.New("give a file to upload or --remove, not both")
			}
			c, closeAll, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			if remove {
				if _, err := c.RemoveProfilePicture(cmd.Context()); err != nil {
					return profileFailure(err)
				}
				pterm.Success.Println("Profile picture removed")
				return nil
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			id, err := c.SetProfilePicture(cmd.Context(), f.Name(), f)
			if err != nil {
				return profileFailure(err)
			}
			pterm.Success.Printf("Profile picture set: %s\n", id.ProfilePicture)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the current picture")
	return cmd
}

func profileFailure(err error) error {
	var apiErr *authapi.APIError
	switch {
	case errors.As(err, &apiErr):
		return errors.New(apiErr.HumanMessage())
	case errors.Is(err, sessionkit.ErrNotAuthenticated):
		return errNotLoggedIn
	}
	return err
}
