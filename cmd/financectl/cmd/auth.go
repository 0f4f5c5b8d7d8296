package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ledgerlane/sessionkit"
	"github.com/ledgerlane/sessionkit/authapi"
)

func newAuthCmd(a *app) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long:  `Commands for signing in, signing out and checking the session.`,
	}
	authCmd.AddCommand(newLoginCmd(a), newLogoutCmd(a), newStatusCmd(a), newRegisterCmd(a))
	return authCmd
}

func newLoginCmd(a *app) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a username or email",
		Long: `Signs in and stores the session for later commands.

The password is read from --password, then FINANCECTL_PASSWORD, and is
prompted for otherwise unless --non-interactive is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeAll, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			if username == "" {
				if username, err = a.prompt("Username or email", false); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = a.secret(); err != nil {
					return err
				}
			}

			id, err := c.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			pterm.Success.Printf("Logged in as %s\n", id.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var r authapi.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if r.Username == "" || r.Email == "" {
				return errors.New("--username and --email are required")
			}
			c, closeAll, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			if r.Password == "" {
				if r.Password, err = a.secret(); err != nil {
					return err
				}
			}

			id, err := c.Register(cmd.Context(), r)
			if err != nil {
				return err
			}
			pterm.Success.Printf("Account created, logged in as %s\n", id.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVarP(&r.Username, "username", "u", "", "username")
	cmd.Flags().StringVar(&r.Email, "email", "", "email address")
	cmd.Flags().StringVarP(&r.Password, "password", "p", "", "password")
	cmd.Flags().StringVar(&r.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&r.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&r.PhoneNumber, "phone", "", "phone number")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeAll, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			wasIn := c.View().State != sessionkit.StateUnauthenticated
			if err := c.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear stored session: %w", err)
			}
			if wasIn {
				pterm.Success.Println("Logged out")
			} else {
				pterm.Info.Println("Not logged in")
			}
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Display authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeAll, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			if refresh {
				if err := c.Refresh(cmd.Context()); err != nil {
					pterm.Warning.Printf("Could not refresh profile: %v\n", err)
				}
			}
			v := c.View()
			if !v.Authenticated() {
				return errNotLoggedIn
			}

			pterm.DefaultSection.Println("Authentication Status")
			pterm.Info.Printf("Logged in as: %s (%s)\n", v.Identity.DisplayName(), v.Identity.Email)
			pterm.Info.Printf("Username: %s\n", v.Identity.Username)
			pterm.Info.Printf("Store: %s (namespace %s)\n", a.cfg.Store.Kind, a.cfg.Store.Namespace)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch the profile from the server before printing")
	return cmd
}

func (a *app) prompt(label string, mask bool) (string, error) {
	if a.nonInteractive {
		return "", fmt.Errorf("%s is required in non-interactive mode", strings.ToLower(label))
	}
	input := pterm.DefaultInteractiveTextInput
	if mask {
		input = *input.WithMask("*")
	}
	return input.Show(label)
}

func (a *app) secret() (string, error) {
	if p := os.Getenv("FINANCECTL_PASSWORD"); p != "" {
		return p, nil
	}
	return a.prompt("Password", true)
}
