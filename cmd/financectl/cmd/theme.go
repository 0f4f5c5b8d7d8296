package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ledgerlane/sessionkit/preference"
)

func newThemeCmd(a *app) *cobra.Command {
	themeCmd := &cobra.Command{
		Use:   "theme",
		Short: "Read or change the theme preference",
	}
	themeCmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the stored choice and the effective theme",
			RunE: func(cmd *cobra.Command, args []string) error {
				c, closeAll, err := a.session(cmd.Context())
				if err != nil {
					return err
				}
				defer closeAll()

				st := c.Preferences().State()
				effective := "light"
				if st.Dark {
					effective = "dark"
				}
				if st.Explicit {
					pterm.Info.Printf("Theme: %s\n", st.Choice)
				} else {
					pterm.Info.Printf("Theme: %s (no choice stored)\n", st.Choice)
				}
				pterm.Info.Printf("Effective: %s\n", effective)
				return nil
			},
		},
		&cobra.Command{
			Use:       "set light|dark|system",
			Short:     "Store a theme choice and send it to the server when signed in",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{string(preference.Light), string(preference.Dark), string(preference.System)},
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := preference.Parse(args[0])
				if err != nil {
					return err
				}
				c, closeAll, err := a.session(cmd.Context())
				if err != nil {
					return err
				}
				defer closeAll()

				if err := c.Preferences().Set(cmd.Context(), p); err != nil {
					return err
				}
				pterm.Success.Printf("Theme set to %s\n", p)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Forget the theme choice and follow the system",
			RunE: func(cmd *cobra.Command, args []string) error {
				c, closeAll, err := a.session(cmd.Context())
				if err != nil {
					return err
				}
				defer closeAll()

				if err := c.Preferences().Clear(cmd.Context()); err != nil {
					return err
				}
				pterm.Success.Println("Theme choice cleared")
				return nil
			},
		},
	)
	return themeCmd
}
