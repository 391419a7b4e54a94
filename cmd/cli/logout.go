package cli

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/thand-io/skypost/internal/common"
	"github.com/thand-io/skypost/internal/sessions"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the cached session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func runLogout(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	store := sessions.NewStore(cfg.Session.Path)

	cached, err := store.Load()
	if err != nil {
		return err
	}
	if cached == nil {
		fmt.Fprintln(out, infoStyle.Render("ℹ️  No saved session"))
		return nil
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && common.IsTerminal(cmd.InOrStdin()) {
		confirmed := false
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Remove the session for %s?", cached.Handle)).
					Description("The next post will log in again with your credentials").
					Value(&confirmed),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("logout prompt cancelled: %w", err)
		}
		if !confirmed {
			fmt.Fprintln(out, warningStyle.Render("Session kept"))
			return nil
		}
	}

	if err := store.Remove(); err != nil {
		return err
	}

	fmt.Fprintln(out, successStyle.Render("Logged out"), cached.Handle)
	return nil
}

func init() {
	logoutCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(logoutCmd)
}
