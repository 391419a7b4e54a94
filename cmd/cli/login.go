package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/thand-io/skypost/internal/common"
	"github.com/thand-io/skypost/internal/poster"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate and cache the session",
	Long: `Resume the cached session, or log in with BLUESKY_USERNAME and
BLUESKY_PASSWORD when there is none, and write the session file. Nothing
is posted.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {

	ctx, stop := common.WithInterrupt(context.Background())
	defer stop()

	out := cmd.OutOrStdout()

	authenticator := poster.NewAuthenticator(cfg, poster.NewClient(cfg), out)

	session, err := authenticator.Authenticate(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, successStyle.Render("Logged in"),
		fmt.Sprintf("as %s (%s)", session.GetHandle(), session.GetDid()))
	fmt.Fprintln(out, infoStyle.Render(fmt.Sprintf("Session saved to %s", cfg.Session.Path)))

	return nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
