package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/thand-io/skypost/internal/models"
	"github.com/thand-io/skypost/internal/sessions"
	"gopkg.in/yaml.v3"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the cached session with tokens redacted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		return showSession(cmd.OutOrStdout(), sessions.NewStore(cfg.Session.Path), output)
	},
}

func showSession(out io.Writer, store *sessions.Store, output string) error {
	cached, err := store.Load()
	if err != nil {
		return err
	}
	if cached == nil {
		fmt.Fprintln(out, infoStyle.Render("ℹ️  No saved session"))
		return nil
	}

	redacted := cached.Redacted()

	switch output {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(redacted)
	case "yaml", "":
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Session (%s)", store.Path())))
		if cached.Valid() {
			fmt.Fprintln(out, activeStyle.Render("ACTIVE"))
		} else {
			fmt.Fprintln(out, warningStyle.Render("INCOMPLETE"))
		}
		data, err := yaml.Marshal(redacted)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	default:
		return models.NewValidationError("session", fmt.Errorf("unsupported output format: %s", output))
	}
}

func init() {
	sessionCmd.Flags().StringP("output", "o", "yaml", "Output format: yaml or json")
	rootCmd.AddCommand(sessionCmd)
}
