package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/thand-io/skypost/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	// No configuration is needed to print the version
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()

		version, gitCommit, ok := common.GetModuleBuildInfo()
		if !ok {
			fmt.Fprintln(out, "Failed to get version information")
			return
		}

		fmt.Fprint(out, headerStyle.Render(fmt.Sprintf("skypost %s", version)))
		if gitCommit != "unknown" && len(gitCommit) > 0 {
			fmt.Fprintf(out, " (git: %s)", common.ShortCommit(gitCommit))
		}
		fmt.Fprintln(out)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
