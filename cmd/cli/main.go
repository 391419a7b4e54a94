package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/thand-io/skypost/internal/config"
)

// Global configuration instance
var cfg *config.Config

// reportedError marks a failure that has already been printed.
type reportedError struct {
	error
}

func (e *reportedError) Unwrap() error {
	return e.error
}

// loadConfig loads the configuration based on the --config flag or default locations
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	return config.Load(configFile)
}

func preRunConfigE(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	// check if verbose flag is set
	verbose, err := cmd.Flags().GetBool("verbose")
	if err == nil && verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	return nil
}

// applyFlags lets command line flags override file and environment
// settings, then validates the result again.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if service, err := flags.GetString("service"); err == nil && len(service) > 0 {
		cfg.SetServiceUrl(service)
	}

	if path, err := flags.GetString("session-file"); err == nil && len(path) > 0 {
		cfg.Session.Path = path
	}

	if mode, err := flags.GetString("input-mode"); err == nil && len(mode) > 0 {
		cfg.Input.Mode = config.InputMode(strings.ToLower(mode))
	}

	if flags.Changed("fallback-login") {
		fallback, _ := flags.GetBool("fallback-login")
		cfg.Auth.FallbackToLogin = fallback
	}

	if flags.Changed("interactive") {
		interactive, _ := flags.GetBool("interactive")
		if interactive {
			cfg.Input.Interactive = config.InteractiveAlways
		} else {
			cfg.Input.Interactive = config.InteractiveNever
		}
	}

	if flags.Changed("lang") {
		langs, _ := flags.GetStringSlice("lang")
		cfg.Post.Langs = langs
	}

	return cfg.Validate()
}

var rootCmd = &cobra.Command{
	Use:   "skypost",
	Short: "Post to Bluesky from the command line",
	Long: `skypost reads text from standard input and publishes it as a Bluesky post.

The session is cached in session.json and reused on later runs. Credentials
are taken from BLUESKY_USERNAME and BLUESKY_PASSWORD when a login is needed.

skypost exits with status 0 once the post is published and with status 1
when reading input, authenticating or posting fails. Scripts can test the
exit status instead of scraping the ERROR line.

  echo "hello world" | skypost`,
	PersistentPreRunE: preRunConfigE,
	SilenceErrors:     true,
	SilenceUsage:      true,
	Args:              cobra.NoArgs,
	RunE:              runPost,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default is ./config.yaml or ~/.config/skypost/config.yaml)")
	rootCmd.PersistentFlags().String("service", "", "Override the service URL (e.g., https://bsky.social)")
	rootCmd.PersistentFlags().String("session-file", "", "Path of the cached session file")
	rootCmd.PersistentFlags().Bool("fallback-login", false, "Log in again when the cached session is rejected")

	rootCmd.Flags().String("input-mode", "", "How much of standard input to read: chunk, line or all")
	rootCmd.Flags().BoolP("interactive", "i", false, "Compose the post in an editor form")
	rootCmd.Flags().StringSlice("lang", nil, "Language of the post (repeatable, e.g. --lang en)")
}

// Execute runs the command line and reports any error not already shown.
func Execute() error {
	err := rootCmd.Execute()
	if err == nil {
		return nil
	}

	var reported *reportedError
	if !errors.As(err, &reported) {
		fmt.Fprintln(os.Stderr, errorStyle.Render("ERROR :"), err)
	}
	return err
}

func GetCommandOptions() *cobra.Command {
	return rootCmd
}
