package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/thand-io/skypost/internal/common"
	"github.com/thand-io/skypost/internal/config"
	"github.com/thand-io/skypost/internal/poster"
)

func runPost(cmd *cobra.Command, args []string) error {

	ctx, stop := common.WithInterrupt(context.Background())
	defer stop()

	var source poster.TextSource
	if useComposer(cfg.Input.Interactive, common.IsTerminal(cmd.InOrStdin())) {
		source = newComposer(cfg.Post.MaxGraphemes)
	}

	runner := poster.New(cfg, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), source)

	if err := runner.Run(ctx); err != nil {
		return &reportedError{err}
	}
	return nil
}

func useComposer(mode config.InteractiveMode, stdinIsTerminal bool) bool {
	switch mode {
	case config.InteractiveAlways:
		return true
	case config.InteractiveAuto:
		return stdinIsTerminal
	default:
		return false
	}
}
