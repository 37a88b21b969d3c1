package main

import (
	"github.com/aretw0/vitrine/internal/cli"
	"github.com/aretw0/vitrine/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <report-id>",
	Short: "Show a recorded report",
	Long:  `Loads a recorded report from the configured archive and shows it as a static, read-only document.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := cli.Setup(globalOptions(cmd))
		if err != nil {
			return err
		}
		pace, _ := cmd.Flags().GetDuration("pace")

		ctx, stop := signalContext()
		defer stop()

		tui.PrintBanner(cmd.OutOrStdout())
		return cli.Watch(ctx, cfg, logger, cli.Target{ReplayID: args[0], Pace: pace}, nil, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Duration("pace", 0, "Delay between replayed envelopes")
}
