package main

import (
	"io"
	"os"

	"github.com/aretw0/vitrine/internal/cli"
	"github.com/aretw0/vitrine/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [url]",
	Short: "Follow a live report",
	Long: `Connects to the report server at url (or server_url from the configuration)
and redraws the document after every change.

Commands read from stdin: rerun [always], stop, clear, upload, close, wide,
login <token>, cancel, set <widget> <value>, quit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := cli.Setup(globalOptions(cmd))
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		var in io.Reader
		if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
			in = os.Stdin
		}
		tui.PrintBanner(cmd.OutOrStdout())
		return cli.Watch(ctx, cfg, logger, target(cmd, cfg.ServerURL, args), in, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolP("interactive", "i", true, "Read control commands from stdin")
}
