package main

import (
	"github.com/aretw0/vitrine/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [url]",
	Short: "Follow a report and expose the HTTP control API",
	Long: `Starts a session for the report at url (or a recorded report with --replay)
and serves the JSON control API, the server-sent view stream and /metrics
on http_addr.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := globalOptions(cmd)
		cfg, logger, err := cli.Setup(opts)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.HTTPAddr, _ = cmd.Flags().GetString("addr")
		}

		ctx, stop := signalContext()
		defer stop()
		return cli.Serve(ctx, cfg, logger, target(cmd, cfg.ServerURL, args))
	},
}

func target(cmd *cobra.Command, url string, args []string) cli.Target {
	t := cli.Target{URL: url}
	if len(args) > 0 {
		t.URL = args[0]
	}
	t.ReplayID, _ = cmd.Flags().GetString("replay")
	return t
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides http_addr)")
	serveCmd.Flags().String("replay", "", "Serve a recorded report instead of a live one")
}
