package main

import (
	"github.com/aretw0/vitrine/internal/cli"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [url]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts a session for the report at url and exposes it as an MCP server, so
agents can read the document and rerun, stop or clear the cache.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP on mcp_port.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := cli.Setup(globalOptions(cmd))
		if err != nil {
			return err
		}
		transport, _ := cmd.Flags().GetString("transport")
		if cmd.Flags().Changed("port") {
			cfg.MCPPort, _ = cmd.Flags().GetInt("port")
		}

		ctx, stop := signalContext()
		defer stop()
		return cli.MCP(ctx, cfg, logger, target(cmd, cfg.ServerURL, args), transport)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", cli.TransportStdio, "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 0, "Port to listen on (only for SSE, overrides mcp_port)")
	mcpCmd.Flags().String("replay", "", "Expose a recorded report instead of a live one")
}
