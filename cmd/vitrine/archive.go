package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/vitrine/internal/cli"
	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage recorded reports",
}

func withBackend(cmd *cobra.Command, fn func(ctx context.Context, b *cli.Backend, logger *slog.Logger) error) error {
	cfg, logger, err := cli.Setup(globalOptions(cmd))
	if err != nil {
		return err
	}
	b, err := cli.OpenBackend(cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(cmd.Context(), b, logger)
}

var archiveListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List recorded reports",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(ctx context.Context, b *cli.Backend, _ *slog.Logger) error {
			return cli.ListReports(ctx, b.Archive, cmd.OutOrStdout())
		})
	},
}

var archiveInspectCmd = &cobra.Command{
	Use:   "inspect <report-id>",
	Short: "Show a recorded report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return withBackend(cmd, func(ctx context.Context, b *cli.Backend, _ *slog.Logger) error {
			return cli.InspectReport(ctx, b.Archive, domain.ReportID(args[0]), cmd.OutOrStdout(), asJSON)
		})
	},
}

var archiveRemoveCmd = &cobra.Command{
	Use:     "rm <report-id>...",
	Aliases: []string{"remove"},
	Short:   "Delete recorded reports",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(ctx context.Context, b *cli.Backend, logger *slog.Logger) error {
			m := b.Manager(logger)
			for _, id := range args {
				if err := cli.RemoveReport(ctx, m, domain.ReportID(id)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveListCmd, archiveInspectCmd, archiveRemoveCmd)
	archiveInspectCmd.Flags().Bool("json", false, "Print the recording as JSON")
}
