package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/bloomwatch/chatbot/internal/cli"
	"github.com/spf13/cobra"
)

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the knowledge-base index",
		Long:  "Read every document under the corpus root, chunk and embed it, and replace the persisted index.",
		Args:  cobra.NoArgs,
		RunE:  runIndex,
	}
	cmd.Flags().StringP("output", "o", "text", "output format: text or json")
	return cmd
}

func runIndex(cmd *cobra.Command, args []string) error {
	format, err := outputFlag(cmd)
	if err != nil {
		return err
	}
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	report, err := components.Indexer.Rebuild(ctx)
	if err != nil {
		return err
	}
	return cli.WriteBuildReport(cmd.OutOrStdout(), report, format)
}

func outputFlag(cmd *cobra.Command) (cli.OutputFormat, error) {
	raw, _ := cmd.Flags().GetString("output")
	return cli.ParseOutputFormat(raw)
}
