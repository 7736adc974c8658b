// Package main is the BloomWatch chatbot CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bloomwatch/chatbot/internal/config"
	"github.com/bloomwatch/chatbot/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigFile = "config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bloomwatch",
		Short:         "BloomWatch agricultural advisory chatbot",
		Long:          "BloomWatch answers farmers' questions from a knowledge base of agricultural documents, optionally grounded on farm telemetry such as NDVI.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", defaultConfigFile, "config file path")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")

	root.AddCommand(serveCmd())
	root.AddCommand(indexCmd())
	root.AddCommand(askCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bloomwatch version %s\n", version)
		},
	}
}

// loadConfig reads --config. The default path may be absent, in which case defaults apply;
// an explicitly given path must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	explicit := cmd.Flags().Changed("config")
	cfg, err := config.LoadOrDefault(path, explicit)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
	}
	resolved, absErr := filepath.Abs(path)
	if absErr != nil {
		resolved = path
	}
	return cfg, resolved, nil
}

// setup loads config and builds the logger every command starts from.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.String("corpus_root", cfg.Corpus.Root),
		zap.String("index_path", cfg.Index.Path),
		zap.Bool("debug", cfg.Debug),
	)
	return cfg, logger, nil
}
