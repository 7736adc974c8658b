package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bloomwatch/chatbot/internal/models"
	"github.com/bloomwatch/chatbot/internal/server"
	"github.com/bloomwatch/chatbot/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Load (or build) the knowledge-base index and serve /chat, /chat/batch, /health, /info and /index/rebuild.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().IntP("port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().Bool("rebuild", false, "rebuild the index on startup even if one is persisted")
	cmd.Flags().Bool("watch", false, "rebuild the index when the corpus changes")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	rebuild, _ := cmd.Flags().GetBool("rebuild")
	watch, _ := cmd.Flags().GetBool("watch")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	// A failed initial build leaves the service up and reporting not-ready on /health.
	if err := ensureIndex(ctx, components, rebuild || cfg.Index.RebuildOnStart, logger); err != nil {
		logger.Error("index not ready", zap.Error(err))
	}

	if watch || cfg.Watch.Enabled {
		w := watcher.NewWatcher(cfg.Corpus.Root, cfg.Corpus.Extensions, func() {
			if _, err := components.Indexer.Rebuild(ctx); err != nil && !errors.Is(err, models.ErrRebuildInProgress) {
				logger.Error("rebuild after corpus change failed", zap.Error(err))
			}
		}, watcher.WithDebounce(cfg.Watch.Debounce), watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
	}

	srv := server.NewServer(components.Responder, components.Index, components.Indexer, cfg, version, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
