package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/bloomwatch/chatbot/internal/cli"
	"github.com/bloomwatch/chatbot/internal/config"
	"github.com/bloomwatch/chatbot/internal/storage"
	"github.com/bloomwatch/chatbot/internal/vector"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the persisted index status",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	cmd.Flags().StringP("output", "o", "text", "output format: text or json")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := outputFlag(cmd)
	if err != nil {
		return err
	}
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStore(cfg.Index)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := indexStatus(context.Background(), cfg.Index, store)
	if err != nil {
		return err
	}
	return cli.WriteStatus(cmd.OutOrStdout(), st, format)
}

// indexStatus describes the persisted collection without loading it into a live index when the
// backend can report metadata directly.
func indexStatus(ctx context.Context, cfg config.IndexConfig, store vector.Store) (*cli.Status, error) {
	st := &cli.Status{Collection: cfg.Collection, Backend: cfg.Backend, Path: cfg.Path}
	if sq, ok := store.(*storage.SQLiteStore); ok {
		infos, err := sq.Collections(ctx)
		if err != nil {
			return nil, fmt.Errorf("list collections: %w", err)
		}
		for _, info := range infos {
			if info.Name != cfg.Collection {
				continue
			}
			st.Built = true
			st.BuildID, st.Chunks, st.Documents = info.BuildID, info.Chunks, info.Documents
			st.Embedder = info.Embedder
			st.Dimensions, st.BuiltAt = info.Dimensions, info.BuiltAt
		}
		st.DiskUsageBytes, _ = storage.IndexDiskUsage(cfg.Path)
		return st, nil
	}

	snap, err := store.Load(ctx, cfg.Collection)
	switch {
	case errors.Is(err, vector.ErrCollectionNotFound):
	case err != nil:
		return nil, fmt.Errorf("load collection: %w", err)
	default:
		st.Built = true
		st.BuildID, st.Chunks = snap.BuildID, len(snap.Entries)
		st.Embedder = snap.Embedder
		st.Dimensions, st.BuiltAt = snap.Dimensions, snap.BuiltAt
		origins := make(map[string]struct{})
		for _, e := range snap.Entries {
			origins[e.Chunk.Origin] = struct{}{}
		}
		st.Documents = len(origins)
	}
	st.DiskUsageBytes, _ = storage.DiskUsageBytes(cfg.Path)
	return st, nil
}
