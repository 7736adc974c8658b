package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bloomwatch/chatbot/internal/embedding"
	"github.com/bloomwatch/chatbot/internal/models"
	"github.com/bloomwatch/chatbot/internal/vector"
	"github.com/bloomwatch/chatbot/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize    = 32
	defaultEmbedWorkers = 2
)

// BuildReport summarizes a completed rebuild.
type BuildReport struct {
	BuildID   string                 `json:"build_id"`
	Documents int                    `json:"documents"`
	Chunks    int                    `json:"chunks"`
	Warnings  []models.IngestWarning `json:"warnings,omitempty"`
	Duration  time.Duration          `json:"duration"`
}

// Indexer runs the ingestion pipeline: load, chunk, embed, persist, then swap the live index.
type Indexer struct {
	root       string
	collection string
	loader     *Loader
	chunker    *Chunker
	embedder   embedding.Embedder
	embedderID string
	index      *vector.Index
	store      vector.Store // optional; nil keeps the index in memory only
	batchSize  int
	workers    int
	logger     *zap.Logger
	rebuilding atomic.Bool
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for pipeline events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithStore persists each build to store before it is swapped in.
func WithStore(store vector.Store) IndexerOption {
	return func(idx *Indexer) { idx.store = store }
}

// WithBatchSize sets how many chunks are sent per EmbedBatch call.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// WithEmbedWorkers bounds how many EmbedBatch calls run at once.
func WithEmbedWorkers(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.workers = n
		}
	}
}

// NewIndexer creates an indexer for the corpus under root, stored under collection.
func NewIndexer(
	root, collection string,
	loader *Loader,
	chunker *Chunker,
	embedder embedding.Embedder,
	index *vector.Index,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		root:       root,
		collection: collection,
		loader:     loader,
		chunker:    chunker,
		embedder:   embedder,
		embedderID: embedding.Describe(embedder),
		index:      index,
		batchSize:  defaultBatchSize,
		workers:    defaultEmbedWorkers,
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.OrNop(idx.logger)
	return idx
}

// Rebuild reindexes the whole corpus. The live index keeps serving the previous build until the
// new one is complete. Returns models.ErrRebuildInProgress if another rebuild is running.
// Cancellation before the swap leaves both the store and the live index untouched.
func (idx *Indexer) Rebuild(ctx context.Context) (*BuildReport, error) {
	if !idx.rebuilding.CompareAndSwap(false, true) {
		return nil, models.ErrRebuildInProgress
	}
	defer idx.rebuilding.Store(false)

	started := time.Now()
	buildID := uuid.NewString()
	idx.logger.Info("index rebuild started", zap.String("build_id", buildID), zap.String("root", idx.root))

	docs, warnings, err := idx.loader.Load(ctx, idx.root)
	if err != nil {
		return nil, err
	}
	chunks := idx.chunker.Split(docs)
	entries, err := idx.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}

	snap := &vector.Snapshot{
		Collection: idx.collection,
		BuildID:    buildID,
		Embedder:   idx.embedderID,
		Dimensions: idx.index.Dimensions(),
		BuiltAt:    time.Now().UTC(),
		Entries:    entries,
	}
	if idx.store != nil {
		if err := idx.store.Save(ctx, snap); err != nil {
			return nil, fmt.Errorf("persist index: %w", err)
		}
	}
	if err := idx.index.Restore(snap); err != nil {
		return nil, fmt.Errorf("swap index: %w", err)
	}

	report := &BuildReport{
		BuildID:   buildID,
		Documents: len(docs),
		Chunks:    len(entries),
		Warnings:  warnings,
		Duration:  time.Since(started),
	}
	idx.logger.Info("index rebuild finished",
		zap.String("build_id", buildID),
		zap.Int("documents", report.Documents),
		zap.Int("chunks", report.Chunks),
		zap.Int("warnings", len(warnings)),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// Load restores the persisted collection into the live index. Returns false when nothing has
// been persisted yet (or no store is configured). A collection built by a different embedder
// is rejected with vector.ErrEmbedderMismatch and the live index is left untouched.
func (idx *Indexer) Load(ctx context.Context) (bool, error) {
	if idx.store == nil {
		return false, nil
	}
	snap, err := idx.store.Load(ctx, idx.collection)
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load index: %w", err)
	}
	if snap.Embedder != idx.embedderID {
		return false, fmt.Errorf("%w: collection %s was built by %q, configured embedder is %q",
			vector.ErrEmbedderMismatch, idx.collection, snap.Embedder, idx.embedderID)
	}
	if err := idx.index.Restore(snap); err != nil {
		return false, fmt.Errorf("restore index: %w", err)
	}
	idx.logger.Info("index loaded",
		zap.String("collection", idx.collection),
		zap.String("build_id", snap.BuildID),
		zap.Int("chunks", len(snap.Entries)),
	)
	return true, nil
}

// Rebuilding reports whether a rebuild is running.
func (idx *Indexer) Rebuilding() bool {
	return idx.rebuilding.Load()
}

// Collection returns the collection name builds are stored under.
func (idx *Indexer) Collection() string {
	return idx.collection
}

// embed computes vectors in fixed-size batches, a bounded number at a time. Whitespace-only
// chunks carry nothing to embed and are dropped.
func (idx *Indexer) embed(ctx context.Context, chunks []models.Chunk) ([]models.EmbeddedChunk, error) {
	kept := chunks[:0:0]
	for _, ch := range chunks {
		if strings.TrimSpace(ch.Text) == "" {
			idx.logger.Debug("dropping blank chunk", zap.String("id", ch.ID))
			continue
		}
		kept = append(kept, ch)
	}

	vectors := make([][]float32, len(kept))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for start := 0; start < len(kept); start += idx.batchSize {
		end := min(start+idx.batchSize, len(kept))
		g.Go(func() error {
			texts := make([]string, end-start)
			for i := range texts {
				texts[i] = kept[start+i].Text
			}
			vecs, err := idx.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end, len(vecs))
			}
			copy(vectors[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]models.EmbeddedChunk, len(kept))
	for i, ch := range kept {
		entries[i] = models.EmbeddedChunk{Chunk: ch, Vector: vectors[i]}
	}
	return entries, nil
}
