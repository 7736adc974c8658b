package main

import (
	"context"
	"fmt"

	"github.com/bloomwatch/chatbot/internal/cache"
	"github.com/bloomwatch/chatbot/internal/config"
	"github.com/bloomwatch/chatbot/internal/embedding"
	"github.com/bloomwatch/chatbot/internal/extract"
	"github.com/bloomwatch/chatbot/internal/generate"
	"github.com/bloomwatch/chatbot/internal/indexer"
	"github.com/bloomwatch/chatbot/internal/rag"
	"github.com/bloomwatch/chatbot/internal/storage"
	"github.com/bloomwatch/chatbot/internal/translate"
	"github.com/bloomwatch/chatbot/internal/vector"
	"go.uber.org/zap"
)

const translationCachePrefix = "bloomwatch:tr:"

// Components holds initialized services.
type Components struct {
	Store      vector.Store
	Embedder   embedding.Embedder
	Index      *vector.Index
	Indexer    *indexer.Indexer
	Generator  generate.Generator
	Responder  *rag.Responder
	transCache cache.StringStore
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.transCache != nil {
		_ = c.transCache.Close()
	}
}

// openStore opens the persisted index backend named in cfg.
func openStore(cfg config.IndexConfig) (vector.Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return vector.NewFileStore(cfg.Path), nil
	case config.BackendSQLite, "":
		store, err := storage.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

// openTranslationCache returns the configured cache. An unreachable Redis falls back to memory.
func openTranslationCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) cache.StringStore {
	if cfg.Backend == config.CacheRedis {
		client, err := cache.DialRedis(ctx, cfg.RedisAddr)
		if err == nil {
			logger.Info("translation cache ready", zap.String("backend", "redis"), zap.String("addr", cfg.RedisAddr))
			return cache.NewRedisStore(client, translationCachePrefix, cfg.TTL)
		}
		logger.Warn("redis unavailable, using in-memory translation cache", zap.Error(err))
	}
	return cache.NewMemoryStore(cfg.Size)
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	store, err := openStore(cfg.Index)
	if err != nil {
		return nil, err
	}
	c.Store = store

	embedder, err := embedding.New(cfg.Embedding, cfg.Generation, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	index, err := vector.NewIndex(embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	c.Index = index

	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	loader := indexer.NewLoader(extract.NewExtractor(), cfg.Corpus.Extensions, indexer.WithLoaderLogger(logger))
	c.Indexer = indexer.NewIndexer(cfg.Corpus.Root, cfg.Index.Collection, loader, chunker, embedder, index,
		indexer.WithStore(store),
		indexer.WithLogger(logger),
		indexer.WithBatchSize(cfg.Embedding.BatchSize),
		indexer.WithEmbedWorkers(cfg.Batch.Concurrency),
	)

	gen := generate.NewOpenAIGenerator(cfg.Generation, generate.WithLogger(logger))
	c.Generator = gen

	var translator translate.Translator
	if cfg.Translation.EnabledOrDefault() {
		c.transCache = openTranslationCache(ctx, cfg.Translation.Cache, logger)
		translator = translate.NewCachedTranslator(translate.NewLLMTranslator(gen), c.transCache, logger)
	}
	adapter := translate.NewAdapter(translator, cfg.Translation.WorkingLanguage, logger)

	c.Responder = rag.NewResponder(index, embedder, gen, adapter,
		rag.WithTopK(cfg.Retrieval.TopK),
		rag.WithLogger(logger),
		rag.WithWorkingLanguage(cfg.Translation.WorkingLanguage),
		rag.WithBatchConcurrency(cfg.Batch.Concurrency),
		rag.WithSupportedLanguages(cfg.Translation.SupportedLanguages),
	)
	ok = true
	return c, nil
}

// ensureIndex loads the persisted collection, rebuilding when it is missing or when forced.
func ensureIndex(ctx context.Context, c *Components, force bool, logger *zap.Logger) error {
	if !force {
		loaded, err := c.Indexer.Load(ctx)
		if err != nil {
			logger.Warn("persisted index unusable, rebuilding", zap.Error(err))
		} else if loaded {
			return nil
		}
	}
	_, err := c.Indexer.Rebuild(ctx)
	return err
}
