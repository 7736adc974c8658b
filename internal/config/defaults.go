package config

import "time"

const (
	ProviderHash   = "hash"
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"

	BackendSQLite = "sqlite"
	BackendFile   = "file"

	CacheMemory = "memory"
	CacheRedis  = "redis"

	DefaultCollection = "bloomwatch_agriculture"
)

// DefaultSupportedLanguages are the language codes accepted by default.
var DefaultSupportedLanguages = []string{"en", "hi", "mr", "ta", "te", "bn", "gu", "kn", "ml", "pa"}

// ApplyDefaults sets default values for any zero values in cfg.
// A chunk overlap of zero is indistinguishable from unset and receives the default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Corpus.Root == "" {
		cfg.Corpus.Root = "./knowledge_base"
	}
	if cfg.Corpus.Extensions == nil {
		cfg.Corpus.Extensions = []string{".txt", ".md", ".pdf"}
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 200
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderHash
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = BackendSQLite
	}
	if cfg.Index.Path == "" {
		if cfg.Index.Backend == BackendFile {
			cfg.Index.Path = "./vector_db"
		} else {
			cfg.Index.Path = "./vector_db/index.db"
		}
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = DefaultCollection
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o-mini"
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.3
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 512
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 60 * time.Second
	}
	if cfg.Translation.WorkingLanguage == "" {
		cfg.Translation.WorkingLanguage = "en"
	}
	if cfg.Translation.SupportedLanguages == nil {
		cfg.Translation.SupportedLanguages = append([]string(nil), DefaultSupportedLanguages...)
	}
	if cfg.Translation.Cache.Backend == "" {
		cfg.Translation.Cache.Backend = CacheMemory
	}
	if cfg.Translation.Cache.Size == 0 {
		cfg.Translation.Cache.Size = 2048
	}
	if cfg.Translation.Cache.TTL == 0 {
		cfg.Translation.Cache.TTL = 24 * time.Hour
	}
	if cfg.Batch.Concurrency == 0 {
		cfg.Batch.Concurrency = 4
	}
	if cfg.Batch.MaxSize == 0 {
		cfg.Batch.MaxSize = 20
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
}
