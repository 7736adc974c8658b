package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces environment overrides, e.g. BLOOMWATCH_PORT.
const EnvPrefix = "BLOOMWATCH"

// Env holds environment overrides. Each key is read as BLOOMWATCH_<KEY>, falling back to
// the bare <KEY> (so OPENAI_API_KEY works as-is).
type Env struct {
	Debug             *bool  `envconfig:"DEBUG"`
	Port              int    `envconfig:"PORT"`
	CorpusRoot        string `envconfig:"CORPUS_ROOT"`
	EmbeddingProvider string `envconfig:"EMBEDDING_PROVIDER"`
	OpenAIAPIKey      string `envconfig:"OPENAI_API_KEY"`
	GenerationBaseURL string `envconfig:"GENERATION_BASE_URL"`
	GenerationModel   string `envconfig:"GENERATION_MODEL"`
	RedisAddr         string `envconfig:"REDIS_ADDR"`
}

// ApplyEnv loads a .env file when present and overlays environment variables onto cfg.
// Environment values win over the config file.
func ApplyEnv(cfg *Config) error {
	_ = godotenv.Load()

	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}
	if env.Debug != nil {
		cfg.Debug = *env.Debug
	}
	if env.Port != 0 {
		cfg.Server.Port = env.Port
	}
	if env.CorpusRoot != "" {
		cfg.Corpus.Root = env.CorpusRoot
	}
	if env.EmbeddingProvider != "" {
		cfg.Embedding.Provider = env.EmbeddingProvider
	}
	if env.OpenAIAPIKey != "" {
		cfg.Generation.APIKey = env.OpenAIAPIKey
	}
	if env.GenerationBaseURL != "" {
		cfg.Generation.BaseURL = env.GenerationBaseURL
	}
	if env.GenerationModel != "" {
		cfg.Generation.Model = env.GenerationModel
	}
	if env.RedisAddr != "" {
		cfg.Translation.Cache.RedisAddr = env.RedisAddr
	}
	return nil
}
