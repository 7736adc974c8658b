package embedding

import (
	"fmt"

	"github.com/bloomwatch/chatbot/internal/config"
	"github.com/bloomwatch/chatbot/pkg/utils"
	"go.uber.org/zap"
)

// New builds the configured embedding provider wrapped in an LRU cache.
// An ONNX model that cannot be loaded falls back to the hash embedder with a warning.
func New(emb config.EmbeddingConfig, gen config.GenerationConfig, logger *zap.Logger) (Embedder, error) {
	logger = utils.OrNop(logger)
	var inner Embedder
	switch emb.Provider {
	case config.ProviderONNX:
		onnx, err := NewONNXEmbedder(emb.ModelPath, emb.Dimensions, emb.MaxTokens)
		if err != nil {
			logger.Warn("ONNX embedder unavailable, using hash embedder",
				zap.String("model_path", emb.ModelPath), zap.Error(err))
			inner = NewHashEmbedder(emb.Dimensions)
		} else {
			inner = onnx
		}
	case config.ProviderOpenAI:
		api := NewOpenAIAdapter(gen.APIKey, gen.BaseURL, emb.Model, emb.Dimensions)
		inner = NewOpenAIEmbedder(api, emb.Dimensions)
	case config.ProviderHash, "":
		inner = NewHashEmbedder(emb.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", emb.Provider)
	}
	logger.Info("embedder ready", zap.String("provider", emb.Provider), zap.Int("dimensions", inner.Dimensions()))
	return NewCachedEmbedder(inner, emb.CacheSize), nil
}
