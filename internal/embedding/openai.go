package embedding

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bloomwatch/chatbot/internal/models"
	"github.com/bloomwatch/chatbot/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no embedding model is configured for the openai provider.
const DefaultOpenAIModel = string(openai.SmallEmbedding3)

// ErrWrongDimensions is returned when the remote model returns vectors of an unexpected size.
var ErrWrongDimensions = errors.New("embedding has wrong dimensions")

// EmbeddingAPI is the remote embedding call. Results are returned in input order.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIAdapter calls an OpenAI-compatible /embeddings endpoint.
type OpenAIAdapter struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIAdapter returns an adapter for baseURL (empty means the public OpenAI API).
func NewOpenAIAdapter(apiKey, baseURL, model string, dimensions int) *OpenAIAdapter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIAdapter{
		client:     openai.NewClientWithConfig(cfg),
		model:      openai.EmbeddingModel(model),
		dimensions: dimensions,
	}
}

// CreateEmbeddings sends texts as one batch request and reorders results by index.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	}
	if a.model == openai.SmallEmbedding3 || a.model == openai.LargeEmbedding3 {
		req.Dimensions = a.dimensions
	}
	resp, err := a.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

// OpenAIEmbedder produces embeddings through an EmbeddingAPI and normalizes them.
type OpenAIEmbedder struct {
	api        EmbeddingAPI
	dimensions int
}

// NewOpenAIEmbedder returns an embedder over api expecting vectors of the given dimensions.
func NewOpenAIEmbedder(api EmbeddingAPI, dimensions int) *OpenAIEmbedder {
	return &OpenAIEmbedder{api: api, dimensions: dimensions}
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in a single remote call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, models.ErrEmptyText
		}
	}
	vecs, err := e.api.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	for i, v := range vecs {
		if len(v) != e.dimensions {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, e.dimensions, len(v))
		}
		if !utils.NormalizeL2(v) {
			return nil, fmt.Errorf("embedding %d is a zero vector", i)
		}
	}
	return vecs, nil
}

func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

func (e *OpenAIEmbedder) Close() error { return nil }

// Name identifies the remote model.
func (a *OpenAIAdapter) Name() string { return "openai:" + string(a.model) }

// Name reports the API's model name when it has one.
func (e *OpenAIEmbedder) Name() string {
	if n, ok := e.api.(Named); ok {
		return n.Name()
	}
	return "openai"
}
