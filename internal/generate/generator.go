// Package generate provides the answer generation capability over OpenAI-compatible chat APIs.
package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bloomwatch/chatbot/internal/config"
	"github.com/bloomwatch/chatbot/internal/models"
	"github.com/bloomwatch/chatbot/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SystemPrompt sets the advisor persona for every completion.
const SystemPrompt = "You are BloomWatch, an agricultural advisor for farmers. " +
	"Answer using the reference passages and the farmer's situation when they are given. " +
	"Be practical and concise. If the passages do not cover the question, say so and answer from general agronomy knowledge."

const openAIHost = "api.openai.com"

var errNoAPIKey = errors.New("generation api key not configured")

// Generator turns a prompt into answer text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChatAPI is the remote chat completions call.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIGenerator calls an OpenAI-compatible /chat/completions endpoint.
type OpenAIGenerator struct {
	api         ChatAPI
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	limiter     *rate.Limiter
	keyMissing  bool
	logger      *zap.Logger
}

// Option configures an OpenAIGenerator.
type Option func(*OpenAIGenerator)

// WithLogger sets the logger for failed calls.
func WithLogger(l *zap.Logger) Option {
	return func(g *OpenAIGenerator) { g.logger = l }
}

// WithChatAPI replaces the HTTP client, mainly for tests.
func WithChatAPI(api ChatAPI) Option {
	return func(g *OpenAIGenerator) { g.api = api }
}

// NewOpenAIGenerator builds a generator from config. A missing API key is only reported when
// Generate is called so the service can start without one.
func NewOpenAIGenerator(cfg config.GenerationConfig, opts ...Option) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	g := &OpenAIGenerator{
		api:         openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		keyMissing:  cfg.APIKey == "" && requiresKey(clientCfg.BaseURL),
	}
	if cfg.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = utils.OrNop(g.logger)
	return g
}

// Generate sends prompt as the user message and returns the first choice.
// Failures reaching the model are reported as models.ErrGenerationUnavailable. Not retried.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.keyMissing {
		return "", fmt.Errorf("%w: %v", models.ErrGenerationUnavailable, errNoAPIKey)
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}
	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := g.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		g.logger.Error("chat completion failed", zap.String("model", g.model), zap.Error(err))
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", models.ErrGenerationUnavailable)
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	g.logger.Debug("chat completion",
		zap.String("model", g.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("took", time.Since(started)),
	)
	return answer, nil
}

// classify marks transport failures, throttling, auth and server errors as unavailable.
// Other API errors (bad request) are returned wrapped as-is.
func classify(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	switch {
	case status == 0,
		status == http.StatusTooManyRequests,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %v", models.ErrGenerationUnavailable, err)
	}
	return fmt.Errorf("chat completion: %w", err)
}

func requiresKey(baseURL string) bool {
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), openAIHost)
}
