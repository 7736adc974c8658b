package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bloomwatch/chatbot/internal/config"
	"github.com/bloomwatch/chatbot/internal/models"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChatAPI struct {
	mock.Mock
}

func (m *MockChatAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func testConfig(baseURL string) config.GenerationConfig {
	return config.GenerationConfig{
		BaseURL:     baseURL,
		Model:       "test-model",
		APIKey:      "sk-test",
		Temperature: 0.3,
		MaxTokens:   128,
		Timeout:     5 * time.Second,
	}
}

func chatServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req openai.ChatCompletionRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			assert.Equal(t, "test-model", req.Model)
			assert.Len(t, req.Messages, 2)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate_Success(t *testing.T) {
	srv := chatServer(t, http.StatusOK, map[string]any{
		"choices": []map[string]any{
			{"index": 0, "message": map[string]any{"role": "assistant", "content": "  Irrigate weekly.  "}},
		},
	})
	g := NewOpenAIGenerator(testConfig(srv.URL + "/v1"))

	answer, err := g.Generate(context.Background(), "How often should I irrigate?")

	require.NoError(t, err)
	assert.Equal(t, "Irrigate weekly.", answer)
}

func TestGenerate_ServerErrorIsUnavailable(t *testing.T) {
	srv := chatServer(t, http.StatusServiceUnavailable, map[string]any{
		"error": map[string]any{"message": "overloaded", "type": "server_error"},
	})
	g := NewOpenAIGenerator(testConfig(srv.URL + "/v1"))

	_, err := g.Generate(context.Background(), "hello")

	assert.ErrorIs(t, err, models.ErrGenerationUnavailable)
}

func TestGenerate_BadRequestIsNotUnavailable(t *testing.T) {
	srv := chatServer(t, http.StatusBadRequest, map[string]any{
		"error": map[string]any{"message": "bad model", "type": "invalid_request_error"},
	})
	g := NewOpenAIGenerator(testConfig(srv.URL + "/v1"))

	_, err := g.Generate(context.Background(), "hello")

	require.Error(t, err)
	assert.False(t, errors.Is(err, models.ErrGenerationUnavailable))
}

func TestGenerate_UnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	g := NewOpenAIGenerator(testConfig(url + "/v1"))

	_, err := g.Generate(context.Background(), "hello")

	assert.ErrorIs(t, err, models.ErrGenerationUnavailable)
}

func TestGenerate_NoChoices(t *testing.T) {
	api := new(MockChatAPI)
	api.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(openai.ChatCompletionResponse{}, nil)
	g := NewOpenAIGenerator(testConfig("http://localhost/v1"), WithChatAPI(api))

	_, err := g.Generate(context.Background(), "hello")

	assert.ErrorIs(t, err, models.ErrGenerationUnavailable)
	api.AssertExpectations(t)
}

func TestGenerate_PromptAndSettings(t *testing.T) {
	api := new(MockChatAPI)
	api.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Model == "test-model" &&
			req.MaxTokens == 128 &&
			req.Messages[0].Role == openai.ChatMessageRoleSystem &&
			req.Messages[1].Content == "What is NDVI?"
	})).Return(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "An index."}}},
	}, nil)
	g := NewOpenAIGenerator(testConfig("http://localhost/v1"), WithChatAPI(api))

	answer, err := g.Generate(context.Background(), "What is NDVI?")

	require.NoError(t, err)
	assert.Equal(t, "An index.", answer)
	api.AssertExpectations(t)
}

func TestGenerate_MissingKeyForOpenAI(t *testing.T) {
	cfg := testConfig("https://api.openai.com/v1")
	cfg.APIKey = ""
	api := new(MockChatAPI)
	g := NewOpenAIGenerator(cfg, WithChatAPI(api))

	_, err := g.Generate(context.Background(), "hello")

	assert.ErrorIs(t, err, models.ErrGenerationUnavailable)
	api.AssertNotCalled(t, "CreateChatCompletion", mock.Anything, mock.Anything)
}

func TestGenerate_MissingKeyAllowedForLocalServer(t *testing.T) {
	cfg := testConfig("http://localhost:11434/v1")
	cfg.APIKey = ""
	api := new(MockChatAPI)
	api.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}},
	}, nil)
	g := NewOpenAIGenerator(cfg, WithChatAPI(api))

	answer, err := g.Generate(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
}

func TestGenerate_CancelledContext(t *testing.T) {
	api := new(MockChatAPI)
	api.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, context.Canceled)
	cfg := testConfig("http://localhost/v1")
	cfg.RequestsPerSecond = 0
	g := NewOpenAIGenerator(cfg, WithChatAPI(api))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, "hello")

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, models.ErrGenerationUnavailable))
}

func TestGenerate_RateLimited(t *testing.T) {
	api := new(MockChatAPI)
	api.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}},
	}, nil)
	cfg := testConfig("http://localhost/v1")
	cfg.RequestsPerSecond = 0.001
	g := NewOpenAIGenerator(cfg, WithChatAPI(api))

	_, err := g.Generate(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = g.Generate(ctx, "second")
	assert.Error(t, err)
	api.AssertNumberOfCalls(t, "CreateChatCompletion", 1)
}
