// Package rag answers farmer questions by retrieving knowledge-base passages and grounding a
// generated answer on them.
package rag

import (
	"context"
	"fmt"

	"github.com/bloomwatch/chatbot/internal/embedding"
	"github.com/bloomwatch/chatbot/internal/generate"
	"github.com/bloomwatch/chatbot/internal/models"
	"github.com/bloomwatch/chatbot/internal/translate"
	"github.com/bloomwatch/chatbot/internal/vector"
	"github.com/bloomwatch/chatbot/pkg/utils"
	"go.uber.org/zap"
)

const (
	DefaultTopK             = 4
	DefaultBatchConcurrency = 4

	logQueryChars = 80
)

// State is the responder lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateReady         State = "ready"
)

// Searcher is the read side of the vector index.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int) ([]vector.Result, error)
	Initialized() bool
}

// Responder is safe for concurrent use. It holds no per-request state.
type Responder struct {
	index       Searcher
	embedder    embedding.Embedder
	generator   generate.Generator
	adapter     *translate.Adapter
	topK        int
	working     string
	supported   []string
	concurrency int
	logger      *zap.Logger
}

// Option configures a Responder.
type Option func(*Responder)

// WithTopK sets how many passages are retrieved per query.
func WithTopK(k int) Option {
	return func(r *Responder) {
		if k > 0 {
			r.topK = k
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Responder) { r.logger = l }
}

// WithWorkingLanguage sets the language of the knowledge base.
func WithWorkingLanguage(lang string) Option {
	return func(r *Responder) {
		if lang != "" {
			r.working = lang
		}
	}
}

// WithBatchConcurrency bounds how many batch entries are answered at once.
func WithBatchConcurrency(n int) Option {
	return func(r *Responder) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithSupportedLanguages restricts the accepted request languages.
func WithSupportedLanguages(langs []string) Option {
	return func(r *Responder) { r.supported = langs }
}

// NewResponder wires the retrieval pipeline. A nil adapter disables translation.
func NewResponder(index Searcher, embedder embedding.Embedder, generator generate.Generator, adapter *translate.Adapter, opts ...Option) *Responder {
	r := &Responder{
		index:       index,
		embedder:    embedder,
		generator:   generator,
		topK:        DefaultTopK,
		working:     models.DefaultLanguage,
		concurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.OrNop(r.logger)
	if adapter == nil {
		adapter = translate.NewAdapter(nil, r.working, r.logger)
	}
	r.adapter = adapter
	return r
}

// State reports whether the index has been built or loaded.
func (r *Responder) State() State {
	if r.index.Initialized() {
		return StateReady
	}
	return StateUninitialized
}

// SupportedLanguages returns the accepted request language codes.
func (r *Responder) SupportedLanguages() []string {
	return r.supported
}

// Chat answers one request without modifying req. Translation failures degrade to untranslated
// text and are flagged on the response; a failed generation call fails the request with
// models.ErrGenerationUnavailable. Zero retrieved passages is not an error.
func (r *Responder) Chat(ctx context.Context, req *models.QueryRequest) (*models.AnswerResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: missing request", models.ErrInvalidRequest)
	}
	q := *req
	if err := q.Normalize(r.supported); err != nil {
		return nil, err
	}
	if !r.index.Initialized() {
		return nil, models.ErrNotInitialized
	}

	lang := q.Language
	if lang == models.AutoLanguage {
		lang = translate.Detect(q.Query)
	}
	r.logger.Debug("chat request",
		zap.String("query", utils.Truncate(q.Query, logQueryChars)),
		zap.Int("query_chars", len([]rune(q.Query))),
		zap.String("language", lang),
		zap.Bool("farm_data", !q.FarmData.IsEmpty()),
	)

	degraded := false
	question, ok := r.adapter.Inbound(ctx, q.Query, lang)
	if !ok {
		degraded = true
	}

	vec, err := r.embedder.Embed(ctx, effectiveQuery(question, q.FarmData))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := r.index.Search(ctx, vec, r.topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	prompt := BuildPrompt(PromptInput{
		Question: question,
		Original: q.Query,
		Farm:     q.FarmData,
		Passages: results,
	})
	answer, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		r.logger.Error("generation failed", zap.Error(err))
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	answerLang := r.adapter.Working()
	if lang != answerLang {
		translated, ok := r.adapter.Outbound(ctx, answer, lang)
		if ok {
			answer, answerLang = translated, lang
		} else {
			degraded = true
		}
	}

	return &models.AnswerResponse{
		Answer:              answer,
		Sources:             sourcesOf(results),
		Language:            answerLang,
		RequestedLanguage:   q.Language,
		FarmDataUsed:        !q.FarmData.IsEmpty(),
		TranslationDegraded: degraded,
	}, nil
}
