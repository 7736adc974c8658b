package rag

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bloomwatch/chatbot/internal/embedding"
	"github.com/bloomwatch/chatbot/internal/models"
	"github.com/bloomwatch/chatbot/internal/translate"
	"github.com/bloomwatch/chatbot/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testDims = 128

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockTranslator struct {
	mock.Mock
}

func (m *MockTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	args := m.Called(ctx, text, target)
	return args.String(0), args.Error(1)
}

var corpus = map[string]string{
	"ndvi_guide.txt": "NDVI, the Normalized Difference Vegetation Index, measures crop vegetation health from satellite imagery. NDVI above 0.6 indicates healthy vegetation.",
	"fertilizer.txt": "Apply nitrogen fertilizer in split doses. Urea should be applied after irrigation.",
	"rice.txt":       "Rice paddies need standing water during the tillering stage.",
}

func buildIndex(t *testing.T, emb embedding.Embedder, docs map[string]string) *vector.Index {
	t.Helper()
	index, err := vector.NewIndex(testDims)
	require.NoError(t, err)
	var entries []models.EmbeddedChunk
	for _, origin := range []string{"fertilizer.txt", "ndvi_guide.txt", "rice.txt"} {
		text, ok := docs[origin]
		if !ok {
			continue
		}
		vec, err := emb.Embed(context.Background(), text)
		require.NoError(t, err)
		entries = append(entries, models.EmbeddedChunk{
			Chunk:  models.Chunk{ID: origin + "#0", Text: text, Origin: origin},
			Vector: vec,
		})
	}
	require.NoError(t, index.Build(entries, "build-1"))
	return index
}

func newTestResponder(t *testing.T, docs map[string]string, gen *MockGenerator, tr translate.Translator, opts ...Option) *Responder {
	t.Helper()
	emb := embedding.NewHashEmbedder(testDims)
	index := buildIndex(t, emb, docs)
	var adapter *translate.Adapter
	if tr != nil {
		adapter = translate.NewAdapter(tr, "en", nil)
	}
	return NewResponder(index, emb, gen, adapter, opts...)
}

func f64(v float64) *float64 { return &v }

func TestChat_EmptyCorpusStillGenerates(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, noSourcesNotice) && strings.Contains(p, "What is NDVI?")
	})).Return("NDVI is a vegetation index.", nil)
	r := newTestResponder(t, nil, gen, nil)

	resp, err := r.Chat(context.Background(), &models.QueryRequest{Query: "What is NDVI?"})

	require.NoError(t, err)
	assert.Equal(t, "NDVI is a vegetation index.", resp.Answer)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, "en", resp.Language)
	assert.False(t, resp.FarmDataUsed)
	gen.AssertExpectations(t)
}

func TestChat_NDVIQueryCitesGuide(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Reference passages:") && strings.Contains(p, "(source: ndvi_guide.txt)")
	})).Return("NDVI measures vegetation health.", nil)
	r := newTestResponder(t, corpus, gen, nil, WithTopK(2))

	resp, err := r.Chat(context.Background(), &models.QueryRequest{Query: "What is NDVI?"})

	require.NoError(t, err)
	require.NotEmpty(t, resp.Sources)
	assert.Equal(t, "ndvi_guide.txt", resp.Sources[0])
	assert.LessOrEqual(t, len(resp.Sources), 2)
	assert.False(t, resp.FarmDataUsed)
	assert.False(t, resp.TranslationDegraded)
}

func TestChat_HindiWithTranslationUnavailable(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("Healthy crops have NDVI above 0.6.", nil)
	tr := new(MockTranslator)
	tr.On("Translate", mock.Anything, mock.Anything, mock.Anything).Return("", models.ErrTranslationFailed)
	r := newTestResponder(t, corpus, gen, tr)

	resp, err := r.Chat(context.Background(), &models.QueryRequest{Query: "मेरी फसल का NDVI क्या बताता है?", Language: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "Healthy crops have NDVI above 0.6.", resp.Answer)
	assert.Equal(t, "en", resp.Language)
	assert.Equal(t, "hi", resp.RequestedLanguage)
	assert.True(t, resp.TranslationDegraded)
}

func TestChat_HindiTranslatedBothWays(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Question: What does NDVI show?") &&
			strings.Contains(p, "Original question: NDVI क्या दिखाता है?")
	})).Return("Vegetation health.", nil)
	tr := new(MockTranslator)
	tr.On("Translate", mock.Anything, "NDVI क्या दिखाता है?", "en").Return("What does NDVI show?", nil)
	tr.On("Translate", mock.Anything, "Vegetation health.", "hi").Return("वनस्पति स्वास्थ्य।", nil)
	r := newTestResponder(t, corpus, gen, tr)

	resp, err := r.Chat(context.Background(), &models.QueryRequest{Query: "NDVI क्या दिखाता है?", Language: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "वनस्पति स्वास्थ्य।", resp.Answer)
	assert.Equal(t, "hi", resp.Language)
	assert.False(t, resp.TranslationDegraded)
	assert.Contains(t, resp.Sources, "ndvi_guide.txt")
	tr.AssertExpectations(t)
}

func TestChat_AutoDetectsLanguage(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("Answer.", nil)
	tr := new(MockTranslator)
	tr.On("Translate", mock.Anything, "धान की सिंचाई", "en").Return("rice irrigation", nil)
	tr.On("Translate", mock.Anything, "Answer.", "hi").Return("उत्तर।", nil)
	r := newTestResponder(t, corpus, gen, tr)

	resp, err := r.Chat(context.Background(), &models.QueryRequest{Query: "धान की सिंचाई", Language: "auto"})

	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Language)
	assert.Equal(t, "auto", resp.RequestedLanguage)
}

func TestChat_FarmDataInPrompt(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Farmer's situation:\nLocation: Pune, NDVI: 0.45 (moderate), Crop: Wheat, Soil: Black soil")
	})).Return("Consider nitrogen.", nil)
	r := newTestResponder(t, corpus, gen, nil)

	resp, err := r.Chat(context.Background(), &models.QueryRequest{
		Query: "How is my crop doing?",
		FarmData: &models.FarmContext{
			Location: "Pune",
			NDVI:     f64(0.45),
			CropType: "Wheat",
			SoilType: "Black soil",
		},
	})

	require.NoError(t, err)
	assert.True(t, resp.FarmDataUsed)
	gen.AssertExpectations(t)
}

func TestChat_EmptyFarmDataNotUsed(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return !strings.Contains(p, "Farmer's situation:")
	})).Return("ok", nil)
	r := newTestResponder(t, corpus, gen, nil)

	resp, err := r.Chat(context.Background(), &models.QueryRequest{
		Query:    "Tell me about rice",
		FarmData: &models.FarmContext{Location: "  "},
	})

	require.NoError(t, err)
	assert.False(t, resp.FarmDataUsed)
}

func TestChat_NotInitialized(t *testing.T) {
	index, err := vector.NewIndex(testDims)
	require.NoError(t, err)
	gen := new(MockGenerator)
	r := NewResponder(index, embedding.NewHashEmbedder(testDims), gen, nil)

	assert.Equal(t, StateUninitialized, r.State())
	_, err = r.Chat(context.Background(), &models.QueryRequest{Query: "What is NDVI?"})
	assert.ErrorIs(t, err, models.ErrNotInitialized)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestChat_GenerationUnavailable(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", models.ErrGenerationUnavailable)
	r := newTestResponder(t, corpus, gen, nil)

	assert.Equal(t, StateReady, r.State())
	_, err := r.Chat(context.Background(), &models.QueryRequest{Query: "What is NDVI?"})
	assert.ErrorIs(t, err, models.ErrGenerationUnavailable)
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestChat_InvalidRequest(t *testing.T) {
	r := newTestResponder(t, corpus, new(MockGenerator), nil, WithSupportedLanguages([]string{"en", "hi"}))

	_, err := r.Chat(context.Background(), &models.QueryRequest{Query: "   "})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	_, err = r.Chat(context.Background(), &models.QueryRequest{Query: "hello", Language: "fr"})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	_, err = r.Chat(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

// slowGenerator answers after a delay that shrinks with the request number so later entries
// finish first.
type slowGenerator struct {
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (g *slowGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.active++
	g.maxSeen = max(g.maxSeen, g.active)
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.active--
		g.mu.Unlock()
	}()

	delay := 30 * time.Millisecond
	if strings.Contains(prompt, "Question: q3") {
		delay = time.Millisecond
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	i := strings.Index(prompt, "Question: ")
	return "answer to " + strings.TrimSpace(prompt[i+len("Question: "):]), nil
}

func TestChatBatch_PreservesOrderAndIsolatesFailures(t *testing.T) {
	gen := &slowGenerator{}
	emb := embedding.NewHashEmbedder(testDims)
	r := NewResponder(buildIndex(t, emb, corpus), emb, gen, nil, WithBatchConcurrency(2))

	reqs := []*models.QueryRequest{
		{Query: "q1"},
		{Query: ""},
		{Query: "q3"},
		nil,
		{Query: "q5"},
	}
	out := r.ChatBatch(context.Background(), reqs)

	require.Len(t, out, len(reqs))
	assert.Equal(t, "answer to q1", out[0].Answer)
	assert.NotEmpty(t, out[1].Error)
	assert.Equal(t, "answer to q3", out[2].Answer)
	assert.NotEmpty(t, out[3].Error)
	assert.Equal(t, "answer to q5", out[4].Answer)
	for _, i := range []int{0, 2, 4} {
		assert.Empty(t, out[i].Error)
	}
	assert.LessOrEqual(t, gen.maxSeen, 2)
}

func TestChatBatch_CancelledContext(t *testing.T) {
	gen := new(MockGenerator)
	r := newTestResponder(t, corpus, gen, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := r.ChatBatch(ctx, []*models.QueryRequest{{Query: "a"}, {Query: "b", Language: "hi"}})

	require.Len(t, out, 2)
	for _, resp := range out {
		assert.Contains(t, resp.Error, context.Canceled.Error())
	}
	assert.Equal(t, "hi", out[1].RequestedLanguage)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestChatBatch_Empty(t *testing.T) {
	r := newTestResponder(t, corpus, new(MockGenerator), nil)
	out := r.ChatBatch(context.Background(), nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestChat_LeavesRequestUntouched(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("NDVI measures greenness.", nil)
	r := newTestResponder(t, corpus, gen, nil)

	req := &models.QueryRequest{Query: "  What is NDVI?  ", Language: " EN "}
	resp, err := r.Chat(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "en", resp.RequestedLanguage)
	assert.Equal(t, "  What is NDVI?  ", req.Query)
	assert.Equal(t, " EN ", req.Language)
}

func TestChatBatch_SharedRequest(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("ok", nil)
	r := newTestResponder(t, corpus, gen, nil, WithBatchConcurrency(4))

	req := &models.QueryRequest{Query: " rice water ", Language: "EN"}
	out := r.ChatBatch(context.Background(), []*models.QueryRequest{req, req, req, req})

	require.Len(t, out, 4)
	for _, resp := range out {
		assert.Empty(t, resp.Error)
		assert.Equal(t, "ok", resp.Answer)
	}
	assert.Equal(t, " rice water ", req.Query)
	assert.Equal(t, "EN", req.Language)
}

func TestChatBatch_FailedEntryUsesWorkingLanguage(t *testing.T) {
	gen := new(MockGenerator)
	emb := embedding.NewHashEmbedder(testDims)
	r := NewResponder(buildIndex(t, emb, corpus), emb, gen, nil, WithWorkingLanguage("hi"))

	out := r.ChatBatch(context.Background(), []*models.QueryRequest{{Query: "  ", Language: "en"}, nil})
	require.Len(t, out, 2)
	for _, resp := range out {
		assert.NotEmpty(t, resp.Error)
		assert.Equal(t, "hi", resp.Language)
	}
	assert.Equal(t, "en", out[0].RequestedLanguage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out = r.ChatBatch(ctx, []*models.QueryRequest{{Query: "rice"}})
	require.Len(t, out, 1)
	assert.Equal(t, "hi", out[0].Language)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}
