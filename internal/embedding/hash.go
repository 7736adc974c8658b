package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/bloomwatch/chatbot/internal/models"
	"github.com/bloomwatch/chatbot/pkg/utils"
)

const trigramWeight = 0.35

// HashEmbedder is a deterministic, dependency-free embedder based on signed feature hashing
// of word tokens and character trigrams. It needs no model files and is the offline default.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns an embedder producing vectors of the given dimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns a unit vector for text. Blank text returns models.ErrEmptyText.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.ErrEmptyText
	}

	acc := make([]float64, e.dimensions)
	words := SplitWords(strings.ToLower(text))
	counts := make(map[string]int, len(words))
	order := make([]string, 0, len(words))
	for _, w := range words {
		if isStopWord(w) {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	for _, w := range order {
		weight := 1 + math.Log(float64(counts[w]))
		e.add(acc, "w:"+w, weight)
		for _, g := range trigrams(w) {
			e.add(acc, "g:"+g, weight*trigramWeight)
		}
	}
	if len(order) == 0 {
		// Stop words or punctuation only: fall back to raw rune features.
		for _, r := range text {
			e.add(acc, "r:"+string(r), 1)
		}
	}

	vec := make([]float32, e.dimensions)
	for i, v := range acc {
		vec[i] = float32(v)
	}
	if !utils.NormalizeL2(vec) {
		// Signed collisions cancelled out; pin to the bucket of the whole text.
		vec[e.bucket("t:"+text)] = 1
	}
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Name identifies the feature-hashing scheme.
func (e *HashEmbedder) Name() string { return "hash" }

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}

func (e *HashEmbedder) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dimensions))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	acc[idx] += weight
}

func (e *HashEmbedder) bucket(feature string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	return int(h.Sum64() % uint64(e.dimensions))
}

func trigrams(word string) []string {
	r := []rune("<" + word + ">")
	if len(r) < 3 {
		return nil
	}
	out := make([]string, 0, len(r)-2)
	for i := 0; i+3 <= len(r); i++ {
		out = append(out, string(r[i:i+3]))
	}
	return out
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "be": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "for": {}, "and": {}, "or": {}, "what": {}, "which": {}, "how": {},
	"my": {}, "i": {}, "it": {}, "do": {}, "does": {}, "with": {}, "at": {}, "by": {}, "this": {},
	"that": {}, "should": {}, "can": {}, "me": {}, "your": {}, "you": {},
}

func isStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}
