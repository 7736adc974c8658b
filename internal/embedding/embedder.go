// Package embedding provides text embedding providers and a caching decorator.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces unit-normalized vector embeddings for text.
// EmbedBatch must return the same vectors as calling Embed per element, in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Named is implemented by embedders that can say which model produced their vectors.
type Named interface {
	Name() string
}

// Describe identifies the vector space e produces, e.g. "hash/384". Vectors from embedders
// with different descriptions are not comparable.
func Describe(e Embedder) string {
	name := "unknown"
	if n, ok := e.(Named); ok {
		name = n.Name()
	}
	return fmt.Sprintf("%s/%d", name, e.Dimensions())
}
