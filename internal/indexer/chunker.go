// Package indexer loads the knowledge base, splits it into chunks, and builds the vector index.
package indexer

import (
	"fmt"

	"github.com/bloomwatch/chatbot/internal/fileid"
	"github.com/bloomwatch/chatbot/internal/models"
)

// Separators in preference order: paragraph, line, sentence, word. A raw cut is the last resort.
var separators = [][]rune{[]rune("\n\n"), []rune("\n"), []rune(". "), []rune(" ")}

// Chunker splits documents into overlapping character windows, cutting at the coarsest
// separator that keeps the chunk within maxChunkSize.
type Chunker struct {
	maxChunkSize int
	overlap      int
}

// NewChunker creates a chunker. Sizes are in characters (runes).
// Returns models.ErrConfiguration unless 0 <= overlap < maxChunkSize.
func NewChunker(maxChunkSize, overlap int) (*Chunker, error) {
	if maxChunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", models.ErrConfiguration, maxChunkSize)
	}
	if overlap < 0 || overlap >= maxChunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", models.ErrConfiguration, overlap, maxChunkSize)
	}
	return &Chunker{maxChunkSize: maxChunkSize, overlap: overlap}, nil
}

// Split chunks every document, in order.
func (c *Chunker) Split(docs []*models.SourceDocument) []models.Chunk {
	var out []models.Chunk
	for _, doc := range docs {
		out = append(out, c.SplitDocument(doc)...)
	}
	return out
}

// SplitDocument returns the chunks of one document. Consecutive chunks share exactly
// overlap characters; a document no longer than maxChunkSize yields one chunk.
func (c *Chunker) SplitDocument(doc *models.SourceDocument) []models.Chunk {
	text := []rune(doc.Text)
	n := len(text)
	if n == 0 {
		return nil
	}
	var chunks []models.Chunk
	start := 0
	for {
		end := n
		if n-start > c.maxChunkSize {
			end = c.cut(text, start)
		}
		chunks = append(chunks, models.Chunk{
			ID:            fileid.ChunkID(doc.Origin, len(chunks)),
			Text:          string(text[start:end]),
			Origin:        doc.Origin,
			Format:        doc.Format,
			Document:      doc,
			SequenceIndex: len(chunks),
			CharStart:     start,
			CharEnd:       end,
		})
		if end == n {
			return chunks
		}
		start = end - c.overlap
	}
}

// cut returns the end of the chunk starting at start. The end lies after the last occurrence of
// the coarsest separator within the window, and beyond start+overlap so the next chunk advances.
func (c *Chunker) cut(text []rune, start int) int {
	limit := start + c.maxChunkSize
	floor := start + c.overlap
	for _, sep := range separators {
		for end := limit; end > floor; end-- {
			if end-len(sep) < start {
				break
			}
			if hasSuffixAt(text, end, sep) {
				return end
			}
		}
	}
	return limit
}

func hasSuffixAt(text []rune, end int, sep []rune) bool {
	i := end - len(sep)
	for j, r := range sep {
		if text[i+j] != r {
			return false
		}
	}
	return true
}
