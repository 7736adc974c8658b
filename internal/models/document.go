// Package models defines core data structures for documents, chunks, queries, and answers.
package models

// DocumentFormat identifies how a source document was decoded.
type DocumentFormat string

const (
	FormatText DocumentFormat = "text"
	FormatPDF  DocumentFormat = "pdf"
)

// SourceDocument is a knowledge-base file loaded into memory. Immutable once loaded.
type SourceDocument struct {
	Text   string         `json:"text"`
	Origin string         `json:"origin"`
	Format DocumentFormat `json:"format"`
}

// Chunk is a bounded span of a source document's text, the unit of embedding and retrieval.
// CharStart and CharEnd are rune offsets into the document text.
type Chunk struct {
	ID            string          `json:"id" db:"id"`
	Text          string          `json:"text" db:"content"`
	Origin        string          `json:"origin" db:"origin"`
	Format        DocumentFormat  `json:"format" db:"format"`
	Document      *SourceDocument `json:"-" db:"-"`
	SequenceIndex int             `json:"sequence_index" db:"sequence_index"`
	CharStart     int             `json:"char_start" db:"char_start"`
	CharEnd       int             `json:"char_end" db:"char_end"`
}

// Len returns the chunk length in characters.
func (c Chunk) Len() int {
	return c.CharEnd - c.CharStart
}

// EmbeddedChunk pairs a chunk with its unit-normalized embedding.
type EmbeddedChunk struct {
	Chunk  Chunk     `json:"chunk"`
	Vector []float32 `json:"-"`
}

// Dimension returns the embedding dimension.
func (e EmbeddedChunk) Dimension() int {
	return len(e.Vector)
}

// IngestWarning records a source file that was skipped during ingestion.
type IngestWarning struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// Error implements error so warnings can be logged and wrapped directly.
func (w IngestWarning) Error() string {
	if w.Err == nil {
		return w.Path
	}
	return w.Path + ": " + w.Err.Error()
}
