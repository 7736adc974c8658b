// Package extract provides text extraction for knowledge-base documents.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bloomwatch/chatbot/internal/models"
)

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text. PDFs are decoded page by page; every
// other extension is read as UTF-8 text.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch FormatFor(ext) {
	case models.FormatPDF:
		return extractPDF(content)
	default:
		return extractPlain(content)
	}
}

// FormatFor returns the document format for an extension. Anything that is not a PDF is text.
func FormatFor(ext string) models.DocumentFormat {
	if strings.EqualFold(ext, ".pdf") {
		return models.FormatPDF
	}
	return models.FormatText
}
