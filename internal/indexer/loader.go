package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bloomwatch/chatbot/internal/extract"
	"github.com/bloomwatch/chatbot/internal/models"
	"github.com/bloomwatch/chatbot/pkg/utils"
	"go.uber.org/zap"
)

var errEmptyDocument = errors.New("document has no text")

// Loader reads knowledge-base files under a root directory into SourceDocuments.
type Loader struct {
	extractor  *extract.Extractor
	extensions []string
	logger     *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the logger used for skipped-file warnings.
func WithLoaderLogger(l *zap.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = l }
}

// NewLoader returns a loader accepting files whose extension is in extensions
// (case-insensitive; empty means every file).
func NewLoader(extractor *extract.Extractor, extensions []string, opts ...LoaderOption) *Loader {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	ld := &Loader{extractor: extractor, extensions: extensions, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(ld)
	}
	ld.logger = utils.OrNop(ld.logger)
	return ld
}

// Load walks root recursively in lexical order. Files that fail to read or decode, and files
// with no text, are skipped and reported as warnings. A missing root is a configuration error.
func (ld *Loader) Load(ctx context.Context, root string) ([]*models.SourceDocument, []models.IngestWarning, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: corpus root %s: %v", models.ErrConfiguration, absRoot, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: corpus root %s is not a directory", models.ErrConfiguration, absRoot)
	}

	var docs []*models.SourceDocument
	var warnings []models.IngestWarning
	warn := func(path string, err error) {
		ld.logger.Warn("skipping corpus file", zap.String("path", path), zap.Error(err))
		warnings = append(warnings, models.IngestWarning{Path: path, Err: err})
	}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == absRoot {
				return walkErr
			}
			warn(ld.origin(absRoot, path), walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(ld.extensions) > 0 && !extensionAllowed(ext, ld.extensions) {
			return nil
		}
		origin := ld.origin(absRoot, path)
		finfo, statErr := os.Stat(path)
		if statErr != nil {
			warn(origin, statErr)
			return nil
		}
		if !finfo.Mode().IsRegular() {
			return nil
		}
		text, exErr := ld.extractor.Extract(path)
		if exErr != nil {
			warn(origin, exErr)
			return nil
		}
		text = Preprocess(text)
		if text == "" {
			warn(origin, errEmptyDocument)
			return nil
		}
		docs = append(docs, &models.SourceDocument{
			Text:   text,
			Origin: origin,
			Format: extract.FormatFor(ext),
		})
		ld.logger.Debug("loaded corpus file", zap.String("origin", origin), zap.Int("chars", len([]rune(text))))
		return nil
	})
	if err != nil {
		return nil, warnings, err
	}
	return docs, warnings, nil
}

// origin returns path relative to root with forward slashes.
func (ld *Loader) origin(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
