// Package translate adapts queries and answers between the user's language and the working
// language of the knowledge base.
package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bloomwatch/chatbot/internal/cache"
	"github.com/bloomwatch/chatbot/internal/generate"
	"github.com/bloomwatch/chatbot/internal/models"
	"github.com/bloomwatch/chatbot/pkg/utils"
	"go.uber.org/zap"
)

// Translator translates text into the target language code. Best-effort: callers treat
// errors as degraded rather than fatal.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// LLMTranslator translates by prompting a generator.
type LLMTranslator struct {
	gen generate.Generator
}

// NewLLMTranslator returns a translator backed by gen.
func NewLLMTranslator(gen generate.Generator) *LLMTranslator {
	return &LLMTranslator{gen: gen}
}

// Translate always asks the generator unless text is blank. Script detection cannot tell
// romanized Hindi from English, so the caller's language code decides when to translate.
// Failures wrap models.ErrTranslationFailed.
func (t *LLMTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	prompt := fmt.Sprintf("Translate the following text to %s. Reply with the translation only.\n\n%s",
		LanguageName(target), text)
	out, err := t.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: to %s: %v", models.ErrTranslationFailed, target, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: to %s: empty translation", models.ErrTranslationFailed, target)
	}
	return out, nil
}

// CachedTranslator memoizes another translator in a StringStore.
type CachedTranslator struct {
	inner  Translator
	store  cache.StringStore
	logger *zap.Logger
}

// NewCachedTranslator wraps inner. Cache read and write errors are logged and otherwise ignored.
func NewCachedTranslator(inner Translator, store cache.StringStore, logger *zap.Logger) *CachedTranslator {
	return &CachedTranslator{inner: inner, store: store, logger: utils.OrNop(logger)}
}

func (c *CachedTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	key := cacheKey(text, target)
	if v, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn("translation cache read failed", zap.Error(err))
	} else if ok {
		return v, nil
	}
	out, err := c.inner.Translate(ctx, text, target)
	if err != nil {
		return "", err
	}
	if err := c.store.Set(ctx, key, out); err != nil {
		c.logger.Warn("translation cache write failed", zap.Error(err))
	}
	return out, nil
}

func cacheKey(text, target string) string {
	sum := sha256.Sum256([]byte(target + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
