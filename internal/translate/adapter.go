package translate

import (
	"context"

	"github.com/bloomwatch/chatbot/pkg/utils"
	"go.uber.org/zap"
)

// Adapter moves text between a request language and the working language.
// The boolean results report whether the text is actually in the language asked for.
type Adapter struct {
	translator Translator // nil disables translation
	working    string
	logger     *zap.Logger
}

// NewAdapter returns an adapter translating to and from working. A nil translator leaves
// every non-working-language leg untranslated (and reported as such).
func NewAdapter(translator Translator, working string, logger *zap.Logger) *Adapter {
	return &Adapter{translator: translator, working: working, logger: utils.OrNop(logger)}
}

// Working returns the working language code.
func (a *Adapter) Working() string {
	return a.working
}

// Inbound translates text written in lang into the working language. On failure the original
// text is returned with ok=false.
func (a *Adapter) Inbound(ctx context.Context, text, lang string) (string, bool) {
	return a.to(ctx, text, lang, a.working, "inbound")
}

// Outbound translates working-language text into lang. On failure the working-language text is
// returned with ok=false.
func (a *Adapter) Outbound(ctx context.Context, text, lang string) (string, bool) {
	return a.to(ctx, text, a.working, lang, "outbound")
}

func (a *Adapter) to(ctx context.Context, text, from, target, leg string) (string, bool) {
	if from == target {
		return text, true
	}
	if a.translator == nil {
		return text, false
	}
	out, err := a.translator.Translate(ctx, text, target)
	if err != nil {
		a.logger.Warn("translation degraded",
			zap.String("leg", leg),
			zap.String("from", from),
			zap.String("to", target),
			zap.Error(err),
		)
		return text, false
	}
	return out, true
}
