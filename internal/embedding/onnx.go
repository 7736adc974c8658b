//go:build cgo

package embedding

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/bloomwatch/chatbot/internal/models"
	"github.com/bloomwatch/chatbot/pkg/utils"
	ort "github.com/yalue/onnxruntime_go"
)

var onnxInputs = []string{"input_ids", "attention_mask", "token_type_ids"}

const (
	onnxOutput      = "last_hidden_state"
	maxONNXSessions = 4
)

// onnxSession is one loaded model with its bound input and output tensors.
type onnxSession struct {
	session          *ort.AdvancedSession
	ids, mask, types *ort.Tensor[int64]
	hidden           *ort.Tensor[float32]
}

// ONNXEmbedder runs an exported sentence-transformer (all-MiniLM-L6-v2 by default) through ONNX
// Runtime and mean-pools the token states into one unit vector. Up to maxONNXSessions inferences
// run at once, each on its own session. Requires CGO and the onnxruntime shared library.
type ONNXEmbedder struct {
	sessions   *slotPool[*onnxSession]
	all        []*onnxSession
	tokenizer  Tokenizer
	modelPath  string
	dimensions int
	maxTokens  int
}

var ortInit struct {
	once sync.Once
	err  error
}

// NewONNXEmbedder loads the model at modelPath. The runtime environment is initialized once per process.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens int) (*ONNXEmbedder, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("%w: embedding.model_path is required for the onnx provider", models.ErrConfiguration)
	}
	if maxTokens < 2 {
		maxTokens = defaultMaxToken
	}
	ortInit.once.Do(func() { ortInit.err = ort.InitializeEnvironment() })
	if err := ortInit.err; err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	e := &ONNXEmbedder{
		tokenizer:  HashTokenizer{},
		modelPath:  modelPath,
		dimensions: dimensions,
		maxTokens:  maxTokens,
	}
	n := min(runtime.GOMAXPROCS(0), maxONNXSessions)
	for i := 0; i < n; i++ {
		s, err := newONNXSession(modelPath, dimensions, maxTokens)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		e.all = append(e.all, s)
	}
	e.sessions = newSlotPool(e.all)
	return e, nil
}

func newONNXSession(modelPath string, dimensions, maxTokens int) (*onnxSession, error) {
	s := &onnxSession{}
	inShape := ort.NewShape(1, int64(maxTokens))
	var err error
	if s.ids, err = ort.NewEmptyTensor[int64](inShape); err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if s.mask, err = ort.NewEmptyTensor[int64](inShape); err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	if s.types, err = ort.NewEmptyTensor[int64](inShape); err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	if s.hidden, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(maxTokens), int64(dimensions))); err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	s.session, err = ort.NewAdvancedSession(modelPath, onnxInputs, []string{onnxOutput},
		[]ort.ArbitraryTensor{s.ids, s.mask, s.types},
		[]ort.ArbitraryTensor{s.hidden},
		nil,
	)
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", modelPath, err)
	}
	return s, nil
}

func (s *onnxSession) destroy() error {
	var err error
	if s.session != nil {
		err = s.session.Destroy()
	}
	for _, t := range []*ort.Tensor[int64]{s.ids, s.mask, s.types} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if s.hidden != nil {
		_ = s.hidden.Destroy()
	}
	return err
}

// Name identifies the model file.
func (e *ONNXEmbedder) Name() string {
	return "onnx:" + filepath.Base(e.modelPath)
}

// Embed returns the unit-normalized embedding for text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyText
	}
	enc := e.tokenizer.Encode(text, e.maxTokens)

	s, err := e.sessions.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer e.sessions.release(s)

	copy(s.ids.GetData(), enc.InputIDs)
	copy(s.mask.GetData(), enc.AttentionMask)
	copy(s.types.GetData(), enc.TokenTypeIDs)
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	vec := meanPool(s.hidden.GetData(), enc.AttentionMask, e.dimensions)
	if !utils.NormalizeL2(vec) {
		return nil, fmt.Errorf("inference produced a zero vector")
	}
	return vec, nil
}

// EmbedBatch embeds texts one at a time; each session holds fixed single-row tensors.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close releases every session. Call it only after in-flight Embed calls have returned.
func (e *ONNXEmbedder) Close() error {
	var errs []error
	for _, s := range e.all {
		errs = append(errs, s.destroy())
	}
	e.all = nil
	if e.sessions != nil {
		e.sessions.drain()
	}
	return errors.Join(errs...)
}
