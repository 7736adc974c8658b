package embedding

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// BERT special token IDs shared by MiniLM-family models.
const (
	tokenCLS        = 101
	tokenSEP        = 102
	firstWordToken  = 1000
	defaultVocab    = 30522
	defaultMaxToken = 256
)

// Encoding is a fixed-length model input. Length counts the unpadded positions including
// the [CLS] and [SEP] markers.
type Encoding struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
	Length        int
}

// Tokenizer turns text into a padded model input of maxTokens positions.
type Tokenizer interface {
	Encode(text string, maxTokens int) Encoding
}

// HashTokenizer maps each lowercased word to a vocabulary slot by FNV hash. It stands in for a
// WordPiece vocabulary so an exported model runs without its tokenizer files.
type HashTokenizer struct {
	VocabSize int
}

// Encode wraps the words of text in [CLS] ... [SEP], truncating to maxTokens.
func (t HashTokenizer) Encode(text string, maxTokens int) Encoding {
	if maxTokens < 2 {
		maxTokens = defaultMaxToken
	}
	vocab := t.VocabSize
	if vocab <= firstWordToken {
		vocab = defaultVocab
	}
	enc := Encoding{
		InputIDs:      make([]int64, maxTokens),
		AttentionMask: make([]int64, maxTokens),
		TokenTypeIDs:  make([]int64, maxTokens),
	}
	enc.InputIDs[0], enc.AttentionMask[0] = tokenCLS, 1
	pos := 1
	for _, word := range SplitWords(strings.ToLower(text)) {
		if pos >= maxTokens-1 {
			break
		}
		enc.InputIDs[pos] = wordToken(word, vocab)
		enc.AttentionMask[pos] = 1
		pos++
	}
	enc.InputIDs[pos], enc.AttentionMask[pos] = tokenSEP, 1
	enc.Length = pos + 1
	return enc
}

func wordToken(word string, vocab int) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(word))
	return int64(firstWordToken + int(h.Sum32()%uint32(vocab-firstWordToken)))
}

// SplitWords returns maximal runs of letters, digits and combining marks.
// Marks are kept so that Indic scripts stay whole words.
func SplitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsMark(r)
	})
}

// meanPool averages the token vectors of hidden (seq x dims, row-major) over positions whose
// mask is set. This is the sentence-transformers pooling for MiniLM models.
func meanPool(hidden []float32, mask []int64, dims int) []float32 {
	out := make([]float32, dims)
	var n float32
	for pos, m := range mask {
		if m == 0 || (pos+1)*dims > len(hidden) {
			continue
		}
		row := hidden[pos*dims : (pos+1)*dims]
		for i, v := range row {
			out[i] += v
		}
		n++
	}
	if n > 0 {
		for i := range out {
			out[i] /= n
		}
	}
	return out
}
