package indexer

import (
	"errors"
	"strings"
	"testing"

	"github.com/bloomwatch/chatbot/internal/models"
)

func doc(origin, text string) *models.SourceDocument {
	return &models.SourceDocument{Text: text, Origin: origin, Format: models.FormatText}
}

func TestNewChunker_invalid(t *testing.T) {
	tests := []struct{ size, overlap int }{
		{0, 0},
		{-1, 0},
		{10, 10},
		{10, 11},
		{10, -1},
	}
	for _, tt := range tests {
		_, err := NewChunker(tt.size, tt.overlap)
		if !errors.Is(err, models.ErrConfiguration) {
			t.Errorf("NewChunker(%d, %d) err = %v, want ErrConfiguration", tt.size, tt.overlap, err)
		}
	}
}

func TestChunker_shortDocumentSingleChunk(t *testing.T) {
	c, err := NewChunker(1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	text := strings.Repeat("a", 500)
	chunks := c.SplitDocument(doc("short.txt", text))
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	ch := chunks[0]
	if ch.Text != text || ch.CharStart != 0 || ch.CharEnd != 500 {
		t.Errorf("unexpected chunk: start=%d end=%d len=%d", ch.CharStart, ch.CharEnd, ch.Len())
	}
	if ch.Origin != "short.txt" || ch.SequenceIndex != 0 || ch.ID == "" {
		t.Errorf("unexpected metadata: %+v", ch)
	}
}

func TestChunker_emptyDocument(t *testing.T) {
	c, _ := NewChunker(10, 2)
	if chunks := c.SplitDocument(doc("e.txt", "")); chunks != nil {
		t.Errorf("empty text should return nil, got %v", chunks)
	}
}

func TestChunker_coverageAndOverlap(t *testing.T) {
	c, err := NewChunker(1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	for i := 0; b.Len() < 2500; i++ {
		b.WriteString("Irrigate the field early in the morning. ")
		if i%7 == 6 {
			b.WriteString("\n\n")
		}
	}
	text := b.String()
	runes := []rune(text)
	chunks := c.SplitDocument(doc("long.txt", text))
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks for %d chars, got %d", len(runes), len(chunks))
	}
	if chunks[0].CharStart != 0 {
		t.Errorf("first chunk starts at %d", chunks[0].CharStart)
	}
	if last := chunks[len(chunks)-1]; last.CharEnd != len(runes) {
		t.Errorf("last chunk ends at %d, want %d", last.CharEnd, len(runes))
	}
	for i, ch := range chunks {
		if ch.Len() > 1000 {
			t.Errorf("chunk %d has %d chars", i, ch.Len())
		}
		if ch.Text != string(runes[ch.CharStart:ch.CharEnd]) {
			t.Errorf("chunk %d text does not match its offsets", i)
		}
		if ch.SequenceIndex != i {
			t.Errorf("chunk %d SequenceIndex=%d", i, ch.SequenceIndex)
		}
		if i == 0 {
			continue
		}
		prev := chunks[i-1]
		if prev.CharEnd-ch.CharStart != 200 {
			t.Errorf("chunks %d/%d overlap %d chars, want 200", i-1, i, prev.CharEnd-ch.CharStart)
		}
	}
}

func TestChunker_prefersParagraphBreak(t *testing.T) {
	c, _ := NewChunker(30, 5)
	text := "first paragraph here.\n\nsecond paragraph is longer than the rest"
	chunks := c.SplitDocument(doc("p.txt", text))
	if len(chunks) < 2 {
		t.Fatalf("expected split, got %d chunks", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, "\n\n") {
		t.Errorf("first chunk should end at the paragraph break, got %q", chunks[0].Text)
	}
}

func TestChunker_rawCutWithoutSeparators(t *testing.T) {
	c, _ := NewChunker(10, 3)
	text := strings.Repeat("x", 25)
	chunks := c.SplitDocument(doc("raw.txt", text))
	wantStarts := []int{0, 7, 14, 21}
	if len(chunks) != len(wantStarts) {
		t.Fatalf("expected %d chunks, got %d", len(wantStarts), len(chunks))
	}
	for i, ch := range chunks {
		if ch.CharStart != wantStarts[i] {
			t.Errorf("chunk %d starts at %d, want %d", i, ch.CharStart, wantStarts[i])
		}
	}
}

func TestChunker_multibyteOffsets(t *testing.T) {
	c, _ := NewChunker(8, 2)
	text := "गेहूं की बुवाई नवंबर में करें"
	runes := []rune(text)
	chunks := c.SplitDocument(doc("hi.txt", text))
	for i, ch := range chunks {
		if ch.Len() > 8 {
			t.Errorf("chunk %d has %d runes", i, ch.Len())
		}
		if ch.Text != string(runes[ch.CharStart:ch.CharEnd]) {
			t.Errorf("chunk %d text does not match rune offsets", i)
		}
	}
}

func TestChunker_splitKeepsDocumentOrder(t *testing.T) {
	c, _ := NewChunker(100, 10)
	chunks := c.Split([]*models.SourceDocument{doc("a.txt", "alpha"), doc("b.txt", "beta")})
	if len(chunks) != 2 || chunks[0].Origin != "a.txt" || chunks[1].Origin != "b.txt" {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
	if chunks[0].ID == chunks[1].ID {
		t.Error("chunk IDs should differ across documents")
	}
	if chunks[1].Document == nil || chunks[1].Document.Text != "beta" {
		t.Error("chunk should reference its source document")
	}
}

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"crlf", "a\r\nb\rc", "a\nb\nc"},
		{"trailing spaces", "a  \nb\t", "a\nb"},
		{"blank runs", "a\n\n\n\n b", "a\n\n b"},
		{"leading and trailing blanks", "\n\n  a\n\n", "  a"},
		{"whitespace only", " \n\t\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preprocess(tt.in); got != tt.want {
				t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
