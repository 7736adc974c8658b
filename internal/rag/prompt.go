package rag

import (
	"fmt"
	"strings"

	"github.com/bloomwatch/chatbot/internal/models"
	"github.com/bloomwatch/chatbot/internal/vector"
)

const (
	promptInstruction = "Answer the farmer's question using the reference passages below. " +
		"Cite passages by their number when you rely on them."
	noSourcesNotice = "No reference passages were found in the knowledge base for this question. " +
		"Answer from general agricultural knowledge and say that no matching documents were found."
)

// PromptInput is everything the grounding prompt is assembled from.
type PromptInput struct {
	// Question is the query in the working language.
	Question string
	// Original is the query as the user wrote it, when it differs from Question.
	Original string
	Farm     *models.FarmContext
	Passages []vector.Result
}

// BuildPrompt assembles the grounding prompt: instruction, farm situation, numbered passages
// tagged with their origin (or the no-sources notice), then the question.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString(promptInstruction)
	b.WriteString("\n\n")

	if !in.Farm.IsEmpty() {
		b.WriteString("Farmer's situation:\n")
		b.WriteString(in.Farm.Render())
		b.WriteString("\n\n")
	}

	if len(in.Passages) == 0 {
		b.WriteString(noSourcesNotice)
		b.WriteString("\n\n")
	} else {
		b.WriteString("Reference passages:\n")
		for i, p := range in.Passages {
			fmt.Fprintf(&b, "[%d] (source: %s)\n%s\n\n", i+1, p.Chunk.Origin, strings.TrimSpace(p.Chunk.Text))
		}
	}

	b.WriteString("Question: ")
	b.WriteString(in.Question)
	if in.Original != "" && in.Original != in.Question {
		b.WriteString("\nOriginal question: ")
		b.WriteString(in.Original)
	}
	b.WriteString("\n")
	return b.String()
}

// effectiveQuery biases retrieval toward the farmer's situation by appending the rendered
// farm context to the question.
func effectiveQuery(question string, farm *models.FarmContext) string {
	if farm.IsEmpty() {
		return question
	}
	return question + "\n" + farm.Render()
}

// sourcesOf returns the distinct origins of results, keeping the first (highest-scored) position.
func sourcesOf(results []vector.Result) []string {
	sources := make([]string, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		if _, ok := seen[r.Chunk.Origin]; ok {
			continue
		}
		seen[r.Chunk.Origin] = struct{}{}
		sources = append(sources, r.Chunk.Origin)
	}
	return sources
}
