package models

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultLanguage is used when a request carries no language code.
const DefaultLanguage = "en"

// AutoLanguage asks the responder to detect the query language.
const AutoLanguage = "auto"

// QueryRequest is a single chat request.
type QueryRequest struct {
	Query    string       `json:"query"`
	Language string       `json:"language,omitempty"`
	FarmData *FarmContext `json:"farm_data,omitempty"`
	// UserID is accepted for future personalization and does not alter retrieval.
	UserID string `json:"user_id,omitempty"`
}

// Normalize trims the query, defaults the language, and validates both.
// A nil or empty supported list accepts any language code.
func (q *QueryRequest) Normalize(supported []string) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidRequest)
	}
	q.Language = strings.ToLower(strings.TrimSpace(q.Language))
	if q.Language == "" {
		q.Language = DefaultLanguage
	}
	if q.Language == AutoLanguage || len(supported) == 0 {
		return nil
	}
	if !slices.Contains(supported, q.Language) {
		return fmt.Errorf("%w: unsupported language %q", ErrInvalidRequest, q.Language)
	}
	return nil
}
