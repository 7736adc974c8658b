package models

// AnswerResponse is the result of a chat request.
type AnswerResponse struct {
	Answer string `json:"answer"`
	// Sources are deduplicated origins ranked by retrieval score.
	Sources []string `json:"sources"`
	// Language is the language the answer text is actually in.
	Language          string `json:"language"`
	RequestedLanguage string `json:"requested_language,omitempty"`
	FarmDataUsed      bool   `json:"farm_data_used"`
	// TranslationDegraded is set when a translation leg failed and untranslated text was used.
	TranslationDegraded bool `json:"translation_degraded,omitempty"`
	// Error marks a failed batch entry.
	Error string `json:"error,omitempty"`
}

// BatchResponse wraps batch chat results in input order.
type BatchResponse struct {
	Responses []*AnswerResponse `json:"responses"`
	Total     int               `json:"total"`
}
