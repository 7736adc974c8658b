package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bloomwatch/chatbot/internal/models"
	"github.com/bloomwatch/chatbot/internal/rag"
	"github.com/bloomwatch/chatbot/internal/storage"
	"github.com/bloomwatch/chatbot/internal/translate"
	"go.uber.org/zap"
)

var capabilities = []string{
	"retrieval-augmented answers",
	"farm context (NDVI, EVI, crop, soil, weather)",
	"multilingual queries",
	"batch queries",
}

type batchRequest struct {
	Queries []*models.QueryRequest `json:"queries"`
}

type languageInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.chat.Chat(r.Context(), &req)
	if err != nil {
		s.respondFailure(w, "chat", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleChatBatch accepts either a bare JSON array of queries or {"queries": [...]}.
func (s *Server) handleChatBatch(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeBody(w, r, &raw); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var reqs []*models.QueryRequest
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		var body batchRequest
		if err := json.Unmarshal(trimmed, &body); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		reqs = body.Queries
	}
	if len(reqs) == 0 {
		s.respondError(w, http.StatusBadRequest, "at least one query is required")
		return
	}
	if limit := s.config.Batch.MaxSize; limit > 0 && len(reqs) > limit {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("batch of %d exceeds the limit of %d queries", len(reqs), limit))
		return
	}
	s.logger.Debug("batch chat request", zap.Int("size", len(reqs)))
	responses := s.chat.ChatBatch(r.Context(), reqs)
	s.respondJSON(w, http.StatusOK, models.BatchResponse{Responses: responses, Total: len(responses)})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if s.rebuilder == nil {
		s.respondError(w, http.StatusNotImplemented, "rebuild not enabled")
		return
	}
	report, err := s.rebuilder.Rebuild(r.Context())
	if err != nil {
		s.respondFailure(w, "rebuild", err)
		return
	}
	warnings := make([]string, 0, len(report.Warnings))
	for _, warn := range report.Warnings {
		warnings = append(warnings, warn.Error())
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"build_id":    report.BuildID,
		"documents":   report.Documents,
		"chunks":      report.Chunks,
		"warnings":    warnings,
		"duration_ms": report.Duration.Milliseconds(),
	})
}

// handleHealth always answers 200 so health checkers can read readiness from the body.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":         "healthy",
		"chatbot_loaded": s.chat.State() == rag.StateReady,
		"index": map[string]interface{}{
			"state":      s.index.State().String(),
			"chunks":     s.index.Size(),
			"collection": s.config.Index.Collection,
			"build_id":   s.index.BuildID(),
		},
	}
	if size, err := storage.IndexDiskUsage(s.config.Index.Path); err == nil {
		resp["disk_usage_bytes"] = size
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	codes := s.chat.SupportedLanguages()
	langs := make([]languageInfo, 0, len(codes))
	for _, code := range codes {
		langs = append(langs, languageInfo{Code: code, Name: translate.LanguageName(code)})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":                ServiceName,
		"version":             s.version,
		"status":              string(s.chat.State()),
		"capabilities":        capabilities,
		"supported_languages": langs,
		"working_language":    s.config.Translation.WorkingLanguage,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("invalid request body")
	}
	return nil
}

// respondFailure maps domain errors to status codes.
func (s *Server) respondFailure(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotInitialized):
		status = http.StatusServiceUnavailable
	case errors.Is(err, models.ErrGenerationUnavailable):
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "5")
	case errors.Is(err, models.ErrRebuildInProgress):
		status = http.StatusConflict
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
