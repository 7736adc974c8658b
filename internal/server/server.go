// Package server provides the HTTP API for the BloomWatch chatbot.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bloomwatch/chatbot/internal/config"
	"github.com/bloomwatch/chatbot/internal/indexer"
	"github.com/bloomwatch/chatbot/internal/models"
	"github.com/bloomwatch/chatbot/internal/rag"
	"github.com/bloomwatch/chatbot/internal/vector"
	"github.com/bloomwatch/chatbot/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	// ServiceName is reported by /info.
	ServiceName = "BloomWatch Agricultural Chatbot"

	maxBodyBytes   = 1 << 20
	requestTimeout = 120 * time.Second
)

// Chatter answers chat requests.
type Chatter interface {
	Chat(ctx context.Context, req *models.QueryRequest) (*models.AnswerResponse, error)
	ChatBatch(ctx context.Context, reqs []*models.QueryRequest) []*models.AnswerResponse
	State() rag.State
	SupportedLanguages() []string
}

// IndexStatus exposes the live index for health reporting.
type IndexStatus interface {
	State() vector.State
	Size() int
	BuildID() string
}

// Rebuilder reindexes the corpus.
type Rebuilder interface {
	Rebuild(ctx context.Context) (*indexer.BuildReport, error)
}

// Server is the HTTP server for the chatbot API.
type Server struct {
	chat      Chatter
	index     IndexStatus
	rebuilder Rebuilder // nil disables /index/rebuild
	config    *config.Config
	version   string
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	chat Chatter,
	index IndexStatus,
	rebuilder Rebuilder,
	cfg *config.Config,
	version string,
	logger *zap.Logger,
) *Server {
	return &Server{
		chat:      chat,
		index:     index,
		rebuilder: rebuilder,
		config:    cfg,
		version:   version,
		logger:    utils.OrNop(logger),
	}
}

// Handler returns the routed API handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Post("/chat", s.handleChat)
	r.Post("/chat/batch", s.handleChatBatch)
	r.Post("/index/rebuild", s.handleRebuild)
	r.Get("/health", s.handleHealth)
	r.Get("/info", s.handleInfo)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
