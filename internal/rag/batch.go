package rag

import (
	"context"

	"github.com/bloomwatch/chatbot/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ChatBatch answers every request independently, at most the configured number at a time.
// The result has the same length and order as reqs; a failed entry carries its error and does
// not affect the others. Entries not started before ctx is done are marked failed.
func (r *Responder) ChatBatch(ctx context.Context, reqs []*models.QueryRequest) []*models.AnswerResponse {
	out := make([]*models.AnswerResponse, len(reqs))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i] = r.failed(req, err)
				return nil
			}
			resp, err := r.Chat(ctx, req)
			if err != nil {
				r.logger.Warn("batch entry failed", zap.Int("index", i), zap.Error(err))
				out[i] = r.failed(req, err)
				return nil
			}
			out[i] = resp
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// failed reports err for req in the working language, where an answer would have been written.
func (r *Responder) failed(req *models.QueryRequest, err error) *models.AnswerResponse {
	resp := &models.AnswerResponse{
		Sources:  []string{},
		Language: r.adapter.Working(),
		Error:    err.Error(),
	}
	if req != nil {
		resp.RequestedLanguage = req.Language
	}
	return resp
}
