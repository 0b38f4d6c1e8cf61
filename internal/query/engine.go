// Package query orchestrates a full question-answer turn: retrieve context,
// generate the answer, resolve references, and record the exchange.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/infra-assist/backend/internal/metrics"
	"github.com/infra-assist/backend/internal/references"
	"github.com/infra-assist/backend/internal/retriever"
	"github.com/infra-assist/backend/internal/session"
	"github.com/infra-assist/backend/internal/storage/models"
	"github.com/infra-assist/backend/internal/vectorstore"
	"github.com/infra-assist/backend/pkg/logger"
)

const msgNoRelevantData = "No relevant data found in the database."

type ContextRetriever interface {
	Retrieve(ctx context.Context, query string) ([]vectorstore.Result, error)
}

type AnswerGenerator interface {
	Generate(ctx context.Context, question, contextText string, history []session.Turn) string
}

// QueryStore is the slice of the relational store the engine needs.
type QueryStore interface {
	InsertQueryRecord(record *models.QueryRecord) error
	InsertQuerySource(source *models.QuerySource) error
	GetQueryRecord(id string) (*models.QueryRecord, error)
	GetQueryHistory(userID string, limit int) ([]models.QueryRecord, error)
	StoreFeedback(feedback *models.Feedback) error
}

type Request struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type Response struct {
	ID         string                 `json:"id"`
	SessionID  string                 `json:"session_id"`
	Answer     string                 `json:"answer"`
	References []references.Reference `json:"references"`
	LatencyMS  int64                  `json:"latency_ms"`
}

type Engine struct {
	retriever ContextRetriever
	generator AnswerGenerator
	extractor *references.Extractor
	sessions  *session.Manager
	db        QueryStore
}

func NewEngine(r ContextRetriever, g AnswerGenerator, e *references.Extractor, sessions *session.Manager, db QueryStore) *Engine {
	return &Engine{
		retriever: r,
		generator: g,
		extractor: e,
		sessions:  sessions,
		db:        db,
	}
}

// ProcessQuery runs one question through the pipeline. It always returns a
// user-presentable response; pipeline faults become answer text rather than
// errors, and only bookkeeping failures are logged.
func (e *Engine) ProcessQuery(ctx context.Context, req Request) *Response {
	start := time.Now()
	sess := e.sessions.GetOrCreate(req.SessionID)

	resp := &Response{
		ID:        uuid.New().String(),
		SessionID: sess.ID,
	}

	results, err := e.retriever.Retrieve(ctx, req.Query)
	switch {
	case errors.Is(err, retriever.ErrNoRelevantData):
		resp.Answer = msgNoRelevantData
		metrics.QueryTotal.WithLabelValues("no_data").Inc()
	case err != nil:
		logger.Error("Retrieval failed", zap.Error(err))
		resp.Answer = fmt.Sprintf("Error generating response: %v", err)
		metrics.QueryTotal.WithLabelValues("error").Inc()
	default:
		contextText := joinContext(results)

		// History is captured before this turn is appended, so the prompt
		// carries prior exchanges only.
		history := sess.History()

		genStart := time.Now()
		resp.Answer = e.generator.Generate(ctx, req.Query, contextText, history)
		metrics.QueryDuration.WithLabelValues("generate").Observe(time.Since(genStart).Seconds())

		resp.References = e.extractor.Extract(resp.Answer, results)
		metrics.QueryTotal.WithLabelValues("ok").Inc()
	}

	sess.Append(session.RoleUser, req.Query)
	sess.Append(session.RoleAssistant, resp.Answer)

	resp.LatencyMS = time.Since(start).Milliseconds()
	metrics.QueryDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())

	e.record(req, resp, results)
	return resp
}

// Regenerate re-runs a previously answered query in its original session,
// typically after negative feedback.
func (e *Engine) Regenerate(ctx context.Context, queryID string) (*Response, error) {
	record, err := e.db.GetQueryRecord(queryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load query: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("query %s not found", queryID)
	}

	return e.ProcessQuery(ctx, Request{
		Query:     record.Query,
		SessionID: record.SessionID,
		UserID:    record.UserID,
	}), nil
}

func (e *Engine) RecordFeedback(queryID string, helpful bool, comment string) error {
	err := e.db.StoreFeedback(&models.Feedback{
		QueryID: queryID,
		Helpful: helpful,
		Comment: comment,
	})
	if err != nil {
		return err
	}

	metrics.UserSatisfaction.WithLabelValues(fmt.Sprintf("%t", helpful)).Inc()
	return nil
}

func (e *Engine) History(userID string, limit int) ([]models.QueryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return e.db.GetQueryHistory(userID, limit)
}

// record persists the exchange. Failures here must not affect the response
// the user already has, so they are logged and swallowed.
func (e *Engine) record(req Request, resp *Response, results []vectorstore.Result) {
	err := e.db.InsertQueryRecord(&models.QueryRecord{
		ID:        resp.ID,
		SessionID: resp.SessionID,
		UserID:    req.UserID,
		Query:     req.Query,
		Answer:    resp.Answer,
		LatencyMS: resp.LatencyMS,
		CreatedAt: time.Now(),
	})
	if err != nil {
		logger.Error("Failed to record query", zap.Error(err))
		return
	}

	for _, res := range results {
		err := e.db.InsertQuerySource(&models.QuerySource{
			QueryID: resp.ID,
			ChunkID: res.Entry.ID,
			Source:  res.Entry.Metadata["source"],
			Score:   res.Score,
		})
		if err != nil {
			logger.Error("Failed to record query source", zap.Error(err))
		}
	}
}

func joinContext(results []vectorstore.Result) string {
	parts := make([]string, 0, len(results))
	for _, res := range results {
		parts = append(parts, res.Entry.Text)
	}
	return strings.Join(parts, "\n\n")
}
