// Package retriever turns a question into the above-threshold context chunks
// that ground the answer.
package retriever

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/infra-assist/backend/internal/embedding"
	"github.com/infra-assist/backend/internal/metrics"
	"github.com/infra-assist/backend/internal/vectorstore"
	"github.com/infra-assist/backend/pkg/logger"
)

// ErrNoRelevantData means no stored chunk scored at or above the relevance
// threshold. Callers surface this to the user rather than answering from
// weak context.
var ErrNoRelevantData = errors.New("no relevant data found")

type Retriever struct {
	embedder  embedding.Client
	store     vectorstore.Store
	topK      int
	threshold float32
}

func New(embedder embedding.Client, store vectorstore.Store, topK int, threshold float32) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		embedder:  embedder,
		store:     store,
		topK:      topK,
		threshold: threshold,
	}
}

// Retrieve embeds the query, fetches the top-k nearest chunks, and keeps only
// those scoring at or above the threshold. Results come back best first.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]vectorstore.Result, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected one query vector, got %d", len(vectors))
	}

	results, err := r.store.Query(ctx, vectors[0], r.topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	kept := results[:0]
	for _, res := range results {
		if res.Score >= r.threshold {
			kept = append(kept, res)
		}
	}

	metrics.RetrievalResults.Observe(float64(len(kept)))
	logger.Debug("Retrieval complete",
		zap.Int("candidates", len(results)),
		zap.Int("above_threshold", len(kept)),
	)

	if len(kept) == 0 {
		return nil, ErrNoRelevantData
	}

	vectorstore.SortByScore(kept)
	return kept, nil
}
