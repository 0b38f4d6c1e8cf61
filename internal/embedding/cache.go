package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/infra-assist/backend/internal/metrics"
	"github.com/infra-assist/backend/pkg/logger"
	"github.com/infra-assist/backend/pkg/utils"
)

// VectorCache stores embedding vectors keyed by content hash. Satisfied by
// the Redis cache client.
type VectorCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, vector []float32, ttl time.Duration) error
}

// CachedClient memoizes embeddings by content hash, so identical chunk text
// never pays for a second service call. Cache failures degrade to the
// underlying client.
type CachedClient struct {
	inner Client
	cache VectorCache
	ttl   time.Duration
}

func NewCachedClient(inner Client, cache VectorCache, ttl time.Duration) *CachedClient {
	return &CachedClient{inner: inner, cache: cache, ttl: ttl}
}

func (c *CachedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var missing []string
	var missingIdx []int

	for i, text := range texts {
		hash := utils.HashString(text)
		vector, ok, err := c.cache.GetEmbedding(ctx, hash)
		if err != nil {
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
		}
		if ok {
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			vectors[i] = vector
			continue
		}
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	fresh, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}

	for j, vector := range fresh {
		vectors[missingIdx[j]] = vector
		hash := utils.HashString(missing[j])
		if err := c.cache.SetEmbedding(ctx, hash, vector, c.ttl); err != nil {
			logger.Warn("Embedding cache write failed", zap.Error(err))
		}
	}

	return vectors, nil
}
