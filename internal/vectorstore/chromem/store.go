// Package chromem provides the embedded vector store backend. Collections are
// persisted under a local directory and survive process restarts; similarity
// is chromem-go's cosine similarity on a 0-1 scale.
package chromem

import (
	"context"
	"fmt"

	chromemgo "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/infra-assist/backend/internal/vectorstore"
	"github.com/infra-assist/backend/pkg/logger"
)

type Store struct {
	db         *chromemgo.DB
	collection *chromemgo.Collection
}

func NewStore(path, collectionName string) (*Store, error) {
	db, err := chromemgo.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector db: %w", err)
	}

	// Embeddings are always supplied by the caller, so no embedding function
	// is wired into the collection.
	collection, err := db.GetOrCreateCollection(collectionName, nil, func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("collection has no embedding function; embed before querying")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", collectionName, err)
	}

	logger.Info("Embedded vector store initialized",
		zap.String("path", path),
		zap.String("collection", collectionName),
		zap.Int("entries", collection.Count()),
	)

	return &Store{db: db, collection: collection}, nil
}

func (s *Store) Upsert(ctx context.Context, entries []vectorstore.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var docs []chromemgo.Document
	for _, entry := range entries {
		existing, err := s.collection.GetByID(ctx, entry.ID)
		if err == nil {
			if existing.Content != entry.Text {
				return &vectorstore.InconsistencyError{ID: entry.ID, Reason: "stored text differs from new text"}
			}
			continue
		}

		docs = append(docs, chromemgo.Document{
			ID:        entry.ID,
			Metadata:  entry.Metadata,
			Embedding: entry.Vector,
			Content:   entry.Text,
		})
	}

	if len(docs) == 0 {
		return nil
	}

	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	logger.Debug("Entries upserted",
		zap.Int("new", len(docs)),
		zap.Int("skipped", len(entries)-len(docs)),
	)

	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]vectorstore.Result, error) {
	// chromem rejects k larger than the collection size.
	if count := s.collection.Count(); k > count {
		k = count
	}
	if k == 0 {
		return nil, nil
	}

	hits, err := s.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	results := make([]vectorstore.Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, vectorstore.Result{
			Entry: vectorstore.Entry{
				ID:       hit.ID,
				Vector:   hit.Embedding,
				Text:     hit.Content,
				Metadata: hit.Metadata,
			},
			Score: hit.Similarity,
		})
	}

	vectorstore.SortByScore(results)

	return results, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

func (s *Store) Close() error {
	return nil
}
