// Package milvus provides the external vector store backend for deployments
// where the index should live outside the process. The collection uses the
// COSINE metric with an IVF_FLAT index; the metric is fixed at collection
// creation and must not change afterwards.
package milvus

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/infra-assist/backend/internal/vectorstore"
	"github.com/infra-assist/backend/pkg/logger"
)

type Store struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

func NewStore(endpoint, collectionName string, vectorDim int) (*Store, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus vector store initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Store{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) EnsureCollection(ctx context.Context) error {
	has, err := s.client.HasCollection(ctx, s.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", s.collectionName))
		return s.client.LoadCollection(ctx, s.collectionName, false)
	}

	schema := &entity.Schema{
		CollectionName: s.collectionName,
		Description:    "Knowledge base chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", s.vectorDim),
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
			{
				Name:     "source",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "page",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = s.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.COSINE, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index definition: %w", err)
	}
	err = s.client.CreateIndex(ctx, s.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = s.client.LoadCollection(ctx, s.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", s.collectionName))

	return nil
}

func (s *Store) Upsert(ctx context.Context, entries []vectorstore.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	existing, err := s.existingEntries(ctx, entries)
	if err != nil {
		return err
	}

	var chunkIDs []string
	var embeddings [][]float32
	var texts []string
	var sources []string
	var pages []int64

	for _, entry := range entries {
		if storedText, ok := existing[entry.ID]; ok {
			if storedText != entry.Text {
				return &vectorstore.InconsistencyError{ID: entry.ID, Reason: "stored text differs from new text"}
			}
			continue
		}

		chunkIDs = append(chunkIDs, entry.ID)
		embeddings = append(embeddings, entry.Vector)
		texts = append(texts, entry.Text)
		sources = append(sources, entry.Metadata["source"])
		pages = append(pages, metadataPage(entry.Metadata))
	}

	if len(chunkIDs) == 0 {
		return nil
	}

	_, err = s.client.Insert(
		ctx,
		s.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", s.vectorDim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnInt64("page", pages),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entries: %w", err)
	}

	err = s.client.Flush(ctx, s.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Debug("Entries upserted",
		zap.Int("new", len(chunkIDs)),
		zap.Int("skipped", len(entries)-len(chunkIDs)),
	)

	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]vectorstore.Result, error) {
	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := s.client.Search(
		ctx,
		s.collectionName,
		[]string{},
		"",
		[]string{"chunk_id", "text", "source", "page"},
		[]entity.Vector{entity.FloatVector(vector)},
		"embedding",
		entity.COSINE,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]vectorstore.Result, 0)
	for _, sr := range searchResult {
		chunkIDCol := sr.Fields.GetColumn("chunk_id")
		textCol := sr.Fields.GetColumn("text")
		sourceCol := sr.Fields.GetColumn("source")
		pageCol := sr.Fields.GetColumn("page")

		for i := 0; i < sr.ResultCount; i++ {
			chunkID, _ := chunkIDCol.GetAsString(i)
			text, _ := textCol.GetAsString(i)
			source, _ := sourceCol.GetAsString(i)
			page, _ := pageCol.GetAsInt64(i)

			results = append(results, vectorstore.Result{
				Entry: vectorstore.Entry{
					ID:   chunkID,
					Text: text,
					Metadata: map[string]string{
						"source": source,
						"page":   fmt.Sprintf("%d", page),
					},
				},
				Score: sr.Scores[i],
			})
		}
	}

	vectorstore.SortByScore(results)

	return results, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	stats, err := s.client.GetCollectionStatistics(ctx, s.collectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection statistics: %w", err)
	}

	var count int
	fmt.Sscanf(stats["row_count"], "%d", &count)
	return count, nil
}

// existingEntries returns stored text keyed by ID for the subset of entries
// already present in the collection.
func (s *Store) existingEntries(ctx context.Context, entries []vectorstore.Entry) (map[string]string, error) {
	quoted := make([]string, 0, len(entries))
	for _, entry := range entries {
		quoted = append(quoted, fmt.Sprintf("%q", entry.ID))
	}
	expr := fmt.Sprintf("chunk_id in [%s]", strings.Join(quoted, ", "))

	rs, err := s.client.Query(ctx, s.collectionName, nil, expr, []string{"chunk_id", "text"})
	if err != nil {
		return nil, fmt.Errorf("failed to query existing entries: %w", err)
	}

	existing := make(map[string]string)
	idCol := rs.GetColumn("chunk_id")
	textCol := rs.GetColumn("text")
	if idCol == nil || textCol == nil {
		return existing, nil
	}

	for i := 0; i < idCol.Len(); i++ {
		id, err := idCol.GetAsString(i)
		if err != nil {
			continue
		}
		text, _ := textCol.GetAsString(i)
		existing[id] = text
	}

	return existing, nil
}

func metadataPage(metadata map[string]string) int64 {
	var page int64
	fmt.Sscanf(metadata["page"], "%d", &page)
	return page
}
