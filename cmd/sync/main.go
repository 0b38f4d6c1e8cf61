// Command sync pulls Confluence page trees and Jira project issues into the
// knowledge base. Pages and issues already ingested are skipped, so it is
// safe to run on a schedule.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	redisCache "github.com/infra-assist/backend/internal/cache/redis"
	"github.com/infra-assist/backend/internal/connectors/confluence"
	"github.com/infra-assist/backend/internal/connectors/jira"
	"github.com/infra-assist/backend/internal/document"
	"github.com/infra-assist/backend/internal/embedding"
	"github.com/infra-assist/backend/internal/ingestion"
	"github.com/infra-assist/backend/internal/metrics"
	"github.com/infra-assist/backend/internal/storage/sqlite"
	"github.com/infra-assist/backend/internal/vectorstore"
	chromemstore "github.com/infra-assist/backend/internal/vectorstore/chromem"
	milvusstore "github.com/infra-assist/backend/internal/vectorstore/milvus"
	"github.com/infra-assist/backend/pkg/config"
	appLogger "github.com/infra-assist/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		appLogger.Fatal("Sync failed", zap.Error(err))
	}
	appLogger.Info("Sync complete")
}

func run(ctx context.Context, cfg *config.Config) error {
	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		return err
	}

	var cache *redisCache.Client
	if cfg.Redis.Enabled {
		cache, err = redisCache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer cache.Close()
	}

	store, err := openVectorStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var embedder embedding.Client = embedding.NewOpenAIClient(
		cfg.LLM.APIKey,
		cfg.LLM.BaseURL,
		cfg.LLM.EmbeddingModel,
	)
	if cache != nil {
		embedder = embedding.NewCachedClient(embedder, cache, 24*time.Hour)
	}

	processor := ingestion.NewProcessor(
		document.NewExtractor(nil),
		document.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		embedder,
		store,
		sqliteClient,
		cfg.Ingest.Workers,
	)

	if cfg.Confluence.BaseURL != "" {
		if err := syncConfluence(ctx, cfg, cache, processor); err != nil {
			return err
		}
	}

	if cfg.Jira.BaseURL != "" && cfg.Jira.ProjectKey != "" {
		if err := syncJira(ctx, cfg, processor); err != nil {
			return err
		}
	}

	return nil
}

func syncConfluence(ctx context.Context, cfg *config.Config, cache *redisCache.Client, processor *ingestion.Processor) error {
	// A nil typed pointer must not become a non-nil interface.
	var textCache confluence.TextCache
	if cache != nil {
		textCache = cache
	}
	client := confluence.NewClient(cfg.Confluence.BaseURL, cfg.Confluence.Username, cfg.Confluence.Token, textCache)

	for _, pageID := range cfg.Confluence.PageIDs {
		docs, err := client.ExportTree(ctx, pageID)
		if err != nil {
			return fmt.Errorf("failed to export page tree %s: %w", pageID, err)
		}

		for _, doc := range docs {
			if err := processor.IngestText(ctx, doc.Filename, doc.Title, doc.Text); err != nil {
				appLogger.Error("Failed to ingest page",
					zap.String("page_id", doc.PageID),
					zap.Error(err),
				)
			}
		}
		appLogger.Info("Page tree synced",
			zap.String("root_page", pageID),
			zap.Int("pages", len(docs)),
		)
	}

	return nil
}

func syncJira(ctx context.Context, cfg *config.Config, processor *ingestion.Processor) error {
	client := jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Username, cfg.Jira.Token, cfg.Jira.PageSize)

	issues, err := client.SearchProject(ctx, cfg.Jira.ProjectKey)
	if err != nil {
		return err
	}

	for _, issue := range issues {
		text := jira.RenderDocument(issue)
		if err := processor.IngestText(ctx, issue.Key+".txt", issue.Summary, text); err != nil {
			appLogger.Error("Failed to ingest issue",
				zap.String("key", issue.Key),
				zap.Error(err),
			)
		}
	}

	appLogger.Info("Project synced",
		zap.String("project", cfg.Jira.ProjectKey),
		zap.Int("issues", len(issues)),
	)
	return nil
}

func openVectorStore(cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.Vector.Backend {
	case "milvus":
		store, err := milvusstore.NewStore(cfg.Vector.Endpoint, cfg.Vector.CollectionName, cfg.Vector.VectorDim)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureCollection(context.Background()); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case "chromem", "":
		return chromemstore.NewStore(cfg.Vector.Path, cfg.Vector.CollectionName)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}
}
