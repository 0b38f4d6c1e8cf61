package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/infra-assist/backend/internal/answer"
	"github.com/infra-assist/backend/internal/api/handlers"
	redisCache "github.com/infra-assist/backend/internal/cache/redis"
	"github.com/infra-assist/backend/internal/document"
	"github.com/infra-assist/backend/internal/embedding"
	"github.com/infra-assist/backend/internal/ingestion"
	"github.com/infra-assist/backend/internal/llm"
	"github.com/infra-assist/backend/internal/metrics"
	"github.com/infra-assist/backend/internal/middleware/ratelimit"
	"github.com/infra-assist/backend/internal/middleware/security"
	"github.com/infra-assist/backend/internal/middleware/validation"
	"github.com/infra-assist/backend/internal/query"
	"github.com/infra-assist/backend/internal/references"
	"github.com/infra-assist/backend/internal/retriever"
	"github.com/infra-assist/backend/internal/session"
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

	appLogger.Info("Starting infra assist API server")
	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cache *redisCache.Client
	if cfg.Redis.Enabled {
		cache, err = redisCache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer cache.Close()
	}

	store, err := openVectorStore(cfg)
	if err != nil {
		appLogger.Fatal("Failed to open vector store", zap.Error(err))
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

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.BaseURL,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.TopP,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	sessions := session.NewManager()

	processor := ingestion.NewProcessor(
		document.NewExtractor(nil),
		document.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		embedder,
		store,
		sqliteClient,
		cfg.Ingest.Workers,
	)

	queryEngine := query.NewEngine(
		retriever.New(embedder, store, cfg.Retrieval.TopK, cfg.Retrieval.RelevanceThreshold),
		answer.NewGenerator(llmClient),
		references.NewExtractor(cfg.References.ConfluenceBaseURL, cfg.References.JiraBaseURL),
		sessions,
		sqliteClient,
	)

	ingestCtx, cancelIngest := context.WithCancel(context.Background())
	defer cancelIngest()
	if cfg.Ingest.IngestOnBoot {
		go func() {
			if _, err := processor.IngestDirectory(ingestCtx, cfg.Ingest.Dir); err != nil {
				appLogger.Error("Boot ingestion failed", zap.Error(err))
			}
		}()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()
	app.Use("/api", limiter.Middleware())
	app.Use("/api", validation.Middleware(validation.Config{Logger: appLogger.GetLogger()}))

	queryHandler := handlers.NewQueryHandler(queryEngine)
	documentHandler := handlers.NewDocumentHandler(processor, cfg.Ingest.Dir)
	feedbackHandler := handlers.NewFeedbackHandler(queryEngine)
	sessionHandler := handlers.NewSessionHandler(sessions)
	wsHandler := handlers.NewWebSocketHandler(queryEngine)

	api := app.Group("/api/v1")

	api.Post("/query", queryHandler.HandleQuery)
	api.Get("/query/history", queryHandler.GetQueryHistory)

	api.Post("/documents", documentHandler.IngestDirectory)
	api.Post("/documents/text", documentHandler.IngestText)

	api.Post("/feedback", feedbackHandler.HandleFeedback)

	api.Post("/session", sessionHandler.CreateSession)
	api.Get("/session/:id", sessionHandler.GetHistory)
	api.Post("/session/:id/clear", sessionHandler.ClearHistory)
	api.Delete("/session/:id", sessionHandler.EndSession)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})
	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	cancelIngest()
	app.Shutdown()
	appLogger.Info("Server stopped")
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
