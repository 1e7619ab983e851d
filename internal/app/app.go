package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/panjf2000/ants/v2"

	"docsage/features/chat"
	"docsage/features/document"
	"docsage/features/job"
	"docsage/features/stats"
	"docsage/internal/adapter/gemini"
	"docsage/internal/adapter/reranker"
	"docsage/internal/checkpoint"
	"docsage/internal/config"
	"docsage/internal/extract"
	"docsage/internal/ingest"
	"docsage/internal/middleware"
	"docsage/internal/pipeline"
	"docsage/internal/retrieval"
	"docsage/internal/settings"
	"docsage/internal/text"
	"docsage/internal/worker"
)

// VectorStore is the full surface the application needs from the vector
// database adapter.
type VectorStore interface {
	StoreChunk(ctx context.Context, chunk ingest.Chunk) error
	DeleteChunksByFile(ctx context.Context, filePath string) error
	Search(ctx context.Context, query string, vector []float32, alpha float32, limit int) ([]retrieval.SearchResult, error)
	CountChunks(ctx context.Context) (int, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler         http.Handler
	DocumentService *document.Service
	ChatService     *chat.Service
	ReindexConsumer *worker.ReindexConsumer

	port int
	pool *ants.Pool
}

func New(
	cfg *config.Config,
	db *sql.DB,
	vecStore VectorStore,
	taskPub TaskPublisher,
	logger *slog.Logger,
) (*App, error) {

	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(db)
	settingsService := settings.NewService(settingsRepo)

	// Seed runtime settings from environment defaults. Operator-saved values win.
	if err := settingsService.Seed(context.Background(), settings.Settings{
		Categories:     cfg.Categories,
		GeminiAPIKey:   cfg.GeminiAPIKey,
		RerankProvider: cfg.RerankProvider,
		RerankAPIKey:   cfg.RerankAPIKey,
		SearchAlpha:    0.5,
		SearchTopK:     10,
	}); err != nil {
		slog.Warn("failed to seed settings from environment", "error", err)
	}

	settingsHandler := settings.NewHandler(settingsService)

	// Adapters: Dynamic Gemini clients and reranker
	geminiEmbedder := gemini.NewDynamicEmbedder(settingsService)
	geminiGenerator := gemini.NewDynamicGenerator(settingsService, cfg.GenerateModel)
	rerankerClient := reranker.NewDynamicClient(settingsService)

	// Document pipeline
	pool, err := ants.NewPool(cfg.EmbedConcurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create embed pool: %w", err)
	}

	profile := text.ProfileFor(cfg.ChunkProfile)
	if cfg.ChunkSize > 0 {
		profile.ChunkSize = cfg.ChunkSize
	}
	if cfg.ChunkOverlap > 0 {
		profile.Overlap = cfg.ChunkOverlap
	}

	selector := extract.NewSelector(extract.NewOCRClient(cfg.OCRServiceURL))
	steps := ingest.NewSteps(selector, profile, geminiEmbedder, geminiGenerator, settingsService, vecStore, pool)

	stepTimeout := time.Duration(cfg.StepTimeoutSeconds) * time.Second
	documentGraph, err := ingest.BuildDocumentGraph(steps,
		pipeline.WithStepTimeout(stepTimeout),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		pool.Release()
		return nil, fmt.Errorf("failed to build document graph: %w", err)
	}

	checkpoints := checkpoint.NewPostgresStore(db)

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo, taskPub)
	jobHandler := job.NewHandler(jobService)

	// Feature: Document
	documentRepo := document.NewPostgresRepo(db)
	documentService := document.NewService(documentRepo, documentGraph, checkpoints, vecStore, taskPub, jobRepo)
	documentHandler := document.NewHandler(documentService, cfg.UploadDir, int(cfg.MaxUploadSizeMB))

	// Feature: Retrieval & Chat
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(geminiEmbedder, vecStore, rerankerClient, settingsService, queryLogger)

	chatGraph, err := chat.BuildChatGraph(chat.NewSteps(geminiGenerator, retrievalService),
		pipeline.WithStepTimeout(stepTimeout),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		pool.Release()
		return nil, fmt.Errorf("failed to build chat graph: %w", err)
	}
	chatService := chat.NewService(chatGraph, checkpoints)
	chatHandler := chat.NewHandler(chatService)

	// Feature: Stats
	statsHandler := stats.NewHandler(documentRepo, jobRepo, vecStore)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /api/files/upload", middleware.CorrelationID(enableCORS(documentHandler.Upload)))
	mux.Handle("GET /api/documents", middleware.CorrelationID(enableCORS(documentHandler.List)))
	mux.Handle("GET /api/documents/{id}", middleware.CorrelationID(enableCORS(documentHandler.Get)))
	mux.Handle("DELETE /api/documents/{id}", middleware.CorrelationID(enableCORS(documentHandler.Delete)))
	mux.Handle("POST /api/documents/{id}/reindex", middleware.CorrelationID(enableCORS(documentHandler.Reindex)))

	mux.Handle("POST /api/chat", middleware.CorrelationID(enableCORS(chatHandler.Chat)))

	mux.Handle("GET /api/settings", middleware.CorrelationID(enableCORS(settingsHandler.GetSettings)))
	mux.Handle("PUT /api/settings", middleware.CorrelationID(enableCORS(settingsHandler.UpdateSettings)))

	mux.Handle("GET /api/jobs/failed", middleware.CorrelationID(enableCORS(jobHandler.List)))
	mux.Handle("POST /api/jobs/{id}/retry", middleware.CorrelationID(enableCORS(jobHandler.Retry)))

	mux.Handle("GET /api/stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	// Method patterns above never match OPTIONS, so preflight needs its own route.
	mux.HandleFunc("OPTIONS /api/", enableCORS(func(w http.ResponseWriter, r *http.Request) {}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	reindexConsumer := worker.NewReindexConsumer(documentService)

	return &App{
		Handler:         mux,
		DocumentService: documentService,
		ChatService:     chatService,
		ReindexConsumer: reindexConsumer,
		port:            cfg.ServerPort,
		pool:            pool,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases pooled resources. Call after Run returns.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Release()
	}
}
