package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lumina/internal/config"
	dbRedis "github.com/kailas-cloud/lumina/internal/db/redis"
	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/domain/catalog"
	logpkg "github.com/kailas-cloud/lumina/internal/logger"
	"github.com/kailas-cloud/lumina/internal/metrics"
	"github.com/kailas-cloud/lumina/internal/repository/embcache"
	indexrepo "github.com/kailas-cloud/lumina/internal/repository/index"
	"github.com/kailas-cloud/lumina/internal/repository/pgindex"
	"github.com/kailas-cloud/lumina/internal/repository/respcache"
	chiTransport "github.com/kailas-cloud/lumina/internal/transport/chi"
	"github.com/kailas-cloud/lumina/internal/transport/inference"
	openaiEmb "github.com/kailas-cloud/lumina/internal/transport/openai"
	cataloguc "github.com/kailas-cloud/lumina/internal/usecase/catalog"
	detectionuc "github.com/kailas-cloud/lumina/internal/usecase/detection"
	embeddinguc "github.com/kailas-cloud/lumina/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/lumina/internal/usecase/health"
	rerankuc "github.com/kailas-cloud/lumina/internal/usecase/rerank"
	searchuc "github.com/kailas-cloud/lumina/internal/usecase/search"
	"github.com/kailas-cloud/lumina/internal/version"
)

// vectorIndex is what the composition root needs from either index backend.
type vectorIndex interface {
	searchuc.Index
	cataloguc.Index
	EnsureCollection(ctx context.Context) error
	HealthCheck(ctx context.Context) error
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(logpkg.Options{Service: "lumina", Env: env, Level: cfg.Logging.Level})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting lumina API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("index_backend", cfg.Index.Backend),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
		Flavor:   dbRedis.Flavor(cfg.Database.Driver),
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()
	metrics.RegisterHTTPMetrics()

	schema, err := cfg.Index.Schema()
	if err != nil {
		logger.Fatal("Invalid catalog schema", zap.Error(err))
	}

	index, closeIndex, err := buildIndex(ctx, cfg.Index, schema, store)
	if err != nil {
		logger.Fatal("Failed to open vector index", zap.Error(err))
	}
	defer closeIndex()

	if err := index.EnsureCollection(ctx); err != nil {
		logger.Fatal("Failed to ensure collection", zap.Error(err))
	}
	logger.Info("Collection ready",
		zap.String("collection", schema.Collection()),
		zap.Int("dimensions", schema.VectorDim()),
	)

	// Embedders: documents skip the cache and the query instruction
	provider := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:         cfg.Embedding.APIKey,
		BaseURL:        cfg.Embedding.BaseURL,
		Model:          cfg.Embedding.Model,
		Dimensions:     cfg.Index.Dimensions,
		SendDimensions: cfg.Embedding.SendDimensions,
		Provider:       cfg.Embedding.Provider,
		Logger:         logger,
	})
	docEmbedder := embeddinguc.NewInstrumentedEmbedder(provider, cfg.Embedding.Provider, cfg.Embedding.Model, logger)
	queryEmbedder := buildQueryEmbedder(cfg.Embedding, cfg.Index.Dimensions, provider, store, logger)

	// Pass nil interfaces (not typed nil pointers) for disabled stages.
	var (
		images   *embeddinguc.InstrumentedEmbedder
		detector chiTransport.Detector
		infer    *inference.Client
	)
	if cfg.Inference.Enabled {
		infer = inference.New(&inference.Config{
			BaseURL:     cfg.Inference.BaseURL,
			APIKey:      cfg.Inference.APIKey,
			Timeout:     time.Duration(cfg.Inference.TimeoutSec) * time.Second,
			ImageModel:  cfg.Inference.ImageModel,
			DetectModel: cfg.Inference.DetectModel,
			Logger:      logger,
		})
		images = embeddinguc.NewInstrumentedEmbedder(provider, "inference", cfg.Inference.ImageModel, logger).
			WithImages(infer)
		detector = detectionuc.New(infer, infer.DetectModel(), cfg.Inference.DetectThreshold).
			WithDefaultLabels(cfg.Inference.DefaultLabels)
	}

	var reranker searchuc.Reranker
	if cfg.Rerank.Enabled {
		scorer := inference.New(&inference.Config{
			BaseURL:     cfg.Rerank.BaseURL,
			APIKey:      cfg.Rerank.APIKey,
			Timeout:     cfg.Search.Timeout(),
			RerankModel: cfg.Rerank.Model,
			Logger:      logger,
		})
		reranker = rerankuc.New(scorer, cfg.Rerank.TextField)
	}

	var (
		cache  searchuc.Cache
		purger chiTransport.CachePurger
	)
	if cfg.Cache.Enabled {
		rc := respcache.New(store, cfg.Cache.TTL(), respcache.WithPrefix(cfg.Cache.KeyPrefix))
		cache, purger = rc, rc
	}

	// Use case services
	searchSvc := searchuc.New(index, queryEmbedder, cache, reranker, searchuc.Config{
		Overfetch:    cfg.Search.Overfetch,
		Timeout:      cfg.Search.Timeout(),
		CacheTTL:     cfg.Cache.TTL(),
		RerankPolicy: searchuc.RerankPolicy(cfg.Rerank.OnFailure),
	}, logger).WithSchema(schema)

	catalogSvc, err := cataloguc.New(index, docEmbedder, schema, cfg.Ingest.Workers)
	if err != nil {
		logger.Fatal("Failed to create catalog service", zap.Error(err))
	}
	defer catalogSvc.Release()
	catalogSvc.WithMaxBatch(cfg.Ingest.MaxBatch)

	if images != nil {
		searchSvc.WithImageEmbedder(images)
		catalogSvc.WithImageEmbedder(images)
	}

	healthSvc := healthuc.New(store, queryEmbedder).
		WithCheck("index", index).
		WithTimeout(cfg.Health.ProbeTimeout()).
		WithParallelism(cfg.Health.Parallelism)
	if infer != nil {
		healthSvc.WithCheck("inference", infer)
	}

	server := chiTransport.NewServer(searchSvc, catalogSvc, detector, purger, healthSvc, logger).
		WithDefaults(cfg.Search.DefaultTopK, cfg.Search.DefaultRerank).
		WithMaxTopK(cfg.Search.MaxTopK).
		WithMaxUpload(int64(cfg.HTTP.MaxUploadMB) << 20)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEventMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Embedding-Tokens", "X-Rerank-Pairs"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildIndex opens the configured vector index backend.
func buildIndex(
	ctx context.Context, cfg config.IndexConfig, schema catalog.Schema, store *dbRedis.Store,
) (vectorIndex, func(), error) {
	switch cfg.Backend {
	case config.BackendPGVector:
		pool, err := pgindex.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		repo := pgindex.New(pool, schema).
			WithSchemaName(cfg.PostgresSchema).
			WithHNSW(pgindex.HNSWConfig{M: cfg.HNSWM, EFConstruct: cfg.HNSWEFConstruct})
		return repo, pool.Close, nil
	default:
		repo := indexrepo.New(store, schema).
			WithHNSW(indexrepo.HNSWConfig{M: cfg.HNSWM, EFConstruct: cfg.HNSWEFConstruct})
		return repo, func() {}, nil
	}
}

// buildQueryEmbedder assembles the decorator chain: provider -> cache -> instruction -> instrumented.
func buildQueryEmbedder(
	cfg config.EmbeddingConfig,
	dims int,
	provider *openaiEmb.Embedder,
	store *dbRedis.Store,
	logger *zap.Logger,
) *embeddinguc.InstrumentedEmbedder {
	var embedder domain.Embedder = provider
	if cfg.CacheTTLSec > 0 {
		embedder = embcache.New(provider, store, embcache.Config{
			Model:      cfg.Model,
			Dimensions: dims,
			TTL:        time.Duration(cfg.CacheTTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	// Instruction prefix wraps the cache so the cache key includes it.
	if cfg.QueryInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, cfg.QueryInstruction)
	}

	return embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, logger)
}
