package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"media-insight/internal/config"
	"media-insight/internal/domain/ports/adapter"
	aiAdapters "media-insight/internal/infra/adapters/ai"
	"media-insight/internal/infra/adapters/embedding"
	"media-insight/internal/infra/adapters/media"
	"media-insight/internal/infra/adapters/vector"
	pg "media-insight/internal/infra/db/postgres"
	"media-insight/internal/infra/logging"
	"media-insight/internal/infra/metrics"
	red "media-insight/internal/infra/redis"
	"media-insight/internal/infra/web"
	"media-insight/internal/infra/worker"
	"media-insight/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed auth)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	if err := pg.InitSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("schema init failed")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	historyCache := red.NewHistoryCache(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	jobRepo := pg.NewJobRepo(pool, tm, cfg.Worker.RecoverAfter)
	transcriptRepo := pg.NewTranscriptRepo(pool)
	summaryRepo := pg.NewSummaryRepo(pool)
	historyRepo := pg.NewChatHistoryRepo(pool)
	sysConfigRepo := pg.NewSystemConfigRepo(pool)

	// ---- AI adapter ----
	var ai adapter.AIServiceAdapter
	switch cfg.AI.Provider {
	case "openai":
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter failed")
		}
		logger.Info().Str("base", cfg.AI.BaseURL).Str("model", cfg.AI.Model).Msg("AI adapter: OpenAI compatible")
	case "gemini":
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.Model)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter failed")
		}
		logger.Info().Str("model", cfg.AI.Model).Msg("AI adapter: Gemini")
	case "noop":
		ai = aiAdapters.NewNoopAIAdapter()
		logger.Warn().Msg("AI adapter: noop (no real completions)")
	default:
		logger.Fatal().Str("provider", cfg.AI.Provider).Msg("unknown ai.provider")
	}

	// ---- Embedding ----
	embedder, err := embedding.NewOpenAIEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model)
	if err != nil {
		logger.Fatal().Err(err).Msg("embedder failed")
	}

	// ---- Vector store ----
	vectors, err := vector.New(cfg.Vector.Backend, cfg.Vector.URL, cfg.Vector.APIKey, cfg.Vector.Collection)
	if err != nil {
		logger.Fatal().Err(err).Msg("vector store failed")
	}
	ensureCollection(ctx, embedder, vectors, logger)

	// ---- Media adapters ----
	fetcher, err := media.NewHTTPFetcher(cfg.Media.Dir, cfg.Media.HTTPTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("media dir failed")
	}
	transcriber, err := media.NewASRAdapter(cfg.ASR.URL, cfg.ASR.APIKey, cfg.ASR.Timeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("asr adapter failed")
	}

	// ---- Use cases ----
	ingestUC := usecase.NewIngestUseCase(jobRepo, transcriptRepo, summaryRepo, vectors, worker.MediaID, logger)
	chatUC := usecase.NewChatUseCase(
		historyRepo, sysConfigRepo, embedder, vectors, ai,
		rateLimiter, historyCache, red.SessionChatKey,
		usecase.ChatConfig{
			Model:          cfg.AI.Model,
			MaxTokens:      cfg.AI.MaxTokens,
			Temperature:    cfg.AI.Temperature,
			HistoryWindow:  cfg.Chat.HistoryWindow,
			TokenBudget:    cfg.Chat.TokenBudget,
			TopK:           cfg.Chat.TopK,
			ScoreThreshold: cfg.Chat.ScoreThreshold,
			RatePerMinute:  cfg.Chat.RatePerMinute,
		},
		logger,
	)
	configUC := usecase.NewConfigUseCase(sysConfigRepo)

	// ---- Pipeline worker ----
	var workerPool *worker.Pool
	if cfg.Worker.Enabled {
		workerPool = worker.NewPool(cfg.Worker.Concurrency).WithLogger(logger)
		workerPool.Start(ctx)
		pw := worker.NewPipelineWorker(
			jobRepo, transcriptRepo, summaryRepo,
			fetcher, transcriber, ai, embedder, vectors,
			cfg.AI.Model,
			adapter.ChatParams{MaxTokens: cfg.AI.MaxTokens, Temperature: cfg.AI.Temperature},
			cfg.Worker.PollInterval,
			logger,
		)
		go pw.Run(ctx, workerPool)
		logger.Info().Int("concurrency", cfg.Worker.Concurrency).Msg("pipeline worker started")
	}

	// ---- HTTP server ----
	metrics.MustRegister()
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, "", cfg.Admin.SessionTTL)
	srv := web.NewServer(ingestUC, chatUC, configUC, auth, cfg.Admin.APIKey, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	if workerPool != nil {
		workerPool.Stop()
	}
}

// ensureCollection probes the embedding dimension with a throwaway string and
// creates the collection when the backend supports explicit creation. Failures
// only log; the first indexing job will surface the real error.
func ensureCollection(ctx context.Context, embedder adapter.Embedder, vectors adapter.VectorStore, logger *zerolog.Logger) {
	creator, ok := vectors.(interface {
		EnsureCollection(ctx context.Context, vectorSize int) error
	})
	if !ok {
		return
	}
	probeCtx, probeCancel := context.WithTimeout(ctx, 30*time.Second)
	defer probeCancel()
	vec, err := embedder.Embed(probeCtx, "dimension probe")
	if err != nil {
		logger.Warn().Err(err).Msg("embedding probe failed, skipping collection bootstrap")
		return
	}
	if err := creator.EnsureCollection(probeCtx, len(vec)); err != nil {
		logger.Warn().Err(err).Msg("collection bootstrap failed")
	}
}
