package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nealali/agentic-triage-copilot/internal/api"
	"github.com/nealali/agentic-triage-copilot/internal/cache"
	"github.com/nealali/agentic-triage-copilot/internal/classify"
	"github.com/nealali/agentic-triage-copilot/internal/config"
	"github.com/nealali/agentic-triage-copilot/internal/engine"
	"github.com/nealali/agentic-triage-copilot/internal/metrics"
	"github.com/nealali/agentic-triage-copilot/internal/repo"
	"github.com/nealali/agentic-triage-copilot/internal/retrieval"
	"github.com/nealali/agentic-triage-copilot/internal/store"
	"github.com/nealali/agentic-triage-copilot/internal/triage"
	"github.com/nealali/agentic-triage-copilot/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting triage-engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ledger, err := buildStore(cfg, logger)
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer ledger.Close()

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(cfg.Cache.Addr, cfg.Cache.Username, cfg.Cache.Password, cfg.Cache.DB)
		if err != nil {
			logger.Warn("redis cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			defer provider.Close()
		}
	}

	enhanceClient := repo.NewEnhancementClient(
		cfg.Enhance.BaseURL,
		cfg.Enhance.Path,
		cfg.Enhance.APIKey,
		cfg.Enhance.Timeout,
	)

	domainRules, err := classify.LoadDomainRules(cfg.Rules.Path)
	if err != nil {
		logger.Error("failed to load rule pack", slog.String("path", cfg.Rules.Path), slog.Any("error", err))
		os.Exit(1)
	}
	var classifierFallback classify.Fallback
	if cfg.Rules.ClassifierFallback && cfg.Enhance.BaseURL != "" {
		classifierFallback = enhanceClient
	}
	classifier := classify.New(domainRules, classifierFallback, logger)

	keywordRet := retrieval.NewKeywordRetriever(cfg.Retrieval.TopK)
	var vectorRet retrieval.Retriever
	if cfg.Retrieval.EmbedBaseURL != "" {
		embedder := repo.NewEmbeddingClient(
			cfg.Retrieval.EmbedBaseURL,
			cfg.Retrieval.EmbedPath,
			cfg.Retrieval.EmbedTimeout,
			cacheProvider,
			cfg.Cache.EmbeddingTTL,
			logger,
		)
		vectorRet = retrieval.NewVectorRetriever(embedder, cfg.Retrieval.TopK, cfg.Retrieval.MinScore, logger)
	}

	var enhancer engine.Enhancer
	if cfg.Enhance.Enabled && cfg.Enhance.BaseURL != "" {
		enhancer = enhanceClient
	}

	svc := triage.NewService(
		ledger,
		classifier,
		engine.NewAnalyzer(logger),
		engine.NewAssembler(enhancer, logger),
		keywordRet,
		vectorRet,
		triage.Options{
			EnhanceEnabled:  cfg.Enhance.Enabled && cfg.Enhance.BaseURL != "",
			EnhanceModel:    cfg.Enhance.Model,
			EnhanceTimeout:  cfg.Enhance.Timeout,
			SemanticDefault: cfg.Retrieval.Mode == "vector" && vectorRet != nil,
		},
		logger,
	)

	handler := api.NewHandler(svc, logger)
	server := api.NewServer(cfg.Server.Address, handler.Router(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("http server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("triage-engine stopped")
}

func buildStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "", "memory":
		logger.Info("using in-memory store")
		return store.NewMemoryStore(), nil
	case "redis":
		return store.NewRedisStore(cfg.Storage.Addr, cfg.Storage.Username, cfg.Storage.Password, cfg.Storage.DB)
	default:
		return nil, errors.New("unknown storage backend " + cfg.Storage.Backend)
	}
}
