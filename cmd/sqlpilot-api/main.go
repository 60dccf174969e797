package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sqlpilot/sqlpilot/internal/api"
	"github.com/sqlpilot/sqlpilot/internal/auth"
	"github.com/sqlpilot/sqlpilot/internal/config"
	"github.com/sqlpilot/sqlpilot/internal/database"
	"github.com/sqlpilot/sqlpilot/internal/embedding"
	"github.com/sqlpilot/sqlpilot/internal/examples"
	examplespostgres "github.com/sqlpilot/sqlpilot/internal/examples/postgres"
	"github.com/sqlpilot/sqlpilot/internal/llm"
	"github.com/sqlpilot/sqlpilot/internal/observability"
	"github.com/sqlpilot/sqlpilot/internal/pilot"
	"github.com/sqlpilot/sqlpilot/internal/prompt"
	"github.com/sqlpilot/sqlpilot/internal/propernoun"
	"github.com/sqlpilot/sqlpilot/internal/storage"
	s3store "github.com/sqlpilot/sqlpilot/internal/storage/s3"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", slog.Any("error", err))
	}

	cfg, err := config.LoadFromEnv("sqlpilot-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model, err := llm.NewFromConfig(cfg.AI)
	if err != nil {
		logger.Error("failed to initialize language model", slog.Any("error", err))
		os.Exit(1)
	}
	embedder, err := embedding.NewFromConfig(cfg.Embedding)
	if err != nil {
		logger.Error("failed to initialize embedder", slog.Any("error", err))
		os.Exit(1)
	}
	embedder = embedding.NewCache(embedder, 4096)

	store, closeStore, err := openExampleStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize example store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	corpus, err := examples.NewCorpus(ctx, store)
	if err != nil {
		logger.Error("failed to load example corpus", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("example corpus loaded",
		slog.String("backend", cfg.Examples.Backend),
		slog.Int("examples", len(corpus.Examples())),
	)

	if cfg.Examples.Backend == "file" && cfg.Examples.Watch {
		watcher, err := examples.NewWatcher(corpus, cfg.Examples.Path, logger)
		if err != nil {
			logger.Error("failed to watch examples file", slog.Any("error", err))
			os.Exit(1)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("examples watcher stopped", slog.Any("error", err))
			}
		}()
	}

	policy, err := prompt.ParsePolicy(cfg.Agent.CustomPromptPolicy)
	if err != nil {
		logger.Error("invalid custom prompt policy", slog.Any("error", err))
		os.Exit(1)
	}
	nounColumns, err := propernoun.ParseColumnRefs(cfg.Agent.ProperNounColumns)
	if err != nil {
		logger.Error("invalid proper noun columns", slog.Any("error", err))
		os.Exit(1)
	}

	service := &pilot.Service{
		Model:    model,
		Embedder: embedder,
		Corpus:   corpus,
		Open: pilot.SQLOpener(database.Options{
			ConnectTimeout: cfg.Database.ConnectTimeout,
			QueryTimeout:   cfg.Database.QueryTimeout,
			MaxRows:        cfg.Database.MaxRows,
		}),
		Config: pilot.Config{
			MaxIterations:     cfg.Agent.MaxIterations,
			TopK:              cfg.Agent.TopK,
			ExampleCount:      cfg.Agent.ExampleCount,
			ProperNounK:       cfg.Agent.ProperNounK,
			ProperNounColumns: nounColumns,
			TokenBudget:       cfg.Agent.TranscriptTokenBudget,
			QueryChecker:      cfg.Agent.QueryChecker,
			SampleRows:        cfg.Agent.SampleRows,
			Policy:            policy,
			Templates:         prompt.DefaultTemplates(),
			SaveEnabled:       cfg.Examples.SaveEnabled,
		},
		Counter: prompt.DefaultTokenCounter(),
		Logger:  logger,
	}

	deps := api.Dependencies{
		Logger: logger,
		Pilot:  service,
		Readiness: api.CombineReadinessChecks(
			api.CheckExamplesLoaded(corpus),
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func openExampleStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (examples.Store, func(), error) {
	seed, err := examples.Seed(cfg.Examples.Seed)
	if err != nil {
		return nil, nil, err
	}
	noop := func() {}

	switch cfg.Examples.Backend {
	case "s3":
		objectStore, err := s3store.New(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize object store: %w", err)
		}
		key := cfg.Examples.ObjectKey
		if key == "" {
			if key, err = storage.BuildCorpusKey(cfg.Examples.Seed, "json"); err != nil {
				return nil, nil, err
			}
		}
		store, err := examples.NewObjectStore(objectStore, key, seed, true, logger)
		return store, noop, err
	case "postgres":
		db, err := examplespostgres.Open(ctx, examplespostgres.DBConfig{
			DSN:             cfg.Examples.DSN,
			MaxOpenConns:    4,
			ConnMaxIdleTime: 5 * time.Minute,
		})
		if err != nil {
			return nil, nil, err
		}
		return examplespostgres.NewStore(db, seed), closeDB(db), nil
	default:
		if dir := filepath.Dir(cfg.Examples.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create examples dir: %w", err)
			}
		}
		store, err := examples.NewFileStore(cfg.Examples.Path, seed)
		return store, noop, err
	}
}

func closeDB(db *sql.DB) func() {
	return func() { _ = db.Close() }
}
