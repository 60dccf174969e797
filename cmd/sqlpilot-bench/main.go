package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sqlpilot/sqlpilot/internal/bench"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := bench.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		logger.Error("failed to load benchmark config", slog.Any("error", err))
		os.Exit(1)
	}

	svc, err := bench.NewService(cfg, logger, nil)
	if err != nil {
		logger.Error("failed to initialize benchmark", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting benchmark",
		slog.String("api_url", cfg.APIBaseURL),
		slog.Int("iterations", cfg.Iterations),
		slog.Int("questions", len(cfg.Questions)),
	)
	report, runErr := svc.Run(ctx)
	if err := bench.WriteReport(cfg.OutputPath, report); err != nil {
		logger.Error("failed to write benchmark report", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("benchmark finished",
		slog.String("output", cfg.OutputPath),
		slog.Float64("mean_time_ms", report.MeanTime),
		slog.Int("failures", len(report.Failures)),
	)
	if runErr != nil {
		logger.Error("benchmark interrupted", slog.Any("error", runErr))
		os.Exit(1)
	}
}
