package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sqlpilot/sqlpilot/internal/cli/sqlpilotctl"
	"github.com/sqlpilot/sqlpilot/internal/database"
)

func main() {
	_ = godotenv.Load()

	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("SQLPILOT_CLI_TIMEOUT")), 5*time.Minute)
	port, _ := strconv.Atoi(strings.TrimSpace(os.Getenv("SQLPILOT_DB_PORT")))
	options := sqlpilotctl.Options{
		BaseURL: envOr("SQLPILOT_API_URL", "http://localhost:8080"),
		APIKey:  strings.TrimSpace(os.Getenv("SQLPILOT_API_KEY")),
		Timeout: timeout,
		Database: database.Info{
			Type:     strings.TrimSpace(os.Getenv("SQLPILOT_DB_TYPE")),
			Host:     strings.TrimSpace(os.Getenv("SQLPILOT_DB_HOST")),
			Port:     port,
			Username: strings.TrimSpace(os.Getenv("SQLPILOT_DB_USER")),
			Password: os.Getenv("SQLPILOT_DB_PASSWORD"),
			Database: strings.TrimSpace(os.Getenv("SQLPILOT_DB_NAME")),
			Schema:   strings.TrimSpace(os.Getenv("SQLPILOT_DB_SCHEMA")),
		},
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	code := sqlpilotctl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid SQLPILOT_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
