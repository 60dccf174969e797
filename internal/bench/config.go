package bench

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sqlpilot/sqlpilot/internal/database"
)

type LookupFunc func(string) (string, bool)

const DefaultQuestion = "List the top 10 most popular movies, including their titles, release dates, and the number of genres they belong to."

type Config struct {
	APIBaseURL    string
	APIKey        string
	Path          string
	Iterations    int
	Interval      time.Duration
	HTTPTimeout   time.Duration
	Questions     []string
	QuestionsFile string
	Database      database.Info
	OutputPath    string
}

func DefaultConfig() Config {
	return Config{
		APIBaseURL:  "http://localhost:8080",
		Path:        "/v1/ask",
		Iterations:  25,
		HTTPTimeout: 5 * time.Minute,
		Questions:   []string{DefaultQuestion},
		Database: database.Info{
			Type:     "postgres",
			Host:     "localhost",
			Port:     5432,
			Username: "postgres",
			Password: "postgres",
			Database: "movies",
			Schema:   "public",
		},
		OutputPath: "bench-results.json",
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	appliers := []func() error{
		func() error { return applyString(lookup, "SQLPILOT_BENCH_API_URL", &cfg.APIBaseURL) },
		func() error { return applyString(lookup, "SQLPILOT_BENCH_API_KEY", &cfg.APIKey) },
		func() error { return applyString(lookup, "SQLPILOT_BENCH_PATH", &cfg.Path) },
		func() error { return applyInt(lookup, "SQLPILOT_BENCH_ITERATIONS", &cfg.Iterations) },
		func() error { return applyDuration(lookup, "SQLPILOT_BENCH_INTERVAL", &cfg.Interval) },
		func() error { return applyDuration(lookup, "SQLPILOT_BENCH_HTTP_TIMEOUT", &cfg.HTTPTimeout) },
		func() error { return applyString(lookup, "SQLPILOT_BENCH_QUESTIONS_FILE", &cfg.QuestionsFile) },
		func() error { return applyString(lookup, "SQLPILOT_BENCH_OUTPUT", &cfg.OutputPath) },
		func() error { return applyString(lookup, "SQLPILOT_BENCH_DB_TYPE", &cfg.Database.Type) },
		func() error { return applyString(lookup, "SQLPILOT_BENCH_DB_HOST", &cfg.Database.Host) },
		func() error { return applyInt(lookup, "SQLPILOT_BENCH_DB_PORT", &cfg.Database.Port) },
		func() error { return applyString(lookup, "SQLPILOT_BENCH_DB_USER", &cfg.Database.Username) },
		func() error { return applyString(lookup, "SQLPILOT_BENCH_DB_PASSWORD", &cfg.Database.Password) },
		func() error { return applyString(lookup, "SQLPILOT_BENCH_DB_NAME", &cfg.Database.Database) },
		func() error { return applyString(lookup, "SQLPILOT_BENCH_DB_SCHEMA", &cfg.Database.Schema) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}
	if raw, ok := lookup("SQLPILOT_BENCH_QUESTION"); ok && strings.TrimSpace(raw) != "" {
		cfg.Questions = []string{strings.TrimSpace(raw)}
	}
	if cfg.QuestionsFile != "" {
		questions, err := ReadQuestions(cfg.QuestionsFile)
		if err != nil {
			return Config{}, fmt.Errorf("read SQLPILOT_BENCH_QUESTIONS_FILE: %w", err)
		}
		cfg.Questions = questions
	}

	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return Config{}, fmt.Errorf("SQLPILOT_BENCH_API_URL is required")
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		return Config{}, fmt.Errorf("SQLPILOT_BENCH_PATH must start with /")
	}
	if cfg.Iterations <= 0 {
		return Config{}, fmt.Errorf("SQLPILOT_BENCH_ITERATIONS must be > 0")
	}
	if cfg.Interval < 0 {
		return Config{}, fmt.Errorf("SQLPILOT_BENCH_INTERVAL must be >= 0")
	}
	if cfg.HTTPTimeout <= 0 {
		return Config{}, fmt.Errorf("SQLPILOT_BENCH_HTTP_TIMEOUT must be > 0")
	}
	if len(cfg.Questions) == 0 {
		return Config{}, fmt.Errorf("at least one benchmark question is required")
	}
	if err := cfg.Database.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid benchmark database: %w", err)
	}

	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	return cfg, nil
}

// ReadQuestions reads one question per line, skipping blanks and # comments.
func ReadQuestions(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	questions := make([]string, 0)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return questions, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
