package bench

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8080" {
		t.Fatalf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.Iterations != 25 {
		t.Fatalf("Iterations = %d", cfg.Iterations)
	}
	if len(cfg.Questions) != 1 || cfg.Questions[0] != DefaultQuestion {
		t.Fatalf("Questions = %v", cfg.Questions)
	}
	if cfg.Database.Type != "postgres" || cfg.Database.Database != "movies" {
		t.Fatalf("Database = %+v", cfg.Database)
	}
	if cfg.OutputPath != "bench-results.json" {
		t.Fatalf("OutputPath = %q", cfg.OutputPath)
	}
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{
		"SQLPILOT_BENCH_API_URL":      "http://bench.local:3001/",
		"SQLPILOT_BENCH_API_KEY":      " k1 ",
		"SQLPILOT_BENCH_PATH":         "/",
		"SQLPILOT_BENCH_ITERATIONS":   "3",
		"SQLPILOT_BENCH_INTERVAL":     "250ms",
		"SQLPILOT_BENCH_HTTP_TIMEOUT": "30s",
		"SQLPILOT_BENCH_QUESTION":     "How many movies are there?",
		"SQLPILOT_BENCH_OUTPUT":       "out.json",
		"SQLPILOT_BENCH_DB_TYPE":      "mysql",
		"SQLPILOT_BENCH_DB_HOST":      "db.local",
		"SQLPILOT_BENCH_DB_PORT":      "3306",
		"SQLPILOT_BENCH_DB_NAME":      "cinema",
	}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.APIBaseURL != "http://bench.local:3001" {
		t.Fatalf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.APIKey != "k1" {
		t.Fatalf("APIKey = %q", cfg.APIKey)
	}
	if cfg.Path != "/" || cfg.Iterations != 3 {
		t.Fatalf("Path = %q Iterations = %d", cfg.Path, cfg.Iterations)
	}
	if cfg.Interval != 250*time.Millisecond || cfg.HTTPTimeout != 30*time.Second {
		t.Fatalf("Interval = %s HTTPTimeout = %s", cfg.Interval, cfg.HTTPTimeout)
	}
	if cfg.Questions[0] != "How many movies are there?" {
		t.Fatalf("Questions = %v", cfg.Questions)
	}
	if cfg.Database.Type != "mysql" || cfg.Database.Host != "db.local" || cfg.Database.Port != 3306 || cfg.Database.Database != "cinema" {
		t.Fatalf("Database = %+v", cfg.Database)
	}
}

func TestLoadConfigFromEnvReadsQuestionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.txt")
	content := "# movies\nHow many movies are there?\n\nWho directed Alien?\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{"SQLPILOT_BENCH_QUESTIONS_FILE": path}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if len(cfg.Questions) != 2 || cfg.Questions[1] != "Who directed Alien?" {
		t.Fatalf("Questions = %v", cfg.Questions)
	}
}

func TestLoadConfigFromEnvValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"iterations": {"SQLPILOT_BENCH_ITERATIONS": "0"},
		"path":       {"SQLPILOT_BENCH_PATH": "v1/ask"},
		"timeout":    {"SQLPILOT_BENCH_HTTP_TIMEOUT": "nope"},
		"database":   {"SQLPILOT_BENCH_DB_TYPE": "oracle"},
		"port":       {"SQLPILOT_BENCH_DB_PORT": "x"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfigFromEnv(mapLookup(env)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfigFromEnvRequiresLookup(t *testing.T) {
	_, err := LoadConfigFromEnv(nil)
	if err == nil || !strings.Contains(err.Error(), "lookup") {
		t.Fatalf("err = %v", err)
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}
