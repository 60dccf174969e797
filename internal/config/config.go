package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	CORS          CORSConfig
	AI            AIConfig
	Embedding     EmbeddingConfig
	Agent         AgentConfig
	Examples      ExamplesConfig
	ObjectStore   ObjectStoreConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type AIConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type EmbeddingConfig struct {
	Provider   string
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	Dimensions int
}

type AgentConfig struct {
	MaxIterations         int
	TopK                  int
	ExampleCount          int
	ProperNounK           int
	ProperNounColumns     []string
	TranscriptTokenBudget int
	CustomPromptPolicy    string
	QueryChecker          bool
	SampleRows            int
}

type ExamplesConfig struct {
	Backend     string
	Path        string
	Seed        string
	Watch       bool
	ObjectKey   string
	DSN         string
	SaveEnabled bool
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type DatabaseConfig struct {
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
	MaxRows        int
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLPILOT_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLPILOT_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "SQLPILOT_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "SQLPILOT_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "SQLPILOT_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "SQLPILOT_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "SQLPILOT_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyList(lookup, "SQLPILOT_CORS_ALLOWED_ORIGINS", &cfg.CORS.AllowedOrigins) },
		func() error { return applyString(lookup, "SQLPILOT_AI_PROVIDER", &cfg.AI.Provider) },
		func() error { return applyString(lookup, "SQLPILOT_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "SQLPILOT_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "SQLPILOT_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyFloat(lookup, "SQLPILOT_AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyInt(lookup, "SQLPILOT_AI_MAX_TOKENS", &cfg.AI.MaxTokens) },
		func() error { return applyDuration(lookup, "SQLPILOT_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyString(lookup, "SQLPILOT_EMBEDDING_PROVIDER", &cfg.Embedding.Provider) },
		func() error { return applyString(lookup, "SQLPILOT_EMBEDDING_BASE_URL", &cfg.Embedding.BaseURL) },
		func() error { return applyString(lookup, "SQLPILOT_EMBEDDING_API_KEY", &cfg.Embedding.APIKey) },
		func() error { return applyString(lookup, "SQLPILOT_EMBEDDING_MODEL", &cfg.Embedding.Model) },
		func() error { return applyDuration(lookup, "SQLPILOT_EMBEDDING_TIMEOUT", &cfg.Embedding.Timeout) },
		func() error { return applyInt(lookup, "SQLPILOT_EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions) },
		func() error { return applyInt(lookup, "SQLPILOT_AGENT_MAX_ITERATIONS", &cfg.Agent.MaxIterations) },
		func() error { return applyInt(lookup, "SQLPILOT_AGENT_TOP_K", &cfg.Agent.TopK) },
		func() error { return applyInt(lookup, "SQLPILOT_AGENT_EXAMPLE_COUNT", &cfg.Agent.ExampleCount) },
		func() error { return applyInt(lookup, "SQLPILOT_AGENT_PROPER_NOUN_K", &cfg.Agent.ProperNounK) },
		func() error {
			return applyList(lookup, "SQLPILOT_AGENT_PROPER_NOUN_COLUMNS", &cfg.Agent.ProperNounColumns)
		},
		func() error {
			return applyInt(lookup, "SQLPILOT_AGENT_TRANSCRIPT_TOKEN_BUDGET", &cfg.Agent.TranscriptTokenBudget)
		},
		func() error {
			return applyString(lookup, "SQLPILOT_AGENT_CUSTOM_PROMPT_POLICY", &cfg.Agent.CustomPromptPolicy)
		},
		func() error { return applyBool(lookup, "SQLPILOT_AGENT_QUERY_CHECKER", &cfg.Agent.QueryChecker) },
		func() error { return applyInt(lookup, "SQLPILOT_AGENT_SAMPLE_ROWS", &cfg.Agent.SampleRows) },
		func() error { return applyString(lookup, "SQLPILOT_EXAMPLES_BACKEND", &cfg.Examples.Backend) },
		func() error { return applyString(lookup, "SQLPILOT_EXAMPLES_PATH", &cfg.Examples.Path) },
		func() error { return applyString(lookup, "SQLPILOT_EXAMPLES_SEED", &cfg.Examples.Seed) },
		func() error { return applyBool(lookup, "SQLPILOT_EXAMPLES_WATCH", &cfg.Examples.Watch) },
		func() error { return applyString(lookup, "SQLPILOT_EXAMPLES_OBJECT_KEY", &cfg.Examples.ObjectKey) },
		func() error { return applyString(lookup, "SQLPILOT_EXAMPLES_DSN", &cfg.Examples.DSN) },
		func() error { return applyBool(lookup, "SQLPILOT_EXAMPLES_SAVE_ENABLED", &cfg.Examples.SaveEnabled) },
		func() error { return applyString(lookup, "SQLPILOT_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "SQLPILOT_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "SQLPILOT_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error {
			return applyString(lookup, "SQLPILOT_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID)
		},
		func() error {
			return applyString(lookup, "SQLPILOT_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "SQLPILOT_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "SQLPILOT_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "SQLPILOT_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error {
			return applyDuration(lookup, "SQLPILOT_DB_CONNECT_TIMEOUT", &cfg.Database.ConnectTimeout)
		},
		func() error { return applyDuration(lookup, "SQLPILOT_DB_QUERY_TIMEOUT", &cfg.Database.QueryTimeout) },
		func() error { return applyInt(lookup, "SQLPILOT_DB_MAX_ROWS", &cfg.Database.MaxRows) },
		func() error { return applyBool(lookup, "SQLPILOT_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "SQLPILOT_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "SQLPILOT_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "SQLPILOT_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	switch cfg.AI.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("invalid SQLPILOT_AI_PROVIDER: %q", cfg.AI.Provider)
	}
	switch cfg.Embedding.Provider {
	case "openai", "ollama", "hashing":
	default:
		return fmt.Errorf("invalid SQLPILOT_EMBEDDING_PROVIDER: %q", cfg.Embedding.Provider)
	}
	switch cfg.Examples.Backend {
	case "file", "s3", "postgres":
	default:
		return fmt.Errorf("invalid SQLPILOT_EXAMPLES_BACKEND: %q", cfg.Examples.Backend)
	}
	switch cfg.Agent.CustomPromptPolicy {
	case "escape", "reject", "ignore":
	default:
		return fmt.Errorf("invalid SQLPILOT_AGENT_CUSTOM_PROMPT_POLICY: %q", cfg.Agent.CustomPromptPolicy)
	}
	if cfg.Agent.MaxIterations <= 0 {
		return fmt.Errorf("SQLPILOT_AGENT_MAX_ITERATIONS must be > 0")
	}
	if cfg.Agent.ExampleCount <= 0 || cfg.Agent.TopK <= 0 || cfg.Agent.ProperNounK <= 0 {
		return fmt.Errorf("agent top_k, example count and proper noun k must be positive")
	}
	if cfg.Examples.Backend == "postgres" && cfg.Examples.DSN == "" {
		return fmt.Errorf("SQLPILOT_EXAMPLES_DSN is required for the postgres examples backend")
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlpilot-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		AI: AIConfig{
			Provider:    "openai",
			BaseURL:     "https://api.openai.com",
			Model:       "gpt-4o",
			Temperature: 0,
			MaxTokens:   1024,
			Timeout:     60 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			BaseURL:    "https://api.openai.com",
			Model:      "text-embedding-3-small",
			Timeout:    15 * time.Second,
			Dimensions: 256,
		},
		Agent: AgentConfig{
			MaxIterations:         15,
			TopK:                  10,
			ExampleCount:          5,
			ProperNounK:           5,
			TranscriptTokenBudget: 6000,
			CustomPromptPolicy:    "escape",
			QueryChecker:          true,
			SampleRows:            3,
		},
		Examples: ExamplesConfig{
			Backend:     "file",
			Path:        "data/examples.json",
			Seed:        "movies",
			Watch:       true,
			ObjectKey:   "examples/corpus.json",
			SaveEnabled: true,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "sqlpilot",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Database: DatabaseConfig{
			ConnectTimeout: 10 * time.Second,
			QueryTimeout:   30 * time.Second,
			MaxRows:        200,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
		cfg.Embedding.Provider = "hashing"
		cfg.Examples.Watch = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
		cfg.Examples.Watch = false
		cfg.CORS.AllowedOrigins = nil
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	*dst = values
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
