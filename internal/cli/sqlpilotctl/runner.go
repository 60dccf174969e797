package sqlpilotctl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sqlpilot/sqlpilot/internal/database"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	Database   database.Info
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

type askResponse struct {
	SQLQuery  *string `json:"sqlQuery"`
	Answer    *string `json:"answer"`
	Exhausted bool    `json:"exhausted"`
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	stdin := defaults.Stdin
	if stdin == nil {
		stdin = strings.NewReader("")
	}

	fs := flag.NewFlagSet("sqlpilotctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "sqlpilot API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 5*time.Minute), "HTTP timeout (e.g. 90s)")
	dbInfoPath := fs.String("db-info", "", "JSON file holding the databaseInfo object")
	dbType := fs.String("db-type", defaults.Database.Type, "database type: postgres, mysql, sqlite or duckdb")
	dbHost := fs.String("db-host", defaults.Database.Host, "database host")
	dbPort := fs.Int("db-port", defaults.Database.Port, "database port")
	dbUser := fs.String("db-user", defaults.Database.Username, "database user")
	dbPassword := fs.String("db-password", defaults.Database.Password, "database password")
	dbName := fs.String("db-name", defaults.Database.Database, "database name, or file path for sqlite and duckdb")
	dbSchema := fs.String("db-schema", defaults.Database.Schema, "schema to restrict table listing to")
	customPrompt := fs.String("custom-prompt", "", "extra instructions spliced into the agent prompt")
	save := fs.Bool("save", false, "ask for confirmation and save the answer as a few-shot example")
	steps := fs.Bool("steps", false, "include the agent transcript in the output")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}
	c := &caller{client: client, baseURL: strings.TrimRight(*baseURL, "/"), apiKey: strings.TrimSpace(*apiKey), stderr: stderr}

	info := database.Info{
		Type:     *dbType,
		Host:     *dbHost,
		Port:     *dbPort,
		Username: *dbUser,
		Password: *dbPassword,
		Database: *dbName,
		Schema:   *dbSchema,
	}
	if *dbInfoPath != "" {
		loaded, err := readDatabaseInfo(*dbInfoPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "read -db-info: %v\n", err)
			return 2
		}
		info = loaded
	}

	command := strings.TrimSpace(fs.Arg(0))
	switch command {
	case "health":
		return c.print(ctx, stdout, http.MethodGet, "/v1/health", nil)
	case "ready":
		return c.print(ctx, stdout, http.MethodGet, "/v1/ready", nil)
	case "examples":
		return c.print(ctx, stdout, http.MethodGet, "/v1/examples", nil)
	case "ping":
		return c.print(ctx, stdout, http.MethodPost, "/v1/ping", map[string]any{"databaseInfo": info})
	case "ask":
		question := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "ask requires a question")
			return 2
		}
		body, code := c.call(ctx, http.MethodPost, "/v1/ask", map[string]any{
			"databaseInfo": info,
			"query":        question,
			"customPrompt": *customPrompt,
			"includeSteps": *steps,
		})
		if code != 0 {
			return code
		}
		writeBody(stdout, body)
		if !*save {
			return 0
		}
		return c.confirmAndSave(ctx, stdin, stdout, question, body)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
}

type caller struct {
	client  *http.Client
	baseURL string
	apiKey  string
	stderr  io.Writer
}

func (c *caller) print(ctx context.Context, stdout io.Writer, method, path string, payload any) int {
	body, code := c.call(ctx, method, path, payload)
	if code != 0 {
		return code
	}
	writeBody(stdout, body)
	return 0
}

// call returns the response body, or a non-zero exit code after reporting
// the failure on stderr.
func (c *caller) call(ctx context.Context, method, path string, payload any) ([]byte, int) {
	status, body, err := doRequest(ctx, c.client, method, c.baseURL+path, c.apiKey, payload)
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "request failed: %v\n", err)
		return nil, 1
	}
	if status >= 400 {
		_, _ = fmt.Fprintf(c.stderr, "http %d: %s\n", status, strings.TrimSpace(string(body)))
		return nil, 1
	}
	return body, 0
}

// confirmAndSave asks on stdin before posting the answer to the example
// corpus. Exhausted runs and answers without an Answer are never offered.
func (c *caller) confirmAndSave(ctx context.Context, stdin io.Reader, stdout io.Writer, question string, body []byte) int {
	var resp askResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		_, _ = fmt.Fprintf(c.stderr, "decode ask response: %v\n", err)
		return 1
	}
	if resp.Exhausted || resp.Answer == nil {
		_, _ = fmt.Fprintln(stdout, "Nothing to save.")
		return 0
	}

	_, _ = fmt.Fprint(stdout, "Save this example? [y/N] ")
	line, _ := bufio.NewReader(stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
	default:
		_, _ = fmt.Fprintln(stdout, "Not saved.")
		return 0
	}

	sqlQuery := "N/A"
	if resp.SQLQuery != nil {
		sqlQuery = *resp.SQLQuery
	}
	if _, code := c.call(ctx, http.MethodPost, "/v1/examples", map[string]any{
		"input":    question,
		"sqlQuery": sqlQuery,
		"answer":   *resp.Answer,
	}); code != 0 {
		return code
	}
	_, _ = fmt.Fprintln(stdout, "Saved.")
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, url, apiKey string, payload any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func readDatabaseInfo(path string) (database.Info, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return database.Info{}, err
	}
	var wrapper struct {
		DatabaseInfo *database.Info `json:"databaseInfo"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.DatabaseInfo != nil {
		return *wrapper.DatabaseInfo, nil
	}
	var info database.Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return database.Info{}, err
	}
	return info, nil
}

func writeBody(w io.Writer, body []byte) {
	if pretty, ok := prettyJSON(body); ok {
		_, _ = fmt.Fprintln(w, pretty)
		return
	}
	if len(body) > 0 {
		_, _ = fmt.Fprintln(w, string(body))
	}
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: sqlpilotctl [flags] <command> [question]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health           GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready            GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  ping             POST /v1/ping with the -db-* flags")
	_, _ = fmt.Fprintln(w, "  ask <question>   POST /v1/ask; -save confirms and appends the answer")
	_, _ = fmt.Fprintln(w, "  examples         GET /v1/examples")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
