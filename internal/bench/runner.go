package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sqlpilot/sqlpilot/internal/database"
)

type askRequest struct {
	DatabaseInfo database.Info `json:"databaseInfo"`
	Query        string        `json:"query"`
}

type askResponse struct {
	SQLQuery      *string `json:"sqlQuery"`
	Answer        *string `json:"answer"`
	ExecutionTime int64   `json:"executionTime"`
	Exhausted     bool    `json:"exhausted"`
}

// Report keeps the per-iteration results in request order. Failed requests
// contribute a null answer and query and are excluded from the timings.
type Report struct {
	Questions  []string  `json:"questions"`
	Answers    []*string `json:"answers"`
	SQLQueries []*string `json:"sqlQueries"`
	ExecTime   []int64   `json:"execTime"`
	MeanTime   float64   `json:"meanTime"`
	MinTime    int64     `json:"minTime"`
	MaxTime    int64     `json:"maxTime"`
	Exhausted  int       `json:"exhausted"`
	Failures   []string  `json:"failures"`
}

type Service struct {
	cfg  Config
	log  *slog.Logger
	http *http.Client
}

func NewService(cfg Config, logger *slog.Logger, client *http.Client) (*Service, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if len(cfg.Questions) == 0 {
		return nil, fmt.Errorf("at least one question is required")
	}
	if cfg.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be > 0")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if cfg.Path == "" {
		cfg.Path = "/v1/ask"
	}
	return &Service{cfg: cfg, log: logger, http: client}, nil
}

// Run sends the configured number of questions one after another, cycling
// through the question list, and summarizes the responses.
func (s *Service) Run(ctx context.Context) (Report, error) {
	report := Report{
		Questions:  make([]string, 0, s.cfg.Iterations),
		Answers:    make([]*string, 0, s.cfg.Iterations),
		SQLQueries: make([]*string, 0, s.cfg.Iterations),
		ExecTime:   make([]int64, 0, s.cfg.Iterations),
		Failures:   make([]string, 0),
	}

	for i := 0; i < s.cfg.Iterations; i++ {
		if i > 0 && s.cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(s.cfg.Interval):
			}
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		question := s.cfg.Questions[i%len(s.cfg.Questions)]
		report.Questions = append(report.Questions, question)
		resp, err := s.askOnce(ctx, question)
		if err != nil {
			s.log.Warn("benchmark request failed", slog.Int("iteration", i+1), slog.Any("error", err))
			report.Answers = append(report.Answers, nil)
			report.SQLQueries = append(report.SQLQueries, nil)
			report.Failures = append(report.Failures, fmt.Sprintf("iteration %d: %v", i+1, err))
			continue
		}

		report.Answers = append(report.Answers, resp.Answer)
		report.SQLQueries = append(report.SQLQueries, resp.SQLQuery)
		report.ExecTime = append(report.ExecTime, resp.ExecutionTime)
		if resp.Exhausted {
			report.Exhausted++
		}
		s.log.Info("benchmark iteration completed",
			slog.Int("iteration", i+1),
			slog.Int64("execution_time_ms", resp.ExecutionTime),
			slog.Bool("exhausted", resp.Exhausted),
		)
	}

	summarize(&report)
	return report, nil
}

func (s *Service) askOnce(ctx context.Context, question string) (askResponse, error) {
	raw, err := json.Marshal(askRequest{DatabaseInfo: s.cfg.Database, Query: question})
	if err != nil {
		return askResponse{}, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIBaseURL+s.cfg.Path, bytes.NewReader(raw))
	if err != nil {
		return askResponse{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return askResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return askResponse{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return askResponse{}, fmt.Errorf("ask status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var decoded askResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return askResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return decoded, nil
}

func summarize(report *Report) {
	if len(report.ExecTime) == 0 {
		return
	}
	var total int64
	report.MinTime = report.ExecTime[0]
	for _, value := range report.ExecTime {
		total += value
		report.MinTime = min(report.MinTime, value)
		report.MaxTime = max(report.MaxTime, value)
	}
	report.MeanTime = float64(total) / float64(len(report.ExecTime))
}

func WriteReport(path string, report Report) error {
	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
