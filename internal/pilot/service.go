// Package pilot answers natural-language questions against a caller supplied
// database. It wires the example corpus, proper-noun index, prompt assembler,
// tool set and agent loop together for one request at a time.
package pilot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sqlpilot/sqlpilot/internal/agent"
	"github.com/sqlpilot/sqlpilot/internal/answer"
	"github.com/sqlpilot/sqlpilot/internal/database"
	"github.com/sqlpilot/sqlpilot/internal/embedding"
	"github.com/sqlpilot/sqlpilot/internal/examples"
	"github.com/sqlpilot/sqlpilot/internal/llm"
	"github.com/sqlpilot/sqlpilot/internal/observability"
	"github.com/sqlpilot/sqlpilot/internal/prompt"
	"github.com/sqlpilot/sqlpilot/internal/propernoun"
	"github.com/sqlpilot/sqlpilot/internal/tools"
)

var (
	ErrQueryRequired       = errors.New("query is required")
	ErrInvalidDatabaseInfo = errors.New("invalid database info")
	ErrSavingDisabled      = errors.New("saving examples is disabled")
)

type AskRequest struct {
	DatabaseInfo database.Info `json:"databaseInfo"`
	Query        string        `json:"query"`
	CustomPrompt string        `json:"customPrompt,omitempty"`
	SaveExample  bool          `json:"saveExample,omitempty"`
	IncludeSteps bool          `json:"includeSteps,omitempty"`
}

type AskResponse struct {
	SQLQuery      *string      `json:"sqlQuery"`
	Answer        *string      `json:"answer"`
	ExecutionTime int64        `json:"executionTime"`
	Exhausted     bool         `json:"exhausted,omitempty"`
	Saved         bool         `json:"saved,omitempty"`
	RunID         string       `json:"runId,omitempty"`
	Steps         []agent.Step `json:"steps,omitempty"`
}

// SaveDecision confirms that a parsed answer should be appended to the
// example corpus. It is only consulted when the request asked to save.
type SaveDecision func(ctx context.Context, question string, parsed answer.Parsed) bool

func AlwaysSave(context.Context, string, answer.Parsed) bool { return true }

func NeverSave(context.Context, string, answer.Parsed) bool { return false }

// Opener connects to the database described by a request.
type Opener func(ctx context.Context, info database.Info) (database.Database, error)

// SQLOpener opens target databases with database.Open.
func SQLOpener(opts database.Options) Opener {
	return func(ctx context.Context, info database.Info) (database.Database, error) {
		db, err := database.Open(ctx, info, opts)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}

type Config struct {
	MaxIterations     int
	TopK              int
	ExampleCount      int
	ProperNounK       int
	ProperNounColumns []propernoun.ColumnRef
	TokenBudget       int
	QueryChecker      bool
	SampleRows        int
	Policy            prompt.CustomPromptPolicy
	Templates         prompt.Templates
	SaveEnabled       bool
}

type Service struct {
	Model        llm.Model
	Embedder     embedding.Embedder
	Corpus       *examples.Corpus
	Open         Opener
	Config       Config
	SaveDecision SaveDecision
	Parser       answer.Parser
	Counter      prompt.TokenCounter
	Logger       *slog.Logger
	Clock        func() time.Time

	initOnce sync.Once
	agent    *agent.Agent
	initErr  error
	selector *examples.Selector
	nouns    nounCache
}

func (s *Service) ensureDefaults() {
	s.initOnce.Do(func() {
		if s.Logger == nil {
			s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		if s.Clock == nil {
			s.Clock = time.Now
		}
		if s.Parser == nil {
			s.Parser = answer.MarkerParser{}
		}
		if s.SaveDecision == nil {
			s.SaveDecision = AlwaysSave
		}
		if s.Open == nil {
			s.Open = SQLOpener(database.Options{})
		}
		if s.Config.Policy == "" {
			s.Config.Policy = prompt.PolicyEscape
		}
		if s.Config.Templates == (prompt.Templates{}) {
			s.Config.Templates = prompt.DefaultTemplates()
		}
		if s.Config.TopK <= 0 {
			s.Config.TopK = 10
		}
		if s.Config.ExampleCount <= 0 {
			s.Config.ExampleCount = examples.DefaultK
		}
		if s.Config.ProperNounK <= 0 {
			s.Config.ProperNounK = propernoun.DefaultK
		}
		if s.Config.SampleRows <= 0 {
			s.Config.SampleRows = 3
		}
		if s.Embedder != nil {
			s.selector = examples.NewSelector(s.Embedder, s.Config.ExampleCount)
		}
		s.agent, s.initErr = agent.New(s.Model, agent.Options{
			MaxIterations: s.Config.MaxIterations,
			Logger:        s.Logger,
		})
	})
}

// Ping connects to the described database and closes the connection again.
func (s *Service) Ping(ctx context.Context, info database.Info) error {
	s.ensureDefaults()
	if err := info.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDatabaseInfo, err)
	}
	db, err := s.Open(ctx, info)
	if err != nil {
		return err
	}
	return db.Close()
}

// Ask answers one question. Connection failures, model failures and a
// rejected custom prompt are returned as errors; an agent that runs out of
// iterations is a normal response with Exhausted set.
func (s *Service) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	s.ensureDefaults()
	if s.initErr != nil {
		return AskResponse{}, s.initErr
	}
	start := s.Clock()

	question := strings.TrimSpace(req.Query)
	if question == "" {
		return AskResponse{}, ErrQueryRequired
	}
	if err := req.DatabaseInfo.Validate(); err != nil {
		return AskResponse{}, fmt.Errorf("%w: %v", ErrInvalidDatabaseInfo, err)
	}
	customPrompt, err := s.Config.Policy.Apply(req.CustomPrompt)
	if err != nil {
		return AskResponse{}, err
	}
	logger := observability.LoggerFromContext(ctx, s.Logger)
	if customPrompt == "" && strings.TrimSpace(req.CustomPrompt) != "" {
		logger.WarnContext(ctx, "custom prompt ignored by policy", slog.String("policy", string(s.Config.Policy)))
	}

	db, err := s.Open(ctx, req.DatabaseInfo)
	if err != nil {
		return AskResponse{}, err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WarnContext(ctx, "close target database failed", slog.Any("error", err))
		}
	}()

	tables, err := db.ListTables(ctx)
	if err != nil {
		logger.WarnContext(ctx, "list tables for prompt failed", slog.Any("error", err))
		tables = nil
	}

	selected := s.selectExamples(ctx, logger, question)

	deps := tools.Deps{
		DB:          db,
		SampleRows:  s.Config.SampleRows,
		ProperNounK: s.Config.ProperNounK,
	}
	if index := s.properNounIndex(ctx, logger, req.DatabaseInfo, db); index != nil && index.Len() > 0 {
		deps.ProperNouns = index
	}
	if s.Config.QueryChecker {
		deps.Checker = s.Model
	}
	set := tools.Build(deps)

	assembler, err := prompt.NewAssembler(prompt.Config{
		Templates:    s.Config.Templates,
		Dialect:      string(db.Dialect()),
		TopK:         s.Config.TopK,
		TableNames:   tables,
		CustomPrompt: customPrompt,
		Examples:     selected,
		Tools:        set.Infos(),
		TokenBudget:  s.Config.TokenBudget,
		Counter:      s.Counter,
	})
	if err != nil {
		return AskResponse{}, fmt.Errorf("assemble prompt: %w", err)
	}

	result, err := s.agent.Run(ctx, question, set, assembler)
	if err != nil {
		return AskResponse{}, err
	}

	resp := AskResponse{RunID: result.RunID}
	var parsed answer.Parsed
	if result.Exhausted() {
		message := agent.ExhaustedMessage
		resp.Answer = &message
		resp.Exhausted = true
	} else {
		parsed = s.Parser.Parse(result.FinalText)
		resp.SQLQuery = parsed.SQLQuery
		resp.Answer = parsed.Answer
	}
	if req.IncludeSteps {
		resp.Steps = result.Steps
	}

	if req.SaveExample && s.Config.SaveEnabled && !resp.Exhausted && parsed.Answer != nil && s.SaveDecision(ctx, question, parsed) {
		example := examples.Example{
			Input:    question,
			SQLQuery: answer.Value(parsed.SQLQuery),
			Answer:   *parsed.Answer,
		}
		err := s.appendExample(ctx, example)
		if err != nil {
			logger.WarnContext(ctx, "save example failed", slog.Any("error", err))
		}
		resp.Saved = err == nil
	}

	resp.ExecutionTime = s.Clock().Sub(start).Milliseconds()
	return resp, nil
}

// Examples returns the current corpus.
func (s *Service) Examples() []examples.Example {
	if s.Corpus == nil {
		return []examples.Example{}
	}
	return s.Corpus.Examples()
}

// SaveExample appends a curated example directly.
func (s *Service) SaveExample(ctx context.Context, example examples.Example) error {
	s.ensureDefaults()
	if !s.Config.SaveEnabled {
		return ErrSavingDisabled
	}
	return s.appendExample(ctx, example)
}

func (s *Service) appendExample(ctx context.Context, example examples.Example) error {
	if s.Corpus == nil {
		return fmt.Errorf("examples corpus is not configured")
	}
	err := s.Corpus.Append(ctx, example)
	observability.ObserveExampleSave(err)
	return err
}

func (s *Service) selectExamples(ctx context.Context, logger *slog.Logger, question string) []examples.Example {
	if s.Corpus == nil || s.selector == nil {
		return nil
	}
	selected, err := s.selector.Select(ctx, question, s.Corpus.Examples())
	if err != nil {
		logger.WarnContext(ctx, "select few-shot examples failed", slog.Any("error", err))
		return nil
	}
	return selected
}

func (s *Service) properNounIndex(ctx context.Context, logger *slog.Logger, info database.Info, db database.Database) *propernoun.Index {
	if len(s.Config.ProperNounColumns) == 0 || s.Embedder == nil {
		return nil
	}
	index, err := s.nouns.get(info.Fingerprint(), func() (*propernoun.Index, error) {
		return propernoun.Build(ctx, db, s.Config.ProperNounColumns, s.Embedder)
	})
	if err != nil {
		logger.WarnContext(ctx, "build proper noun index failed", slog.Any("error", err))
		return nil
	}
	return index
}

// nounCache keeps the index of the most recently used connection. A request
// for a different connection replaces it.
type nounCache struct {
	mu          sync.Mutex
	fingerprint string
	index       *propernoun.Index
	group       singleflight.Group
}

func (c *nounCache) get(fingerprint string, build func() (*propernoun.Index, error)) (*propernoun.Index, error) {
	c.mu.Lock()
	if c.index != nil && c.fingerprint == fingerprint {
		index := c.index
		c.mu.Unlock()
		return index, nil
	}
	c.mu.Unlock()

	value, err, _ := c.group.Do(fingerprint, func() (any, error) {
		index, err := build()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.fingerprint = fingerprint
		c.index = index
		c.mu.Unlock()
		return index, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*propernoun.Index), nil
}
