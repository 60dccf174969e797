// Package agent runs the bounded reason/act/observe loop that turns a question
// into a final answer by calling tools against the target database.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/statekit"
	"github.com/google/uuid"

	"github.com/sqlpilot/sqlpilot/internal/llm"
	"github.com/sqlpilot/sqlpilot/internal/observability"
	"github.com/sqlpilot/sqlpilot/internal/prompt"
	"github.com/sqlpilot/sqlpilot/internal/tools"
)

const (
	DefaultMaxIterations = 15

	// ExhaustedMessage is the final text of a run that hit the iteration ceiling.
	ExhaustedMessage = "Agent stopped: could not determine an answer within the iteration limit."

	correctiveObservation = `Invalid format. Either request a tool with "Action: <tool name>" followed by "Action Input: <input>", ` +
		`or give the final answer with both "SQL Query: <query or N/A>" and "Answer: <answer>".`
)

type Step = prompt.Step

type Outcome string

const (
	OutcomeDone      Outcome = "done"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeError     Outcome = "error"
)

type Result struct {
	RunID      string
	FinalText  string
	Steps      []Step
	Iterations int
	Outcome    Outcome
}

func (r Result) Exhausted() bool {
	return r.Outcome == OutcomeExhausted
}

// ModelError wraps a language model transport failure, which ends the run.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string {
	return "language model call failed: " + e.Err.Error()
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

type Options struct {
	MaxIterations int
	Logger        *slog.Logger
}

type Agent struct {
	model         llm.Model
	maxIterations int
	logger        *slog.Logger
	newRunID      func() string
}

func New(model llm.Model, opts Options) (*Agent, error) {
	if model == nil {
		return nil, fmt.Errorf("language model is required")
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Agent{
		model:         model,
		maxIterations: opts.MaxIterations,
		logger:        opts.Logger,
		newRunID:      uuid.NewString,
	}, nil
}

// Run drives one loop invocation. It returns an error only when the model
// call fails or ctx is cancelled; hitting the ceiling is a normal result
// whose FinalText is ExhaustedMessage.
func (a *Agent) Run(ctx context.Context, question string, set *tools.Set, assembler *prompt.Assembler) (Result, error) {
	machine, err := newMachine()
	if err != nil {
		return Result{}, fmt.Errorf("build agent statechart: %w", err)
	}
	state := &run{maxIterations: a.maxIterations}
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **run) {
		*c = state
	})
	interp.Start()
	defer interp.Stop()

	runID := a.newRunID()
	ctx = observability.ContextWithRunID(ctx, runID)
	logger := observability.LoggerFromContext(ctx, a.logger)
	start := time.Now()

	var runErr error
	for !interp.Done() {
		switch interp.State().Value {
		case stateReasoning:
			if err := ctx.Err(); err != nil {
				interp.Send(statekit.Event{Type: eventAbort, Payload: OutcomeCancelled})
				runErr = fmt.Errorf("agent run cancelled: %w", err)
				continue
			}
			state.iterations++
			text, err := a.model.Complete(ctx, assembler.Render(question, state.steps))
			if err != nil {
				outcome := OutcomeError
				if ctx.Err() != nil {
					outcome = OutcomeCancelled
				}
				interp.Send(statekit.Event{Type: eventAbort, Payload: outcome})
				runErr = &ModelError{Err: err}
				continue
			}
			parsed := parseReply(text)
			switch parsed.kind {
			case replyFinal:
				logger.DebugContext(ctx, "agent final answer", slog.Int("iteration", state.iterations))
				interp.Send(statekit.Event{Type: eventFinish, Payload: parsed.finalText})
			case replyAction:
				logger.DebugContext(ctx, "agent action",
					slog.Int("iteration", state.iterations),
					slog.String("action", parsed.action),
				)
				interp.Send(statekit.Event{Type: eventAct, Payload: Step{
					Thought:     parsed.thought,
					Action:      parsed.action,
					ActionInput: parsed.actionInput,
				}})
			default:
				logger.DebugContext(ctx, "agent reply unparseable", slog.Int("iteration", state.iterations))
				interp.Send(statekit.Event{Type: eventCorrect, Payload: Step{
					Thought:     parsed.thought,
					Observation: correctiveObservation,
				}})
			}
		case stateActing:
			interp.Send(statekit.Event{Type: eventObserve, Payload: a.invoke(ctx, logger, set, state.pending)})
		case stateObserving:
			interp.Send(statekit.Event{Type: eventContinue})
			if interp.Matches(stateObserving) {
				interp.Send(statekit.Event{Type: eventExhaust})
			}
		default:
			return Result{}, fmt.Errorf("agent statechart in unexpected state %q", interp.State().Value)
		}
	}

	result := Result{
		RunID:      runID,
		FinalText:  state.finalText,
		Steps:      state.steps,
		Iterations: state.iterations,
		Outcome:    state.outcome,
	}
	observability.ObserveAgentRun(string(result.Outcome), result.Iterations, time.Since(start))
	logger.InfoContext(ctx, "agent run finished",
		slog.String("outcome", string(result.Outcome)),
		slog.Int("iterations", result.Iterations),
		slog.Int("steps", len(result.Steps)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, runErr
}

func (a *Agent) invoke(ctx context.Context, logger *slog.Logger, set *tools.Set, step Step) string {
	tool := set.Resolve(step.Action)
	observation, err := tool.Invoke(ctx, step.ActionInput)
	if err == nil {
		observability.ObserveToolInvocation(tool.Kind.String(), "ok")
		return observation
	}

	outcome := "error"
	var refused *tools.RefusedStatementError
	switch {
	case tool.Kind == tools.KindUnknown:
		outcome = "unknown"
	case errors.As(err, &refused):
		outcome = "refused"
	}
	observability.ObserveToolInvocation(tool.Kind.String(), outcome)
	logger.DebugContext(ctx, "agent tool failed",
		slog.String("action", step.Action),
		slog.String("outcome", outcome),
		slog.Any("error", err),
	)
	return "Error: " + err.Error()
}
