package prompt

import (
	"fmt"
	"strings"

	"github.com/sqlpilot/sqlpilot/internal/answer"
	"github.com/sqlpilot/sqlpilot/internal/examples"
)

type ToolInfo struct {
	Name        string
	Description string
}

type Config struct {
	Templates    Templates
	Dialect      string
	TopK         int
	TableNames   []string
	CustomPrompt string
	Examples     []examples.Example
	Tools        []ToolInfo
	TokenBudget  int
	Counter      TokenCounter
}

// Assembler renders the prompt for one agent run. Everything except the
// transcript is fixed at construction, so rendering is deterministic.
type Assembler struct {
	head    string
	budget  int
	counter TokenCounter
}

func NewAssembler(cfg Config) (*Assembler, error) {
	values := placeholderValues(cfg.Dialect, cfg.TopK, cfg.TableNames)

	preamble, err := substitute(cfg.Templates.Preamble, values)
	if err != nil {
		return nil, fmt.Errorf("preamble: %w", err)
	}
	directives, err := substitute(cfg.Templates.Directives, values)
	if err != nil {
		return nil, fmt.Errorf("directives: %w", err)
	}
	tables, err := substitute(cfg.Templates.Tables, values)
	if err != nil {
		return nil, fmt.Errorf("tables: %w", err)
	}

	var b strings.Builder
	writeBlock(&b, preamble)
	writeBlock(&b, cfg.CustomPrompt)
	writeBlock(&b, directives)
	writeBlock(&b, renderTools(cfg.Tools))
	writeBlock(&b, renderExamples(cfg.Examples))
	writeBlock(&b, tables)

	counter := cfg.Counter
	if counter == nil {
		counter = DefaultTokenCounter()
	}
	return &Assembler{head: b.String(), budget: cfg.TokenBudget, counter: counter}, nil
}

// Render returns the full prompt for question given the steps taken so far.
func (a *Assembler) Render(question string, steps []Step) string {
	var b strings.Builder
	b.WriteString(a.head)
	b.WriteString("Begin!\n\nQuestion: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n")
	b.WriteString(RenderTranscript(steps, a.budget, a.counter))
	b.WriteString("Thought:")
	return b.String()
}

func writeBlock(b *strings.Builder, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.WriteString(text)
	b.WriteString("\n\n")
}

func renderTools(tools []ToolInfo) string {
	if len(tools) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("You have access to the following tools:\n\n")
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		fmt.Fprintf(&b, "%s: %s\n", tool.Name, tool.Description)
		names = append(names, tool.Name)
	}
	b.WriteString("\nUse the following format:\n\n")
	b.WriteString("Question: the input question you must answer\n")
	b.WriteString("Thought: you should always think about what to do\n")
	fmt.Fprintf(&b, "Action: the action to take, should be one of [%s]\n", strings.Join(names, ", "))
	b.WriteString("Action Input: the input to the action\n")
	b.WriteString("Observation: the result of the action\n")
	b.WriteString("... (this Thought/Action/Action Input/Observation can repeat N times)\n")
	b.WriteString("Thought: I now know the final answer\n")
	fmt.Fprintf(&b, "%s the SQL query used, or N/A\n", answer.SQLQueryMarker)
	fmt.Fprintf(&b, "%s the final answer to the original input question", answer.AnswerMarker)
	return b.String()
}

func renderExamples(corpus []examples.Example) string {
	if len(corpus) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Here are some examples of user inputs and their expected outputs:")
	for _, example := range corpus {
		b.WriteString("\n\nInput: ")
		b.WriteString(example.Input)
		b.WriteString("\nOutput:\n")
		b.WriteString(answer.SQLQueryMarker)
		b.WriteString(" ")
		b.WriteString(example.SQLQuery)
		b.WriteString("\n")
		b.WriteString(answer.AnswerMarker)
		b.WriteString(" ")
		b.WriteString(example.Answer)
	}
	return b.String()
}
