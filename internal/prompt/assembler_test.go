package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/sqlpilot/sqlpilot/internal/examples"
)

func newTestAssembler(t *testing.T, mutate func(*Config)) *Assembler {
	t.Helper()
	cfg := Config{
		Templates:  DefaultTemplates(),
		Dialect:    "postgres",
		TopK:       10,
		TableNames: []string{"movies.movie", "movies.person"},
		Examples: []examples.Example{
			{Input: "How many movies?", SQLQuery: "SELECT COUNT(*) FROM movies.movie", Answer: "There are 4803 movies."},
		},
		Tools: []ToolInfo{
			{Name: "list-tables", Description: "Lists tables."},
			{Name: "execute-query", Description: "Runs a query."},
		},
		Counter: CharCounter{},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	assembler, err := NewAssembler(cfg)
	if err != nil {
		t.Fatalf("NewAssembler() error = %v", err)
	}
	return assembler
}

func TestRenderIncludesAllSections(t *testing.T) {
	assembler := newTestAssembler(t, func(cfg *Config) { cfg.CustomPrompt = "Answer in Spanish." })
	out := assembler.Render("Who directed Alien?", nil)

	for _, snippet := range []string{
		"create a syntactically correct postgres query",
		"at most 10 results",
		"Answer in Spanish.",
		"DO NOT make any DML statements",
		`"I don't know"`,
		"list-tables: Lists tables.",
		"should be one of [list-tables, execute-query]",
		"Input: How many movies?\nOutput:\nSQL Query: SELECT COUNT(*) FROM movies.movie\nAnswer: There are 4803 movies.",
		"The database contains the following tables: movies.movie, movies.person",
		"Question: Who directed Alien?\n",
	} {
		if !strings.Contains(out, snippet) {
			t.Fatalf("Render() missing %q in:\n%s", snippet, out)
		}
	}
	if !strings.HasSuffix(out, "Thought:") {
		t.Fatalf("Render() should end with Thought:, got %q", out[len(out)-40:])
	}
	preamble := strings.Index(out, "You are an agent")
	custom := strings.Index(out, "Answer in Spanish.")
	directives := strings.Index(out, "DO NOT make any DML")
	examplesAt := strings.Index(out, "Input: How many movies?")
	question := strings.Index(out, "Question: Who directed Alien?")
	if !(preamble < custom && custom < directives && directives < examplesAt && examplesAt < question) {
		t.Fatalf("unexpected section order: %d %d %d %d %d", preamble, custom, directives, examplesAt, question)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	assembler := newTestAssembler(t, nil)
	steps := []Step{{Thought: "look", Action: "list-tables", Observation: "movies.movie"}}
	if assembler.Render("q", steps) != assembler.Render("q", steps) {
		t.Fatal("Render() is not deterministic")
	}
}

func TestRenderAppendsTranscript(t *testing.T) {
	assembler := newTestAssembler(t, nil)
	out := assembler.Render("q", []Step{
		{Thought: "I should list tables", Action: "list-tables", ActionInput: "", Observation: "movies.movie"},
	})
	want := "Question: q\nThought: I should list tables\nAction: list-tables\nAction Input: \nObservation: movies.movie\nThought:"
	if !strings.HasSuffix(out, want) {
		t.Fatalf("Render() tail = %q", out[len(out)-len(want)-20:])
	}
}

func TestNewAssemblerRejectsUnknownPlaceholder(t *testing.T) {
	templates := DefaultTemplates()
	templates.Preamble += " Prefer {flavour} SQL."
	_, err := NewAssembler(Config{Templates: templates, Dialect: "postgres", TopK: 10})
	if !errors.Is(err, ErrMissingPlaceholder) {
		t.Fatalf("NewAssembler() error = %v, want ErrMissingPlaceholder", err)
	}
	if !strings.Contains(err.Error(), "{flavour}") {
		t.Fatalf("error should name the placeholder: %v", err)
	}
}

func TestNewAssemblerRejectsMissingValue(t *testing.T) {
	_, err := NewAssembler(Config{Templates: DefaultTemplates(), TopK: 10})
	if !errors.Is(err, ErrMissingPlaceholder) {
		t.Fatalf("NewAssembler() error = %v, want ErrMissingPlaceholder", err)
	}
	_, err = NewAssembler(Config{Templates: DefaultTemplates(), Dialect: "mysql"})
	if !errors.Is(err, ErrMissingPlaceholder) {
		t.Fatalf("NewAssembler() error = %v, want ErrMissingPlaceholder for top_k", err)
	}
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("{top_k} and {dialect} and {top_k} but not {Upper}")
	if len(got) != 2 || got[0] != "dialect" || got[1] != "top_k" {
		t.Fatalf("Placeholders() = %#v", got)
	}
}
