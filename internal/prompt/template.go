// Package prompt assembles the single text prompt the agent sends to the
// language model on every reasoning step.
package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrMissingPlaceholder reports a template that references a placeholder the
// assembler has no value for.
var ErrMissingPlaceholder = errors.New("prompt template placeholder has no value")

const (
	PlaceholderDialect    = "dialect"
	PlaceholderTopK       = "top_k"
	PlaceholderTableNames = "table_names"
)

const DefaultPreamble = `You are an agent designed to interact with a SQL database.
Given an input question, create a syntactically correct {dialect} query to run, then look at the results of the query and return the answer and the SQL query used to get the answer.
Unless the user specifies a specific number of examples they wish to obtain, always limit your query to at most {top_k} results using the LIMIT clause.
You can order the results by a relevant column to return the most interesting examples in the database.
Never query for all the columns from a specific table, only ask for the few relevant columns given the question.
You have access to tools for interacting with the database.
Only use the below tools. Only use the information returned by the below tools to construct your final answer.
You MUST double check your query before executing it. If you get an error while executing a query, rewrite the query and try again.`

const DefaultDirectives = `DO NOT make any DML statements (INSERT, UPDATE, DELETE, DROP etc.) to the database.

If the question does not seem related to the database, just return "I don't know" as the answer.
The format of the output should ALWAYS be "SQL Query: <query>" and "Answer: <answer>". If a SQL query is not needed, return "SQL Query: N/A" and "Answer: <answer>".`

const DefaultTables = `The database contains the following tables: {table_names}`

// Templates are the configurable text blocks of the prompt. Each may use the
// named placeholders {dialect}, {top_k} and {table_names}.
type Templates struct {
	Preamble   string
	Directives string
	Tables     string
}

func DefaultTemplates() Templates {
	return Templates{
		Preamble:   DefaultPreamble,
		Directives: DefaultDirectives,
		Tables:     DefaultTables,
	}
}

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Placeholders lists the distinct placeholder names used in text, sorted.
func Placeholders(text string) []string {
	seen := map[string]struct{}{}
	for _, match := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		seen[match[1]] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func placeholderValues(dialect string, topK int, tableNames []string) map[string]string {
	values := map[string]string{}
	if strings.TrimSpace(dialect) != "" {
		values[PlaceholderDialect] = dialect
	}
	if topK > 0 {
		values[PlaceholderTopK] = strconv.Itoa(topK)
	}
	if len(tableNames) > 0 {
		values[PlaceholderTableNames] = strings.Join(tableNames, ", ")
	} else {
		values[PlaceholderTableNames] = "(none)"
	}
	return values
}

// substitute fills every placeholder in text or fails naming the first one
// without a value.
func substitute(text string, values map[string]string) (string, error) {
	for _, name := range Placeholders(text) {
		if _, ok := values[name]; !ok {
			return "", fmt.Errorf("%w: {%s}", ErrMissingPlaceholder, name)
		}
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		return values[match[1:len(match)-1]]
	}), nil
}
