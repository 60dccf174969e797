// Package tools holds the fixed set of actions the agent may take against the
// target database and its helpers.
package tools

import (
	"context"
	"strings"

	"github.com/sqlpilot/sqlpilot/internal/prompt"
)

// Kind is the closed set of tools. KindUnknown stands in for any name the
// model invents and is handled like a failed tool call.
type Kind int

const (
	KindUnknown Kind = iota
	KindListTables
	KindDescribeSchema
	KindExecuteQuery
	KindSearchProperNouns
	KindCheckQuery
)

const (
	NameListTables        = "list-tables"
	NameDescribeSchema    = "describe-schema"
	NameExecuteQuery      = "execute-query"
	NameSearchProperNouns = "search-proper-nouns"
	NameCheckQuery        = "check-query"
)

func (k Kind) String() string {
	switch k {
	case KindListTables:
		return NameListTables
	case KindDescribeSchema:
		return NameDescribeSchema
	case KindExecuteQuery:
		return NameExecuteQuery
	case KindSearchProperNouns:
		return NameSearchProperNouns
	case KindCheckQuery:
		return NameCheckQuery
	default:
		return "unknown"
	}
}

// InvokeFunc runs a tool on the raw action input. A returned error is shown
// to the model as the observation.
type InvokeFunc func(ctx context.Context, input string) (string, error)

type Tool struct {
	Kind        Kind
	Name        string
	Description string
	Invoke      InvokeFunc
}

// Set is the lookup table of registered tools for one agent run.
type Set struct {
	tools  []Tool
	byName map[string]Tool
}

func NewSet(tools ...Tool) *Set {
	set := &Set{byName: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		if _, exists := set.byName[tool.Name]; exists {
			continue
		}
		set.tools = append(set.tools, tool)
		set.byName[tool.Name] = tool
	}
	return set
}

// Resolve finds the tool the model asked for. Surrounding whitespace, quotes
// and brackets are ignored and matching is case-insensitive. Unknown names
// yield a KindUnknown tool whose invocation reports the valid names.
func (s *Set) Resolve(name string) Tool {
	cleaned := strings.ToLower(strings.Trim(strings.TrimSpace(name), "\"'`[]"))
	if tool, ok := s.byName[cleaned]; ok {
		return tool
	}
	return Tool{
		Kind: KindUnknown,
		Name: name,
		Invoke: func(context.Context, string) (string, error) {
			return "", &UnknownToolError{Name: name, Valid: s.Names()}
		},
	}
}

func (s *Set) Names() []string {
	names := make([]string, 0, len(s.tools))
	for _, tool := range s.tools {
		names = append(names, tool.Name)
	}
	return names
}

func (s *Set) Tools() []Tool {
	out := make([]Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

// Infos describes the set for the prompt's tool catalogue.
func (s *Set) Infos() []prompt.ToolInfo {
	infos := make([]prompt.ToolInfo, 0, len(s.tools))
	for _, tool := range s.tools {
		infos = append(infos, prompt.ToolInfo{Name: tool.Name, Description: tool.Description})
	}
	return infos
}
