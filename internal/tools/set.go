package tools

import (
	"github.com/sqlpilot/sqlpilot/internal/database"
	"github.com/sqlpilot/sqlpilot/internal/llm"
)

type Deps struct {
	DB          database.Database
	SampleRows  int
	ProperNouns NameLooker
	ProperNounK int
	// Checker enables check-query when set.
	Checker llm.Model
}

// Build registers the tools available for one run. search-proper-nouns and
// check-query are only present when their dependency is.
func Build(deps Deps) *Set {
	tools := []Tool{
		ListTables(deps.DB),
		DescribeSchema(deps.DB, deps.SampleRows),
	}
	if deps.Checker != nil {
		tools = append(tools, CheckQuery(deps.Checker, string(deps.DB.Dialect())))
	}
	tools = append(tools, ExecuteQuery(deps.DB))
	if deps.ProperNouns != nil {
		tools = append(tools, SearchProperNouns(deps.ProperNouns, deps.ProperNounK))
	}
	return NewSet(tools...)
}
