package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sqlpilot/sqlpilot/internal/database"
	"github.com/sqlpilot/sqlpilot/internal/llm"
	"github.com/sqlpilot/sqlpilot/internal/observability"
)

// TableLister, SchemaReader and QueryRunner are the slices of
// database.Database each tool needs.
type TableLister interface {
	ListTables(ctx context.Context) ([]string, error)
}

type SchemaReader interface {
	DescribeTable(ctx context.Context, name string) (database.Table, error)
	SampleRows(ctx context.Context, table string, limit int) (database.Result, error)
}

type QueryRunner interface {
	Dialect() database.Dialect
	Execute(ctx context.Context, sqlText string) (database.Result, error)
}

// NameLooker is implemented by propernoun.Index.
type NameLooker interface {
	Lookup(ctx context.Context, query string, k int) ([]string, error)
}

func ListTables(db TableLister) Tool {
	return Tool{
		Kind:        KindListTables,
		Name:        NameListTables,
		Description: "Input is an empty string, output is a comma-separated list of tables in the database.",
		Invoke: func(ctx context.Context, _ string) (string, error) {
			tables, err := db.ListTables(ctx)
			if err != nil {
				return fmt.Sprintf("Error: could not list tables: %v", err), nil
			}
			if len(tables) == 0 {
				return "The database has no accessible tables.", nil
			}
			return strings.Join(tables, ", "), nil
		},
	}
}

func DescribeSchema(db SchemaReader, sampleRows int) Tool {
	return Tool{
		Kind: KindDescribeSchema,
		Name: NameDescribeSchema,
		Description: "Input is a comma-separated list of tables, output is the schema and sample rows for those tables. " +
			"Be sure that the tables actually exist by calling " + NameListTables + " first! Example Input: table1, table2, table3",
		Invoke: func(ctx context.Context, input string) (string, error) {
			names := splitList(input)
			if len(names) == 0 {
				return "", &SchemaLookupError{Table: input, Err: errors.New("no table names given")}
			}
			sections := make([]string, 0, len(names))
			for _, name := range names {
				table, err := db.DescribeTable(ctx, name)
				if err != nil {
					return "", &SchemaLookupError{Table: name, Err: err}
				}
				section := table.Format()
				if sampleRows > 0 {
					if sample, err := db.SampleRows(ctx, name, sampleRows); err == nil {
						section += fmt.Sprintf("\n/*\n%d rows from %s table:\n%s\n*/", len(sample.Rows), table.Name, sample.Format())
					}
				}
				sections = append(sections, section)
			}
			return strings.Join(sections, "\n\n"), nil
		},
	}
}

func ExecuteQuery(db QueryRunner) Tool {
	return Tool{
		Kind: KindExecuteQuery,
		Name: NameExecuteQuery,
		Description: "Input is a detailed and correct SQL query, output is a result from the database. " +
			"If the query is not correct, an error message will be returned. " +
			"If an error is returned, rewrite the query, check the query, and try again.",
		Invoke: func(ctx context.Context, input string) (string, error) {
			sqlText := database.StripTrailingSemicolons(llm.StripMarkdownSQL(input))
			if err := CheckReadOnly(db.Dialect(), sqlText); err != nil {
				observability.IncrementRefusedStatements()
				return "", err
			}
			result, err := db.Execute(ctx, sqlText)
			if err != nil {
				return "", err
			}
			return result.Format(), nil
		},
	}
}

func SearchProperNouns(index NameLooker, k int) Tool {
	return Tool{
		Kind: KindSearchProperNouns,
		Name: NameSearchProperNouns,
		Description: "Use to look up values to filter on. Input is an approximate spelling of the proper noun, " +
			"output is valid proper nouns. Use the noun most similar to the search.",
		Invoke: func(ctx context.Context, input string) (string, error) {
			names, err := index.Lookup(ctx, strings.Trim(strings.TrimSpace(input), `"'`), k)
			if err != nil {
				return "", err
			}
			if len(names) == 0 {
				return "No matching proper nouns found.", nil
			}
			return strings.Join(names, "\n"), nil
		},
	}
}

const checkQueryTemplate = `%s
Double check the %s query above for common mistakes, including:
- Using NOT IN with NULL values
- Using UNION when UNION ALL should have been used
- Using BETWEEN for exclusive ranges
- Data type mismatch in predicates
- Properly quoting identifiers
- Using the correct number of arguments for functions
- Casting to the correct data type
- Using the proper columns for joins

If there are any of the above mistakes, rewrite the query. If there are no mistakes, just reproduce the original query.

Output the final SQL query only.

SQL Query: `

func CheckQuery(model llm.Model, dialect string) Tool {
	return Tool{
		Kind: KindCheckQuery,
		Name: NameCheckQuery,
		Description: "Use this tool to double check if your query is correct before executing it. " +
			"Always use this tool before executing a query with " + NameExecuteQuery + "!",
		Invoke: func(ctx context.Context, input string) (string, error) {
			query := llm.StripMarkdownSQL(input)
			if query == "" {
				return "", errors.New("no query given")
			}
			checked, err := model.Complete(ctx, fmt.Sprintf(checkQueryTemplate, query, dialect))
			if err != nil {
				return "", fmt.Errorf("check query: %w", err)
			}
			return llm.StripMarkdownSQL(checked), nil
		},
	}
}

func splitList(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(strings.TrimSpace(part), "\"'`")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
