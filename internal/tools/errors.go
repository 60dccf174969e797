package tools

import (
	"fmt"
	"strings"
)

// SchemaLookupError reports a describe-schema request for a table that does
// not exist or could not be read.
type SchemaLookupError struct {
	Table string
	Err   error
}

func (e *SchemaLookupError) Error() string {
	return fmt.Sprintf("schema lookup for table %q failed: %v", e.Table, e.Err)
}

func (e *SchemaLookupError) Unwrap() error {
	return e.Err
}

type UnknownToolError struct {
	Name  string
	Valid []string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("no such tool %q; valid tools are: %s", e.Name, strings.Join(e.Valid, ", "))
}

// RefusedStatementError is returned when execute-query declines a statement
// before it reaches the database.
type RefusedStatementError struct {
	Reason string
}

func (e *RefusedStatementError) Error() string {
	return "refused to run statement: " + e.Reason + ". Only a single read-only query (SELECT) may be executed"
}
