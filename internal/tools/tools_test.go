package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sqlpilot/sqlpilot/internal/database"
)

type fakeDB struct {
	tables     []string
	listErr    error
	schemas    map[string]database.Table
	executed   []string
	result     database.Result
	executeErr error
}

func (f *fakeDB) Dialect() database.Dialect { return database.DialectPostgres }

func (f *fakeDB) ListTables(context.Context) ([]string, error) {
	return f.tables, f.listErr
}

func (f *fakeDB) DescribeTable(_ context.Context, name string) (database.Table, error) {
	table, ok := f.schemas[name]
	if !ok {
		return database.Table{}, fmt.Errorf("%w: %q", database.ErrTableNotFound, name)
	}
	return table, nil
}

func (f *fakeDB) SampleRows(_ context.Context, _ string, limit int) (database.Result, error) {
	return database.Result{Columns: []string{"id"}, Rows: [][]any{{int64(1)}}[:min(1, limit)]}, nil
}

func (f *fakeDB) Execute(_ context.Context, sqlText string) (database.Result, error) {
	f.executed = append(f.executed, sqlText)
	return f.result, f.executeErr
}

func (f *fakeDB) DistinctValues(context.Context, string, string) ([]string, error) {
	return nil, nil
}

func (f *fakeDB) Close() error { return nil }

type fakeModel struct {
	prompts []string
	reply   string
}

func (m *fakeModel) Complete(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.reply, nil
}

type fakeLooker struct{ names []string }

func (f fakeLooker) Lookup(context.Context, string, int) ([]string, error) {
	return f.names, nil
}

func TestExecuteQueryRefusesDMLWithoutTouchingDatabase(t *testing.T) {
	db := &fakeDB{}
	tool := ExecuteQuery(db)
	for _, statement := range []string{
		"DROP TABLE movies.movie",
		"delete from person where 1=1",
		"WITH gone AS (DELETE FROM person RETURNING *) SELECT * FROM gone",
		"```sql\nTRUNCATE person;\n```",
		"SELECT 1; SELECT 2",
		"SET search_path = evil",
	} {
		_, err := tool.Invoke(context.Background(), statement)
		var refused *RefusedStatementError
		if !errors.As(err, &refused) {
			t.Fatalf("Invoke(%q) error = %v, want RefusedStatementError", statement, err)
		}
	}
	if len(db.executed) != 0 {
		t.Fatalf("database was called: %#v", db.executed)
	}
}

func TestExecuteQueryRunsSelect(t *testing.T) {
	db := &fakeDB{result: database.Result{Columns: []string{"count"}, Rows: [][]any{{int64(32)}}}}
	out, err := ExecuteQuery(db).Invoke(context.Background(), "```sql\nSELECT COUNT(*) FROM movies.movie_cast;\n```")
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if out != "count\n32" {
		t.Fatalf("Invoke() = %q", out)
	}
	if len(db.executed) != 1 || db.executed[0] != "SELECT COUNT(*) FROM movies.movie_cast" {
		t.Fatalf("executed = %#v", db.executed)
	}
}

func TestExecuteQueryReturnsDatabaseError(t *testing.T) {
	db := &fakeDB{executeErr: errors.New(`column "nme" does not exist`)}
	_, err := ExecuteQuery(db).Invoke(context.Background(), "SELECT nme FROM person")
	if err == nil || !strings.Contains(err.Error(), "nme") {
		t.Fatalf("Invoke() error = %v", err)
	}
}

func TestCheckReadOnlyAllowsKeywordsInLiteralsAndFunctions(t *testing.T) {
	for _, statement := range []string{
		"SELECT * FROM notes WHERE body = 'please DROP TABLE x; now'",
		`SELECT "delete" FROM audit`,
		"SELECT REPLACE(name, 'a', 'b') FROM person",
		"SELECT t.update FROM t -- DELETE everything\n",
		"/* INSERT */ SELECT 1;",
		"EXPLAIN SELECT 1",
		"show tables",
	} {
		if err := CheckReadOnly(database.DialectPostgres, statement); err != nil {
			t.Fatalf("CheckReadOnly(%q) error = %v", statement, err)
		}
	}
	if err := CheckReadOnly(database.DialectPostgres, "   ;  "); err == nil {
		t.Fatal("expected error for empty statement")
	}
	if err := CheckReadOnly(database.DialectMySQL, "REPLACE INTO t VALUES (1)"); err == nil {
		t.Fatal("expected REPLACE INTO to be refused")
	}
}

func TestCheckReadOnlyFollowsDialectQuoting(t *testing.T) {
	refused := []struct {
		dialect   database.Dialect
		statement string
	}{
		{database.DialectPostgres, `WITH x AS (SELECT 'a\'), d AS (DELETE FROM movies RETURNING *) SELECT * FROM d --'`},
		{database.DialectPostgres, "WITH x AS (SELECT 1 # 1), d AS (DELETE FROM movies RETURNING 1) SELECT * FROM d"},
		{database.DialectPostgres, `SELECT E'\'' , (SELECT 1) FROM t; DELETE FROM movies; --'`},
		{database.DialectSQLite, `SELECT 'a\'; DROP TABLE movies; --'`},
		{database.DialectDuckDB, `SELECT 'a\'; DROP TABLE movies; --'`},
		{database.DialectSQLite, "SELECT 1 # 1; DELETE FROM movies"},
		{database.DialectMySQL, "SELECT 1 /*! ; DROP TABLE movies */"},
		{database.DialectMySQL, "SELECT 1--1; DELETE FROM movies"},
		{database.DialectPostgres, "SELECT `a; DELETE FROM movies; `"},
		{database.DialectMySQL, "SELECT $$; DELETE FROM movies; $$"},
	}
	for _, tc := range refused {
		var refusedErr *RefusedStatementError
		if err := CheckReadOnly(tc.dialect, tc.statement); !errors.As(err, &refusedErr) {
			t.Fatalf("CheckReadOnly(%s, %q) error = %v, want RefusedStatementError", tc.dialect, tc.statement, err)
		}
	}

	allowed := []struct {
		dialect   database.Dialect
		statement string
	}{
		{database.DialectMySQL, `SELECT 'it\'s; DROP TABLE x' FROM t`},
		{database.DialectMySQL, "SELECT name FROM person # DELETE later"},
		{database.DialectMySQL, "SELECT `delete` FROM audit"},
		{database.DialectPostgres, `SELECT E'it\'s; DELETE' FROM t`},
		{database.DialectPostgres, "SELECT $$DROP TABLE x$$"},
		{database.DialectPostgres, "SELECT 5 # 3"},
		{database.DialectSQLite, "SELECT 'it''s; DROP' FROM t"},
	}
	for _, tc := range allowed {
		if err := CheckReadOnly(tc.dialect, tc.statement); err != nil {
			t.Fatalf("CheckReadOnly(%s, %q) error = %v", tc.dialect, tc.statement, err)
		}
	}
}

func TestExecuteQueryUsesDatabaseDialect(t *testing.T) {
	db := &fakeDB{}
	_, err := ExecuteQuery(db).Invoke(context.Background(), `SELECT 'a\'; DROP TABLE movies; --'`)
	var refused *RefusedStatementError
	if !errors.As(err, &refused) {
		t.Fatalf("Invoke() error = %v, want RefusedStatementError", err)
	}
	if len(db.executed) != 0 {
		t.Fatalf("database was called: %#v", db.executed)
	}
}

func TestListTablesNeverFails(t *testing.T) {
	out, err := ListTables(&fakeDB{tables: []string{"movies.movie", "movies.person"}}).Invoke(context.Background(), "")
	if err != nil || out != "movies.movie, movies.person" {
		t.Fatalf("Invoke() = %q, %v", out, err)
	}
	out, err = ListTables(&fakeDB{listErr: errors.New("permission denied")}).Invoke(context.Background(), "")
	if err != nil || !strings.Contains(out, "permission denied") {
		t.Fatalf("Invoke() = %q, %v", out, err)
	}
}

func TestDescribeSchema(t *testing.T) {
	db := &fakeDB{schemas: map[string]database.Table{
		"movies.person": {Name: "movies.person", Columns: []database.Column{{Name: "person_id", Type: "integer"}, {Name: "person_name", Type: "text", Nullable: true}}},
	}}
	tool := DescribeSchema(db, 3)
	out, err := tool.Invoke(context.Background(), " movies.person ")
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !strings.Contains(out, "Table movies.person (person_id integer NOT NULL, person_name text)") {
		t.Fatalf("Invoke() = %q", out)
	}
	if !strings.Contains(out, "1 rows from movies.person table") {
		t.Fatalf("sample rows missing: %q", out)
	}

	_, err = tool.Invoke(context.Background(), "movies.person, movies.ghost")
	var lookupErr *SchemaLookupError
	if !errors.As(err, &lookupErr) || lookupErr.Table != "movies.ghost" {
		t.Fatalf("Invoke() error = %v, want SchemaLookupError for movies.ghost", err)
	}
	if !errors.Is(err, database.ErrTableNotFound) {
		t.Fatalf("error should wrap ErrTableNotFound: %v", err)
	}
}

func TestSearchProperNouns(t *testing.T) {
	out, err := SearchProperNouns(fakeLooker{names: []string{"RADAZUL", "RADAZUL ALTO"}}, 5).Invoke(context.Background(), `"radazul"`)
	if err != nil || out != "RADAZUL\nRADAZUL ALTO" {
		t.Fatalf("Invoke() = %q, %v", out, err)
	}
	out, err = SearchProperNouns(fakeLooker{}, 5).Invoke(context.Background(), "x")
	if err != nil || !strings.Contains(out, "No matching") {
		t.Fatalf("Invoke() = %q, %v", out, err)
	}
}

func TestCheckQueryAsksModel(t *testing.T) {
	model := &fakeModel{reply: "```sql\nSELECT 1\n```"}
	out, err := CheckQuery(model, "postgres").Invoke(context.Background(), "SELECT 1")
	if err != nil || out != "SELECT 1" {
		t.Fatalf("Invoke() = %q, %v", out, err)
	}
	if len(model.prompts) != 1 || !strings.Contains(model.prompts[0], "Double check the postgres query above") {
		t.Fatalf("prompts = %#v", model.prompts)
	}
}

func TestSetResolve(t *testing.T) {
	set := Build(Deps{DB: &fakeDB{}, ProperNouns: fakeLooker{}, Checker: &fakeModel{}})
	for name, want := range map[string]Kind{
		"list-tables":         KindListTables,
		" Describe-Schema ":   KindDescribeSchema,
		"[execute-query]":     KindExecuteQuery,
		"search-proper-nouns": KindSearchProperNouns,
		"check-query":         KindCheckQuery,
		"drop-database":       KindUnknown,
	} {
		if got := set.Resolve(name).Kind; got != want {
			t.Fatalf("Resolve(%q).Kind = %v, want %v", name, got, want)
		}
	}

	_, err := set.Resolve("drop-database").Invoke(context.Background(), "")
	var unknown *UnknownToolError
	if !errors.As(err, &unknown) || !strings.Contains(err.Error(), "no such tool") {
		t.Fatalf("unknown tool error = %v", err)
	}
	if len(set.Infos()) != 5 {
		t.Fatalf("Infos() = %#v", set.Infos())
	}
}

func TestBuildOmitsOptionalTools(t *testing.T) {
	set := Build(Deps{DB: &fakeDB{}})
	names := strings.Join(set.Names(), ",")
	if names != "list-tables,describe-schema,execute-query" {
		t.Fatalf("Names() = %q", names)
	}
}
