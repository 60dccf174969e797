package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"
)

var ErrTableNotFound = errors.New("table not found")

// ConnectionError reports that the target database could not be reached.
type ConnectionError struct {
	Dialect Dialect
	Target  string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s database %s: %v", e.Dialect, e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

type Column struct {
	Name     string
	Type     string
	Nullable bool
}

type Table struct {
	Name    string
	Columns []Column
}

type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

type Options struct {
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
	MaxRows        int
}

// Database is the read side of a target database used by the agent tools.
type Database interface {
	Dialect() Dialect
	ListTables(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, name string) (Table, error)
	SampleRows(ctx context.Context, table string, limit int) (Result, error)
	Execute(ctx context.Context, sqlText string) (Result, error)
	DistinctValues(ctx context.Context, table, column string) ([]string, error)
	Close() error
}

type SQLDatabase struct {
	db      *sql.DB
	dialect Dialect
	schema  string
	info    Info
	opts    Options
}

func Open(ctx context.Context, info Info, opts Options) (*SQLDatabase, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	driver, dsn, err := driverAndDSN(info, opts.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	dialect, _ := info.Dialect()
	target := info.Host
	if target == "" {
		target = info.Database
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &ConnectionError{Dialect: dialect, Target: target, Err: err}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Dialect: dialect, Target: target, Err: err}
	}

	return New(db, info, opts), nil
}

// New wraps an already opened handle. The handle is owned by the returned value.
func New(db *sql.DB, info Info, opts Options) *SQLDatabase {
	dialect, _ := info.Dialect()
	if opts.MaxRows <= 0 {
		opts.MaxRows = 200
	}
	return &SQLDatabase{
		db:      db,
		dialect: dialect,
		schema:  info.DefaultSchema(),
		info:    info,
		opts:    opts,
	}
}

func (d *SQLDatabase) Dialect() Dialect {
	return d.dialect
}

func (d *SQLDatabase) Info() Info {
	return d.info
}

func (d *SQLDatabase) Close() error {
	return d.db.Close()
}

func (d *SQLDatabase) Execute(ctx context.Context, sqlText string) (Result, error) {
	sqlText = StripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return Result{}, fmt.Errorf("sql is required")
	}
	ctx, cancel := d.queryContext(ctx)
	defer cancel()
	if d.dialect != DialectMySQL {
		return d.query(ctx, d.opts.MaxRows, sqlText)
	}

	// MySQL statements run inside a read-only transaction that is always rolled back.
	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return Result{}, fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return runQuery(ctx, tx, d.opts.MaxRows, sqlText)
}

func (d *SQLDatabase) SampleRows(ctx context.Context, table string, limit int) (Result, error) {
	if limit <= 0 {
		return Result{}, nil
	}
	ctx, cancel := d.queryContext(ctx)
	defer cancel()
	sqlText := fmt.Sprintf("SELECT * FROM %s LIMIT %d", d.quoteQualified(table), limit)
	return d.query(ctx, limit, sqlText)
}

func (d *SQLDatabase) DistinctValues(ctx context.Context, table, column string) ([]string, error) {
	ctx, cancel := d.queryContext(ctx)
	defer cancel()
	col := d.quoteIdent(column)
	sqlText := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL", col, d.quoteQualified(table), col)
	rows, err := d.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("distinct values %s.%s: %w", table, column, err)
	}
	defer func() { _ = rows.Close() }()

	values := make([]string, 0)
	for rows.Next() {
		var value any
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan distinct value: %w", err)
		}
		switch typed := value.(type) {
		case nil:
		case []byte:
			values = append(values, string(typed))
		case string:
			values = append(values, typed)
		default:
			values = append(values, fmt.Sprint(typed))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distinct values: %w", err)
	}
	return values, nil
}

func (d *SQLDatabase) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.opts.QueryTimeout > 0 {
		return context.WithTimeout(ctx, d.opts.QueryTimeout)
	}
	return context.WithCancel(ctx)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (d *SQLDatabase) query(ctx context.Context, maxRows int, sqlText string, args ...any) (Result, error) {
	return runQuery(ctx, d.db, maxRows, sqlText, args...)
}

func runQuery(ctx context.Context, q queryer, maxRows int, sqlText string, args ...any) (Result, error) {
	start := time.Now()
	rows, err := q.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	result := Result{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		result.Rows = append(result.Rows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	result.Duration = time.Since(start)
	return result, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case time.Time:
			normalized[i] = typed.UTC().Format(time.RFC3339Nano)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
