package database

import (
	"context"
	"fmt"
	"strings"
)

func (d *SQLDatabase) ListTables(ctx context.Context) ([]string, error) {
	ctx, cancel := d.queryContext(ctx)
	defer cancel()

	var (
		sqlText string
		args    []any
	)
	switch d.dialect {
	case DialectPostgres:
		sqlText = `SELECT table_schema, table_name FROM information_schema.tables
			WHERE table_type IN ('BASE TABLE', 'VIEW')
			AND table_schema NOT IN ('pg_catalog', 'information_schema')`
		if d.info.Schema != "" {
			sqlText += ` AND table_schema = $1`
			args = append(args, d.info.Schema)
		}
		sqlText += ` ORDER BY table_schema, table_name`
	case DialectMySQL:
		sqlText = `SELECT TABLE_SCHEMA, TABLE_NAME FROM information_schema.TABLES
			WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME`
		args = append(args, d.schema)
	case DialectDuckDB:
		sqlText = `SELECT table_schema, table_name FROM information_schema.tables
			WHERE table_schema NOT IN ('information_schema', 'pg_catalog')`
		if d.info.Schema != "" {
			sqlText += ` AND table_schema = ?`
			args = append(args, d.info.Schema)
		}
		sqlText += ` ORDER BY table_schema, table_name`
	case DialectSQLite:
		sqlText = `SELECT 'main', name FROM sqlite_master
			WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name`
	default:
		return nil, fmt.Errorf("unsupported dialect %q", d.dialect)
	}

	rows, err := d.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]string, 0)
	for rows.Next() {
		var schema, name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		if d.dialect == DialectSQLite {
			tables = append(tables, name)
			continue
		}
		tables = append(tables, schema+"."+name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

func (d *SQLDatabase) DescribeTable(ctx context.Context, name string) (Table, error) {
	schema, table := d.splitQualified(name)
	if table == "" {
		return Table{}, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}
	ctx, cancel := d.queryContext(ctx)
	defer cancel()

	var columns []Column
	var err error
	if d.dialect == DialectSQLite {
		columns, err = d.describeSQLite(ctx, table)
	} else {
		columns, err = d.describeInformationSchema(ctx, schema, table)
	}
	if err != nil {
		return Table{}, err
	}
	if len(columns) == 0 {
		return Table{}, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}
	qualified := table
	if d.dialect != DialectSQLite {
		qualified = schema + "." + table
	}
	return Table{Name: qualified, Columns: columns}, nil
}

func (d *SQLDatabase) describeInformationSchema(ctx context.Context, schema, table string) ([]Column, error) {
	sqlText := `SELECT column_name, data_type, is_nullable FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position`
	switch d.dialect {
	case DialectPostgres:
		sqlText = strings.Replace(strings.Replace(sqlText, "?", "$1", 1), "?", "$2", 1)
	case DialectMySQL:
		sqlText = `SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE FROM information_schema.COLUMNS
			WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`
	}

	rows, err := d.db.QueryContext(ctx, sqlText, schema, table)
	if err != nil {
		return nil, fmt.Errorf("describe table %s.%s: %w", schema, table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]Column, 0)
	for rows.Next() {
		var column Column
		var nullable string
		if err := rows.Scan(&column.Name, &column.Type, &nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		column.Nullable = strings.EqualFold(nullable, "YES")
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

func (d *SQLDatabase) describeSQLite(ctx context.Context, table string) ([]Column, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", d.quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("describe table %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]Column, 0)
	for rows.Next() {
		var (
			cid       int
			column    Column
			notNull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &column.Name, &column.Type, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		column.Nullable = notNull == 0
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

func (d *SQLDatabase) splitQualified(name string) (string, string) {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, "\"`")
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return strings.Trim(name[:idx], "\"`"), strings.Trim(name[idx+1:], "\"`")
	}
	return d.schema, name
}

func (d *SQLDatabase) quoteIdent(value string) string {
	if d.dialect == DialectMySQL {
		return "`" + strings.ReplaceAll(value, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func (d *SQLDatabase) quoteQualified(name string) string {
	schema, table := d.splitQualified(name)
	if d.dialect == DialectSQLite || !strings.Contains(name, ".") {
		return d.quoteIdent(table)
	}
	return d.quoteIdent(schema) + "." + d.quoteIdent(table)
}
