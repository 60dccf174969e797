package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sqlpilot/sqlpilot/internal/examples"
)

// Store keeps the corpus in the few_shot_example table. An empty table reads
// as the seed corpus. Append rewrites every row inside one transaction, so the
// table always holds a complete corpus in position order.
type Store struct {
	db   *sql.DB
	seed []examples.Example
}

func NewStore(db *sql.DB, seed []examples.Example) *Store {
	out := make([]examples.Example, len(seed))
	copy(out, seed)
	return &Store{db: db, seed: out}
}

func (s *Store) Load(ctx context.Context) ([]examples.Example, error) {
	corpus, err := loadRows(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if len(corpus) == 0 {
		return s.seedCopy(), nil
	}
	return corpus, nil
}

func (s *Store) Append(ctx context.Context, example examples.Example) error {
	example = example.Normalize()
	if err := example.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Serializes writers across processes sharing the table.
	if _, err := tx.ExecContext(ctx, `LOCK TABLE few_shot_example IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock examples table: %w", err)
	}
	corpus, err := loadRows(ctx, tx)
	if err != nil {
		return err
	}
	if len(corpus) == 0 {
		corpus = s.seedCopy()
	}
	corpus = append(corpus, example)

	if _, err := tx.ExecContext(ctx, `DELETE FROM few_shot_example`); err != nil {
		return fmt.Errorf("clear examples: %w", err)
	}
	for position, item := range corpus {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO few_shot_example (position, input, sql_query, answer) VALUES ($1, $2, $3, $4)`,
			int64(position), item.Input, item.SQLQuery, item.Answer,
		); err != nil {
			return fmt.Errorf("insert example %d: %w", position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit examples: %w", err)
	}
	return nil
}

func (s *Store) seedCopy() []examples.Example {
	out := make([]examples.Example, len(s.seed))
	copy(out, s.seed)
	return out
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadRows(ctx context.Context, db queryer) ([]examples.Example, error) {
	rows, err := db.QueryContext(ctx, `SELECT input, sql_query, answer FROM few_shot_example ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query examples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	corpus := []examples.Example{}
	for rows.Next() {
		var item examples.Example
		if err := rows.Scan(&item.Input, &item.SQLQuery, &item.Answer); err != nil {
			return nil, fmt.Errorf("scan example: %w", err)
		}
		corpus = append(corpus, item.Normalize())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return corpus, nil
}
