package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schemanyd/schemanyd/pkg/errs"
)

// PgxExecutor runs lookups and inserts through a pgx connection pool.
// Generated keys come back via INSERT ... RETURNING.
type PgxExecutor struct {
	pool *pgxpool.Pool
}

// NewPgxExecutor wraps an open pgx pool.
func NewPgxExecutor(pool *pgxpool.Pool) *PgxExecutor {
	return &PgxExecutor{pool: pool}
}

// Find selects the key column of the record matching every identity value.
func (e *PgxExecutor) Find(ctx context.Context, table, keyColumn string, identity map[string]interface{}) (interface{}, bool, error) {
	cols, args := orderedPairs(identity)
	conds := make([]string, len(cols))
	for i, c := range cols {
		conds[i] = fmt.Sprintf("%s = $%d", pgQuoteIdent(c), i+1)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIMIT 1",
		pgQuoteIdent(keyColumn), pgQuoteIdent(table), strings.Join(conds, " AND "))

	var key interface{}
	err := e.pool.QueryRow(ctx, query, args...).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.KindStorage, err, "lookup failed").WithTable(table)
	}
	return key, true, nil
}

// Insert writes the values and returns the key from the RETURNING clause.
func (e *PgxExecutor) Insert(ctx context.Context, table, keyColumn string, values map[string]interface{}) (interface{}, error) {
	cols, args := orderedPairs(values)
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgQuoteIdent(c)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		pgQuoteIdent(table), strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "), pgQuoteIdent(keyColumn))

	var key interface{}
	if err := e.pool.QueryRow(ctx, query, args...).Scan(&key); err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "insert failed").WithTable(table)
	}
	return key, nil
}

func pgQuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
