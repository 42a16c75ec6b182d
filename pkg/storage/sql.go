package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/schemanyd/schemanyd/pkg/errs"
)

// SQLExecutor runs lookups and inserts through database/sql. It targets
// MySQL-style placeholders and generated keys (LastInsertId); Postgres uses
// the pgx executor instead because it needs RETURNING.
type SQLExecutor struct {
	db *sql.DB
}

// NewSQLExecutor wraps an open *sql.DB.
func NewSQLExecutor(db *sql.DB) *SQLExecutor {
	return &SQLExecutor{db: db}
}

// Find selects the key column of the record matching every identity value.
func (e *SQLExecutor) Find(ctx context.Context, table, keyColumn string, identity map[string]interface{}) (interface{}, bool, error) {
	cols, args := orderedPairs(identity)
	conds := make([]string, len(cols))
	for i, c := range cols {
		conds[i] = quoteIdent(c) + " = ?"
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIMIT 1",
		quoteIdent(keyColumn), quoteIdent(table), strings.Join(conds, " AND "))

	var key interface{}
	err := e.db.QueryRowContext(ctx, query, args...).Scan(&key)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.KindStorage, err, "lookup failed").WithTable(table)
	}
	return normalizeKey(key), true, nil
}

// Insert writes the values and returns the generated key, or the provided
// value when the key column was part of the insert.
func (e *SQLExecutor) Insert(ctx context.Context, table, keyColumn string, values map[string]interface{}) (interface{}, error) {
	cols, args := orderedPairs(values)
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		placeholders[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	res, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "insert failed").WithTable(table)
	}
	if provided, ok := values[keyColumn]; ok && provided != nil {
		return provided, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "generated key unavailable").WithTable(table)
	}
	return id, nil
}

// orderedPairs returns the column names sorted with their values aligned, so
// generated SQL is deterministic for a given value set.
func orderedPairs(values map[string]interface{}) ([]string, []interface{}) {
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		args[i] = values[c]
	}
	return cols, args
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// normalizeKey converts driver byte slices into strings so keys compare and
// print cleanly when propagated into dependent rows.
func normalizeKey(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
