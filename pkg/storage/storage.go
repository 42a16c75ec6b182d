// Package storage defines the executor primitives the autotrace engine writes
// through: "find the key of the record matching these values" and "insert a
// record, return its generated key". Transaction boundaries belong to the
// executor, not to the engine. Implementations are provided for an in-memory
// store (tests, dry runs), database/sql (MySQL), and pgx (Postgres).
package storage

import "context"

// Executor performs record lookups and inserts against one backing store.
// Find matches on the given identity values and returns the key column's
// value; Insert writes the values and returns the generated (or provided)
// key. Both honor ctx cancellation. Lookup-or-insert atomicity for
// concurrent callers relies on the store's uniqueness enforcement; the
// engine additionally serializes per distinct identity value.
type Executor interface {
	Find(ctx context.Context, table, keyColumn string, identity map[string]interface{}) (key interface{}, found bool, err error)
	Insert(ctx context.Context, table, keyColumn string, values map[string]interface{}) (key interface{}, err error)
}
