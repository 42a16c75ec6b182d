package storage

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory Executor used by tests and dry runs. Keys are
// auto-incremented int64 values per table unless the caller provides one.
type Memory struct {
	mu     sync.Mutex
	tables map[string]*memTable
}

type memTable struct {
	rows   []map[string]interface{}
	nextID int64
}

// NewMemory creates an empty in-memory executor.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*memTable)}
}

func (m *Memory) table(name string) *memTable {
	t, ok := m.tables[name]
	if !ok {
		t = &memTable{nextID: 1}
		m.tables[name] = t
	}
	return t
}

// Find returns the key of the first record whose columns equal every identity
// value. Values are compared by their string rendering, matching how scalar
// row values arrive from tabular sources.
func (m *Memory) Find(ctx context.Context, table, keyColumn string, identity map[string]interface{}) (interface{}, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(table)
	for _, row := range t.rows {
		if matches(row, identity) {
			return row[keyColumn], true, nil
		}
	}
	return nil, false, nil
}

// Insert stores the values and returns the generated key.
func (m *Memory) Insert(ctx context.Context, table, keyColumn string, values map[string]interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(table)
	row := make(map[string]interface{}, len(values)+1)
	for k, v := range values {
		row[k] = v
	}
	key, ok := row[keyColumn]
	if !ok || key == nil {
		key = t.nextID
		t.nextID++
		row[keyColumn] = key
	}
	t.rows = append(t.rows, row)
	return key, nil
}

// Rows returns a copy of the stored rows of a table, for assertions.
func (m *Memory) Rows(table string) []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, len(t.rows))
	for i, row := range t.rows {
		cp := make(map[string]interface{}, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

func matches(row, identity map[string]interface{}) bool {
	for col, want := range identity {
		got, ok := row[col]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
