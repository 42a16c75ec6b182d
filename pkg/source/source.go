// Package source provides tabular row sources for the insertion engine: a
// lazy, finite, restartable sequence of rows, each a mapping from input field
// name to a scalar value. All format-specific decoding lives here; the engine
// only ever sees Row values.
package source

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Row is one input record: field name to scalar value (string or nil).
type Row map[string]interface{}

// Tabular is a restartable stream of rows. Next returns io.EOF when the
// stream is exhausted; Reset rewinds to the first row.
type Tabular interface {
	Next() (Row, error)
	Reset() error
}

// CSV reads rows from in-memory CSV bytes. The first record is the header;
// empty cells become nil so they behave as SQL nulls downstream.
type CSV struct {
	data   []byte
	reader *csv.Reader
	header []string
}

// NewCSV creates a CSV source over raw bytes.
func NewCSV(data []byte) (*CSV, error) {
	c := &CSV{data: data}
	if err := c.Reset(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewCSVFile creates a CSV source from a file on disk.
func NewCSVFile(path string) (*CSV, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return NewCSV(data)
}

// Reset rewinds the source to the first data row.
func (c *CSV) Reset() error {
	c.reader = csv.NewReader(bytes.NewReader(c.data))
	c.reader.FieldsPerRecord = -1
	header, err := c.reader.Read()
	if err == io.EOF {
		return fmt.Errorf("csv input is empty, a header row is required")
	}
	if err != nil {
		return fmt.Errorf("reading csv header: %w", err)
	}
	c.header = header
	return nil
}

// Next returns the next row or io.EOF.
func (c *CSV) Next() (Row, error) {
	record, err := c.reader.Read()
	if err != nil {
		return nil, err
	}
	row := make(Row, len(c.header))
	for i, field := range c.header {
		if i >= len(record) || record[i] == "" {
			row[field] = nil
			continue
		}
		row[field] = record[i]
	}
	return row, nil
}

// Maps is an in-memory source over a slice of field maps, mirroring the
// dictionary input of callers that already hold structured records.
type Maps struct {
	rows []Row
	pos  int
}

// FromMaps wraps pre-built rows in a Tabular source.
func FromMaps(rows []map[string]interface{}) *Maps {
	converted := make([]Row, len(rows))
	for i, r := range rows {
		converted[i] = Row(r)
	}
	return &Maps{rows: converted}
}

// Next returns the next row or io.EOF.
func (m *Maps) Next() (Row, error) {
	if m.pos >= len(m.rows) {
		return nil, io.EOF
	}
	row := m.rows[m.pos]
	m.pos++
	return row, nil
}

// Reset rewinds to the first row.
func (m *Maps) Reset() error {
	m.pos = 0
	return nil
}

// ReadAll drains a source into memory, resetting it first so repeated calls
// see the full stream. The engine materializes rows because key propagation
// revisits every row once per wave.
func ReadAll(src Tabular) ([]Row, error) {
	if err := src.Reset(); err != nil {
		return nil, err
	}
	var rows []Row
	for {
		row, err := src.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}
