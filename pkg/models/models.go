// Package models holds the engine-agnostic schema description consumed by the
// graph builder. A Description is a plain snapshot of tables, columns and
// constraints, independent of how it was obtained (live reflection, a static
// YAML file, or a literal built in a test).
package models

// ConstraintKind identifies the kind of a constraint or index declaration.
type ConstraintKind string

const (
	ConstraintIndex      ConstraintKind = "index"
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintPrimaryKey ConstraintKind = "primary_key"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintNotNull    ConstraintKind = "not_null"
	ConstraintDefault    ConstraintKind = "default"
)

// ColumnDesc describes a single column of a table.
type ColumnDesc struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Nullable   bool   `yaml:"nullable"`
	HasDefault bool   `yaml:"has_default"`
}

// TableDesc describes a table and its columns in declaration order.
type TableDesc struct {
	Name    string       `yaml:"name"`
	Columns []ColumnDesc `yaml:"columns"`
}

// ConstraintDesc describes one constraint or index. Table-scoped kinds
// (index, unique, primary_key, foreign_key, check) may span several columns;
// column-scoped kinds (not_null, default) name exactly one column. RefTable
// and RefColumns are set for foreign keys only, Condition for checks only.
type ConstraintDesc struct {
	Kind       ConstraintKind `yaml:"kind"`
	Name       string         `yaml:"name,omitempty"`
	Table      string         `yaml:"table"`
	Columns    []string       `yaml:"columns"`
	RefTable   string         `yaml:"ref_table,omitempty"`
	RefColumns []string       `yaml:"ref_columns,omitempty"`
	Condition  string         `yaml:"condition,omitempty"`
}

// Description is a full engine-agnostic schema snapshot.
type Description struct {
	Schema      string           `yaml:"schema,omitempty"`
	Tables      []TableDesc      `yaml:"tables"`
	Constraints []ConstraintDesc `yaml:"constraints"`
}
