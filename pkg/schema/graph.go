// Package schema provides the in-memory graph representation of a relational
// schema: tables as nodes, single-column foreign keys as edges, with
// constraint metadata attached to both the owning table and the columns it
// affects. The graph is built once per schema snapshot and is read-only for
// every downstream consumer.
package schema

import (
	"fmt"
	"sort"
)

// RelationKind is descriptive metadata derived from the endpoints' key flags.
// It is never used for resolution logic.
type RelationKind string

const (
	ManyToOne  RelationKind = "many-to-one"
	OneToMany  RelationKind = "one-to-many"
	ManyToMany RelationKind = "many-to-many"
	UnknownRel RelationKind = "unknown"
)

// ArgumentKind tags the variant of an Argument.
type ArgumentKind int

const (
	ArgIndex ArgumentKind = iota
	ArgUnique
	ArgPrimaryKey
	ArgForeignKey
	ArgCheck
	ArgNotNull
	ArgDefault
)

func (k ArgumentKind) String() string {
	switch k {
	case ArgIndex:
		return "INDEX"
	case ArgUnique:
		return "UNIQUE"
	case ArgPrimaryKey:
		return "PRIMARY KEY"
	case ArgForeignKey:
		return "FOREIGN KEY"
	case ArgCheck:
		return "CHECK"
	case ArgNotNull:
		return "NOT NULL"
	case ArgDefault:
		return "DEFAULT"
	default:
		return "UNKNOWN"
	}
}

// Argument is table-level metadata: one constraint or index. Table-scoped
// kinds (Index, Unique, PrimaryKey, ForeignKey, Check) carry Columns;
// column-scoped kinds (NotNull, Default) carry a single Column. Every
// argument is attached both to its owning Table and to each Column it
// affects, so either endpoint can enumerate its constraints without
// traversal.
type Argument struct {
	Kind       ArgumentKind
	Name       string
	Table      *Table
	Columns    []*Column // table-scoped kinds
	Column     *Column   // column-scoped kinds
	RefTable   string    // foreign keys
	RefColumns []string  // foreign keys
	Condition  string    // checks
}

// Covers reports whether every column of a table-scoped argument is present
// in the given set of column names.
func (a *Argument) Covers(present map[string]bool) bool {
	if len(a.Columns) == 0 {
		return false
	}
	for _, c := range a.Columns {
		if !present[c.Name] {
			return false
		}
	}
	return true
}

// Column describes one column of a table. The primary/foreign-key flags are
// derived once from the constraints discovered during graph construction and
// never mutated afterward.
type Column struct {
	Table        *Table // back-reference, non-owning
	Name         string
	DataType     string // opaque type tag, not interpreted
	Nullable     bool
	HasDefault   bool
	IsPrimaryKey bool
	IsForeignKey bool
	Arguments    []*Argument
}

// QualifiedName returns "table.column".
func (c *Column) QualifiedName() string {
	return c.Table.Name + "." + c.Name
}

func (c *Column) String() string {
	mods := ""
	if c.IsPrimaryKey {
		mods += " PK"
	}
	if c.IsForeignKey {
		mods += " FK"
	}
	if !c.Nullable {
		mods += " NOT NULL"
	}
	return fmt.Sprintf("%s (%s)%s", c.Name, c.DataType, mods)
}

// Relation is one graph edge: a single-column foreign key from a child
// column to the parent column it references.
type Relation struct {
	Name   string  // constraint name, may be empty
	Child  *Column // FK column in the referencing table
	Parent *Column // referenced column in the parent table
	Kind   RelationKind
}

// ChildTable returns the table owning the foreign-key column.
func (r *Relation) ChildTable() *Table { return r.Child.Table }

// ParentTable returns the referenced table.
func (r *Relation) ParentTable() *Table { return r.Parent.Table }

func (r *Relation) String() string {
	return fmt.Sprintf("%s -> %s", r.Child.QualifiedName(), r.Parent.QualifiedName())
}

// deriveKind computes the descriptive relationship kind from the endpoints'
// key flags, matching how the edge was discovered structurally.
func deriveKind(child, parent *Column) RelationKind {
	switch {
	case child.IsForeignKey && parent.IsPrimaryKey:
		return ManyToOne
	case child.IsPrimaryKey && parent.IsForeignKey:
		return OneToMany
	case child.IsForeignKey && parent.IsForeignKey:
		return ManyToMany
	default:
		return UnknownRel
	}
}

// Table is one graph node.
type Table struct {
	Name      string
	columns   map[string]*Column
	order     []string // column declaration order
	Relations []*Relation
	Arguments []*Argument
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.columns[name]
	return c, ok
}

// Columns returns the table's columns in declaration order.
func (t *Table) Columns() []*Column {
	cols := make([]*Column, 0, len(t.order))
	for _, name := range t.order {
		cols = append(cols, t.columns[name])
	}
	return cols
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.order))
	copy(names, t.order)
	return names
}

// PrimaryKey returns the table's single primary-key column, or nil when the
// table has none or a composite one.
func (t *Table) PrimaryKey() *Column {
	for _, a := range t.Arguments {
		if a.Kind == ArgPrimaryKey && len(a.Columns) == 1 {
			return a.Columns[0]
		}
	}
	return nil
}

// UniqueArguments returns the Unique and PrimaryKey arguments of the table,
// the constraints usable for identity resolution.
func (t *Table) UniqueArguments() []*Argument {
	var args []*Argument
	for _, a := range t.Arguments {
		if a.Kind == ArgUnique || a.Kind == ArgPrimaryKey {
			args = append(args, a)
		}
	}
	return args
}

// RelationsTo returns the relations whose foreign key is owned by this table
// and references parent, sorted by child column name for determinism.
func (t *Table) RelationsTo(parent string) []*Relation {
	var rels []*Relation
	for _, r := range t.Relations {
		if r.ChildTable() == t && r.ParentTable().Name == parent {
			rels = append(rels, r)
		}
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].Child.Name < rels[j].Child.Name })
	return rels
}

func (t *Table) addColumn(c *Column) {
	t.columns[c.Name] = c
	t.order = append(t.order, c.Name)
}

func (t *Table) addRelation(r *Relation) {
	for _, existing := range t.Relations {
		if existing == r {
			return
		}
	}
	t.Relations = append(t.Relations, r)
}

// Graph is the set of all tables (nodes) and relations (edges) for one schema
// snapshot. Rebuilding requires reconstructing the whole graph; there is no
// incremental mutation.
type Graph struct {
	Schema    string
	tables    map[string]*Table
	order     []string
	relations []*Relation
}

// Table returns the named table.
func (g *Graph) Table(name string) (*Table, bool) {
	t, ok := g.tables[name]
	return t, ok
}

// Tables returns all tables in description order.
func (g *Graph) Tables() []*Table {
	ts := make([]*Table, 0, len(g.order))
	for _, name := range g.order {
		ts = append(ts, g.tables[name])
	}
	return ts
}

// TableNames returns the table names in description order.
func (g *Graph) TableNames() []string {
	names := make([]string, len(g.order))
	copy(names, g.order)
	return names
}

// Relations returns every relation edge of the graph.
func (g *Graph) Relations() []*Relation {
	rels := make([]*Relation, len(g.relations))
	copy(rels, g.relations)
	return rels
}

func (g *Graph) String() string {
	return fmt.Sprintf("Graph(tables=%d, relations=%d)", len(g.tables), len(g.relations))
}
