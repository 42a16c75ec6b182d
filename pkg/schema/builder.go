package schema

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/schemanyd/schemanyd/pkg/errs"
	"github.com/schemanyd/schemanyd/pkg/models"
)

// Converter normalizes a source-specific schema description into the
// engine-agnostic models.Description. New formats register on a Builder
// without modifying it.
type Converter interface {
	Convert(description interface{}) (*models.Description, error)
}

// GenericKind is the format tag of the built-in converter, which accepts a
// models.Description directly.
const GenericKind = "generic"

type genericConverter struct{}

func (genericConverter) Convert(description interface{}) (*models.Description, error) {
	switch d := description.(type) {
	case *models.Description:
		return d, nil
	case models.Description:
		return &d, nil
	default:
		return nil, errs.New(errs.KindInvalidInput,
			"generic converter expects *models.Description, got %T", description)
	}
}

// Builder converts schema descriptions into Graphs. The converter registry is
// scoped to the Builder instance, never process-wide, so tests can register
// isolated converters without cross-test leakage.
type Builder struct {
	converters map[string]Converter
	logger     *logrus.Logger
}

// NewBuilder creates a Builder with the generic converter registered.
func NewBuilder(logger *logrus.Logger) *Builder {
	if logger == nil {
		logger = logrus.New()
	}
	b := &Builder{
		converters: make(map[string]Converter),
		logger:     logger,
	}
	b.Register(GenericKind, genericConverter{})
	return b
}

// Register adds a converter for a schema format tag.
func (b *Builder) Register(kind string, c Converter) {
	b.converters[kind] = c
}

// Kinds returns the sorted list of registered format tags.
func (b *Builder) Kinds() []string {
	kinds := make([]string, 0, len(b.converters))
	for k := range b.converters {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Build converts a schema description of the given format into a Graph.
//
// The two passes are mandatory and ordered: pass 1 creates every table and
// its columns with no relations; pass 2 attaches constraints and derives one
// relation per single-column foreign key, which requires every table to
// already exist. Any failure aborts with no partial graph.
func (b *Builder) Build(kind string, description interface{}) (*Graph, error) {
	conv, ok := b.converters[kind]
	if !ok {
		return nil, errs.New(errs.KindUnsupportedSchema,
			"no converter registered for schema kind %q, available: [%s]",
			kind, strings.Join(b.Kinds(), ", "))
	}

	desc, err := conv.Convert(description)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		Schema: desc.Schema,
		tables: make(map[string]*Table),
	}

	// Pass 1: tables and columns.
	for _, td := range desc.Tables {
		if _, exists := g.tables[td.Name]; exists {
			return nil, errs.New(errs.KindInvalidInput, "duplicate table in description").WithTable(td.Name)
		}
		t := &Table{Name: td.Name, columns: make(map[string]*Column)}
		for _, cd := range td.Columns {
			if _, exists := t.columns[cd.Name]; exists {
				return nil, errs.New(errs.KindInvalidInput, "duplicate column in description").
					WithTable(td.Name).WithColumn(cd.Name)
			}
			t.addColumn(&Column{
				Table:      t,
				Name:       cd.Name,
				DataType:   cd.Type,
				Nullable:   cd.Nullable,
				HasDefault: cd.HasDefault,
			})
		}
		g.tables[td.Name] = t
		g.order = append(g.order, td.Name)
	}

	// Pass 2: constraints, key flags, and relations.
	for _, cd := range desc.Constraints {
		if err := b.attach(g, cd); err != nil {
			return nil, err
		}
	}

	// Relation kinds are derived after all flags are settled.
	for _, r := range g.relations {
		r.Kind = deriveKind(r.Child, r.Parent)
	}

	b.logger.Debugf("built schema graph: %d tables, %d relations, kind=%s",
		len(g.tables), len(g.relations), kind)
	return g, nil
}

// attach links one constraint description into the graph: to its owning
// table, to each column it affects, and for foreign keys also as a relation
// edge in both endpoint tables.
func (b *Builder) attach(g *Graph, cd models.ConstraintDesc) error {
	t, ok := g.tables[cd.Table]
	if !ok {
		return errs.New(errs.KindUnknownTable, "constraint %q names a table absent from the description", cd.Name).
			WithTable(cd.Table)
	}

	cols := make([]*Column, 0, len(cd.Columns))
	for _, name := range cd.Columns {
		c, ok := t.Column(name)
		if !ok {
			return errs.New(errs.KindUnknownColumn, "constraint %q names a column absent from its table", cd.Name).
				WithTable(cd.Table).WithColumn(name)
		}
		cols = append(cols, c)
	}

	arg := &Argument{Name: cd.Name, Table: t, Condition: cd.Condition,
		RefTable: cd.RefTable, RefColumns: cd.RefColumns}

	switch cd.Kind {
	case models.ConstraintIndex:
		arg.Kind = ArgIndex
		arg.Columns = cols
	case models.ConstraintUnique:
		arg.Kind = ArgUnique
		arg.Columns = cols
	case models.ConstraintPrimaryKey:
		arg.Kind = ArgPrimaryKey
		arg.Columns = cols
		for _, c := range cols {
			c.IsPrimaryKey = true
			c.Nullable = false
		}
	case models.ConstraintCheck:
		arg.Kind = ArgCheck
		arg.Columns = cols
	case models.ConstraintNotNull:
		if len(cols) != 1 {
			return errs.New(errs.KindInvalidInput, "NOT NULL constraint must name exactly one column").
				WithTable(cd.Table)
		}
		arg.Kind = ArgNotNull
		arg.Column = cols[0]
		cols[0].Nullable = false
	case models.ConstraintDefault:
		if len(cols) != 1 {
			return errs.New(errs.KindInvalidInput, "DEFAULT constraint must name exactly one column").
				WithTable(cd.Table)
		}
		arg.Kind = ArgDefault
		arg.Column = cols[0]
		cols[0].HasDefault = true
	case models.ConstraintForeignKey:
		if len(cols) != 1 || len(cd.RefColumns) > 1 {
			return errs.New(errs.KindCompositeKey,
				"foreign key %q spans %d columns, only single-column foreign keys are supported",
				cd.Name, max(len(cols), len(cd.RefColumns))).WithTable(cd.Table)
		}
		arg.Kind = ArgForeignKey
		arg.Columns = cols

		parent, ok := g.tables[cd.RefTable]
		if !ok {
			return errs.New(errs.KindUnknownTable, "foreign key %q references a table absent from the description", cd.Name).
				WithTable(cd.RefTable)
		}
		refColName := ""
		if len(cd.RefColumns) == 1 {
			refColName = cd.RefColumns[0]
		} else if pk := parent.PrimaryKey(); pk != nil {
			refColName = pk.Name
		}
		parentCol, ok := parent.Column(refColName)
		if !ok {
			return errs.New(errs.KindUnknownColumn, "foreign key %q references a column absent from table %s", cd.Name, cd.RefTable).
				WithTable(cd.RefTable).WithColumn(refColName)
		}

		child := cols[0]
		child.IsForeignKey = true
		rel := &Relation{Name: cd.Name, Child: child, Parent: parentCol}
		g.relations = append(g.relations, rel)
		child.Table.addRelation(rel)
		parentCol.Table.addRelation(rel)
	default:
		return errs.New(errs.KindInvalidInput, "unknown constraint kind %q", cd.Kind).WithTable(cd.Table)
	}

	t.Arguments = append(t.Arguments, arg)
	for _, c := range cols {
		c.Arguments = append(c.Arguments, arg)
	}
	return nil
}
