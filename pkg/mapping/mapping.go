// Package mapping parses and validates caller-supplied column mappings: input
// field names associated with qualified target references such as
// "traveler.name" or "destination/country.name". The resolved form is a tree
// of contexts, one per distinct relation chain, which the autotrace engine
// consumes. The same table may appear as several contexts when it is reached
// through different parents.
package mapping

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/schemanyd/schemanyd/pkg/errs"
	"github.com/schemanyd/schemanyd/pkg/pathfind"
	"github.com/schemanyd/schemanyd/pkg/schema"
)

// Config carries the two separator strings. SeparatorRF splits a relation
// chain from its field, SeparatorRR splits a parent segment from a child
// relation segment.
type Config struct {
	SeparatorRF string
	SeparatorRR string
}

// DefaultConfig returns the default separators: "." and "/".
func DefaultConfig() Config {
	return Config{SeparatorRF: ".", SeparatorRR: "/"}
}

func (c Config) withDefaults() Config {
	if c.SeparatorRF == "" {
		c.SeparatorRF = "."
	}
	if c.SeparatorRR == "" {
		c.SeparatorRR = "/"
	}
	return c
}

// Target is one parsed target reference: the relation chain (child-most
// segment last) and the column name.
type Target struct {
	Chain  []string
	Column string
}

// String renders the target back into mapping syntax with the given
// separators, round-tripping what ParseTarget accepted.
func (t Target) String(cfg Config) string {
	cfg = cfg.withDefaults()
	return strings.Join(t.Chain, cfg.SeparatorRR) + cfg.SeparatorRF + t.Column
}

// Table returns the table the column belongs to: the chain's rightmost
// segment.
func (t Target) Table() string {
	return t.Chain[len(t.Chain)-1]
}

// Node is one resolved context: a table reached through a specific relation
// chain. Root nodes have no Parent; every other node's Relation is the
// foreign key its parent's table owns toward this node's table, which is how
// generated keys flow upward during insertion.
type Node struct {
	Path     string // canonical chain, e.g. "destination/country"
	Chain    []string
	Table    *schema.Table
	Parent   *Node
	Relation *schema.Relation // FK in Parent.Table referencing Table, nil for roots
	Children []*Node
	Fields   map[string]*schema.Column // input field name -> target column
}

// Root reports whether the node has no parent context.
func (n *Node) Root() bool { return n.Parent == nil }

// Resolved is a validated column mapping over one graph.
type Resolved struct {
	Graph *schema.Graph
	nodes map[string]*Node
	order []string
}

// Node returns the context with the given canonical path.
func (rm *Resolved) Node(path string) (*Node, bool) {
	n, ok := rm.nodes[path]
	return n, ok
}

// Nodes returns every context in deterministic (path-sorted) order.
func (rm *Resolved) Nodes() []*Node {
	out := make([]*Node, 0, len(rm.order))
	for _, p := range rm.order {
		out = append(out, rm.nodes[p])
	}
	return out
}

// Resolver validates column mappings against a schema graph.
type Resolver struct {
	graph  *schema.Graph
	paths  *pathfind.Resolver
	cfg    Config
	logger *logrus.Logger
}

// NewResolver creates a Resolver for the graph with the given separators.
func NewResolver(g *schema.Graph, cfg Config, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{graph: g, paths: pathfind.New(g), cfg: cfg.withDefaults(), logger: logger}
}

// ParseTarget splits a target string into its relation chain and column. The
// final relation-field separator wins, so a column name may not contain it
// but chain segments may appear in any number.
func (r *Resolver) ParseTarget(target string) (Target, error) {
	idx := strings.LastIndex(target, r.cfg.SeparatorRF)
	if idx <= 0 || idx == len(target)-len(r.cfg.SeparatorRF) {
		return Target{}, errs.New(errs.KindInvalidInput,
			"target %q must be of the form table%scolumn", target, r.cfg.SeparatorRF)
	}
	chainPart := target[:idx]
	column := target[idx+len(r.cfg.SeparatorRF):]
	chain := strings.Split(chainPart, r.cfg.SeparatorRR)
	for _, seg := range chain {
		if seg == "" {
			return Target{}, errs.New(errs.KindInvalidInput,
				"target %q contains an empty relation segment", target)
		}
	}
	return Target{Chain: chain, Column: column}, nil
}

// Resolve parses and validates every entry of the mapping and returns the
// context tree. All names are checked against the graph before any context is
// linked, so an error always fires before any write could happen downstream.
func (r *Resolver) Resolve(entries map[string]string) (*Resolved, error) {
	if len(entries) == 0 {
		return nil, errs.New(errs.KindInvalidInput, "column mapping is empty")
	}

	// Deterministic processing order regardless of map iteration.
	fields := make([]string, 0, len(entries))
	for f := range entries {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	targets := make(map[string]Target, len(entries))
	for _, field := range fields {
		t, err := r.ParseTarget(entries[field])
		if err != nil {
			return nil, err
		}
		for _, seg := range t.Chain {
			if _, ok := r.graph.Table(seg); !ok {
				return nil, r.unknownTable(seg)
			}
		}
		targets[field] = t
	}

	rm := &Resolved{Graph: r.graph, nodes: make(map[string]*Node)}

	// Create a context per distinct chain, including implicit prefixes:
	// "a/b/c" requires contexts a, a/b and a/b/c even if only the last one
	// carries mapped fields.
	for _, field := range fields {
		chain := targets[field].Chain
		for i := 1; i <= len(chain); i++ {
			r.ensureNode(rm, chain[:i])
		}
	}

	// Link every non-root context to its parent through exactly one relation.
	for _, path := range rm.order {
		n := rm.nodes[path]
		if len(n.Chain) == 1 {
			continue
		}
		parent := rm.nodes[strings.Join(n.Chain[:len(n.Chain)-1], r.cfg.SeparatorRR)]
		if err := r.link(parent, n); err != nil {
			return nil, err
		}
	}

	// Attach bare table references to a mapped parent when a single relation
	// makes the intent unambiguous; otherwise they stay independent roots.
	if err := r.attachRoots(rm); err != nil {
		return nil, err
	}

	// Assign fields to their contexts, validating columns.
	for _, field := range fields {
		t := targets[field]
		n := rm.nodes[strings.Join(t.Chain, r.cfg.SeparatorRR)]
		col, ok := n.Table.Column(t.Column)
		if !ok {
			return nil, r.unknownColumn(n.Table, t.Column)
		}
		n.Fields[field] = col
	}

	sort.Strings(rm.order)
	return rm, nil
}

func (r *Resolver) ensureNode(rm *Resolved, chain []string) *Node {
	path := strings.Join(chain, r.cfg.SeparatorRR)
	if n, ok := rm.nodes[path]; ok {
		return n
	}
	table, _ := r.graph.Table(chain[len(chain)-1])
	n := &Node{
		Path:   path,
		Chain:  append([]string{}, chain...),
		Table:  table,
		Fields: make(map[string]*schema.Column),
	}
	rm.nodes[path] = n
	rm.order = append(rm.order, path)
	return n
}

// link wires child under parent through the single foreign key parent's table
// owns toward child's table. Zero relations consults the path resolver for a
// precise diagnostic; more than one cannot be told apart by the chain syntax.
func (r *Resolver) link(parent, child *Node) error {
	rels := parent.Table.RelationsTo(child.Table.Name)
	switch len(rels) {
	case 1:
		child.Parent = parent
		child.Relation = rels[0]
		parent.Children = append(parent.Children, child)
		return nil
	case 0:
		if p, err := r.paths.Resolve(parent.Table.Name, child.Table.Name); err == nil {
			return errs.New(errs.KindUnreachableTarget,
				"no direct foreign key from %s to %s, nearest relation path is %s",
				parent.Table.Name, child.Table.Name, p).WithTable(parent.Table.Name)
		} else if errs.IsAmbiguousPath(err) {
			return err
		}
		return errs.New(errs.KindUnreachableTarget,
			"no foreign key from %s to %s", parent.Table.Name, child.Table.Name).
			WithTable(parent.Table.Name)
	default:
		details := make([]string, len(rels))
		for i, rel := range rels {
			details[i] = rel.String()
		}
		return errs.New(errs.KindAmbiguousTarget,
			"%d foreign keys lead from %s to %s, the chain syntax cannot tell them apart",
			len(rels), parent.Table.Name, child.Table.Name).
			WithTable(child.Table.Name).WithDetails(details...)
	}
}

// attachRoots links chains of length one into the context tree when exactly
// one mapped context owns exactly one foreign key toward them. Several
// candidates require the explicit parent-segment syntax; none leaves the
// table as an independent root, which is legal.
func (r *Resolver) attachRoots(rm *Resolved) error {
	for _, path := range append([]string{}, rm.order...) {
		root := rm.nodes[path]
		if !root.Root() || len(root.Chain) > 1 {
			continue
		}

		type candidate struct {
			node *Node
			rel  *schema.Relation
		}
		var cands []candidate
		for _, otherPath := range rm.order {
			other := rm.nodes[otherPath]
			if other == root {
				continue
			}
			for _, rel := range other.Table.RelationsTo(root.Table.Name) {
				if relationTaken(other, rel) {
					continue
				}
				cands = append(cands, candidate{node: other, rel: rel})
			}
		}

		switch len(cands) {
		case 0:
			// Independent root: nothing in the mapping references it.
		case 1:
			root.Parent = cands[0].node
			root.Relation = cands[0].rel
			cands[0].node.Children = append(cands[0].node.Children, root)
			r.logger.Debugf("mapping: attached %s under %s via %s",
				root.Path, cands[0].node.Path, cands[0].rel)
		default:
			details := make([]string, len(cands))
			for i, c := range cands {
				details[i] = c.node.Path + " via " + c.rel.String()
			}
			return errs.New(errs.KindAmbiguousTarget,
				"table %s is reachable from %d mapped relations, add a parent segment (e.g. %q)",
				root.Table.Name, len(cands),
				cands[0].node.Path+r.cfg.SeparatorRR+root.Table.Name).
				WithTable(root.Table.Name).WithDetails(details...)
		}
	}
	return nil
}

// relationTaken reports whether a child context of n already consumes rel,
// e.g. when the mapping names both "trip/traveler.x" and a bare "traveler.y".
func relationTaken(n *Node, rel *schema.Relation) bool {
	for _, c := range n.Children {
		if c.Relation == rel {
			return true
		}
	}
	return false
}

func (r *Resolver) unknownTable(name string) error {
	e := errs.New(errs.KindUnknownTable, "table %q not found in the schema", name).WithTable(name)
	if s := closestMatch(name, r.graph.TableNames()); s != "" {
		e = e.WithDetails("did you mean " + s)
	}
	return e
}

func (r *Resolver) unknownColumn(t *schema.Table, name string) error {
	e := errs.New(errs.KindUnknownColumn, "column %q not found in table %s", name, t.Name).
		WithTable(t.Name).WithColumn(name)
	if s := closestMatch(name, t.ColumnNames()); s != "" {
		e = e.WithDetails("did you mean " + s)
	}
	return e
}
