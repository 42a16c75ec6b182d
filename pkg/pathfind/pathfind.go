// Package pathfind resolves relation paths between tables of a schema graph.
// A foreign key is traversable in either direction for reachability, so the
// search runs over the undirected view of the relation edges. Multiple
// shortest paths of equal length are never silently tie-broken: they are
// reported as an ambiguity the caller must resolve with an explicit parent
// segment in the column mapping.
package pathfind

import (
	"sort"
	"strings"

	"github.com/schemanyd/schemanyd/pkg/errs"
	"github.com/schemanyd/schemanyd/pkg/schema"
)

// Path is an ordered chain of relations connecting two tables. Tables has one
// more entry than Relations.
type Path struct {
	Tables    []string
	Relations []*schema.Relation
}

func (p Path) String() string {
	return strings.Join(p.Tables, " -> ")
}

// Len returns the number of relation hops.
func (p Path) Len() int { return len(p.Relations) }

type edge struct {
	to  string
	rel *schema.Relation
}

// Resolver finds relation paths in one schema graph. It is stateless beyond
// the adjacency index and safe for reuse across calls.
type Resolver struct {
	graph *schema.Graph
	adj   map[string][]edge
}

// New builds a Resolver over the graph.
func New(g *schema.Graph) *Resolver {
	adj := make(map[string][]edge)
	for _, r := range g.Relations() {
		child := r.ChildTable().Name
		parent := r.ParentTable().Name
		adj[child] = append(adj[child], edge{to: parent, rel: r})
		adj[parent] = append(adj[parent], edge{to: child, rel: r})
	}
	// Deterministic neighbor order: by table then by FK column.
	for _, edges := range adj {
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].to != edges[j].to {
				return edges[i].to < edges[j].to
			}
			return edges[i].rel.Child.QualifiedName() < edges[j].rel.Child.QualifiedName()
		})
	}
	return &Resolver{graph: g, adj: adj}
}

// ValidateTables checks that every required table exists in the graph,
// reporting all absent names at once so the caller gets complete diagnostics
// in a single round-trip.
func (r *Resolver) ValidateTables(required []string) error {
	var missing []string
	for _, name := range required {
		if _, ok := r.graph.Table(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errs.New(errs.KindMissingTables,
			"%d required table(s) not found in the schema", len(missing)).WithDetails(missing...)
	}
	return nil
}

// Resolve finds the shortest chain of relations connecting from and to.
// When several shortest chains of equal length exist it fails with
// AmbiguousPath enumerating every candidate; when no chain exists it fails
// with UnreachableTarget naming the last table reached and its available
// relations.
func (r *Resolver) Resolve(from, to string) (Path, error) {
	if err := r.ValidateTables([]string{from, to}); err != nil {
		return Path{}, err
	}
	if from == to {
		return Path{Tables: []string{from}}, nil
	}

	// BFS over the undirected view, recording distances.
	dist := map[string]int{from: 0}
	queue := []string{from}
	last := from
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		last = cur
		if cur == to {
			break
		}
		for _, e := range r.adj[cur] {
			if _, seen := dist[e.to]; !seen {
				dist[e.to] = dist[cur] + 1
				queue = append(queue, e.to)
			}
		}
	}

	if _, reached := dist[to]; !reached {
		var rels []string
		if t, ok := r.graph.Table(last); ok {
			for _, rel := range t.Relations {
				rels = append(rels, rel.String())
			}
		}
		sort.Strings(rels)
		return Path{}, errs.New(errs.KindUnreachableTarget,
			"no relation path from %s to %s, trace stopped at %s", from, to, last).
			WithTable(last).WithDetails(rels...)
	}

	paths := r.enumerate(from, to, dist)
	if len(paths) > 1 {
		details := make([]string, len(paths))
		for i, p := range paths {
			details[i] = p.String()
		}
		return Path{}, errs.New(errs.KindAmbiguousPath,
			"%d equally short relation paths from %s to %s, disambiguate with an explicit parent segment",
			len(paths), from, to).WithDetails(details...)
	}
	return paths[0], nil
}

// enumerate collects every shortest path by walking the BFS distance field
// iteratively. The stack depth is bounded by the table count, so pathological
// schemas cannot recurse unboundedly.
func (r *Resolver) enumerate(from, to string, dist map[string]int) []Path {
	type frame struct {
		table string
		tabs  []string
		rels  []*schema.Relation
	}
	bound := len(r.graph.TableNames()) + 1
	var paths []Path
	stack := []frame{{table: from, tabs: []string{from}}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.table == to {
			paths = append(paths, Path{Tables: f.tabs, Relations: f.rels})
			continue
		}
		if len(f.tabs) > bound {
			continue
		}
		for _, e := range r.adj[f.table] {
			if d, ok := dist[e.to]; ok && d == dist[f.table]+1 {
				tabs := append(append([]string{}, f.tabs...), e.to)
				rels := append(append([]*schema.Relation{}, f.rels...), e.rel)
				stack = append(stack, frame{table: e.to, tabs: tabs, rels: rels})
			}
		}
	}
	// Deterministic candidate order regardless of stack discipline.
	sort.Slice(paths, func(i, j int) bool {
		si, sj := paths[i].String(), paths[j].String()
		if si != sj {
			return si < sj
		}
		return relKey(paths[i]) < relKey(paths[j])
	})
	return paths
}

// relKey distinguishes candidate paths that visit the same tables through
// different foreign keys.
func relKey(p Path) string {
	parts := make([]string, len(p.Relations))
	for i, rel := range p.Relations {
		parts[i] = rel.String()
	}
	return strings.Join(parts, "|")
}
