package autotrace

import (
	"sort"
	"strings"

	"github.com/yourbasic/graph"

	"github.com/schemanyd/schemanyd/pkg/errs"
	"github.com/schemanyd/schemanyd/pkg/mapping"
)

// Wave is a batch of contexts processed together because every context they
// need generated keys from has already been processed in an earlier wave.
type Wave struct {
	Nodes []*mapping.Node
}

// Plan is the ordered list of waves for one resolved mapping.
type Plan struct {
	Waves []Wave
}

// BuildPlan computes the wave order for a resolved mapping. A context is
// eligible once all of its child contexts (the ones whose generated keys fill
// its foreign-key columns) are processed; contexts with no children form the
// first wave. If no context is eligible while contexts remain, the mapped
// tables form a foreign-key cycle and the whole run is unsatisfiable.
func BuildPlan(rm *mapping.Resolved) (*Plan, error) {
	nodes := rm.Nodes()
	processed := make(map[*mapping.Node]bool, len(nodes))
	remaining := len(nodes)

	plan := &Plan{}
	for remaining > 0 {
		var wave Wave
		for _, n := range nodes {
			if processed[n] {
				continue
			}
			eligible := true
			for _, child := range n.Children {
				if !processed[child] {
					eligible = false
					break
				}
			}
			if eligible {
				wave.Nodes = append(wave.Nodes, n)
			}
		}
		if len(wave.Nodes) == 0 {
			return nil, cycleError(nodes, processed)
		}
		sort.Slice(wave.Nodes, func(i, j int) bool { return wave.Nodes[i].Path < wave.Nodes[j].Path })
		for _, n := range wave.Nodes {
			processed[n] = true
		}
		remaining -= len(wave.Nodes)
		plan.Waves = append(plan.Waves, wave)
	}
	return plan, nil
}

// cycleError names the stuck contexts. The strongly connected components of
// the dependency graph over the unprocessed contexts identify the actual
// cycle members, separating them from contexts merely blocked behind the
// cycle.
func cycleError(nodes []*mapping.Node, processed map[*mapping.Node]bool) error {
	var stuck []*mapping.Node
	index := make(map[*mapping.Node]int)
	for _, n := range nodes {
		if !processed[n] {
			index[n] = len(stuck)
			stuck = append(stuck, n)
		}
	}

	g := graph.New(len(stuck))
	for _, n := range stuck {
		for _, child := range n.Children {
			if ci, ok := index[child]; ok {
				g.Add(index[n], ci)
			}
		}
	}

	var members []string
	for _, comp := range graph.StrongComponents(g) {
		if len(comp) < 2 {
			continue
		}
		for _, v := range comp {
			members = append(members, stuck[v].Path)
		}
	}
	if len(members) == 0 {
		// Self-referencing context or a blocked remainder without a proper
		// component; report everything unprocessed.
		for _, n := range stuck {
			members = append(members, n.Path)
		}
	}
	sort.Strings(members)

	return errs.New(errs.KindCyclicDependency,
		"no context is eligible to proceed, mapped tables form a foreign-key cycle: %s",
		strings.Join(members, ", ")).WithDetails(members...)
}
