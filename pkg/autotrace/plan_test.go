package autotrace

import (
	"strings"
	"testing"

	"github.com/schemanyd/schemanyd/pkg/errs"
)

func wavePaths(w Wave) string {
	paths := make([]string, len(w.Nodes))
	for i, n := range w.Nodes {
		paths[i] = n.Path
	}
	return strings.Join(paths, ", ")
}

func TestBuildPlanLeafContextsFirst(t *testing.T) {
	rm := resolveFixture(t, travelDescription(), travelMapping())

	plan, err := BuildPlan(rm)
	if err != nil {
		t.Fatalf("Expected plan to build, got error: %v", err)
	}
	if len(plan.Waves) != 2 {
		t.Fatalf("Expected 2 waves, got %d", len(plan.Waves))
	}

	// Parents consume generated keys of their children, so child contexts
	// run first.
	if got := wavePaths(plan.Waves[0]); got != "destination/country, traveler/country" {
		t.Errorf("Expected the country contexts in wave 0, got [%s]", got)
	}
	if got := wavePaths(plan.Waves[1]); got != "destination, traveler" {
		t.Errorf("Expected destination and traveler in wave 1, got [%s]", got)
	}
}

func TestBuildPlanSingleContext(t *testing.T) {
	rm := resolveFixture(t, travelDescription(), map[string]string{"name": "traveler.name"})

	plan, err := BuildPlan(rm)
	if err != nil {
		t.Fatalf("Expected plan to build, got error: %v", err)
	}
	if len(plan.Waves) != 1 || wavePaths(plan.Waves[0]) != "traveler" {
		t.Errorf("Expected a single-wave plan for one context, got %v", plan.Waves)
	}
}

func TestBuildPlanDeepChain(t *testing.T) {
	rm := resolveFixture(t, travelDescription(), map[string]string{
		"name":    "traveler.name",
		"country": "traveler/country.name",
	})

	plan, err := BuildPlan(rm)
	if err != nil {
		t.Fatalf("Expected plan to build, got error: %v", err)
	}
	if len(plan.Waves) != 2 {
		t.Fatalf("Expected 2 waves, got %d", len(plan.Waves))
	}
	if wavePaths(plan.Waves[0]) != "traveler/country" || wavePaths(plan.Waves[1]) != "traveler" {
		t.Errorf("Expected child context before parent, got [%s] then [%s]",
			wavePaths(plan.Waves[0]), wavePaths(plan.Waves[1]))
	}
}

func TestBuildPlanCycleNamesMembers(t *testing.T) {
	// Mutually referencing tables, both mapped, attach under one another and
	// leave no eligible context.
	rm := resolveFixture(t, cyclicDescription(), map[string]string{"x": "a.x", "y": "b.y"})

	_, err := BuildPlan(rm)
	if !errs.IsCyclicDependency(err) {
		t.Fatalf("Expected a cyclic-dependency error, got %v", err)
	}
	e := err.(*errs.Error)
	if len(e.Details) != 2 || e.Details[0] != "a" || e.Details[1] != "b" {
		t.Errorf("Expected the cycle members [a b] in the details, got %v", e.Details)
	}
}
