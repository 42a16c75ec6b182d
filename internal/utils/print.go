package utils

import (
	"fmt"
	"sort"
	"strings"

	"github.com/schemanyd/schemanyd/pkg/autotrace"
	"github.com/schemanyd/schemanyd/pkg/schema"
)

// PrintSchemaAnalysis prints a detailed analysis of the schema graph
func PrintSchemaAnalysis(g *schema.Graph) {
	tables := g.Tables()
	relations := g.Relations()

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SCHEMA GRAPH ANALYSIS REPORT")
	fmt.Println(strings.Repeat("=", 80))

	// Basic statistics
	withRelations := make(map[string]bool)
	for _, rel := range relations {
		withRelations[rel.ChildTable().Name] = true
	}

	fmt.Println("\n1. BASIC STATISTICS")
	fmt.Printf("   Total tables: %d\n", len(tables))
	fmt.Printf("   Total relations: %d\n", len(relations))
	fmt.Printf("   Tables with foreign keys: %d\n", len(withRelations))

	// Table categories
	var standaloneTables []string
	var dependentTables []string
	for _, t := range tables {
		if withRelations[t.Name] {
			dependentTables = append(dependentTables, t.Name)
		} else {
			standaloneTables = append(standaloneTables, t.Name)
		}
	}

	fmt.Println("\n2. TABLE CATEGORIES")
	fmt.Printf("   Standalone tables (no foreign keys): %d\n", len(standaloneTables))
	fmt.Printf("   Dependent tables (with foreign keys): %d\n", len(dependentTables))

	// Relations
	if len(relations) > 0 {
		fmt.Println("\n3. RELATIONS")
		for _, rel := range relations {
			fmt.Printf("   %s (%s)\n", rel, relationKindLabel(rel.Kind))
		}
	}

	// Processing order: a table is ready once every table it references has
	// been processed, since its foreign keys consume their generated keys.
	fmt.Println("\n4. RECOMMENDED PROCESSING ORDER")
	ordered, cyclic := processingOrder(g)
	for i, name := range ordered {
		category := "Standalone"
		if withRelations[name] {
			category = "Dependent"
		}
		fmt.Printf("   %3d. %s (%s)\n", i+1, name, category)
	}
	if len(cyclic) > 0 {
		fmt.Printf("   Unorderable (foreign-key cycle): %s\n", strings.Join(cyclic, ", "))
	}

	// Identity coverage
	fmt.Println("\n5. IDENTITY COVERAGE")
	var withoutIdentity []string
	for _, t := range tables {
		if len(t.UniqueArguments()) == 0 {
			withoutIdentity = append(withoutIdentity, t.Name)
		}
	}
	fmt.Printf("   Tables with a uniqueness constraint: %d\n", len(tables)-len(withoutIdentity))
	if len(withoutIdentity) > 0 {
		sort.Strings(withoutIdentity)
		fmt.Printf("   Tables without (duplicates cannot be detected): %s\n",
			strings.Join(withoutIdentity, ", "))
	}

	fmt.Println(strings.Repeat("=", 80))
}

// processingOrder lists tables so that every table appears after the tables
// its foreign keys reference. Tables stuck in a reference cycle are returned
// separately.
func processingOrder(g *schema.Graph) (ordered, cyclic []string) {
	done := make(map[string]bool)
	remaining := len(g.Tables())
	for remaining > 0 {
		progressed := false
		for _, t := range g.Tables() {
			if done[t.Name] {
				continue
			}
			ready := true
			for _, rel := range t.Relations {
				if rel.ChildTable() == t && !done[rel.ParentTable().Name] && rel.ParentTable() != t {
					ready = false
					break
				}
			}
			if ready {
				ordered = append(ordered, t.Name)
				done[t.Name] = true
				remaining--
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	for _, t := range g.Tables() {
		if !done[t.Name] {
			cyclic = append(cyclic, t.Name)
		}
	}
	sort.Strings(cyclic)
	return ordered, cyclic
}

func relationKindLabel(k schema.RelationKind) string {
	switch k {
	case schema.ManyToOne:
		return "many-to-one"
	case schema.OneToMany:
		return "one-to-many"
	case schema.ManyToMany:
		return "many-to-many"
	default:
		return "unknown"
	}
}

// PrintInsertSummary prints a summary of an insertion run
func PrintInsertSummary(report *autotrace.Report) {
	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("INSERTION RUN SUMMARY")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Input rows processed: %d\n", len(report.Rows))
	fmt.Printf("Waves executed: %d\n", len(report.Waves))
	fmt.Printf("Records inserted: %d\n", report.Inserted)
	fmt.Printf("Records matched: %d\n", report.Matched)
	if report.Ambiguous > 0 {
		fmt.Printf("Records inserted without identity check: %d\n", report.Ambiguous)
	}
	fmt.Printf("Failed outcomes: %d\n", report.Failed)
	fmt.Printf("Skipped outcomes: %d\n", report.Skipped)

	for _, wave := range report.Waves {
		fmt.Printf("\nWave %d: %s\n", wave.Index, strings.Join(wave.Nodes, ", "))
		fmt.Printf("  inserted=%d matched=%d ambiguous=%d failed=%d skipped=%d\n",
			wave.Inserted, wave.Matched, wave.Ambiguous, wave.Failed, wave.Skipped)
	}

	failed := report.FailedRows()
	if len(failed) > 0 {
		fmt.Println("\nFailed rows:")
		for _, idx := range failed {
			row := report.Rows[idx]
			var reasons []string
			for _, o := range row.Outcomes {
				if o.Kind == autotrace.OutcomeFailed && o.Reason != "" {
					reasons = append(reasons, o.Reason)
				}
			}
			sort.Strings(reasons)
			fmt.Printf("  - row %d: %s\n", idx, strings.Join(reasons, "; "))
		}
	}

	if report.Status == autotrace.StatusCancelled {
		fmt.Println("\nRun was cancelled; results above are partial.")
	}
	fmt.Println(strings.Repeat("=", 50))
}
