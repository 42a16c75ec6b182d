package pathfind

import (
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/schemanyd/schemanyd/pkg/errs"
	"github.com/schemanyd/schemanyd/pkg/models"
	"github.com/schemanyd/schemanyd/pkg/schema"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests
	return logger
}

func buildGraph(t *testing.T, desc *models.Description) *schema.Graph {
	t.Helper()
	g, err := schema.NewBuilder(testLogger()).Build(schema.GenericKind, desc)
	if err != nil {
		t.Fatalf("Expected graph to build, got error: %v", err)
	}
	return g
}

func table(name string, columns ...string) models.TableDesc {
	td := models.TableDesc{Name: name}
	for _, c := range columns {
		td.Columns = append(td.Columns, models.ColumnDesc{Name: c, Type: "int", Nullable: true})
	}
	return td
}

func pk(table string) models.ConstraintDesc {
	return models.ConstraintDesc{Kind: models.ConstraintPrimaryKey, Name: "PRIMARY",
		Table: table, Columns: []string{"id"}}
}

func fk(name, child, column, parent string) models.ConstraintDesc {
	return models.ConstraintDesc{Kind: models.ConstraintForeignKey, Name: name,
		Table: child, Columns: []string{column}, RefTable: parent, RefColumns: []string{"id"}}
}

// chainDescription builds a -> b -> c plus an isolated island table.
func chainDescription() *models.Description {
	return &models.Description{
		Tables: []models.TableDesc{
			table("a", "id", "b_id"),
			table("b", "id", "c_id"),
			table("c", "id"),
			table("island", "id"),
		},
		Constraints: []models.ConstraintDesc{
			pk("a"), pk("b"), pk("c"), pk("island"),
			fk("fk_a_b", "a", "b_id", "b"),
			fk("fk_b_c", "b", "c_id", "c"),
		},
	}
}

// diamondDescription builds two equally short routes from top to bottom:
// top -> left -> bottom and top -> right -> bottom.
func diamondDescription() *models.Description {
	return &models.Description{
		Tables: []models.TableDesc{
			table("top", "id", "left_id", "right_id"),
			table("left", "id", "bottom_id"),
			table("right", "id", "bottom_id"),
			table("bottom", "id"),
		},
		Constraints: []models.ConstraintDesc{
			pk("top"), pk("left"), pk("right"), pk("bottom"),
			fk("fk_top_left", "top", "left_id", "left"),
			fk("fk_top_right", "top", "right_id", "right"),
			fk("fk_left_bottom", "left", "bottom_id", "bottom"),
			fk("fk_right_bottom", "right", "bottom_id", "bottom"),
		},
	}
}

func TestResolveShortestPath(t *testing.T) {
	r := New(buildGraph(t, chainDescription()))

	p, err := r.Resolve("a", "c")
	if err != nil {
		t.Fatalf("Expected a path from a to c, got error: %v", err)
	}
	if p.String() != "a -> b -> c" {
		t.Errorf("Expected path a -> b -> c, got %s", p)
	}
	if p.Len() != 2 {
		t.Errorf("Expected 2 hops, got %d", p.Len())
	}
}

func TestResolveIsUndirected(t *testing.T) {
	r := New(buildGraph(t, chainDescription()))

	// Foreign keys point a -> b -> c; reachability must work against the
	// arrow direction too.
	p, err := r.Resolve("c", "a")
	if err != nil {
		t.Fatalf("Expected a path from c to a, got error: %v", err)
	}
	if p.String() != "c -> b -> a" {
		t.Errorf("Expected path c -> b -> a, got %s", p)
	}
}

func TestResolveSameTable(t *testing.T) {
	r := New(buildGraph(t, chainDescription()))

	p, err := r.Resolve("a", "a")
	if err != nil {
		t.Fatalf("Expected a trivial path, got error: %v", err)
	}
	if p.Len() != 0 || len(p.Tables) != 1 {
		t.Errorf("Expected a zero-hop path, got %v", p)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	r := New(buildGraph(t, chainDescription()))

	first, err := r.Resolve("a", "c")
	if err != nil {
		t.Fatalf("Expected a path, got error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := r.Resolve("a", "c")
		if err != nil {
			t.Fatalf("Expected a path on repeat call, got error: %v", err)
		}
		if !reflect.DeepEqual(first.Tables, again.Tables) {
			t.Fatalf("Expected identical results across calls, got %v then %v", first.Tables, again.Tables)
		}
	}
}

func TestResolveAmbiguousPath(t *testing.T) {
	r := New(buildGraph(t, diamondDescription()))

	_, err := r.Resolve("top", "bottom")
	if err == nil {
		t.Fatal("Expected tied shortest paths to fail")
	}
	if !errs.IsAmbiguousPath(err) {
		t.Fatalf("Expected an ambiguous-path error, got %v", err)
	}

	// Every candidate must be enumerated so the caller can pick one.
	var e *errs.Error
	if !asErr(err, &e) {
		t.Fatal("Expected an *errs.Error")
	}
	want := []string{"top -> left -> bottom", "top -> right -> bottom"}
	if !reflect.DeepEqual(e.Details, want) {
		t.Errorf("Expected candidates %v, got %v", want, e.Details)
	}
}

func TestResolveUnreachableTarget(t *testing.T) {
	r := New(buildGraph(t, chainDescription()))

	_, err := r.Resolve("a", "island")
	if err == nil {
		t.Fatal("Expected no path to the island table")
	}
	if !errs.IsUnreachableTarget(err) {
		t.Errorf("Expected an unreachable-target error, got %v", err)
	}
}

func TestValidateTablesReportsAllMissing(t *testing.T) {
	r := New(buildGraph(t, chainDescription()))

	err := r.ValidateTables([]string{"a", "zzz", "b", "yyy"})
	if err == nil {
		t.Fatal("Expected missing tables to fail validation")
	}
	if !errs.IsMissingTables(err) {
		t.Fatalf("Expected a missing-tables error, got %v", err)
	}
	var e *errs.Error
	if !asErr(err, &e) {
		t.Fatal("Expected an *errs.Error")
	}
	want := []string{"yyy", "zzz"}
	if !reflect.DeepEqual(e.Details, want) {
		t.Errorf("Expected every missing table listed sorted, got %v", e.Details)
	}

	if err := r.ValidateTables([]string{"a", "b", "c"}); err != nil {
		t.Errorf("Expected existing tables to validate, got %v", err)
	}
}

// asErr avoids importing errors in every assertion.
func asErr(err error, target **errs.Error) bool {
	e, ok := err.(*errs.Error)
	if ok {
		*target = e
	}
	return ok
}
