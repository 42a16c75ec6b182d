package mapping

import (
	"strings"
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

func table(name string, columns ...string) models.TableDesc {
	td := models.TableDesc{Name: name}
	for _, c := range columns {
		td.Columns = append(td.Columns, models.ColumnDesc{Name: c, Type: "varchar", Nullable: true})
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

// travelGraph builds the fixture schema: trip references traveler and
// destination, and both traveler and destination reference country.
func travelGraph(t *testing.T) *schema.Graph {
	t.Helper()
	desc := &models.Description{
		Tables: []models.TableDesc{
			table("country", "id", "name"),
			table("destination", "id", "city", "country_id"),
			table("traveler", "id", "name", "country_id"),
			table("trip", "id", "code", "traveler_id", "destination_id"),
		},
		Constraints: []models.ConstraintDesc{
			pk("country"), pk("destination"), pk("traveler"), pk("trip"),
			fk("fk_destination_country", "destination", "country_id", "country"),
			fk("fk_traveler_country", "traveler", "country_id", "country"),
			fk("fk_trip_traveler", "trip", "traveler_id", "traveler"),
			fk("fk_trip_destination", "trip", "destination_id", "destination"),
		},
	}
	g, err := schema.NewBuilder(testLogger()).Build(schema.GenericKind, desc)
	if err != nil {
		t.Fatalf("Expected graph to build, got error: %v", err)
	}
	return g
}

// flightGraph has two foreign keys from flight to airport, so a bare airport
// reference can never be attached unambiguously.
func flightGraph(t *testing.T) *schema.Graph {
	t.Helper()
	desc := &models.Description{
		Tables: []models.TableDesc{
			table("airport", "id", "code"),
			table("flight", "id", "number", "origin_id", "arrival_id"),
		},
		Constraints: []models.ConstraintDesc{
			pk("airport"), pk("flight"),
			fk("fk_flight_origin", "flight", "origin_id", "airport"),
			fk("fk_flight_arrival", "flight", "arrival_id", "airport"),
		},
	}
	g, err := schema.NewBuilder(testLogger()).Build(schema.GenericKind, desc)
	if err != nil {
		t.Fatalf("Expected graph to build, got error: %v", err)
	}
	return g
}

func newTestResolver(t *testing.T, g *schema.Graph) *Resolver {
	t.Helper()
	return NewResolver(g, DefaultConfig(), testLogger())
}

func TestParseTargetRoundTrip(t *testing.T) {
	r := newTestResolver(t, travelGraph(t))

	cases := []string{
		"country.name",
		"destination/country.name",
		"trip/traveler/country.name",
	}
	for _, target := range cases {
		parsed, err := r.ParseTarget(target)
		if err != nil {
			t.Errorf("Expected %q to parse, got error: %v", target, err)
			continue
		}
		if got := parsed.String(DefaultConfig()); got != target {
			t.Errorf("Expected round trip of %q, got %q", target, got)
		}
	}
}

func TestParseTargetRejectsMalformedInput(t *testing.T) {
	r := newTestResolver(t, travelGraph(t))

	for _, target := range []string{"", "name", ".name", "country.", "destination//country.name"} {
		if _, err := r.ParseTarget(target); !errs.IsInvalidInput(err) {
			t.Errorf("Expected %q to be rejected as invalid input, got %v", target, err)
		}
	}
}

func TestParseTargetLastSeparatorWins(t *testing.T) {
	r := newTestResolver(t, travelGraph(t))

	// With dotted chains the final relation-field separator decides where the
	// column starts.
	parsed, err := r.ParseTarget("destination/country.name")
	if err != nil {
		t.Fatalf("Expected parse to succeed, got error: %v", err)
	}
	if parsed.Table() != "country" || parsed.Column != "name" {
		t.Errorf("Expected country.name, got %s.%s", parsed.Table(), parsed.Column)
	}
}

func TestParseTargetCustomSeparators(t *testing.T) {
	r := NewResolver(travelGraph(t), Config{SeparatorRF: "::", SeparatorRR: ">"}, testLogger())

	parsed, err := r.ParseTarget("destination>country::name")
	if err != nil {
		t.Fatalf("Expected parse with custom separators to succeed, got error: %v", err)
	}
	if len(parsed.Chain) != 2 || parsed.Table() != "country" || parsed.Column != "name" {
		t.Errorf("Unexpected parse result: %+v", parsed)
	}
}

func TestResolveBuildsOneContextPerChain(t *testing.T) {
	r := newTestResolver(t, travelGraph(t))

	rm, err := r.Resolve(map[string]string{
		"city":        "trip/destination.city",
		"country":     "trip/destination/country.name",
		"name":        "trip/traveler.name",
		"nationality": "trip/traveler/country.name",
		"code":        "trip.code",
	})
	if err != nil {
		t.Fatalf("Expected mapping to resolve, got error: %v", err)
	}

	// The same table reached through different chains is two contexts.
	paths := make([]string, 0)
	for _, n := range rm.Nodes() {
		paths = append(paths, n.Path)
	}
	want := "trip, trip/destination, trip/destination/country, trip/traveler, trip/traveler/country"
	if got := strings.Join(paths, ", "); got != want {
		t.Errorf("Expected contexts [%s], got [%s]", want, got)
	}

	destCountry, _ := rm.Node("trip/destination/country")
	travCountry, _ := rm.Node("trip/traveler/country")
	if destCountry.Table != travCountry.Table {
		t.Error("Expected both country contexts to share the same table")
	}
	if destCountry == travCountry {
		t.Error("Expected the two country contexts to be distinct")
	}

	trip, _ := rm.Node("trip")
	if !trip.Root() || len(trip.Children) != 2 {
		t.Errorf("Expected trip to be the root with two children, got %d children", len(trip.Children))
	}

	dest, _ := rm.Node("trip/destination")
	if dest.Relation == nil || dest.Relation.String() != "trip.destination_id -> destination.id" {
		t.Errorf("Unexpected relation for trip/destination: %v", dest.Relation)
	}
	if dest.Fields["city"] == nil || dest.Fields["city"].Name != "city" {
		t.Errorf("Expected field city to land on destination.city, got %v", dest.Fields["city"])
	}
}

func TestResolveUnknownTableSuggestsClosest(t *testing.T) {
	r := newTestResolver(t, travelGraph(t))

	_, err := r.Resolve(map[string]string{"c": "contry.name"})
	if !errs.IsUnknownTable(err) {
		t.Fatalf("Expected an unknown-table error, got %v", err)
	}
	e := err.(*errs.Error)
	if len(e.Details) != 1 || e.Details[0] != "did you mean country" {
		t.Errorf("Expected a suggestion for country, got %v", e.Details)
	}
}

func TestResolveUnknownColumnSuggestsClosest(t *testing.T) {
	r := newTestResolver(t, travelGraph(t))

	_, err := r.Resolve(map[string]string{"c": "country.nmae"})
	if !errs.IsUnknownColumn(err) {
		t.Fatalf("Expected an unknown-column error, got %v", err)
	}
	e := err.(*errs.Error)
	if len(e.Details) != 1 || e.Details[0] != "did you mean name" {
		t.Errorf("Expected a suggestion for name, got %v", e.Details)
	}
}

func TestResolveChainWithoutForeignKey(t *testing.T) {
	r := newTestResolver(t, travelGraph(t))

	// country owns no foreign key toward traveler; the chain direction is
	// parent-owns-FK, so this cannot be linked.
	_, err := r.Resolve(map[string]string{"n": "country/traveler.name"})
	if !errs.IsUnreachableTarget(err) {
		t.Errorf("Expected an unreachable-target error, got %v", err)
	}
}

func TestResolveAmbiguousChainRelation(t *testing.T) {
	r := newTestResolver(t, flightGraph(t))

	// Two foreign keys lead from flight to airport; the chain syntax cannot
	// tell them apart.
	_, err := r.Resolve(map[string]string{
		"number": "flight.number",
		"code":   "flight/airport.code",
	})
	if !errs.IsAmbiguousTarget(err) {
		t.Fatalf("Expected an ambiguous-target error, got %v", err)
	}
	e := err.(*errs.Error)
	if len(e.Details) != 2 {
		t.Errorf("Expected both candidate relations enumerated, got %v", e.Details)
	}
}

func TestResolveImplicitAttachment(t *testing.T) {
	r := newTestResolver(t, travelGraph(t))

	// A bare country reference attaches under traveler because exactly one
	// mapped context owns exactly one unconsumed FK toward it.
	rm, err := r.Resolve(map[string]string{
		"name":        "traveler.name",
		"nationality": "country.name",
	})
	if err != nil {
		t.Fatalf("Expected mapping to resolve, got error: %v", err)
	}
	country, _ := rm.Node("country")
	if country.Parent == nil || country.Parent.Path != "traveler" {
		t.Errorf("Expected country to attach under traveler, got parent %v", country.Parent)
	}
	if country.Relation == nil || country.Relation.Name != "fk_traveler_country" {
		t.Errorf("Expected attachment via fk_traveler_country, got %v", country.Relation)
	}
}

func TestResolveImplicitAttachmentAmbiguous(t *testing.T) {
	r := newTestResolver(t, flightGraph(t))

	_, err := r.Resolve(map[string]string{
		"number": "flight.number",
		"code":   "airport.code",
	})
	if !errs.IsAmbiguousTarget(err) {
		t.Fatalf("Expected an ambiguous-target error, got %v", err)
	}
	// The message suggests the explicit parent-segment syntax.
	if !strings.Contains(err.Error(), "flight/airport") {
		t.Errorf("Expected a parent-segment suggestion in %q", err.Error())
	}
}

func TestResolveConsumedRelationLeavesBareRoot(t *testing.T) {
	r := newTestResolver(t, travelGraph(t))

	// The traveler-country FK is already consumed by the explicit chain, so
	// the bare country context stays an independent root.
	rm, err := r.Resolve(map[string]string{
		"name":        "traveler.name",
		"nationality": "traveler/country.name",
		"homeland":    "country.name",
	})
	if err != nil {
		t.Fatalf("Expected mapping to resolve, got error: %v", err)
	}
	bare, _ := rm.Node("country")
	if !bare.Root() {
		t.Error("Expected the bare country context to remain an independent root")
	}
}

func TestResolveIndependentRoots(t *testing.T) {
	r := newTestResolver(t, travelGraph(t))

	rm, err := r.Resolve(map[string]string{
		"name": "traveler.name",
		"city": "destination.city",
	})
	if err != nil {
		t.Fatalf("Expected mapping to resolve, got error: %v", err)
	}
	for _, n := range rm.Nodes() {
		if !n.Root() {
			t.Errorf("Expected %s to be an independent root", n.Path)
		}
	}
}

func TestResolveEmptyMapping(t *testing.T) {
	r := newTestResolver(t, travelGraph(t))

	if _, err := r.Resolve(nil); !errs.IsInvalidInput(err) {
		t.Errorf("Expected an invalid-input error for an empty mapping, got %v", err)
	}
}
