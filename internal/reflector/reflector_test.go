package reflector

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"

	"github.com/schemanyd/schemanyd/internal/connector"
	"github.com/schemanyd/schemanyd/pkg/models"
	"github.com/schemanyd/schemanyd/pkg/schema"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests
	return logger
}

// mockSchema wires a sqlmock database behind a connector and programs the
// information_schema result sets for a two-table travel schema.
func mockSchema(t *testing.T) (*Reflector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mock.ExpectQuery("FROM information_schema.tables").
		WithArgs("travel").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).
			AddRow("country").
			AddRow("destination"))

	columns := []string{"column_name", "data_type", "is_nullable", "column_default", "extra"}
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("travel", "country").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("id", "int", "NO", nil, "auto_increment").
			AddRow("name", "varchar", "NO", nil, ""))
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("travel", "destination").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("id", "int", "NO", nil, "auto_increment").
			AddRow("city", "varchar", "NO", nil, "").
			AddRow("country_id", "int", "YES", nil, ""))

	mock.ExpectQuery("FROM information_schema.key_column_usage").
		WithArgs("travel").
		WillReturnRows(sqlmock.NewRows([]string{
			"table_name", "column_name", "constraint_name",
			"referenced_table_name", "referenced_column_name"}).
			AddRow("country", "id", "PRIMARY", nil, nil).
			AddRow("destination", "id", "PRIMARY", nil, nil).
			AddRow("destination", "country_id", "fk_destination_country", "country", "id"))

	mock.ExpectQuery("FROM information_schema.statistics").
		WithArgs("travel").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "index_name", "column_name"}).
			AddRow("country", "uq_country_name", "name"))

	mock.ExpectQuery("FROM information_schema.check_constraints").
		WithArgs("travel").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "constraint_name", "check_clause"}).
			AddRow("country", "ck_country_name", "`name` <> ''"))

	dc := &connector.DatabaseConnector{Database: "travel", DB: db, Logger: testLogger()}
	return New(dc, testLogger()), mock
}

func findConstraint(desc *models.Description, kind models.ConstraintKind, name string) *models.ConstraintDesc {
	for i := range desc.Constraints {
		c := &desc.Constraints[i]
		if c.Kind == kind && c.Name == name {
			return c
		}
	}
	return nil
}

func TestDescribe(t *testing.T) {
	r, mock := mockSchema(t)

	desc, err := r.Describe(context.Background())
	if err != nil {
		t.Fatalf("Expected reflection to succeed, got error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}

	if desc.Schema != "travel" {
		t.Errorf("Expected schema travel, got %q", desc.Schema)
	}
	if len(desc.Tables) != 2 {
		t.Fatalf("Expected 2 tables, got %d", len(desc.Tables))
	}

	country := desc.Tables[0]
	if country.Name != "country" || len(country.Columns) != 2 {
		t.Fatalf("Unexpected country table: %+v", country)
	}
	if country.Columns[0].Nullable || !country.Columns[0].HasDefault {
		t.Errorf("Expected the auto_increment key to be NOT NULL with a default, got %+v", country.Columns[0])
	}

	dest := desc.Tables[1]
	if !dest.Columns[2].Nullable {
		t.Errorf("Expected destination.country_id to be nullable, got %+v", dest.Columns[2])
	}

	fk := findConstraint(desc, models.ConstraintForeignKey, "fk_destination_country")
	if fk == nil {
		t.Fatal("Expected the foreign key to be reflected")
	}
	if fk.Table != "destination" || fk.RefTable != "country" || fk.RefColumns[0] != "id" {
		t.Errorf("Unexpected foreign key: %+v", fk)
	}

	if uq := findConstraint(desc, models.ConstraintUnique, "uq_country_name"); uq == nil || uq.Columns[0] != "name" {
		t.Errorf("Expected the unique index reflected from statistics, got %+v", uq)
	}
	if ck := findConstraint(desc, models.ConstraintCheck, "ck_country_name"); ck == nil || ck.Condition == "" {
		t.Errorf("Expected the check constraint with its clause, got %+v", ck)
	}

	pkCount := 0
	for _, c := range desc.Constraints {
		if c.Kind == models.ConstraintPrimaryKey {
			pkCount++
		}
	}
	if pkCount != 2 {
		t.Errorf("Expected 2 primary keys, got %d", pkCount)
	}
}

func TestDescribeFeedsTheGraphBuilder(t *testing.T) {
	r, _ := mockSchema(t)

	desc, err := r.Describe(context.Background())
	if err != nil {
		t.Fatalf("Expected reflection to succeed, got error: %v", err)
	}

	g, err := schema.NewBuilder(testLogger()).Build(schema.GenericKind, desc)
	if err != nil {
		t.Fatalf("Expected the reflected description to build a graph, got error: %v", err)
	}
	if len(g.Relations()) != 1 {
		t.Errorf("Expected 1 relation in the graph, got %d", len(g.Relations()))
	}
	dest, _ := g.Table("destination")
	if dest.PrimaryKey() == nil || dest.PrimaryKey().Name != "id" {
		t.Errorf("Expected destination.id as primary key, got %v", dest.PrimaryKey())
	}
}

func TestDescribeToleratesMissingCheckSupport(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM information_schema.tables").
		WithArgs("travel").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("country"))
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("travel", "country").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "column_default", "extra"}).
			AddRow("id", "int", "NO", nil, "auto_increment"))
	mock.ExpectQuery("FROM information_schema.key_column_usage").
		WithArgs("travel").
		WillReturnRows(sqlmock.NewRows([]string{
			"table_name", "column_name", "constraint_name",
			"referenced_table_name", "referenced_column_name"}).
			AddRow("country", "id", "PRIMARY", nil, nil))
	mock.ExpectQuery("FROM information_schema.statistics").
		WithArgs("travel").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "index_name", "column_name"}))
	// MySQL before 8.0 has no check_constraints view.
	mock.ExpectQuery("FROM information_schema.check_constraints").
		WithArgs("travel").
		WillReturnError(errUnknownTable)

	dc := &connector.DatabaseConnector{Database: "travel", DB: db, Logger: testLogger()}
	desc, err := New(dc, testLogger()).Describe(context.Background())
	if err != nil {
		t.Fatalf("Expected reflection to tolerate the missing view, got error: %v", err)
	}
	if len(desc.Tables) != 1 {
		t.Errorf("Expected 1 table, got %d", len(desc.Tables))
	}
}

var errUnknownTable = errors.New("Error 1109: Unknown table 'check_constraints' in information_schema")
