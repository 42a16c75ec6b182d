// Package reflector produces an engine-agnostic schema description from a
// live MySQL database by querying information_schema. Foreign-key columns
// are grouped by constraint name, so composite keys arrive at the graph
// builder as a single constraint and are rejected there rather than being
// silently split.
package reflector

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/schemanyd/schemanyd/internal/connector"
	"github.com/schemanyd/schemanyd/pkg/models"
)

// Reflector reads schema metadata through a database connector.
type Reflector struct {
	DB     *connector.DatabaseConnector
	Logger *logrus.Logger
}

// New creates a Reflector over an established connector.
func New(db *connector.DatabaseConnector, logger *logrus.Logger) *Reflector {
	return &Reflector{DB: db, Logger: logger}
}

// Describe reflects the connected schema into a models.Description.
func (r *Reflector) Describe(ctx context.Context) (*models.Description, error) {
	desc := &models.Description{Schema: r.DB.Database}

	if err := r.describeTables(ctx, desc); err != nil {
		return nil, err
	}
	if err := r.describeKeys(ctx, desc); err != nil {
		return nil, err
	}
	if err := r.describeUniqueIndexes(ctx, desc); err != nil {
		return nil, err
	}
	if err := r.describeChecks(ctx, desc); err != nil {
		return nil, err
	}

	r.Logger.Infof("Reflected schema %s: %d tables, %d constraints",
		desc.Schema, len(desc.Tables), len(desc.Constraints))
	return desc, nil
}

// describeTables lists base tables and their columns, deriving NOT NULL and
// DEFAULT column constraints from the column metadata.
func (r *Reflector) describeTables(ctx context.Context, desc *models.Description) error {
	tablesQuery := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	tablesResult, err := r.DB.ExecuteQuery(ctx, tablesQuery, r.DB.Database)
	if err != nil {
		r.Logger.Errorf("Error getting tables: %v", err)
		return err
	}

	for _, tableRow := range tablesResult {
		table := fmt.Sprintf("%v", tableRow["table_name"])

		columnsQuery := `
			SELECT
				column_name,
				data_type,
				is_nullable,
				column_default,
				extra
			FROM information_schema.columns
			WHERE table_schema = ?
			AND table_name = ?
			ORDER BY ordinal_position
		`
		columnsResult, err := r.DB.ExecuteQuery(ctx, columnsQuery, r.DB.Database, table)
		if err != nil {
			r.Logger.Errorf("Failed to retrieve columns for table %s: %v", table, err)
			return err
		}

		td := models.TableDesc{Name: table}
		for _, row := range columnsResult {
			name := fmt.Sprintf("%v", row["column_name"])
			nullable := fmt.Sprintf("%v", row["is_nullable"]) == "YES"
			hasDefault := row["column_default"] != nil ||
				strings.Contains(strings.ToLower(fmt.Sprintf("%v", row["extra"])), "auto_increment")

			td.Columns = append(td.Columns, models.ColumnDesc{
				Name:       name,
				Type:       fmt.Sprintf("%v", row["data_type"]),
				Nullable:   nullable,
				HasDefault: hasDefault,
			})
			if !nullable {
				desc.Constraints = append(desc.Constraints, models.ConstraintDesc{
					Kind:    models.ConstraintNotNull,
					Table:   table,
					Columns: []string{name},
				})
			}
			if hasDefault {
				desc.Constraints = append(desc.Constraints, models.ConstraintDesc{
					Kind:    models.ConstraintDefault,
					Table:   table,
					Columns: []string{name},
				})
			}
		}
		desc.Tables = append(desc.Tables, td)
	}
	return nil
}

// describeKeys reflects primary and foreign keys from key_column_usage,
// grouping columns by constraint so composite keys stay visible.
func (r *Reflector) describeKeys(ctx context.Context, desc *models.Description) error {
	keysQuery := `
		SELECT
			table_name,
			column_name,
			constraint_name,
			referenced_table_name,
			referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
		ORDER BY table_name, constraint_name, ordinal_position
	`
	keysResult, err := r.DB.ExecuteQuery(ctx, keysQuery, r.DB.Database)
	if err != nil {
		r.Logger.Errorf("Error getting key constraints: %v", err)
		return err
	}

	type group struct {
		desc models.ConstraintDesc
	}
	var order []string
	groups := make(map[string]*group)

	for _, row := range keysResult {
		table := fmt.Sprintf("%v", row["table_name"])
		column := fmt.Sprintf("%v", row["column_name"])
		constraint := fmt.Sprintf("%v", row["constraint_name"])
		key := table + "." + constraint

		g, ok := groups[key]
		if !ok {
			kind := models.ConstraintForeignKey
			if row["referenced_table_name"] == nil {
				if constraint != "PRIMARY" {
					// Unique constraints are reflected from statistics with
					// their full column lists; skip their key_column_usage rows.
					continue
				}
				kind = models.ConstraintPrimaryKey
			}
			g = &group{desc: models.ConstraintDesc{
				Kind:  kind,
				Name:  constraint,
				Table: table,
			}}
			groups[key] = g
			order = append(order, key)
		}
		g.desc.Columns = append(g.desc.Columns, column)
		if row["referenced_table_name"] != nil {
			g.desc.RefTable = fmt.Sprintf("%v", row["referenced_table_name"])
			g.desc.RefColumns = append(g.desc.RefColumns, fmt.Sprintf("%v", row["referenced_column_name"]))
		}
	}

	for _, key := range order {
		desc.Constraints = append(desc.Constraints, groups[key].desc)
	}
	return nil
}

// describeUniqueIndexes reflects unique indexes (primary keys excluded) from
// information_schema.statistics.
func (r *Reflector) describeUniqueIndexes(ctx context.Context, desc *models.Description) error {
	uniqueQuery := `
		SELECT
			table_name,
			index_name,
			column_name
		FROM information_schema.statistics
		WHERE table_schema = ?
		AND non_unique = 0
		AND index_name != 'PRIMARY'
		ORDER BY table_name, index_name, seq_in_index
	`
	uniqueResult, err := r.DB.ExecuteQuery(ctx, uniqueQuery, r.DB.Database)
	if err != nil {
		r.Logger.Errorf("Error getting unique indexes: %v", err)
		return err
	}

	var order []string
	groups := make(map[string]*models.ConstraintDesc)
	for _, row := range uniqueResult {
		table := fmt.Sprintf("%v", row["table_name"])
		index := fmt.Sprintf("%v", row["index_name"])
		key := table + "." + index

		g, ok := groups[key]
		if !ok {
			g = &models.ConstraintDesc{
				Kind:  models.ConstraintUnique,
				Name:  index,
				Table: table,
			}
			groups[key] = g
			order = append(order, key)
		}
		g.Columns = append(g.Columns, fmt.Sprintf("%v", row["column_name"]))
	}

	for _, key := range order {
		desc.Constraints = append(desc.Constraints, *groups[key])
	}
	return nil
}

// describeChecks reflects check constraints. The query needs MySQL 8.0+,
// older servers just produce none.
func (r *Reflector) describeChecks(ctx context.Context, desc *models.Description) error {
	checkQuery := `
		SELECT
			t.table_name,
			c.constraint_name,
			c.check_clause
		FROM information_schema.check_constraints c
		JOIN information_schema.table_constraints t
		ON c.constraint_schema = t.constraint_schema
		AND c.constraint_name = t.constraint_name
		WHERE c.constraint_schema = ?
	`
	checkResult, err := r.DB.ExecuteQuery(ctx, checkQuery, r.DB.Database)
	if err != nil {
		r.Logger.Warningf("Error getting check constraints (this is expected for MySQL < 8.0): %v", err)
		return nil
	}

	for _, row := range checkResult {
		desc.Constraints = append(desc.Constraints, models.ConstraintDesc{
			Kind:      models.ConstraintCheck,
			Name:      fmt.Sprintf("%v", row["constraint_name"]),
			Table:     fmt.Sprintf("%v", row["table_name"]),
			Condition: fmt.Sprintf("%v", row["check_clause"]),
		})
	}
	return nil
}
