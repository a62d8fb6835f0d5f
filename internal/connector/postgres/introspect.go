package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/faucetdb/sluice/internal/model"
)

// routineRow holds a stored procedure or function from information_schema.routines.
type routineRow struct {
	RoutineName string  `db:"routine_name"`
	RoutineType string  `db:"routine_type"`
	DataType    *string `db:"data_type"`
}

// GetTableNames returns a list of all table names in the configured schema.
func (c *PostgresConnector) GetTableNames(ctx context.Context) ([]string, error) {
	const query = `SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query, c.schemaName); err != nil {
		return nil, fmt.Errorf("get table names: %w", err)
	}
	return names, nil
}

// GetStoredProcedures returns all stored procedures and functions in the
// configured schema.
func (c *PostgresConnector) GetStoredProcedures(ctx context.Context) ([]model.StoredProcedure, error) {
	const query = `SELECT routine_name, routine_type, data_type
		FROM information_schema.routines
		WHERE routine_schema = $1
		ORDER BY routine_name`

	var routines []routineRow
	if err := c.db.SelectContext(ctx, &routines, query, c.schemaName); err != nil {
		return nil, fmt.Errorf("get stored procedures: %w", err)
	}

	result := make([]model.StoredProcedure, 0, len(routines))
	for _, r := range routines {
		sp := model.StoredProcedure{Name: r.RoutineName, Type: "function"}
		if r.DataType != nil {
			sp.ReturnType = *r.DataType
		}
		if strings.EqualFold(r.RoutineType, "PROCEDURE") {
			sp.Type = "procedure"
		}
		result = append(result, sp)
	}
	return result, nil
}
