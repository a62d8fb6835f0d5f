package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/faucetdb/sluice/internal/model"
)

// routineRow holds a stored procedure or function from INFORMATION_SCHEMA.ROUTINES.
type routineRow struct {
	RoutineName string  `db:"ROUTINE_NAME"`
	RoutineType string  `db:"ROUTINE_TYPE"`
	DataType    *string `db:"DATA_TYPE"`
}

// GetTableNames returns a list of all table names in the configured schema.
func (c *MySQLConnector) GetTableNames(ctx context.Context) ([]string, error) {
	const query = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query, c.schemaName); err != nil {
		return nil, fmt.Errorf("get table names: %w", err)
	}
	return names, nil
}

// GetStoredProcedures returns all stored procedures and functions in the
// configured schema.
func (c *MySQLConnector) GetStoredProcedures(ctx context.Context) ([]model.StoredProcedure, error) {
	const query = `SELECT ROUTINE_NAME, ROUTINE_TYPE, DATA_TYPE
		FROM INFORMATION_SCHEMA.ROUTINES
		WHERE ROUTINE_SCHEMA = ?
		ORDER BY ROUTINE_NAME`

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
