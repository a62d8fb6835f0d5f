package sqlite

import (
	"context"
	"fmt"

	"github.com/faucetdb/sluice/internal/model"
)

// GetTableNames returns a list of all table names in the database.
func (c *SQLiteConnector) GetTableNames(ctx context.Context) ([]string, error) {
	const query = `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("get table names: %w", err)
	}
	return names, nil
}

// GetStoredProcedures returns an empty list since SQLite does not support
// stored procedures.
func (c *SQLiteConnector) GetStoredProcedures(_ context.Context) ([]model.StoredProcedure, error) {
	return []model.StoredProcedure{}, nil
}
