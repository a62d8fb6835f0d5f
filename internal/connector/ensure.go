package connector

import (
	"context"
	"fmt"
	"strings"

	"github.com/faucetdb/sluice/internal/schema"
)

// EnsureSchema creates every table of src that the database does not have
// yet, referenced tables first. Existing tables are left untouched. It returns
// the names of the tables it created.
func EnsureSchema(ctx context.Context, conn Connector, src *schema.Source) ([]string, error) {
	names, err := conn.GetTableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("ensure schema %q: %w", src.Name, err)
	}
	existing := make(map[string]bool, len(names))
	for _, n := range names {
		existing[strings.ToLower(n)] = true
	}

	var created []string
	for _, t := range src.CreationOrder() {
		if existing[strings.ToLower(t.Name)] {
			continue
		}
		if err := conn.CreateTable(ctx, t.Definition()); err != nil {
			return created, fmt.Errorf("ensure schema %q: %w", src.Name, err)
		}
		created = append(created, t.Name)
	}
	return created, nil
}

// SchemaSQL renders the DDL for every table of src in creation order.
func SchemaSQL(d Dialect, src *schema.Source) ([]string, error) {
	var out []string
	for _, t := range src.CreationOrder() {
		stmts, err := d.CreateTableSQL(t.Definition())
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", t.Name, err)
		}
		out = append(out, stmts...)
	}
	return out, nil
}
