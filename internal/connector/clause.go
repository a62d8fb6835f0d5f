package connector

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/sluice/internal/command"
	"github.com/faucetdb/sluice/internal/model"
)

// QualifiedColumn renders table.column with both parts quoted. An empty table
// renders the bare column.
func QualifiedColumn(d Dialect, table, column string) string {
	if table == "" {
		return d.QuoteIdentifier(column)
	}
	return d.QuoteIdentifier(table) + "." + d.QuoteIdentifier(column)
}

// WriteSelectList writes the projection of a select. Columns are qualified
// with the base table and aliased to their bare name when the select joins.
func WriteSelectList(b *strings.Builder, d Dialect, req SelectRequest) {
	if len(req.Fields) == 0 {
		if len(req.Joins) > 0 {
			b.WriteString(d.QuoteIdentifier(req.Table))
			b.WriteString(".*")
		} else {
			b.WriteString("*")
		}
		return
	}
	for i, f := range req.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		if len(req.Joins) > 0 {
			b.WriteString(QualifiedColumn(d, req.Table, f))
			b.WriteString(" AS ")
		}
		b.WriteString(d.QuoteIdentifier(f))
	}
}

// WriteJoins writes one INNER JOIN per entry.
func WriteJoins(b *strings.Builder, d Dialect, base string, joins []Join) {
	for _, j := range joins {
		b.WriteString(" INNER JOIN ")
		b.WriteString(d.TableName(j.Table))
		b.WriteString(" ON ")
		b.WriteString(QualifiedColumn(d, j.Table, j.Column))
		b.WriteString(" = ")
		b.WriteString(QualifiedColumn(d, base, j.ForeignColumn))
	}
}

// WriteWhere binds every condition into cmd and writes the WHERE clause.
// Nil parameter values render as IS NULL and bind nothing.
func WriteWhere(b *strings.Builder, d Dialect, cmd *command.Command, base string, qualify bool, where []Condition) {
	if len(where) == 0 {
		return
	}
	b.WriteString(" WHERE ")
	for i, cond := range where {
		if i > 0 {
			b.WriteString(" AND ")
		}
		table := cond.Table
		if table == "" && qualify {
			table = base
		}
		b.WriteString(QualifiedColumn(d, table, cond.Column))
		if cond.Parameter.Value == nil {
			b.WriteString(" IS NULL")
			continue
		}
		b.WriteString(" = ")
		b.WriteString(cmd.Bind(d.Placeholder, cond.Parameter))
	}
}

// WriteOrder writes ORDER BY for the given columns of the base table.
func WriteOrder(b *strings.Builder, d Dialect, base string, qualify bool, order []string) {
	if len(order) == 0 {
		return
	}
	b.WriteString(" ORDER BY ")
	for i, col := range order {
		if i > 0 {
			b.WriteString(", ")
		}
		if qualify {
			b.WriteString(QualifiedColumn(d, base, col))
		} else {
			b.WriteString(d.QuoteIdentifier(col))
		}
	}
}

// WriteAssignments binds values and writes "col = ?, col2 = ?".
func WriteAssignments(b *strings.Builder, d Dialect, cmd *command.Command, values []ColumnValue) {
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.QuoteIdentifier(v.Column))
		b.WriteString(" = ")
		b.WriteString(cmd.Bind(d.Placeholder, v.Parameter))
	}
}

// WriteInsertColumns writes " (a, b) VALUES (?, ?)" binding each value.
// The caller handles the no-values case.
func WriteInsertColumns(b *strings.Builder, d Dialect, cmd *command.Command, values []ColumnValue, between string) {
	cols := make([]string, len(values))
	for i, v := range values {
		cols[i] = d.QuoteIdentifier(v.Column)
	}
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(")")
	b.WriteString(between)
	b.WriteString(" VALUES (")
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(cmd.Bind(d.Placeholder, v.Parameter))
	}
	b.WriteString(")")
}

// CreateIndexSQL renders CREATE [UNIQUE] INDEX for one index of table.
func CreateIndexSQL(d Dialect, table string, idx model.Index) string {
	cols := make([]string, len(idx.Columns))
	for i, col := range idx.Columns {
		cols[i] = d.QuoteIdentifier(col)
	}
	kw := "CREATE INDEX "
	if idx.IsUnique {
		kw = "CREATE UNIQUE INDEX "
	}
	return kw + d.QuoteIdentifier(idx.Name) + " ON " + d.TableName(table) + " (" + strings.Join(cols, ", ") + ")"
}

// CheckTable returns an error when a request names no table.
func CheckTable(table string) error {
	if table == "" {
		return fmt.Errorf("table name is required")
	}
	return nil
}

// CheckWhere refuses statements that would touch every row of a table.
func CheckWhere(op, table string, where []Condition) error {
	if len(where) == 0 {
		return fmt.Errorf("%s %q: where conditions required (refusing to %s all rows)", op, table, op)
	}
	return nil
}

// ExecStatements runs DDL statements in order, stopping at the first failure.
func ExecStatements(ctx context.Context, db *sqlx.DB, what string, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
	}
	return nil
}

// ProcedureArgs renders the input placeholders of a procedure command in
// parameter order.
func ProcedureArgs(d Dialect, cmd *command.Command) []string {
	inputs := cmd.Inputs()
	out := make([]string, len(inputs))
	for i, p := range inputs {
		out[i] = d.Placeholder(p.Name, i+1)
	}
	return out
}
