package sqlite

import (
	"context"
	"fmt"
	"strings"

	rsql "github.com/rqlite/sql"

	"github.com/faucetdb/sluice/internal/command"
	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/model"
)

// BuildSelect constructs a SELECT with optional joins, equality filters,
// ordering and LIMIT/OFFSET paging.
func (c *SQLiteConnector) BuildSelect(_ context.Context, req connector.SelectRequest) (*command.Command, error) {
	if err := connector.CheckTable(req.Table); err != nil {
		return nil, err
	}

	cmd := command.New("", command.Text)
	qualify := len(req.Joins) > 0
	var b strings.Builder

	b.WriteString("SELECT ")
	connector.WriteSelectList(&b, c, req)
	b.WriteString(" FROM ")
	b.WriteString(c.TableName(req.Table))
	connector.WriteJoins(&b, c, req.Table, req.Joins)
	connector.WriteWhere(&b, c, cmd, req.Table, qualify, req.Where)
	connector.WriteOrder(&b, c, req.Table, qualify, req.Order)

	// SQLite only accepts OFFSET after a LIMIT; -1 means unbounded.
	if req.Limit > 0 || req.Offset > 0 {
		limit := int64(-1)
		if req.Limit > 0 {
			limit = int64(req.Limit)
		}
		b.WriteString(" LIMIT ")
		b.WriteString(cmd.Bind(c.Placeholder, command.In("Limit", "int64", limit)))
	}
	if req.Offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(cmd.Bind(c.Placeholder, command.In("Offset", "int64", int64(req.Offset))))
	}

	cmd.Text = b.String()
	return cmd, nil
}

// BuildInsert constructs a single-row INSERT. A requested identity column is
// handed back through RETURNING.
func (c *SQLiteConnector) BuildInsert(_ context.Context, req connector.InsertRequest) (*command.Command, error) {
	if err := connector.CheckTable(req.Table); err != nil {
		return nil, err
	}

	cmd := command.New("", command.Text)
	var b strings.Builder

	b.WriteString("INSERT INTO ")
	b.WriteString(c.TableName(req.Table))
	if len(req.Values) == 0 {
		b.WriteString(" DEFAULT VALUES")
	} else {
		connector.WriteInsertColumns(&b, c, cmd, req.Values, "")
	}

	if req.Returning != nil {
		b.WriteString(" RETURNING ")
		b.WriteString(c.QuoteIdentifier(req.Returning.Name))
		cmd.AddParameter(*req.Returning)
	}

	cmd.Text = b.String()
	return cmd, nil
}

// BuildUpdate constructs an UPDATE with parameterized SET values.
func (c *SQLiteConnector) BuildUpdate(_ context.Context, req connector.UpdateRequest) (*command.Command, error) {
	if err := connector.CheckTable(req.Table); err != nil {
		return nil, err
	}
	if len(req.Values) == 0 {
		return nil, fmt.Errorf("at least one field to update is required")
	}
	if err := connector.CheckWhere("update", req.Table, req.Where); err != nil {
		return nil, err
	}

	cmd := command.New("", command.Text)
	var b strings.Builder

	b.WriteString("UPDATE ")
	b.WriteString(c.TableName(req.Table))
	b.WriteString(" SET ")
	connector.WriteAssignments(&b, c, cmd, req.Values)
	connector.WriteWhere(&b, c, cmd, req.Table, false, req.Where)

	cmd.Text = b.String()
	return cmd, nil
}

// BuildDelete constructs a DELETE with parameterized WHERE conditions.
func (c *SQLiteConnector) BuildDelete(_ context.Context, req connector.DeleteRequest) (*command.Command, error) {
	if err := connector.CheckTable(req.Table); err != nil {
		return nil, err
	}
	if err := connector.CheckWhere("delete", req.Table, req.Where); err != nil {
		return nil, err
	}

	cmd := command.New("", command.Text)
	var b strings.Builder

	b.WriteString("DELETE FROM ")
	b.WriteString(c.TableName(req.Table))
	connector.WriteWhere(&b, c, cmd, req.Table, false, req.Where)

	cmd.Text = b.String()
	return cmd, nil
}

// BuildCount constructs SELECT COUNT(*) AS "Total" with optional filtering.
func (c *SQLiteConnector) BuildCount(_ context.Context, req connector.CountRequest) (*command.Command, error) {
	if err := connector.CheckTable(req.Table); err != nil {
		return nil, err
	}

	cmd := command.New("", command.Text)
	var b strings.Builder

	b.WriteString("SELECT COUNT(*) AS ")
	b.WriteString(c.QuoteIdentifier("Total"))
	b.WriteString(" FROM ")
	b.WriteString(c.TableName(req.Table))
	connector.WriteJoins(&b, c, req.Table, req.Joins)
	connector.WriteWhere(&b, c, cmd, req.Table, len(req.Joins) > 0, req.Where)

	cmd.Text = b.String()
	return cmd, nil
}

// BuildProcedureCall is not supported for SQLite (no stored procedures).
func (c *SQLiteConnector) BuildProcedureCall(_ context.Context, cmd *command.Command) (string, error) {
	return "", fmt.Errorf("SQLite does not support stored procedures (attempted to call %q)", cmd.Text)
}

// CreateTable creates a table with its indexes and triggers.
func (c *SQLiteConnector) CreateTable(ctx context.Context, def model.TableSchema) error {
	stmts, err := c.CreateTableSQL(def)
	if err != nil {
		return err
	}
	return connector.ExecStatements(ctx, c.db, fmt.Sprintf("create table %q", def.Name), stmts)
}

// CreateTableSQL renders CREATE TABLE followed by one CREATE INDEX per index
// and the table's trigger definitions. Triggers must be complete CREATE
// TRIGGER statements; they are parsed before use.
func (c *SQLiteConnector) CreateTableSQL(def model.TableSchema) ([]string, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("table name is required")
	}

	var b strings.Builder

	b.WriteString("CREATE TABLE ")
	b.WriteString(c.TableName(def.Name))
	b.WriteString(" (\n")

	hasAutoIncrement := false
	for i, col := range def.Columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("  ")
		b.WriteString(c.QuoteIdentifier(col.Name))
		b.WriteString(" ")

		if col.IsAutoIncrement {
			hasAutoIncrement = true
			b.WriteString("INTEGER PRIMARY KEY AUTOINCREMENT")
			continue
		}
		b.WriteString(goTypeToSQLite(col))
		if !col.Nullable {
			b.WriteString(" NOT NULL")
		}
		if col.IsUnique && !col.IsPrimaryKey {
			b.WriteString(" UNIQUE")
		}
		if col.Default != nil {
			b.WriteString(" DEFAULT ")
			b.WriteString(*col.Default)
		}
	}

	if len(def.PrimaryKey) > 0 && !hasAutoIncrement {
		b.WriteString(",\n  PRIMARY KEY (")
		quotedPKs := make([]string, len(def.PrimaryKey))
		for i, pk := range def.PrimaryKey {
			quotedPKs[i] = c.QuoteIdentifier(pk)
		}
		b.WriteString(strings.Join(quotedPKs, ", "))
		b.WriteString(")")
	}

	for _, fk := range def.ForeignKeys {
		b.WriteString(",\n  CONSTRAINT ")
		b.WriteString(c.QuoteIdentifier(fk.Name))
		b.WriteString(" FOREIGN KEY (")
		b.WriteString(c.QuoteIdentifier(fk.ColumnName))
		b.WriteString(") REFERENCES ")
		b.WriteString(c.QuoteIdentifier(fk.ReferencedTable))
		b.WriteString(" (")
		b.WriteString(c.QuoteIdentifier(fk.ReferencedColumn))
		b.WriteString(")")
		if fk.OnDelete != "" {
			b.WriteString(" ON DELETE ")
			b.WriteString(fk.OnDelete)
		}
		if fk.OnUpdate != "" {
			b.WriteString(" ON UPDATE ")
			b.WriteString(fk.OnUpdate)
		}
	}

	b.WriteString("\n)")

	stmts := []string{b.String()}
	for _, idx := range def.Indexes {
		stmts = append(stmts, connector.CreateIndexSQL(c, def.Name, idx))
	}
	for _, tr := range def.Triggers {
		if err := validateTrigger(tr); err != nil {
			return nil, err
		}
		stmts = append(stmts, tr.Definition)
	}
	return stmts, nil
}

// validateTrigger parses a trigger definition with the SQLite grammar so a
// malformed trigger fails before the table is created.
func validateTrigger(tr model.Trigger) error {
	stmt, err := rsql.NewParser(strings.NewReader(tr.Definition)).ParseStatement()
	if err != nil {
		return fmt.Errorf("trigger %q: %w", tr.Name, err)
	}
	if !strings.HasPrefix(strings.ToUpper(stmt.String()), "CREATE TRIGGER") {
		return fmt.Errorf("trigger %q: definition is not a CREATE TRIGGER statement", tr.Name)
	}
	return nil
}

// goTypeToSQLite maps a model.Column's GoType to a SQLite column type.
func goTypeToSQLite(col model.Column) string {
	if col.Type != "" {
		return col.Type
	}

	switch col.GoType {
	case "int", "int32", "int64":
		return "INTEGER"
	case "float32", "float64":
		return "REAL"
	case "bool":
		return "INTEGER" // SQLite stores booleans as 0/1
	case "[]byte":
		return "BLOB"
	case "time.Time":
		return "DATETIME" // both drivers parse DATETIME columns into time.Time
	default:
		return "TEXT"
	}
}
