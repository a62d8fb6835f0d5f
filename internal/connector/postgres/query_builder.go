package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/faucetdb/sluice/internal/command"
	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/model"
)

// BuildSelect constructs a SELECT query from the given request using
// PostgreSQL $N parameter placeholders and LIMIT/OFFSET paging.
func (c *PostgresConnector) BuildSelect(_ context.Context, req connector.SelectRequest) (*command.Command, error) {
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
	b.WriteString(" AS ")
	b.WriteString(c.QuoteIdentifier(req.Table))
	connector.WriteJoins(&b, c, req.Table, req.Joins)
	connector.WriteWhere(&b, c, cmd, req.Table, qualify, req.Where)
	connector.WriteOrder(&b, c, req.Table, qualify, req.Order)

	if req.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(cmd.Bind(c.Placeholder, command.In("Limit", "int64", int64(req.Limit))))
	}
	if req.Offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(cmd.Bind(c.Placeholder, command.In("Offset", "int64", int64(req.Offset))))
	}

	cmd.Text = b.String()
	return cmd, nil
}

// BuildInsert constructs a single-row INSERT; a requested identity column is
// returned through RETURNING.
func (c *PostgresConnector) BuildInsert(_ context.Context, req connector.InsertRequest) (*command.Command, error) {
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

// BuildUpdate constructs an UPDATE query with parameterized SET values.
func (c *PostgresConnector) BuildUpdate(_ context.Context, req connector.UpdateRequest) (*command.Command, error) {
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

// BuildDelete constructs a DELETE query with parameterized WHERE conditions.
func (c *PostgresConnector) BuildDelete(_ context.Context, req connector.DeleteRequest) (*command.Command, error) {
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

// BuildCount constructs a SELECT COUNT(*) query with optional filtering.
func (c *PostgresConnector) BuildCount(_ context.Context, req connector.CountRequest) (*command.Command, error) {
	if err := connector.CheckTable(req.Table); err != nil {
		return nil, err
	}

	cmd := command.New("", command.Text)
	var b strings.Builder

	b.WriteString("SELECT COUNT(*) AS ")
	b.WriteString(c.QuoteIdentifier("Total"))
	b.WriteString(" FROM ")
	b.WriteString(c.TableName(req.Table))
	b.WriteString(" AS ")
	b.WriteString(c.QuoteIdentifier(req.Table))
	connector.WriteJoins(&b, c, req.Table, req.Joins)
	connector.WriteWhere(&b, c, cmd, req.Table, len(req.Joins) > 0, req.Where)

	cmd.Text = b.String()
	return cmd, nil
}

// BuildProcedureCall invokes a procedure or set-returning function with
// SELECT * FROM schema.name($1, ...).
func (c *PostgresConnector) BuildProcedureCall(_ context.Context, cmd *command.Command) (string, error) {
	if cmd.Text == "" {
		return "", fmt.Errorf("procedure name is required")
	}
	return fmt.Sprintf("SELECT * FROM %s(%s)",
		c.TableName(cmd.Text),
		strings.Join(connector.ProcedureArgs(c, cmd), ", "),
	), nil
}

// CreateTable creates a table and its indexes.
func (c *PostgresConnector) CreateTable(ctx context.Context, def model.TableSchema) error {
	stmts, err := c.CreateTableSQL(def)
	if err != nil {
		return err
	}
	return connector.ExecStatements(ctx, c.db, fmt.Sprintf("create table %q", def.Name), stmts)
}

// CreateTableSQL renders CREATE TABLE, its indexes and its triggers. Trigger
// definitions are passed through as written.
func (c *PostgresConnector) CreateTableSQL(def model.TableSchema) ([]string, error) {
	table, err := connector.CreateTableStatement(c, def, goTypeToPostgres)
	if err != nil {
		return nil, err
	}
	stmts := []string{table}
	for _, idx := range def.Indexes {
		stmts = append(stmts, connector.CreateIndexSQL(c, def.Name, idx))
	}
	for _, tr := range def.Triggers {
		stmts = append(stmts, tr.Definition)
	}
	return stmts, nil
}

// goTypeToPostgres maps a model.Column's GoType to a PostgreSQL type.
func goTypeToPostgres(col model.Column) string {
	if col.IsAutoIncrement {
		if col.GoType == "int64" {
			return "BIGSERIAL"
		}
		return "SERIAL"
	}
	if col.Type != "" {
		return connector.TypeWithLength(col.Type, col.MaxLength)
	}

	switch col.GoType {
	case "int", "int32":
		return "INTEGER"
	case "int64":
		return "BIGINT"
	case "float32":
		return "REAL"
	case "float64":
		return "DOUBLE PRECISION"
	case "string":
		if col.MaxLength != nil {
			return fmt.Sprintf("VARCHAR(%d)", *col.MaxLength)
		}
		return "TEXT"
	case "bool":
		return "BOOLEAN"
	case "time.Time":
		return "TIMESTAMPTZ"
	case "[]byte":
		return "BYTEA"
	case "uuid":
		return "UUID"
	default:
		return "TEXT"
	}
}
