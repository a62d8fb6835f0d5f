package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/faucetdb/sluice/internal/command"
	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/model"
)

// unboundedLimit is the documented MySQL idiom for "all remaining rows".
const unboundedLimit = "18446744073709551615"

// BuildSelect constructs a SELECT query using ? placeholders and LIMIT/OFFSET
// paging.
func (c *MySQLConnector) BuildSelect(_ context.Context, req connector.SelectRequest) (*command.Command, error) {
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
	if qualify {
		b.WriteString(" AS ")
		b.WriteString(c.QuoteIdentifier(req.Table))
	}
	connector.WriteJoins(&b, c, req.Table, req.Joins)
	connector.WriteWhere(&b, c, cmd, req.Table, qualify, req.Where)
	connector.WriteOrder(&b, c, req.Table, qualify, req.Order)

	switch {
	case req.Limit > 0:
		b.WriteString(" LIMIT ")
		b.WriteString(cmd.Bind(c.Placeholder, command.In("Limit", "int64", int64(req.Limit))))
	case req.Offset > 0:
		b.WriteString(" LIMIT " + unboundedLimit)
	}
	if req.Offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(cmd.Bind(c.Placeholder, command.In("Offset", "int64", int64(req.Offset))))
	}

	cmd.Text = b.String()
	return cmd, nil
}

// BuildInsert constructs a single-row INSERT. MySQL has no RETURNING; a
// requested identity is carried as an output parameter and filled from
// LastInsertId by the executor.
func (c *MySQLConnector) BuildInsert(_ context.Context, req connector.InsertRequest) (*command.Command, error) {
	if err := connector.CheckTable(req.Table); err != nil {
		return nil, err
	}

	cmd := command.New("", command.Text)
	var b strings.Builder

	b.WriteString("INSERT INTO ")
	b.WriteString(c.TableName(req.Table))
	if len(req.Values) == 0 {
		b.WriteString(" () VALUES ()")
	} else {
		connector.WriteInsertColumns(&b, c, cmd, req.Values, "")
	}
	if req.Returning != nil {
		cmd.AddParameter(*req.Returning)
	}

	cmd.Text = b.String()
	return cmd, nil
}

// BuildUpdate constructs an UPDATE query with parameterized SET values.
func (c *MySQLConnector) BuildUpdate(_ context.Context, req connector.UpdateRequest) (*command.Command, error) {
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
func (c *MySQLConnector) BuildDelete(_ context.Context, req connector.DeleteRequest) (*command.Command, error) {
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
func (c *MySQLConnector) BuildCount(_ context.Context, req connector.CountRequest) (*command.Command, error) {
	if err := connector.CheckTable(req.Table); err != nil {
		return nil, err
	}

	cmd := command.New("", command.Text)
	qualify := len(req.Joins) > 0
	var b strings.Builder

	b.WriteString("SELECT COUNT(*) AS ")
	b.WriteString(c.QuoteIdentifier("Total"))
	b.WriteString(" FROM ")
	b.WriteString(c.TableName(req.Table))
	if qualify {
		b.WriteString(" AS ")
		b.WriteString(c.QuoteIdentifier(req.Table))
	}
	connector.WriteJoins(&b, c, req.Table, req.Joins)
	connector.WriteWhere(&b, c, cmd, req.Table, qualify, req.Where)

	cmd.Text = b.String()
	return cmd, nil
}

// BuildProcedureCall invokes a stored procedure using CALL notation.
func (c *MySQLConnector) BuildProcedureCall(_ context.Context, cmd *command.Command) (string, error) {
	if cmd.Text == "" {
		return "", fmt.Errorf("procedure name is required")
	}
	return fmt.Sprintf("CALL %s(%s)",
		c.TableName(cmd.Text),
		strings.Join(connector.ProcedureArgs(c, cmd), ", "),
	), nil
}

// CreateTable creates a table and its indexes.
func (c *MySQLConnector) CreateTable(ctx context.Context, def model.TableSchema) error {
	stmts, err := c.CreateTableSQL(def)
	if err != nil {
		return err
	}
	return connector.ExecStatements(ctx, c.db, fmt.Sprintf("create table %q", def.Name), stmts)
}

// CreateTableSQL renders CREATE TABLE, its indexes and its triggers.
func (c *MySQLConnector) CreateTableSQL(def model.TableSchema) ([]string, error) {
	table, err := connector.CreateTableStatement(c, def, goTypeToMySQL)
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

// goTypeToMySQL maps a model.Column's GoType to a MySQL column type.
func goTypeToMySQL(col model.Column) string {
	if col.IsAutoIncrement {
		if col.GoType == "int64" {
			return "BIGINT AUTO_INCREMENT"
		}
		return "INT AUTO_INCREMENT"
	}
	if col.Type != "" {
		return connector.TypeWithLength(col.Type, col.MaxLength)
	}

	switch col.GoType {
	case "int", "int32":
		return "INT"
	case "int64":
		return "BIGINT"
	case "float32":
		return "FLOAT"
	case "float64":
		return "DOUBLE"
	case "string":
		if col.MaxLength != nil {
			return fmt.Sprintf("VARCHAR(%d)", *col.MaxLength)
		}
		if col.IsUnique || col.IsPrimaryKey {
			// TEXT columns cannot carry a unique key without a prefix length
			return "VARCHAR(255)"
		}
		return "TEXT"
	case "bool":
		return "TINYINT(1)"
	case "time.Time":
		return "DATETIME(6)"
	case "[]byte":
		return "BLOB"
	case "uuid":
		return "CHAR(36)"
	default:
		return "TEXT"
	}
}
