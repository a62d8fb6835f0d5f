package mssql

import (
	"context"
	"fmt"
	"strings"

	"github.com/faucetdb/sluice/internal/command"
	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/model"
)

// BuildSelect constructs a SELECT query. Paging uses OFFSET/FETCH NEXT, which
// SQL Server only accepts after an ORDER BY.
func (c *MSSQLConnector) BuildSelect(_ context.Context, req connector.SelectRequest) (*command.Command, error) {
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

	if req.Limit > 0 || req.Offset > 0 {
		if len(req.Order) == 0 {
			b.WriteString(" ORDER BY (SELECT NULL)")
		}
		b.WriteString(" OFFSET ")
		b.WriteString(cmd.Bind(c.Placeholder, command.In("Offset", "int64", int64(req.Offset))))
		b.WriteString(" ROWS")
		if req.Limit > 0 {
			b.WriteString(" FETCH NEXT ")
			b.WriteString(cmd.Bind(c.Placeholder, command.In("Limit", "int64", int64(req.Limit))))
			b.WriteString(" ROWS ONLY")
		}
	}

	cmd.Text = b.String()
	return cmd, nil
}

// BuildInsert constructs a single-row INSERT; a requested identity column is
// returned with OUTPUT INSERTED.
func (c *MSSQLConnector) BuildInsert(_ context.Context, req connector.InsertRequest) (*command.Command, error) {
	if err := connector.CheckTable(req.Table); err != nil {
		return nil, err
	}

	cmd := command.New("", command.Text)
	var b strings.Builder

	output := ""
	if req.Returning != nil {
		output = " OUTPUT INSERTED." + c.QuoteIdentifier(req.Returning.Name)
	}

	b.WriteString("INSERT INTO ")
	b.WriteString(c.TableName(req.Table))
	if len(req.Values) == 0 {
		b.WriteString(output)
		b.WriteString(" DEFAULT VALUES")
	} else {
		connector.WriteInsertColumns(&b, c, cmd, req.Values, output)
	}
	if req.Returning != nil {
		cmd.AddParameter(*req.Returning)
	}

	cmd.Text = b.String()
	return cmd, nil
}

// BuildUpdate constructs an UPDATE query with parameterized SET values.
func (c *MSSQLConnector) BuildUpdate(_ context.Context, req connector.UpdateRequest) (*command.Command, error) {
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
func (c *MSSQLConnector) BuildDelete(_ context.Context, req connector.DeleteRequest) (*command.Command, error) {
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
func (c *MSSQLConnector) BuildCount(_ context.Context, req connector.CountRequest) (*command.Command, error) {
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

// BuildProcedureCall renders EXEC schema.name @p = @p, ... binding each input
// parameter to the procedure argument of the same name.
func (c *MSSQLConnector) BuildProcedureCall(_ context.Context, cmd *command.Command) (string, error) {
	if cmd.Text == "" {
		return "", fmt.Errorf("procedure name is required")
	}
	inputs := cmd.Inputs()
	assigns := make([]string, len(inputs))
	for i, p := range inputs {
		assigns[i] = "@" + p.Name + " = " + c.Placeholder(p.Name, i+1)
	}
	stmt := "EXEC " + c.TableName(cmd.Text)
	if len(assigns) > 0 {
		stmt += " " + strings.Join(assigns, ", ")
	}
	return stmt, nil
}

// CreateTable creates a table and its indexes.
func (c *MSSQLConnector) CreateTable(ctx context.Context, def model.TableSchema) error {
	stmts, err := c.CreateTableSQL(def)
	if err != nil {
		return err
	}
	return connector.ExecStatements(ctx, c.db, fmt.Sprintf("create table %q", def.Name), stmts)
}

// CreateTableSQL renders CREATE TABLE, its indexes and its triggers.
func (c *MSSQLConnector) CreateTableSQL(def model.TableSchema) ([]string, error) {
	table, err := connector.CreateTableStatement(c, def, goTypeToMSSQL)
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

// goTypeToMSSQL maps a model.Column's GoType to a SQL Server column type.
func goTypeToMSSQL(col model.Column) string {
	if col.IsAutoIncrement {
		if col.GoType == "int64" {
			return "BIGINT IDENTITY(1,1)"
		}
		return "INT IDENTITY(1,1)"
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
		return "REAL"
	case "float64":
		return "FLOAT"
	case "string":
		if col.MaxLength != nil {
			return fmt.Sprintf("NVARCHAR(%d)", *col.MaxLength)
		}
		if col.IsUnique || col.IsPrimaryKey {
			// NVARCHAR(MAX) cannot be part of an index
			return "NVARCHAR(450)"
		}
		return "NVARCHAR(MAX)"
	case "bool":
		return "BIT"
	case "time.Time":
		return "DATETIME2"
	case "[]byte":
		return "VARBINARY(MAX)"
	case "uuid":
		return "UNIQUEIDENTIFIER"
	default:
		return "NVARCHAR(MAX)"
	}
}
