package mssql

import (
	"context"
	"database/sql"
	"reflect"
	"strings"
	"testing"

	"github.com/faucetdb/sluice/internal/command"
	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/model"
)

// newTestConnector creates a MSSQLConnector with a known schema name
// and no database connection, suitable for testing query building methods.
func newTestConnector() *MSSQLConnector {
	return &MSSQLConnector{schemaName: "dbo"}
}

func TestBuildCommands(t *testing.T) {
	c := newTestConnector()
	ctx := context.Background()
	name := command.In("Name", "string", "ann")
	ret := command.Out("ID", "int64")

	tests := []struct {
		name     string
		build    func() (*command.Command, error)
		wantSQL  string
		wantArgs []any
	}{
		{
			name: "paged select without order",
			build: func() (*command.Command, error) {
				return c.BuildSelect(ctx, connector.SelectRequest{Table: "Users", Limit: 25, Offset: 50})
			},
			wantSQL:  "SELECT * FROM [dbo].[Users] AS [Users] ORDER BY (SELECT NULL) OFFSET @Offset ROWS FETCH NEXT @Limit ROWS ONLY",
			wantArgs: []any{sql.Named("Offset", int64(50)), sql.Named("Limit", int64(25))},
		},
		{
			name: "filtered select",
			build: func() (*command.Command, error) {
				return c.BuildSelect(ctx, connector.SelectRequest{
					Table: "Users", Fields: []string{"ID"},
					Where: []connector.Condition{{Column: "Name", Parameter: name}, {Column: "Name", Parameter: name}},
				})
			},
			wantSQL:  "SELECT [ID] FROM [dbo].[Users] AS [Users] WHERE [Name] = @Name AND [Name] = @Name1",
			wantArgs: []any{sql.Named("Name", "ann"), sql.Named("Name1", "ann")},
		},
		{
			name: "insert with output",
			build: func() (*command.Command, error) {
				return c.BuildInsert(ctx, connector.InsertRequest{
					Table: "Users", Values: []connector.ColumnValue{{Column: "Name", Parameter: name}}, Returning: &ret,
				})
			},
			wantSQL:  "INSERT INTO [dbo].[Users] ([Name]) OUTPUT INSERTED.[ID] VALUES (@Name)",
			wantArgs: []any{sql.Named("Name", "ann")},
		},
		{
			name: "insert defaults with output",
			build: func() (*command.Command, error) {
				return c.BuildInsert(ctx, connector.InsertRequest{Table: "Users", Returning: &ret})
			},
			wantSQL: "INSERT INTO [dbo].[Users] OUTPUT INSERTED.[ID] DEFAULT VALUES",
		},
		{
			name: "count",
			build: func() (*command.Command, error) {
				return c.BuildCount(ctx, connector.CountRequest{Table: "Users"})
			},
			wantSQL: "SELECT COUNT(*) AS [Total] FROM [dbo].[Users] AS [Users]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := tt.build()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cmd.Text != tt.wantSQL {
				t.Errorf("SQL mismatch\n  got:  %s\n  want: %s", cmd.Text, tt.wantSQL)
			}
			args, _ := cmd.Args(true)
			if len(args) != len(tt.wantArgs) || (len(args) > 0 && !reflect.DeepEqual(args, tt.wantArgs)) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestBuildProcedureCall(t *testing.T) {
	cmd := command.New("Restock", command.StoredProcedure)
	cmd.AddParameter(command.In("Sku", "string", "A1"))
	cmd.AddParameter(command.In("Qty", "int32", int32(3)))

	got, err := newTestConnector().BuildProcedureCall(context.Background(), cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "EXEC [dbo].[Restock] @Sku = @Sku, @Qty = @Qty"; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCreateTableSQL(t *testing.T) {
	def := model.TableSchema{
		Name: "Users",
		Columns: []model.Column{
			{Name: "ID", GoType: "int64", IsPrimaryKey: true, IsAutoIncrement: true},
			{Name: "Email", GoType: "string", IsUnique: true},
			{Name: "Token", GoType: "uuid", Nullable: true},
		},
		PrimaryKey: []string{"ID"},
	}
	stmts, err := newTestConnector().CreateTableSQL(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"[ID] BIGINT IDENTITY(1,1) NOT NULL",
		"[Email] NVARCHAR(450) NOT NULL UNIQUE",
		"[Token] UNIQUEIDENTIFIER,",
	} {
		if !strings.Contains(stmts[0], want) {
			t.Errorf("CREATE TABLE missing %q:\n%s", want, stmts[0])
		}
	}
}
