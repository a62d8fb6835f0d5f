package mysql

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/faucetdb/sluice/internal/command"
	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/model"
)

// newTestConnector creates a MySQLConnector with a known schema name
// and no database connection, suitable for testing query building methods.
func newTestConnector() *MySQLConnector {
	return &MySQLConnector{schemaName: "shop"}
}

func TestBuildCommands(t *testing.T) {
	c := newTestConnector()
	ctx := context.Background()
	id := command.In("id", "int64", int64(4))
	name := command.In("name", "string", "ann")
	ret := command.Out("id", "int64")

	tests := []struct {
		name     string
		build    func() (*command.Command, error)
		wantSQL  string
		wantArgs []any
	}{
		{
			name: "paged select",
			build: func() (*command.Command, error) {
				return c.BuildSelect(ctx, connector.SelectRequest{Table: "users", Order: []string{"id"}, Limit: 25, Offset: 50})
			},
			wantSQL:  "SELECT * FROM `shop`.`users` ORDER BY `id` LIMIT ? OFFSET ?",
			wantArgs: []any{int64(25), int64(50)},
		},
		{
			name: "offset only",
			build: func() (*command.Command, error) {
				return c.BuildSelect(ctx, connector.SelectRequest{Table: "users", Offset: 5})
			},
			wantSQL:  "SELECT * FROM `shop`.`users` LIMIT 18446744073709551615 OFFSET ?",
			wantArgs: []any{int64(5)},
		},
		{
			name: "insert keeps identity as output",
			build: func() (*command.Command, error) {
				return c.BuildInsert(ctx, connector.InsertRequest{
					Table: "users", Values: []connector.ColumnValue{{Column: "name", Parameter: name}}, Returning: &ret,
				})
			},
			wantSQL:  "INSERT INTO `shop`.`users` (`name`) VALUES (?)",
			wantArgs: []any{"ann"},
		},
		{
			name: "insert defaults",
			build: func() (*command.Command, error) {
				return c.BuildInsert(ctx, connector.InsertRequest{Table: "users"})
			},
			wantSQL: "INSERT INTO `shop`.`users` () VALUES ()",
		},
		{
			name: "update",
			build: func() (*command.Command, error) {
				return c.BuildUpdate(ctx, connector.UpdateRequest{
					Table: "users", Values: []connector.ColumnValue{{Column: "name", Parameter: name}},
					Where: []connector.Condition{{Column: "id", Parameter: id}},
				})
			},
			wantSQL:  "UPDATE `shop`.`users` SET `name` = ? WHERE `id` = ?",
			wantArgs: []any{"ann", int64(4)},
		},
		{
			name: "delete",
			build: func() (*command.Command, error) {
				return c.BuildDelete(ctx, connector.DeleteRequest{Table: "users", Where: []connector.Condition{{Column: "id", Parameter: id}}})
			},
			wantSQL:  "DELETE FROM `shop`.`users` WHERE `id` = ?",
			wantArgs: []any{int64(4)},
		},
		{
			name: "count",
			build: func() (*command.Command, error) {
				return c.BuildCount(ctx, connector.CountRequest{Table: "users"})
			},
			wantSQL: "SELECT COUNT(*) AS `Total` FROM `shop`.`users`",
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
			args, _ := cmd.Args(false)
			if len(args) != len(tt.wantArgs) || (len(args) > 0 && !reflect.DeepEqual(args, tt.wantArgs)) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestInsertOutputParameter(t *testing.T) {
	ret := command.Out("id", "int64")
	cmd, err := newTestConnector().BuildInsert(context.Background(), connector.InsertRequest{Table: "users", Returning: &ret})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outs := cmd.Outputs()
	if len(outs) != 1 || outs[0].Name != "id" {
		t.Errorf("outputs = %+v, want [id]", outs)
	}
}

func TestBuildProcedureCall(t *testing.T) {
	cmd := command.New("restock", command.StoredProcedure)
	cmd.AddParameter(command.In("sku", "string", "A1"))
	got, err := newTestConnector().BuildProcedureCall(context.Background(), cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "CALL `shop`.`restock`(?)"; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCreateTableSQL(t *testing.T) {
	def := model.TableSchema{
		Name: "users",
		Columns: []model.Column{
			{Name: "id", GoType: "int32", IsPrimaryKey: true, IsAutoIncrement: true},
			{Name: "email", GoType: "string", IsUnique: true},
			{Name: "bio", GoType: "string", Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}
	stmts, err := newTestConnector().CreateTableSQL(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"`id` INT AUTO_INCREMENT NOT NULL",
		"`email` VARCHAR(255) NOT NULL UNIQUE",
		"`bio` TEXT,",
		"PRIMARY KEY (`id`)",
	} {
		if !strings.Contains(stmts[0], want) {
			t.Errorf("CREATE TABLE missing %q:\n%s", want, stmts[0])
		}
	}
}
