package sqlite

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/faucetdb/sluice/internal/command"
	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/model"
)

// newTestConnector creates a SQLiteConnector with no database connection,
// suitable for testing query building methods.
func newTestConnector() *SQLiteConnector {
	return &SQLiteConnector{driver: "sqlite"}
}

func in(name string, v any) command.Parameter { return command.In(name, "string", v) }

func checkCommand(t *testing.T, cmd *command.Command, err error, wantSQL string, wantArgs []any, wantErr bool) {
	t.Helper()
	if wantErr {
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		return
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Text != wantSQL {
		t.Errorf("SQL mismatch\n  got:  %s\n  want: %s", cmd.Text, wantSQL)
	}
	args, err := cmd.Args(false)
	if err != nil {
		t.Fatalf("Args: %v", err)
	}
	if len(wantArgs) == 0 && len(args) == 0 {
		return
	}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("args mismatch\n  got:  %v\n  want: %v", args, wantArgs)
	}
}

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name     string
		req      connector.SelectRequest
		wantSQL  string
		wantArgs []any
		wantErr  bool
	}{
		{
			name:    "empty table returns error",
			req:     connector.SelectRequest{},
			wantErr: true,
		},
		{
			name:    "simple select all",
			req:     connector.SelectRequest{Table: "users"},
			wantSQL: `SELECT * FROM "users"`,
		},
		{
			name:    "select with field selection",
			req:     connector.SelectRequest{Table: "users", Fields: []string{"id", "name"}},
			wantSQL: `SELECT "id", "name" FROM "users"`,
		},
		{
			name: "select with filter",
			req: connector.SelectRequest{
				Table: "users",
				Where: []connector.Condition{{Column: "name", Parameter: in("name", "ann")}},
			},
			wantSQL:  `SELECT * FROM "users" WHERE "name" = ?`,
			wantArgs: []any{"ann"},
		},
		{
			name:     "paged",
			req:      connector.SelectRequest{Table: "users", Order: []string{"id"}, Limit: 25, Offset: 50},
			wantSQL:  `SELECT * FROM "users" ORDER BY "id" LIMIT ? OFFSET ?`,
			wantArgs: []any{int64(25), int64(50)},
		},
		{
			name:     "offset without limit",
			req:      connector.SelectRequest{Table: "users", Offset: 10},
			wantSQL:  `SELECT * FROM "users" LIMIT ? OFFSET ?`,
			wantArgs: []any{int64(-1), int64(10)},
		},
	}

	c := newTestConnector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := c.BuildSelect(context.Background(), tt.req)
			checkCommand(t, cmd, err, tt.wantSQL, tt.wantArgs, tt.wantErr)
		})
	}
}

func TestBuildInsert(t *testing.T) {
	ret := command.Out("id", "int64")
	tests := []struct {
		name     string
		req      connector.InsertRequest
		wantSQL  string
		wantArgs []any
		wantErr  bool
	}{
		{
			name:    "empty table returns error",
			req:     connector.InsertRequest{},
			wantErr: true,
		},
		{
			name: "values with returning",
			req: connector.InsertRequest{
				Table:     "users",
				Values:    []connector.ColumnValue{{Column: "name", Parameter: in("name", "ann")}, {Column: "email", Parameter: in("email", "a@x")}},
				Returning: &ret,
			},
			wantSQL:  `INSERT INTO "users" ("name", "email") VALUES (?, ?) RETURNING "id"`,
			wantArgs: []any{"ann", "a@x"},
		},
		{
			name:    "default values",
			req:     connector.InsertRequest{Table: "users", Returning: &ret},
			wantSQL: `INSERT INTO "users" DEFAULT VALUES RETURNING "id"`,
		},
	}

	c := newTestConnector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := c.BuildInsert(context.Background(), tt.req)
			checkCommand(t, cmd, err, tt.wantSQL, tt.wantArgs, tt.wantErr)
			if err == nil && tt.req.Returning != nil && !cmd.HasOutput() {
				t.Error("insert with Returning should carry an output parameter")
			}
		})
	}
}

func TestBuildUpdateDeleteCount(t *testing.T) {
	c := newTestConnector()
	ctx := context.Background()
	where := []connector.Condition{{Column: "id", Parameter: command.In("id", "int64", int64(3))}}

	cmd, err := c.BuildUpdate(ctx, connector.UpdateRequest{
		Table:  "users",
		Values: []connector.ColumnValue{{Column: "name", Parameter: in("name", "bob")}},
		Where:  where,
	})
	checkCommand(t, cmd, err, `UPDATE "users" SET "name" = ? WHERE "id" = ?`, []any{"bob", int64(3)}, false)

	_, err = c.BuildUpdate(ctx, connector.UpdateRequest{Table: "users", Values: []connector.ColumnValue{{Column: "name", Parameter: in("name", "bob")}}})
	checkCommand(t, nil, err, "", nil, true)

	cmd, err = c.BuildDelete(ctx, connector.DeleteRequest{Table: "users", Where: where})
	checkCommand(t, cmd, err, `DELETE FROM "users" WHERE "id" = ?`, []any{int64(3)}, false)

	_, err = c.BuildDelete(ctx, connector.DeleteRequest{Table: "users"})
	checkCommand(t, nil, err, "", nil, true)

	cmd, err = c.BuildCount(ctx, connector.CountRequest{Table: "users"})
	checkCommand(t, cmd, err, `SELECT COUNT(*) AS "Total" FROM "users"`, nil, false)

	_, err = c.BuildProcedureCall(ctx, command.New("purge", command.StoredProcedure))
	checkCommand(t, nil, err, "", nil, true)
}

func TestCreateTableSQL(t *testing.T) {
	length := int64(80)
	def := model.TableSchema{
		Name: "users",
		Columns: []model.Column{
			{Name: "id", GoType: "int64", IsPrimaryKey: true, IsAutoIncrement: true},
			{Name: "email", GoType: "string", MaxLength: &length, IsUnique: true},
			{Name: "team", GoType: "int64", Nullable: true},
			{Name: "joined", GoType: "time.Time"},
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []model.ForeignKey{{
			Name: "fk_users_team_teams", ColumnName: "team",
			ReferencedTable: "teams", ReferencedColumn: "id", OnDelete: "SET NULL",
		}},
		Indexes: []model.Index{{Name: "idx_users_team", Columns: []string{"team"}}},
		Triggers: []model.Trigger{{
			Name:       "users_touch",
			Definition: `CREATE TRIGGER users_touch AFTER INSERT ON users BEGIN UPDATE users SET team = NULL WHERE id = NEW.id; END`,
		}},
	}

	stmts, err := newTestConnector().CreateTableSQL(def)
	if err != nil {
		t.Fatalf("CreateTableSQL: %v", err)
	}
	if len(stmts) != 3 {
		t.Fatalf("statements = %d, want 3: %v", len(stmts), stmts)
	}
	for _, want := range []string{
		`"id" INTEGER PRIMARY KEY AUTOINCREMENT`,
		`"email" TEXT NOT NULL UNIQUE`,
		`"team" INTEGER,`,
		`"joined" DATETIME NOT NULL`,
		`CONSTRAINT "fk_users_team_teams" FOREIGN KEY ("team") REFERENCES "teams" ("id") ON DELETE SET NULL`,
	} {
		if !strings.Contains(stmts[0], want) {
			t.Errorf("CREATE TABLE missing %q:\n%s", want, stmts[0])
		}
	}
	if strings.Contains(stmts[0], "PRIMARY KEY (") {
		t.Error("autoincrement table should not repeat a PRIMARY KEY constraint")
	}
	if stmts[1] != `CREATE INDEX "idx_users_team" ON "users" ("team")` {
		t.Errorf("index = %s", stmts[1])
	}

	def.Triggers[0].Definition = "SELECT 1"
	if _, err := newTestConnector().CreateTableSQL(def); err == nil {
		t.Error("expected error for a trigger that is not CREATE TRIGGER")
	}
}

func TestConnectAndCreateInMemory(t *testing.T) {
	c := New()
	if err := c.Connect(connector.ConnectionConfig{Driver: "sqlite", DSN: ":memory:"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()
	ctx := context.Background()

	def := model.TableSchema{
		Name:       "notes",
		Columns:    []model.Column{{Name: "id", GoType: "int64", IsPrimaryKey: true, IsAutoIncrement: true}, {Name: "body", GoType: "string"}},
		PrimaryKey: []string{"id"},
	}
	if err := c.CreateTable(ctx, def); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	names, err := c.GetTableNames(ctx)
	if err != nil {
		t.Fatalf("GetTableNames: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"notes"}) {
		t.Errorf("tables = %v, want [notes]", names)
	}

	ret := command.Out("id", "int64")
	cmd, err := c.BuildInsert(ctx, connector.InsertRequest{
		Table:     "notes",
		Values:    []connector.ColumnValue{{Column: "body", Parameter: in("body", "hello")}},
		Returning: &ret,
	})
	if err != nil {
		t.Fatalf("BuildInsert: %v", err)
	}
	args, _ := cmd.Args(false)
	var id int64
	if err := c.DB().QueryRowxContext(ctx, cmd.Text, args...).Scan(&id); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id != 1 {
		t.Errorf("generated id = %d, want 1", id)
	}
}
