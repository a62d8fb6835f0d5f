package batch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/faucetdb/sluice/internal/command"
	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/connector/sqlite"
)

func openMemory(t *testing.T) connector.Connector {
	t.Helper()
	conn := sqlite.New()
	if err := conn.Connect(connector.ConnectionConfig{Driver: "sqlite", DSN: ":memory:"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { conn.Disconnect() })
	if _, err := conn.DB().Exec(`CREATE TABLE "Item" ("Id" INTEGER PRIMARY KEY AUTOINCREMENT, "Name" TEXT NOT NULL UNIQUE)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return conn
}

func TestRemoveDuplicateCommands(t *testing.T) {
	b := New(nil)
	first := b.Add(`DELETE FROM "Item" WHERE "Id" = ?`, command.Text, nil, nil, command.In("Id", "int64", int64(1)))
	other := b.Add(`DELETE FROM "Item" WHERE "Id" = ?`, command.Text, nil, nil, command.In("Id", "int64", int64(2)))
	b.Add(`DELETE FROM "Item" WHERE "Id" = ?`, command.Text, nil, nil, command.In("Id", "int64", int64(1)))
	proc := b.Add("refresh", command.StoredProcedure, nil, nil)

	if removed := b.RemoveDuplicateCommands(); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	want := []*command.Command{first, other, proc}
	if !reflect.DeepEqual(b.Commands(), want) {
		t.Errorf("commands after dedup = %v", b.Commands())
	}
}

func TestRemoveDuplicateCommandsKeepsOutputAndDeferred(t *testing.T) {
	b := New(nil)
	insert := func() {
		b.Add(`INSERT INTO "Item" ("Name") VALUES (?) RETURNING "Id"`, command.Text, nil, nil,
			command.In("Name", "string", "a"), command.Out("Id", "int64"))
	}
	insert()
	insert()
	deferred := command.In("Id", "int64", command.DeferredFunc(func() (any, error) { return int64(1), nil }))
	b.Add(`DELETE FROM "Item" WHERE "Id" = ?`, command.Text, nil, nil, deferred)
	b.Add(`DELETE FROM "Item" WHERE "Id" = ?`, command.Text, nil, nil, deferred)

	if removed := b.RemoveDuplicateCommands(); removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if b.Len() != 4 {
		t.Errorf("Len = %d, want 4", b.Len())
	}
}

func TestAddBatchKeepsOrder(t *testing.T) {
	a, b := New(nil), New(nil)
	a.Add("one", command.Text, nil, nil)
	b.Add("two", command.Text, nil, nil)
	b.Add("three", command.Text, nil, nil)
	a.AddBatch(b).AddBatch(nil)

	var got []string
	for _, c := range a.Commands() {
		got = append(got, c.Text)
	}
	if want := []string{"one", "two", "three"}; !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
}

func TestExecute(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()
	b := New(conn)

	var ids []any
	capture := func(_ any, rows []command.Row) error {
		ids = append(ids, rows[0]["Id"])
		return nil
	}
	b.Add(`INSERT INTO "Item" ("Name") VALUES (?) RETURNING "Id"`, command.Text, capture, nil,
		command.In("Name", "string", "a"), command.Out("Id", "int64"))
	// The second insert depends on the id generated by the first.
	b.Add(`INSERT INTO "Item" ("Name") VALUES (?) RETURNING "Id"`, command.Text, capture, nil,
		command.In("Name", "string", command.DeferredFunc(func() (any, error) {
			return fmt.Sprintf("after-%d", ids[0]), nil
		})), command.Out("Id", "int64"))
	b.Add(`SELECT "Name" FROM "Item" ORDER BY "Id"`, command.Text, nil, nil)

	results, err := b.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if !reflect.DeepEqual(ids, []any{int64(1), int64(2)}) {
		t.Errorf("ids = %v", ids)
	}
	want := []command.Row{{"Name": "a"}, {"Name": "after-1"}}
	if !reflect.DeepEqual(results[2], want) {
		t.Errorf("rows = %v, want %v", results[2], want)
	}
}

func TestExecuteStopsAtFirstFailure(t *testing.T) {
	conn := openMemory(t)
	b := New(conn)
	ran := false
	b.Add(`INSERT INTO "Item" ("Name") VALUES (?)`, command.Text, nil, nil, command.In("Name", "string", "dup"))
	b.Add(`INSERT INTO "Item" ("Name") VALUES (?)`, command.Text, nil, nil, command.In("Name", "string", "dup"))
	b.Add(`SELECT 1`, command.Text, func(any, []command.Row) error { ran = true; return nil }, nil)

	if _, err := b.Execute(context.Background()); err == nil {
		t.Fatal("expected unique constraint error")
	}
	if ran {
		t.Error("command after the failure ran")
	}

	var n int
	if err := conn.DB().Get(&n, `SELECT COUNT(*) FROM "Item"`); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("rows without a transaction = %d, want 1", n)
	}
}

func TestExecuteInTransactionRollsBack(t *testing.T) {
	conn := openMemory(t)
	b := New(conn)
	boom := errors.New("boom")
	b.Add(`INSERT INTO "Item" ("Name") VALUES (?)`, command.Text, nil, nil, command.In("Name", "string", "a"))
	b.Add(`SELECT 1`, command.Text, func(any, []command.Row) error { return boom }, nil)

	if _, err := b.ExecuteInTransaction(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}

	var n int
	if err := conn.DB().Get(&n, `SELECT COUNT(*) FROM "Item"`); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("rows after rollback = %d, want 0", n)
	}
}

func TestExecuteEmptyBatch(t *testing.T) {
	results, err := New(nil).Execute(context.Background())
	if err != nil || len(results) != 0 {
		t.Errorf("Execute = %v, %v", results, err)
	}
}

func TestHooksAfterCommit(t *testing.T) {
	conn := openMemory(t)
	b := New(conn)
	var calls []string
	for _, name := range []string{"a", "b"} {
		cmd := b.Add(`INSERT INTO "Item" ("Name") VALUES (?)`, command.Text, func(any, []command.Row) error {
			calls = append(calls, "callback "+name)
			return nil
		}, name, command.In("Name", "string", name))
		cmd.Commit = func(o any) { calls = append(calls, "commit "+o.(string)) }
		cmd.Rollback = func(o any) error {
			calls = append(calls, "rollback "+o.(string))
			return nil
		}
	}

	if _, err := b.ExecuteInTransaction(context.Background()); err != nil {
		t.Fatalf("ExecuteInTransaction: %v", err)
	}
	want := []string{"callback a", "callback b", "commit a", "commit b"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %q, want %q", calls, want)
	}
}

func TestHooksAfterRollback(t *testing.T) {
	conn := openMemory(t)
	b := New(conn)
	var calls []string
	hook := func(cmd *command.Command) {
		cmd.Commit = func(o any) { calls = append(calls, "commit "+o.(string)) }
		cmd.Rollback = func(o any) error {
			calls = append(calls, "rollback "+o.(string))
			return errors.New("ignored")
		}
	}
	hook(b.Add(`INSERT INTO "Item" ("Name") VALUES (?)`, command.Text, nil, "a", command.In("Name", "string", "a")))
	hook(b.Add(`INSERT INTO "Item" ("Name") VALUES (?)`, command.Text, nil, "b", command.In("Name", "string", "b")))
	hook(b.Add(`INSERT INTO "Item" ("Name") VALUES (?)`, command.Text, nil, "dup", command.In("Name", "string", "a")))

	if _, err := b.ExecuteInTransaction(context.Background()); err == nil {
		t.Fatal("expected unique constraint error")
	}
	// The failing command never ran, so only the first two are undone.
	want := []string{"rollback b", "rollback a"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %q, want %q", calls, want)
	}
}

func TestHooksWithoutTransactionCommitWhatRan(t *testing.T) {
	conn := openMemory(t)
	b := New(conn)
	var calls []string
	hook := func(cmd *command.Command) {
		cmd.Commit = func(o any) { calls = append(calls, "commit "+o.(string)) }
		cmd.Rollback = func(o any) error {
			calls = append(calls, "rollback "+o.(string))
			return nil
		}
	}
	hook(b.Add(`INSERT INTO "Item" ("Name") VALUES (?)`, command.Text, nil, "a", command.In("Name", "string", "a")))
	hook(b.Add(`INSERT INTO "Item" ("Name") VALUES (?)`, command.Text, nil, "dup", command.In("Name", "string", "a")))

	if _, err := b.Execute(context.Background()); err == nil {
		t.Fatal("expected unique constraint error")
	}
	// Without a transaction the first insert stays, so its state is kept.
	if want := []string{"commit a"}; !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %q, want %q", calls, want)
	}
}

func TestMustAffectRows(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()
	if _, err := conn.DB().Exec(`INSERT INTO "Item" ("Name") VALUES ('a')`); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		id      int64
		wantErr error
	}{
		{"existing row", 1, nil},
		{"missing row", 42, ErrNoRowsAffected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(conn)
			cmd := b.Add(`UPDATE "Item" SET "Name" = "Name" WHERE "Id" = ?`, command.Text, nil, nil, command.In("Id", "int64", tt.id))
			cmd.MustAffectRows = true
			_, err := b.Execute(ctx)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Execute error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
