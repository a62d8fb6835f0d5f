package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/faucetdb/sluice/internal/config"
	"github.com/faucetdb/sluice/internal/model"
)

const testConfig = `sources:
  - name: local
    driver: sqlite
    dsn: ":memory:"
logging:
  level: error
`

// runCLI executes the root command against a private config file and data dir.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cfg := filepath.Join(dir, "sluice.yaml")
	if _, err := os.Stat(cfg); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(cfg, []byte(testConfig), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	cmd := newRootCmd("1.2.3", "abc123", "2024-01-01")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfg, "--data-dir", dir}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSourceAddListRemove(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "shop.db")

	out, err := runCLI(t, dir, "source", "add", "--name", "shop", "--driver", "sqlite3", "--dsn", dsn, "--default")
	if err != nil {
		t.Fatalf("source add: %v\n%s", err, out)
	}
	if !strings.Contains(out, `Added source "shop"`) {
		t.Errorf("add output = %q", out)
	}

	out, err = runCLI(t, dir, "source", "list", "--json")
	if err != nil {
		t.Fatalf("source list: %v", err)
	}
	var rows []sourceRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode list: %v\n%s", err, out)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(rows), rows)
	}
	if rows[0].Name != "shop" || rows[0].Origin != "store" || !rows[0].Default {
		t.Errorf("rows[0] = %+v, want default stored source shop", rows[0])
	}
	if rows[1].Name != "local" || rows[1].Origin != "file" || rows[1].Default {
		t.Errorf("rows[1] = %+v, want file source local", rows[1])
	}

	if out, err := runCLI(t, dir, "source", "remove", "shop"); err != nil {
		t.Fatalf("source remove: %v\n%s", err, out)
	}
	_, err = runCLI(t, dir, "source", "remove", "shop")
	if !errors.Is(err, config.ErrNotFound) {
		t.Errorf("second remove error = %v, want ErrNotFound", err)
	}
}

func TestSourceAddValidation(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing dsn", []string{"--name", "x", "--driver", "sqlite"}, "required"},
		{"unknown driver", []string{"--name", "x", "--driver", "oracle", "--dsn", "x"}, "unsupported driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, dir, append([]string{"source", "add"}, tt.args...)...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestSchemaDDL(t *testing.T) {
	for _, driver := range []string{"sqlite", "postgres", "mysql", "mssql"} {
		t.Run(driver, func(t *testing.T) {
			out, err := runCLI(t, t.TempDir(), "schema", "ddl", "--driver", driver)
			if err != nil {
				t.Fatalf("schema ddl: %v", err)
			}
			if n := strings.Count(out, "CREATE TABLE"); n != 7 {
				t.Errorf("got %d CREATE TABLE statements, want 7\n%s", n, out)
			}
			if !strings.Contains(out, "OrderTag") {
				t.Errorf("ddl does not mention the join table:\n%s", out)
			}
		})
	}

	if _, err := runCLI(t, t.TempDir(), "schema", "ddl", "--driver", "oracle"); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestSchemaCreateTestInspect(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "shop.db")
	if out, err := runCLI(t, dir, "source", "add", "--name", "shop", "--driver", "sqlite", "--dsn", dsn, "--default"); err != nil {
		t.Fatalf("source add: %v\n%s", err, out)
	}

	out, err := runCLI(t, dir, "schema", "create")
	if err != nil {
		t.Fatalf("schema create: %v\n%s", err, out)
	}
	if n := strings.Count(out, "Created table"); n != 7 {
		t.Errorf("created %d tables, want 7\n%s", n, out)
	}

	out, err = runCLI(t, dir, "schema", "create", "shop")
	if err != nil {
		t.Fatalf("second schema create: %v", err)
	}
	if !strings.Contains(out, "already exist") {
		t.Errorf("second create output = %q", out)
	}

	out, err = runCLI(t, dir, "source", "test")
	if err != nil || !strings.Contains(out, "Connection successful") {
		t.Errorf("source test = %q, %v", out, err)
	}

	out, err = runCLI(t, dir, "source", "inspect", "shop")
	if err != nil {
		t.Fatalf("source inspect: %v", err)
	}
	var got struct {
		Source string   `json:"source"`
		Tables []string `json:"tables"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode inspect: %v\n%s", err, out)
	}
	if got.Source != "shop" || len(got.Tables) != 7 {
		t.Errorf("inspect = %+v, want 7 tables of shop", got)
	}
}

func TestDemo(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "demo")
	if err != nil {
		t.Fatalf("demo: %v\n%s", err, out)
	}
	for _, want := range []string{
		"Created 7 tables",
		"Saved products",
		"tag gift",
		"1 page(s) of orders, 1 on the last page",
		"Deleted order",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("demo output missing %q\n%s", want, out)
		}
	}
}

func TestVersionJSON(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info["version"] != "1.2.3" || info["commit"] != "abc123" {
		t.Errorf("info = %v", info)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.yaml")

	if _, err := runCLI(t, dir, "config", "init", "--path", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := config.LoadYAMLConfig(path); err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if _, err := runCLI(t, dir, "config", "init", "--path", path); err == nil {
		t.Error("expected error when the file exists")
	}
	if _, err := runCLI(t, dir, "config", "init", "--path", path, "--force"); err != nil {
		t.Errorf("config init --force: %v", err)
	}

	out, err := runCLI(t, dir, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "name: local") || !strings.Contains(out, "level: error") {
		t.Errorf("config show output:\n%s", out)
	}
}

func TestActiveSources(t *testing.T) {
	stored := []model.SourceConfig{
		{Name: "shop", Driver: "postgres", IsActive: true},
		{Name: "old", Driver: "mysql", IsActive: false},
	}
	files := []model.SourceConfig{
		{Name: "shop", Driver: "sqlite", IsActive: true},
		{Name: "local", Driver: "sqlite", IsActive: true},
	}

	got := activeSources(stored, files)
	if len(got) != 2 {
		t.Fatalf("got %d sources, want 2: %+v", len(got), got)
	}
	if got[0].Name != "shop" || got[0].Driver != "postgres" {
		t.Errorf("got[0] = %+v, want the stored shop source", got[0])
	}
	if got[1].Name != "local" {
		t.Errorf("got[1] = %+v, want local", got[1])
	}
}

func TestResolveSource(t *testing.T) {
	ctx := context.Background()

	newApp := func(files ...config.SourceYAML) *app {
		settings := config.DefaultYAMLConfig()
		settings.Sources = files
		return &app{v: viper.New(), settings: settings}
	}
	newStore := func(t *testing.T) *config.Store {
		store, err := config.NewStore("")
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	}
	local := config.SourceYAML{Name: "local", Driver: "sqlite", DSN: ":memory:"}

	t.Run("single file source", func(t *testing.T) {
		src, err := newApp(local).resolveSource(ctx, newStore(t), "")
		if err != nil || src.Name != "local" {
			t.Errorf("got %q, %v; want local", src.Name, err)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		if _, err := newApp().resolveSource(ctx, newStore(t), ""); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("stored default wins", func(t *testing.T) {
		store := newStore(t)
		if err := store.CreateSource(ctx, &model.SourceConfig{Name: "shop", Driver: "sqlite", DSN: ":memory:", IsActive: true}); err != nil {
			t.Fatal(err)
		}
		if err := store.SetSetting(ctx, config.SettingDefaultSource, "shop"); err != nil {
			t.Fatal(err)
		}
		src, err := newApp(local).resolveSource(ctx, store, "")
		if err != nil || src.Name != "shop" {
			t.Errorf("got %q, %v; want shop", src.Name, err)
		}
	})

	t.Run("source flag", func(t *testing.T) {
		a := newApp(local, config.SourceYAML{Name: "other", Driver: "sqlite", DSN: ":memory:"})
		a.v.Set("source", "other")
		src, err := a.resolveSource(ctx, newStore(t), "")
		if err != nil || src.Name != "other" {
			t.Errorf("got %q, %v; want other", src.Name, err)
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := newApp(local).resolveSource(ctx, newStore(t), "missing")
		if !errors.Is(err, config.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}
