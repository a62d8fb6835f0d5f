package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/fatih/color"

	"github.com/faucetdb/sluice/internal/config"
	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/connector/mssql"
	"github.com/faucetdb/sluice/internal/connector/mysql"
	"github.com/faucetdb/sluice/internal/connector/postgres"
	"github.com/faucetdb/sluice/internal/connector/sqlite"
	"github.com/faucetdb/sluice/internal/model"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

func printOK(w io.Writer, format string, args ...any) {
	green.Fprint(w, "✓ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printWarn(w io.Writer, format string, args ...any) {
	yellow.Fprint(w, "! ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printFail(w io.Writer, format string, args ...any) {
	red.Fprint(w, "✗ ")
	fmt.Fprintf(w, format+"\n", args...)
}

// dataDir returns the --data-dir flag, SLUICE_DATA_DIR, or ~/.sluice.
func (a *app) dataDir() string {
	if dir := a.v.GetString("data_dir"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sluice")
}

func (a *app) openStore() (*config.Store, error) {
	store, err := config.NewStore(a.dataDir())
	if err != nil {
		return nil, fmt.Errorf("open source store: %w", err)
	}
	return store, nil
}

// newRegistry creates a connector registry with every supported dialect.
func newRegistry() *connector.Registry {
	registry := connector.NewRegistry()
	registry.RegisterDriver("sqlite", sqlite.New)
	registry.RegisterDriver("postgres", postgres.New)
	registry.RegisterDriver("mysql", mysql.New)
	registry.RegisterDriver("mssql", mssql.New)
	return registry
}

// supportedDrivers lists the driver names a source may carry.
var supportedDrivers = []string{"sqlite", "sqlite3", "postgres", "pq", "mysql", "mssql"}

// fileSources converts the sources of sluice.yaml.
func (a *app) fileSources() ([]model.SourceConfig, error) {
	out := make([]model.SourceConfig, 0, len(a.settings.Sources))
	for _, s := range a.settings.Sources {
		sc, err := s.SourceConfig()
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// resolveSource finds the source named by name, --source or SLUICE_SOURCE,
// falling back to the stored default and then to the only known source.
// Stored sources shadow sources of the same name in sluice.yaml.
func (a *app) resolveSource(ctx context.Context, store *config.Store, name string) (model.SourceConfig, error) {
	if name == "" {
		name = a.v.GetString("source")
	}
	files, err := a.fileSources()
	if err != nil {
		return model.SourceConfig{}, err
	}

	if name == "" {
		def, err := store.GetSetting(ctx, config.SettingDefaultSource)
		switch {
		case err == nil:
			name = def
		case !errors.Is(err, config.ErrNotFound):
			return model.SourceConfig{}, err
		}
	}
	if name == "" {
		stored, err := store.ListSources(ctx)
		if err != nil {
			return model.SourceConfig{}, err
		}
		all := slices.Concat(stored, files)
		if len(all) != 1 {
			return model.SourceConfig{}, fmt.Errorf("no source selected: pass --source or run 'sluice source add --default'")
		}
		return all[0], nil
	}

	src, err := store.GetSourceByName(ctx, name)
	if err == nil {
		return *src, nil
	}
	if !errors.Is(err, config.ErrNotFound) {
		return model.SourceConfig{}, err
	}
	for _, f := range files {
		if f.Name == name {
			return f, nil
		}
	}
	return model.SourceConfig{}, fmt.Errorf("source %q: %w", name, config.ErrNotFound)
}

// connect opens src through registry.
func connect(registry *connector.Registry, src model.SourceConfig) (connector.Connector, error) {
	return registry.Connect(src.Name, connector.ConfigFromSource(src))
}

// dialectName resolves a driver alias to the dialect registered for it.
func dialectName(driver string) string {
	return connector.ConfigFromSource(model.SourceConfig{Driver: driver}).Driver
}
