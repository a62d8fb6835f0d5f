package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/faucetdb/sluice/internal/example"
	"github.com/faucetdb/sluice/internal/model"
	"github.com/faucetdb/sluice/internal/schema"
	"github.com/faucetdb/sluice/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the schema explorer",
		Long: `Start the read-only HTTP explorer. It lists the configured sources, the
tables, foreign keys and DDL of the mapped schema, and the live tables of every
active source it can connect to.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}

	cmd.Flags().IntP("port", "p", 0, "HTTP listen port (default from sluice.yaml, 8080)")
	cmd.Flags().String("host", "", "HTTP listen host (default from sluice.yaml, 127.0.0.1)")
	a.v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	a.v.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func (a *app) runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()
	logger := a.logger

	if host := a.v.GetString("server.host"); host != "" {
		a.settings.Server.Host = host
	}
	if port := a.v.GetInt("server.port"); port != 0 {
		a.settings.Server.Port = port
	}
	srvCfg, err := server.ConfigFromYAML(a.settings.Server)
	if err != nil {
		return err
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("source store opened", "path", a.dataDir())

	registry := newRegistry()
	defer registry.CloseAll()

	stored, err := store.ListSources(ctx)
	if err != nil {
		return err
	}
	files, err := a.fileSources()
	if err != nil {
		return err
	}
	for _, src := range activeSources(stored, files) {
		if _, err := connect(registry, src); err != nil {
			logger.Error("source unavailable", "source", src.Name, "error", err)
			continue
		}
		logger.Info("source connected", "source", src.Name, "driver", src.Driver)
	}

	schemas := schema.NewContext()
	mappings, _, err := example.Setup(schemas)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	base := fmt.Sprintf("http://%s:%d", srvCfg.Host, srvCfg.Port)
	printOK(out, "Explorer on %s", cyan.Sprint(base+"/api/v1"))
	fmt.Fprintf(out, "  health:    %s/healthz\n", base)
	fmt.Fprintf(out, "  sources:   %d connected\n", len(registry.Sources()))
	fmt.Fprintf(out, "  mappings:  %d\n", len(mappings.Mappings()))

	srv := server.New(srvCfg, registry, store, schemas, mappings, logger)
	return srv.ListenAndServe(ctx)
}

// activeSources returns the active sources serve connects, stored sources
// shadowing file sources of the same name.
func activeSources(stored, files []model.SourceConfig) []model.SourceConfig {
	seen := make(map[string]bool)
	var out []model.SourceConfig
	for _, src := range slices.Concat(stored, files) {
		if seen[src.Name] {
			continue
		}
		seen[src.Name] = true
		if src.IsActive {
			out = append(out, src)
		}
	}
	return out
}
