package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/example"
	"github.com/faucetdb/sluice/internal/schema"
)

func newSchemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Render or create the schema of the mapped shop domain",
	}

	cmd.AddCommand(newSchemaDDLCmd())
	cmd.AddCommand(newSchemaCreateCmd(a))

	return cmd
}

// ---------- schema ddl ----------

func newSchemaDDLCmd() *cobra.Command {
	var driver string

	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print the CREATE statements of the mapped tables",
		Example: `  sluice schema ddl
  sluice schema ddl --driver mssql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, src, err := example.Setup(schema.NewContext())
			if err != nil {
				return err
			}
			dialect, err := newRegistry().New(dialectName(driver))
			if err != nil {
				return err
			}
			stmts, err := connector.SchemaSQL(dialect, src)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range stmts {
				fmt.Fprintf(out, "%s;\n\n", strings.TrimRight(s, ";"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "sqlite", "Dialect to render ("+strings.Join(supportedDrivers, ", ")+")")

	return cmd
}

// ---------- schema create ----------

func newSchemaCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create [source]",
		Short: "Create the mapped tables a source does not have yet",
		Long:  "Create every mapped table missing from the source, referenced tables first. Existing tables are left untouched.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			sc, err := a.resolveSource(ctx, store, firstArg(args))
			if err != nil {
				return err
			}
			_, src, err := example.Setup(schema.NewContext())
			if err != nil {
				return err
			}

			registry := newRegistry()
			defer registry.CloseAll()
			conn, err := connect(registry, sc)
			if err != nil {
				return err
			}

			created, err := connector.EnsureSchema(ctx, conn, src)
			out := cmd.OutOrStdout()
			for _, name := range created {
				printOK(out, "Created table %s", cyan.Sprint(name))
			}
			if err != nil {
				return err
			}
			if len(created) == 0 {
				printWarn(out, "All %d tables already exist in %q", len(src.Tables), sc.Name)
			}
			return nil
		},
	}
}
