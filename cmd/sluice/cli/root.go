package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/faucetdb/sluice/internal/config"
)

// app carries the state shared by every subcommand: flag values, the loaded
// sluice.yaml and the logger built from it.
type app struct {
	v        *viper.Viper
	cfgFile  string
	settings *config.YAMLConfig
	logger   *slog.Logger
}

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	return newRootCmd(version, commit, date).Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "sluice",
		Short: "Map Go types onto relational storage",
		Long: `sluice maps Go types onto SQL tables, builds the schema they describe and
runs batched, cascading saves and deletes against SQLite, PostgreSQL, MySQL and
SQL Server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./sluice.yaml)")
	flags.String("data-dir", "", "data directory for the source store (default: ~/.sluice)")
	flags.String("source", "", "source to use (default: the stored default source)")
	flags.BoolP("verbose", "v", false, "log at debug level")
	a.v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	a.v.BindPFlag("source", flags.Lookup("source"))
	a.v.BindPFlag("verbose", flags.Lookup("verbose"))

	cmd.AddCommand(newSourceCmd(a))
	cmd.AddCommand(newSchemaCmd(a))
	cmd.AddCommand(newDemoCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

// init loads .env, the config file and SLUICE_* overrides, then builds the
// logger. Flags win over the environment, which wins over the file.
func (a *app) init() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	defaults := config.DefaultYAMLConfig()
	a.v.SetDefault("logging.level", defaults.Logging.Level)
	a.v.SetDefault("logging.format", defaults.Logging.Format)
	a.v.SetDefault("batch.transactions", defaults.Batch.Transactions)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName("sluice")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		a.v.AddConfigPath("$HOME/.sluice")
	}
	a.v.SetEnvPrefix("SLUICE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	a.settings = defaults
	if path := a.v.ConfigFileUsed(); path != "" {
		s, err := config.LoadYAMLConfig(path)
		if err != nil {
			return err
		}
		a.settings = s
	}
	a.settings.Logging.Level = a.v.GetString("logging.level")
	a.settings.Logging.Format = a.v.GetString("logging.format")
	a.settings.Batch.Transactions = a.v.GetBool("batch.transactions")
	if a.v.GetBool("verbose") {
		a.settings.Logging.Level = "debug"
	}

	a.logger = newLogger(a.settings.Logging)
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
