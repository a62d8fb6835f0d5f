package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/faucetdb/sluice/internal/connector"
)

// MSSQLConnector implements connector.Connector for SQL Server databases.
// Parameters are passed by name (@Name).
type MSSQLConnector struct {
	db         *sqlx.DB
	schemaName string
}

// New creates a new MSSQLConnector with default settings.
func New() connector.Connector {
	return &MSSQLConnector{schemaName: "dbo"}
}

// Connect establishes a connection to the SQL Server database using the
// provided configuration.
func (c *MSSQLConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("sqlserver", connector.SanitizeDSN("mssql", cfg.DSN))
	if err != nil {
		return fmt.Errorf("mssql connect: %w", err)
	}
	connector.ConfigurePool(db, cfg)

	if cfg.SchemaName != "" {
		c.schemaName = cfg.SchemaName
	}

	c.db = db
	return nil
}

// BeginTx starts a new database transaction with the given options.
func (c *MSSQLConnector) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return c.db.BeginTxx(ctx, opts)
}

// Disconnect closes the database connection pool.
func (c *MSSQLConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *MSSQLConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *MSSQLConnector) DB() *sqlx.DB {
	return c.db
}

// DriverName returns the driver identifier for SQL Server.
func (c *MSSQLConnector) DriverName() string { return "sqlserver" }

// QuoteIdentifier wraps a SQL identifier in square brackets, escaping any
// embedded closing brackets.
func (c *MSSQLConnector) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// TableName qualifies name with the configured schema.
func (c *MSSQLConnector) TableName(name string) string {
	return c.QuoteIdentifier(c.schemaName) + "." + c.QuoteIdentifier(name)
}

// SupportsReturning indicates that SQL Server can hand back generated values
// through OUTPUT INSERTED.
func (c *MSSQLConnector) SupportsReturning() bool { return true }

func (c *MSSQLConnector) ParameterPrefix() string { return "@" }

// Placeholder returns "@" followed by the parameter name.
func (c *MSSQLConnector) Placeholder(name string, _ int) string { return "@" + name }

func (c *MSSQLConnector) NamedParameters() bool { return true }
