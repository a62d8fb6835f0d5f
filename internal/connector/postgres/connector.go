package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/faucetdb/sluice/internal/connector"
)

// PostgresConnector implements connector.Connector for PostgreSQL databases.
// pgx is the default driver; ConnectionConfig.Option "pq" selects lib/pq.
type PostgresConnector struct {
	db         *sqlx.DB
	schemaName string
	driver     string
}

// New creates a new PostgresConnector with default settings.
func New() connector.Connector {
	return &PostgresConnector{schemaName: "public", driver: "pgx"}
}

// Connect establishes a connection to the PostgreSQL database using the
// provided configuration. It configures connection pool settings and stores
// the schema name used to qualify tables.
func (c *PostgresConnector) Connect(cfg connector.ConnectionConfig) error {
	if cfg.Option == "pq" {
		c.driver = "postgres"
	}

	db, err := sqlx.Connect(c.driver, cfg.DSN)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	connector.ConfigurePool(db, cfg)

	if cfg.SchemaName != "" {
		c.schemaName = cfg.SchemaName
	}

	c.db = db
	return nil
}

// BeginTx starts a new database transaction with the given options.
func (c *PostgresConnector) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return c.db.BeginTxx(ctx, opts)
}

// Disconnect closes the database connection pool.
func (c *PostgresConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *PostgresConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *PostgresConnector) DB() *sqlx.DB {
	return c.db
}

// DriverName returns the database/sql driver in use ("pgx" or "postgres").
func (c *PostgresConnector) DriverName() string { return c.driver }

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double quotes to prevent SQL injection.
func (c *PostgresConnector) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TableName qualifies name with the configured schema.
func (c *PostgresConnector) TableName(name string) string {
	return c.QuoteIdentifier(c.schemaName) + "." + c.QuoteIdentifier(name)
}

// SupportsReturning indicates that PostgreSQL supports RETURNING clauses.
func (c *PostgresConnector) SupportsReturning() bool { return true }

func (c *PostgresConnector) ParameterPrefix() string { return "$" }

// Placeholder returns a numbered placeholder ($1, $2, ...).
func (c *PostgresConnector) Placeholder(_ string, position int) string {
	return "$" + strconv.Itoa(position)
}

func (c *PostgresConnector) NamedParameters() bool { return false }
