package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/faucetdb/sluice/internal/connector"
)

// SQLiteConnector implements connector.Connector for SQLite databases. The
// pure-Go modernc driver is used by default; ConnectionConfig.Option
// "sqlite3" selects the cgo mattn driver instead.
type SQLiteConnector struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQLiteConnector with default settings.
func New() connector.Connector {
	return &SQLiteConnector{driver: "sqlite"}
}

// Connect opens the database file named by the DSN, or ":memory:". Foreign
// key enforcement is switched on for every pooled connection. In-memory
// databases are limited to one connection since every connection would
// otherwise see its own database.
func (c *SQLiteConnector) Connect(cfg connector.ConnectionConfig) error {
	if cfg.Option == "sqlite3" {
		c.driver = "sqlite3"
	}

	db, err := sqlx.Connect(c.driver, withForeignKeys(c.driver, cfg.DSN))
	if err != nil {
		return fmt.Errorf("sqlite connect: %w", err)
	}
	connector.ConfigurePool(db, cfg)
	if strings.Contains(cfg.DSN, ":memory:") || strings.Contains(cfg.DSN, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	c.db = db
	return nil
}

// withForeignKeys adds the driver's connection parameter that enables foreign
// key enforcement. A DSN that already sets it is left alone.
func withForeignKeys(driver, dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	param := "_pragma=foreign_keys(1)"
	if driver == "sqlite3" {
		param = "_foreign_keys=1"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + param
}

// BeginTx starts a new database transaction with the given options.
func (c *SQLiteConnector) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return c.db.BeginTxx(ctx, opts)
}

// Disconnect closes the database connection.
func (c *SQLiteConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *SQLiteConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *SQLiteConnector) DB() *sqlx.DB {
	return c.db
}

// DriverName returns the database/sql driver in use.
func (c *SQLiteConnector) DriverName() string { return c.driver }

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double quotes.
func (c *SQLiteConnector) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TableName quotes name; SQLite tables live in the main database.
func (c *SQLiteConnector) TableName(name string) string { return c.QuoteIdentifier(name) }

// SupportsReturning indicates that SQLite supports RETURNING clauses (3.35+).
func (c *SQLiteConnector) SupportsReturning() bool { return true }

func (c *SQLiteConnector) ParameterPrefix() string { return "?" }

// Placeholder returns "?"; SQLite binds by position.
func (c *SQLiteConnector) Placeholder(_ string, _ int) string { return "?" }

func (c *SQLiteConnector) NamedParameters() bool { return false }
