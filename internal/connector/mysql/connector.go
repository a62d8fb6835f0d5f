package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/sluice/internal/connector"
)

// MySQLConnector implements connector.Connector for MySQL databases.
type MySQLConnector struct {
	db         *sqlx.DB
	schemaName string
}

// New creates a new MySQLConnector with default settings.
func New() connector.Connector {
	return &MySQLConnector{}
}

// Connect establishes a connection to the MySQL database. The DSN is
// normalized and parseTime is forced on so DATETIME columns scan into
// time.Time. Found rather than changed rows are reported as affected, so an
// update that rewrites identical values still counts. Without an explicit
// schema the current database is used.
func (c *MySQLConnector) Connect(cfg connector.ConnectionConfig) error {
	dsnCfg, err := mysqldriver.ParseDSN(connector.SanitizeDSN("mysql", cfg.DSN))
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	dsnCfg.ParseTime = true
	dsnCfg.ClientFoundRows = true

	db, err := sqlx.Connect("mysql", dsnCfg.FormatDSN())
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	connector.ConfigurePool(db, cfg)

	c.schemaName = cfg.SchemaName
	if c.schemaName == "" {
		c.schemaName = dsnCfg.DBName
	}
	if c.schemaName == "" {
		var dbName sql.NullString
		if err := db.Get(&dbName, "SELECT DATABASE()"); err == nil && dbName.Valid {
			c.schemaName = dbName.String
		}
	}

	c.db = db
	return nil
}

// BeginTx starts a new database transaction with the given options.
func (c *MySQLConnector) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return c.db.BeginTxx(ctx, opts)
}

// Disconnect closes the database connection pool.
func (c *MySQLConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *MySQLConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *MySQLConnector) DB() *sqlx.DB {
	return c.db
}

// DriverName returns the driver identifier for MySQL.
func (c *MySQLConnector) DriverName() string { return "mysql" }

// QuoteIdentifier wraps a SQL identifier in backticks, escaping any
// embedded backticks to prevent SQL injection.
func (c *MySQLConnector) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// TableName qualifies name with the database when one is known.
func (c *MySQLConnector) TableName(name string) string {
	if c.schemaName == "" {
		return c.QuoteIdentifier(name)
	}
	return c.QuoteIdentifier(c.schemaName) + "." + c.QuoteIdentifier(name)
}

// SupportsReturning indicates that MySQL does NOT support RETURNING clauses;
// generated keys come back through LastInsertId.
func (c *MySQLConnector) SupportsReturning() bool { return false }

func (c *MySQLConnector) ParameterPrefix() string { return "?" }

// Placeholder returns "?"; MySQL binds by position.
func (c *MySQLConnector) Placeholder(_ string, _ int) string { return "?" }

func (c *MySQLConnector) NamedParameters() bool { return false }
