package model

import "time"

// SourceConfig holds the connection settings for one named storage source.
// Mappings are set up against a source by name.
type SourceConfig struct {
	ID        int64      `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Label     string     `json:"label" db:"label"`
	Driver    string     `json:"driver" db:"driver"` // sqlite, sqlite3, postgres, pq, mysql, mssql
	DSN       string     `json:"dsn,omitempty" db:"dsn"`
	Schema    string     `json:"schema" db:"schema_name"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	Pool      PoolConfig `json:"pool"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// PoolConfig controls the database/sql pool settings handed to the driver.
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

// DefaultPoolConfig returns sensible defaults for a database connection pool.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}
