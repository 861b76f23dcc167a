package metrics

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver
)

// SnowflakeConfig locates the warehouse schema the metrics pipeline writes to.
type SnowflakeConfig struct {
	Account   string
	User      string
	Password  string
	Database  string
	Schema    string
	Warehouse string
}

// DSN builds the gosnowflake data source name:
// user:password@account/database/schema?warehouse=xxx
func (c SnowflakeConfig) DSN() string {
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s", c.User, c.Password, c.Account, c.Database, c.Schema)
	if c.Warehouse != "" {
		dsn += "?warehouse=" + c.Warehouse
	}
	return dsn
}

// NewSnowflakeFeed opens a small pool against Snowflake. The connection is
// established lazily; call Ping to verify credentials.
func NewSnowflakeFeed(cfg SnowflakeConfig) (*SQLFeed, error) {
	db, err := sql.Open("snowflake", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open snowflake connection: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	return NewSQLFeed(db, DialectSnowflake), nil
}
