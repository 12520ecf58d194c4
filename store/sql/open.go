package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// PersistenceConfig satisfies the go-persistence-bun client config.
type PersistenceConfig struct {
	Driver      string
	Server      string
	Debug       bool
	PingTimeout time.Duration
	OtelName    string
}

func (c PersistenceConfig) GetDebug() bool {
	return c.Debug
}

func (c PersistenceConfig) GetDriver() string {
	return c.Driver
}

func (c PersistenceConfig) GetServer() string {
	return c.Server
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.OtelName) == "" {
		return "go-relay"
	}
	return c.OtelName
}

// Open connects to postgres or sqlite and wraps the handle in a
// go-persistence-bun client with the matching dialect.
func Open(driver string, dsn string) (*persistence.Client, error) {
	driver = strings.TrimSpace(strings.ToLower(driver))
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(PersistenceConfig{Driver: driver, Server: dsn}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: persistence client: %w", err)
	}
	return client, nil
}

// OpenDB returns a bare bun handle, for callers that manage migrations
// themselves.
func OpenDB(driver string, dsn string) (*bun.DB, error) {
	driver = strings.TrimSpace(strings.ToLower(driver))
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	return bun.NewDB(sqlDB, dialect), nil
}

func dialectFor(driver string) (schema.Dialect, error) {
	switch driver {
	case DriverPostgres:
		return pgdialect.New(), nil
	case DriverSQLite:
		return sqlitedialect.New(), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}
