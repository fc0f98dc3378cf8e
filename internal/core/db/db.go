// Package db opens the task history database and runs its migrations.
//
// SQLite serves single-node and development deployments, PostgreSQL shared
// ones. Both go through sqlx; queries live in embedded .sql files.
package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Pool limits. Task history is low-traffic; a handful of connections suffices.
const (
	maxOpenConns    = 8
	maxIdleConns    = 2
	connMaxIdleTime = 5 * time.Minute
	connMaxLifetime = 30 * time.Minute
	pingTimeout     = 5 * time.Second
)

// Driver names as registered with database/sql.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ParseURL maps a database URL to a driver name and data source.
// sqlite://file.db is relative, sqlite:///abs/path.db absolute; postgres://
// URLs are passed through unchanged.
func ParseURL(dbURL string) (driver, dataSource string, err error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid database URL: %w", err)
	}

	switch u.Scheme {
	case "sqlite":
		dataSource = u.Path
		if u.Host != "" {
			dataSource = u.Host + u.Path
		}
		if dataSource == "" {
			return "", "", fmt.Errorf("sqlite URL %q has no path", dbURL)
		}
		if u.RawQuery != "" {
			dataSource += "?" + u.RawQuery
		}
		return DriverSQLite, dataSource, nil
	case "postgres", "postgresql":
		return DriverPostgres, dbURL, nil
	default:
		return "", "", fmt.Errorf("unsupported database scheme: %q (expected sqlite or postgres)", u.Scheme)
	}
}

// Open connects to dbURL, configures the pool and verifies connectivity.
func Open(ctx context.Context, dbURL string) (*sqlx.DB, error) {
	driver, dataSource, err := ParseURL(dbURL)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// One writer at a time; concurrent writers only trade SQLITE_BUSY errors.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxIdleConns)
	}
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
