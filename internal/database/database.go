// Package database centralises sqlx connection helpers for the SQL session
// store.  Two drivers are linked in: go-sql-driver/mysql (also fine for
// MariaDB) and modernc.org/sqlite, registered as "sqlite".
//
// Public entry points:
//
//	Open(driver, dsn)                             – conservative pool sizes.
//	OpenWithOptions(driver, dsn, maxOpen, maxIdle) – fine-grained control.
//
// Both helpers Ping the database before returning so callers can fail fast
// during bootstrap.  Callers should Close() the returned *sqlx.DB when no
// longer needed.
package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Open returns a *sqlx.DB with 15 max open, 5 idle, and a 30-minute
// connection lifetime.  SQLite is capped at one open connection because
// the driver serialises writers anyway.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if driver == "sqlite" {
		return OpenWithOptions(ctx, driver, dsn, 1, 1)
	}
	return OpenWithOptions(ctx, driver, dsn, 15, 5)
}

// OpenWithOptions lets callers tune maxOpen and maxIdle per pool.
func OpenWithOptions(ctx context.Context, driver, dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	switch driver {
	case "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: ping %s: %w", driver, err)
	}
	return db, nil
}
