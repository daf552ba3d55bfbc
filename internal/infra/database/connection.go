// internal/infra/database/connection.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type DB struct {
	Client *sql.DB
	Driver string
}

// Open connects to Postgres (driver "postgres", dsn = DATABASE_URL) or SQLite
// (driver "sqlite3", dsn = file path or ":memory:") and pings it.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("database: empty dsn for %s", driver)
	}
	if driver == DriverSQLite && dsn != ":memory:" {
		// busy_timeout は接続ごとの設定なので DSN で渡す
		dsn = "file:" + dsn + "?_busy_timeout=5000"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	// Connection pool tuning
	if driver == DriverSQLite {
		// SQLite は writer 1 本。FOR UPDATE が無いので直列化で原子性を担保する
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	log.Printf("[DB] connected driver=%s", driver)
	return &DB{Client: db, Driver: driver}, nil
}

// Graceful shutdown
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
