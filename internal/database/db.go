package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps *sql.DB so callers get the standard database/sql surface
// (QueryRow, Exec, Query, Begin) through embedding while keeping a named
// type to hang connection-pool defaults and future helpers off of.
type DB struct {
	*sql.DB
}

// NewPostgresDB opens a connection pool against dsn and verifies it with a
// ping before returning, so startup fails fast on a bad connection string
// instead of on the first query.
func NewPostgresDB(dsn string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &DB{DB: sqlDB}, nil
}
