package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
)

// DB wraps sql.DB for Postgres (pgx) or SQLite (go-sqlite3).
type DB struct {
	Client *sql.DB
	Driver string
}

// NewDB opens a connection pool with sane defaults and verifies it with a ping.
func NewDB(driver, connString string, maxOpen int) (*DB, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		if !strings.Contains(connString, "?") {
			connString += "?_journal_mode=WAL&_busy_timeout=5000"
		}
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := sql.Open(driver, connString)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if maxOpen <= 0 {
		maxOpen = 10
	}
	if driver == DriverSQLite {
		// one writer at a time; the unique index still decides duplicates
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{Client: db, Driver: driver}, nil
}

// Rebind rewrites '?' placeholders into the driver's bind syntax.
func (d *DB) Rebind(query string) string {
	if d.Driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Healthy verifies database connectivity.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
