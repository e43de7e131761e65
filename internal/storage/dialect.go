package storage

import (
	"fmt"
	"strings"
)

// Dialect abstracts the SQL differences between SQLite and PostgreSQL.
type Dialect interface {
	// DriverName returns the database/sql driver name.
	DriverName() string
	// Rebind converts ? placeholders to the dialect's form.
	Rebind(query string) string
	// InitStatements run once after the connection opens.
	InitStatements() []string
	// MaxOpenConns limits the pool. Zero means no limit.
	MaxOpenConns() int
	IsDuplicateKeyError(err error) bool
}

// NewDialect returns the dialect for a storage.driver value.
func NewDialect(driver string) (Dialect, error) {
	switch driver {
	case "sqlite", "":
		return sqliteDialect{}, nil
	case "postgres":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) DriverName() string         { return "sqlite" }
func (sqliteDialect) Rebind(query string) string { return query }

// SQLite PRAGMAs are per connection, so the pool is pinned to one.
func (sqliteDialect) MaxOpenConns() int { return 1 }

func (sqliteDialect) InitStatements() []string {
	return []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
}

func (sqliteDialect) IsDuplicateKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type postgresDialect struct{}

func (postgresDialect) DriverName() string       { return "postgres" }
func (postgresDialect) InitStatements() []string { return nil }
func (postgresDialect) MaxOpenConns() int        { return 0 }

func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// 23505 is unique_violation.
func (postgresDialect) IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505")
}
