package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLiteDialect implements Dialect for SQLite through the cgo driver
type SQLiteDialect struct{}

// NewSQLiteDialect creates a new SQLite dialect
func NewSQLiteDialect() *SQLiteDialect {
	return &SQLiteDialect{}
}

func (d *SQLiteDialect) DriverName() string {
	return "sqlite3"
}

// DSN sets pragmas per connection so every pooled connection enforces
// foreign keys and waits on the write lock instead of failing.
func (d *SQLiteDialect) DSN(config DialectConfig) string {
	return config.Path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
}

func (d *SQLiteDialect) RewriteQuery(query string) string {
	// SQLite uses ? placeholders, no rewrite needed
	return query
}

func (d *SQLiteDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
	return nil
}

func (d *SQLiteDialect) MigrationsSubdir() string {
	return "sqlite"
}

func (d *SQLiteDialect) CreateMigrationsTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT UNIQUE NOT NULL,
			executed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
}

// ForUpdate is empty: transactions start IMMEDIATE, which already holds the
// database write lock.
func (d *SQLiteDialect) ForUpdate() string {
	return ""
}

func (d *SQLiteDialect) InsertIgnore(table string, columns ...string) string {
	return fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), placeholders(len(columns)))
}

// PureSQLiteDialect is SQLite through modernc.org/sqlite, usable without cgo
type PureSQLiteDialect struct {
	SQLiteDialect
}

// NewPureSQLiteDialect creates a new cgo-free SQLite dialect
func NewPureSQLiteDialect() *PureSQLiteDialect {
	return &PureSQLiteDialect{}
}

func (d *PureSQLiteDialect) DriverName() string {
	return "sqlite"
}

func (d *PureSQLiteDialect) DSN(config DialectConfig) string {
	return config.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}
