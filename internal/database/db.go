package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
	path string
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Use WAL mode for better concurrency
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	return &DB{
		conn: conn,
		path: dbPath,
	}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Begin starts a new transaction
func (db *DB) Begin() (*sql.Tx, error) {
	return db.conn.Begin()
}

// Migrate creates the schema if it does not exist yet.
// Statements are idempotent so this runs on every startup.
func (db *DB) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			instrument TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity REAL NOT NULL,
			price REAL NOT NULL,
			commission REAL NOT NULL DEFAULT 0,
			source TEXT NOT NULL DEFAULT 'auto',
			executed_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_instrument ON trades(instrument)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_executed_at ON trades(executed_at)`,
		`CREATE TABLE IF NOT EXISTS positions (
			instrument TEXT PRIMARY KEY,
			quantity REAL NOT NULL,
			avg_price REAL NOT NULL,
			current_price REAL,
			sector TEXT,
			last_updated TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cash_balance REAL NOT NULL,
			total_value REAL NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			instrument TEXT NOT NULL,
			strategy_id TEXT,
			action TEXT NOT NULL,
			confidence REAL NOT NULL,
			status TEXT NOT NULL,
			quantity REAL,
			price REAL,
			commission REAL,
			portfolio_impact REAL,
			reason TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_created_at ON executions(created_at)`,
		`CREATE TABLE IF NOT EXISTS strategy_state (
			strategy_id TEXT NOT NULL,
			instrument TEXT NOT NULL,
			activated_at TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			PRIMARY KEY (strategy_id, instrument)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}

// Exec executes a query without returning rows
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}
