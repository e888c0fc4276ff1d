package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir data dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL; PRAGMA temp_store=MEMORY;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS process_samples (
			ts DATETIME NOT NULL,
			pid INTEGER NOT NULL,
			name TEXT NOT NULL,
			cpu_pct REAL NOT NULL,
			mem_mb REAL NOT NULL,
			path TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS net_connections (
			ts DATETIME NOT NULL,
			pid INTEGER NOT NULL,
			process_name TEXT NOT NULL,
			local_addr TEXT NOT NULL,
			remote_addr TEXT NOT NULL,
			status TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS file_events (
			ts DATETIME NOT NULL,
			event TEXT NOT NULL,
			path TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS notification_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_ts TEXT NOT NULL,
			channel TEXT NOT NULL,
			status TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			last_error TEXT,
			sent_ts_nullable DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_process_samples_ts ON process_samples(ts DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_net_connections_ts ON net_connections(ts DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_file_events_ts ON file_events(ts DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	return nil
}
