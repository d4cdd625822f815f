// Package catalog records completed capture runs in SQLite so slides
// stay queryable across batches.
package catalog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the catalog database at path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping catalog: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return db, nil
}

func (db *DB) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		video_path TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		total_frames INTEGER NOT NULL,
		fps REAL NOT NULL,
		slide_count INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS slides (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id),
		slide_index INTEGER NOT NULL,
		filename TEXT NOT NULL,
		frame_number INTEGER NOT NULL,
		timestamp REAL NOT NULL,
		phash TEXT NOT NULL,
		group_id INTEGER NOT NULL,
		detection_reason TEXT NOT NULL,
		sharpness REAL NOT NULL,
		failed INTEGER NOT NULL DEFAULT 0,
		UNIQUE (run_id, slide_index)
	);
	`

	_, err := db.conn.Exec(query)
	return err
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}
