package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS attendance (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	date TEXT NOT NULL,
	time TEXT NOT NULL,
	UNIQUE(name, date)
);

CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance(date);
`

// SQLiteStore keeps the ledger in a SQLite database. The UNIQUE(name, date)
// constraint backs up the check done by Ledger.Mark.
type SQLiteStore struct {
	conn *sql.DB
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStore{conn: conn}, nil
}

// Load returns all rows ordered by insertion.
func (s *SQLiteStore) Load() ([]Record, error) {
	rows, err := s.conn.Query("SELECT name, date, time FROM attendance ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Name, &r.Date, &r.Time); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Append inserts rec. A row for the same (name, date) is left untouched.
func (s *SQLiteStore) Append(rec Record) error {
	_, err := s.conn.Exec(
		"INSERT OR IGNORE INTO attendance (name, date, time) VALUES (?, ?, ?)",
		rec.Name, rec.Date, rec.Time,
	)
	if err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
