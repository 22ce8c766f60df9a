package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open connects to the SQLite database and runs schema migrations.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_foreign_keys=1", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return conn, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			original_name TEXT NOT NULL,
			stored_path TEXT NOT NULL UNIQUE,
			media_type TEXT NOT NULL CHECK(media_type IN ('pdf','image')),
			page_count INTEGER NOT NULL DEFAULT 0,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			uploaded_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS extractions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id INTEGER NOT NULL,
			engine TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('complete','failed')),
			invoice_number TEXT NOT NULL DEFAULT '',
			invoice_date TEXT NOT NULL DEFAULT '',
			due_date TEXT NOT NULL DEFAULT '',
			vendor_name TEXT NOT NULL DEFAULT '',
			subtotal TEXT NOT NULL DEFAULT '',
			tax TEXT NOT NULL DEFAULT '',
			total_amount TEXT NOT NULL DEFAULT '',
			currency TEXT NOT NULL DEFAULT '',
			bank_name TEXT NOT NULL DEFAULT '',
			bank_branch TEXT NOT NULL DEFAULT '',
			account_type TEXT NOT NULL DEFAULT '',
			account_number TEXT NOT NULL DEFAULT '',
			account_holder TEXT NOT NULL DEFAULT '',
			raw_text TEXT NOT NULL DEFAULT '',
			mean_confidence REAL NOT NULL DEFAULT 0,
			warnings TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(document_id) REFERENCES documents(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS line_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			extraction_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			unit_price TEXT NOT NULL DEFAULT '',
			quantity TEXT NOT NULL DEFAULT '',
			unit TEXT NOT NULL DEFAULT '',
			amount TEXT NOT NULL DEFAULT '',
			FOREIGN KEY(extraction_id) REFERENCES extractions(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_extractions_document ON extractions(document_id);`,
		`CREATE INDEX IF NOT EXISTS idx_extractions_created ON extractions(created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_line_items_extraction ON line_items(extraction_id, position);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}
	return nil
}
