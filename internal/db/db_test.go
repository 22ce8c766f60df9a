package db

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpenMigratesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	conn, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	for _, table := range []string{"documents", "extractions", "line_items"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?;`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	// Migrations are idempotent across restarts.
	again, err := Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	again.Close()
}

func TestDeleteCascades(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	now := time.Now().UTC()
	res, err := conn.Exec(`
		INSERT INTO documents (original_name, stored_path, media_type, page_count, size_bytes, uploaded_at)
		VALUES ('a.png', '/tmp/a.png', 'image', 1, 10, ?);
	`, now)
	if err != nil {
		t.Fatalf("insert document: %v", err)
	}
	docID, _ := res.LastInsertId()

	res, err = conn.Exec(`
		INSERT INTO extractions (document_id, engine, status, created_at, updated_at)
		VALUES (?, 'script', 'complete', ?, ?);
	`, docID, now, now)
	if err != nil {
		t.Fatalf("insert extraction: %v", err)
	}
	extID, _ := res.LastInsertId()

	if _, err := conn.Exec(`
		INSERT INTO line_items (extraction_id, position, description) VALUES (?, 0, 'item');
	`, extID); err != nil {
		t.Fatalf("insert line item: %v", err)
	}

	if _, err := conn.Exec(`DELETE FROM documents WHERE id = ?;`, docID); err != nil {
		t.Fatalf("delete document: %v", err)
	}

	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM extractions;`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("extractions remaining = %d, want 0", count)
	}
	if err := conn.QueryRow(`SELECT COUNT(*) FROM line_items;`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("line items remaining = %d, want 0", count)
	}
}
