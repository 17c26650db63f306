package db_test

import (
	"path/filepath"
	"testing"

	"recallgo/pkg/db"
)

func TestDB(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "db_test.db")

	d, err := db.Init(path)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if d == nil {
		t.Fatal("Init() returned nil DB")
	}
	d.Close()
}

func TestDB_PruneCache(t *testing.T) {
	tempDir := t.TempDir()
	d, err := db.Init(filepath.Join(tempDir, "prune_test.db"))
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer d.Close()

	if _, err := d.Exec(
		"INSERT INTO cache (key, value, created_at) VALUES (?, ?, '2000-01-01 00:00:00')",
		"old", []byte("x")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := d.PruneCache(0); err != nil {
		t.Fatalf("PruneCache failed: %v", err)
	}

	var count int
	if err := d.QueryRow("SELECT COUNT(*) FROM cache").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 cache rows after prune, got %d", count)
	}
}
