package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestBackupDatabaseCopiesBytes(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "mandi_app.db")
	content := []byte("SQLite format 3\x00 test payload")
	if err := os.WriteFile(dbPath, content, 0o600); err != nil {
		t.Fatalf("write db: %v", err)
	}
	if err := os.WriteFile(dbPath+backupSuffix, []byte("stale backup"), 0o644); err != nil {
		t.Fatalf("write stale backup: %v", err)
	}

	backupPath, size, err := backupDatabase(dbPath)
	if err != nil {
		t.Fatalf("backup database: %v", err)
	}
	if backupPath != dbPath+".bak" {
		t.Fatalf("backup path mismatch: got=%s", backupPath)
	}
	if size != int64(len(content)) {
		t.Fatalf("size mismatch: got=%d want=%d", size, len(content))
	}

	got, err := os.ReadFile(backupPath)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("backup content mismatch: got=%q want=%q", got, content)
	}
}

func TestBackupDatabaseMissingSource(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "absent.db")

	if _, _, err := backupDatabase(dbPath); err == nil {
		t.Fatalf("expected error for missing source")
	}
	if _, err := os.Stat(dbPath + backupSuffix); !os.IsNotExist(err) {
		t.Fatalf("backup should not be created: %v", err)
	}
}
