package main

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		t.Fatalf("unexpected error loading embedded migrations: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	for i, m := range migrations {
		if m.Version != int64(i+1) {
			t.Fatalf("expected version %d at index %d, got %d", i+1, i, m.Version)
		}
		if m.UpSQL == "" || m.DownSQL == "" {
			t.Fatalf("expected non-empty up/down sql for version %d", m.Version)
		}
	}
	if !strings.Contains(migrations[0].UpSQL, "daily_bars") {
		t.Fatal("first migration should create daily_bars")
	}
}

func TestLoadMigrationsRejectsOrphanedUp(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0001_orphan.up.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := loadMigrations(fsys); err == nil {
		t.Fatal("expected error for migration without a down file")
	}
}

func TestLoadMigrationsRejectsBadFilename(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/not-a-migration.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := loadMigrations(fsys); err == nil {
		t.Fatal("expected error for invalid filename")
	}
}
