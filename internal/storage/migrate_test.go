package storage

import (
	"testing"
	"testing/fstest"
)

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_courses.sql": {Data: []byte("SELECT 2;")},
		"001_init.sql":    {Data: []byte("SELECT 1;")},
		"003_extra.sql":   {Data: []byte("SELECT 3;")},
		"README.md":       {Data: []byte("notes")},
		"archive/0_x.sql": {Data: []byte("SELECT 0;")},
	}

	pending, err := pendingMigrations(fsys, map[string]bool{"001_init.sql": true})
	if err != nil {
		t.Fatalf("pendingMigrations failed: %v", err)
	}

	want := []string{"002_courses.sql", "003_extra.sql"}
	if len(pending) != len(want) {
		t.Fatalf("pending = %v, want %v", pending, want)
	}
	for i := range want {
		if pending[i] != want[i] {
			t.Errorf("pending[%d] = %s, want %s", i, pending[i], want[i])
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if isUniqueViolation(nil) {
		t.Error("nil is not a unique violation")
	}
	if isUniqueViolation(ErrNotFound) {
		t.Error("ErrNotFound is not a unique violation")
	}
}

func TestValidID(t *testing.T) {
	if validID("not-a-uuid") {
		t.Error("expected invalid")
	}
	if !validID("6f1c3e2a-8a9b-4c1d-9e2f-0a1b2c3d4e5f") {
		t.Error("expected valid")
	}
}
