// Package testutil provides shared test helpers for setting up workspaces and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/stitchtool/stitch/internal/history"
	"github.com/stitchtool/stitch/internal/rule"
	"github.com/stitchtool/stitch/internal/storage"
)

// TestDB creates a temporary SQLite history database that is automatically cleaned up.
func TestDB(t *testing.T) *history.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "stitch-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := history.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWorkspace creates a temporary workspace directory with a
// storage.Provider that patches .rs files.
func TestWorkspace(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir, []string{".rs"})
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestRules returns the canonical rule used across tests.
func TestRules() []rule.Rule {
	return []rule.Rule{{
		Name:   "compact-array-encoding",
		Anchor: "executed_time: 0,",
		Field:  "use_compact_array_encoding: false,",
		Indent: "    ",
	}}
}
