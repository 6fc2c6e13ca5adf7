package history

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stitchtool/stitch/internal/apperr"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "stitch-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM runs`).Scan(&count); err != nil {
		t.Fatalf("runs table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM files`).Scan(&count); err != nil {
		t.Fatalf("files table missing: %v", err)
	}
}

func TestUpsertFileAndChecksums(t *testing.T) {
	db := testDB(t)
	row := FileRow{
		Path:      "src/profile.rs",
		Checksum:  "abc123",
		Anchors:   3,
		Formed:    3,
		PatchedAt: time.Now(),
	}
	if err := db.UpsertFile(row); err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}

	cs, err := db.AllChecksums()
	if err != nil {
		t.Fatalf("AllChecksums: %v", err)
	}
	if cs["src/profile.rs"] != "abc123" {
		t.Errorf("checksum = %q, want %q", cs["src/profile.rs"], "abc123")
	}

	// Upsert replaces the previous state.
	row.Checksum = "def456"
	if err := db.UpsertFile(row); err != nil {
		t.Fatalf("UpsertFile update: %v", err)
	}
	got, err := db.GetFile("src/profile.rs")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if got.Checksum != "def456" || got.Anchors != 3 {
		t.Errorf("row = %+v", got)
	}
}

func TestGetFile_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetFile("missing.rs")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteFile(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertFile(FileRow{Path: "gone.rs", Checksum: "x", PatchedAt: time.Now()})
	if err := db.DeleteFile("gone.rs"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if _, err := db.GetFile("gone.rs"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRecordAndRecentRuns(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	for i := range 3 {
		_, err := db.RecordRun(RunRow{
			StartedAt:    now,
			FinishedAt:   now.Add(time.Second),
			FilesScanned: 10,
			FilesPatched: i,
			Anchors:      42,
			FormedBefore: 30,
			FormedAfter:  42,
		})
		if err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	runs, err := db.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	// Newest first.
	if runs[0].FilesPatched != 2 || runs[1].FilesPatched != 1 {
		t.Errorf("order wrong: %+v", runs)
	}
	if runs[0].FormedAfter != 42 {
		t.Errorf("formed after = %d", runs[0].FormedAfter)
	}
}

func TestListFiles_Ordered(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertFile(FileRow{Path: "b.rs", Checksum: "1", PatchedAt: time.Now()})
	_ = db.UpsertFile(FileRow{Path: "a.rs", Checksum: "2", PatchedAt: time.Now()})

	files, err := db.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 || files[0].Path != "a.rs" {
		t.Errorf("files = %+v", files)
	}
}
