package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stitchtool/stitch/internal/apperr"
)

// RunRow summarises one patch run across the workspace.
type RunRow struct {
	ID           int64     `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	FilesScanned int       `json:"files_scanned"`
	FilesPatched int       `json:"files_patched"`
	FilesSkipped int       `json:"files_skipped"`
	Anchors      int       `json:"anchors"`
	FormedBefore int       `json:"formed_before"`
	FormedAfter  int       `json:"formed_after"`
}

// FileRow records the last patched state of one workspace file. Checksum
// is the digest of the file content after patching; a file whose on-disk
// checksum still matches can be skipped on the next run.
type FileRow struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Anchors   int       `json:"anchors"`
	Formed    int       `json:"formed"`
	PatchedAt time.Time `json:"patched_at"`
}

// RecordRun inserts a run summary and returns its id.
func (db *DB) RecordRun(r RunRow) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO runs (started_at, finished_at, files_scanned, files_patched, files_skipped,
			anchors, formed_before, formed_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.StartedAt, r.FinishedAt, r.FilesScanned, r.FilesPatched, r.FilesSkipped,
		r.Anchors, r.FormedBefore, r.FormedAfter)
	if err != nil {
		return 0, fmt.Errorf("history: record run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: run id: %w", err)
	}
	return id, nil
}

// UpsertFile inserts or replaces the patched state of a file.
func (db *DB) UpsertFile(f FileRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO files (path, checksum, anchors, formed, patched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			anchors    = excluded.anchors,
			formed     = excluded.formed,
			patched_at = excluded.patched_at
	`, f.Path, f.Checksum, f.Anchors, f.Formed, f.PatchedAt)
	if err != nil {
		return fmt.Errorf("history: upsert file: %w", err)
	}
	return nil
}

// GetFile returns the recorded state of one file, or apperr.ErrNotFound.
func (db *DB) GetFile(path string) (*FileRow, error) {
	var f FileRow
	err := db.conn.QueryRow(`
		SELECT path, checksum, anchors, formed, patched_at FROM files WHERE path = ?
	`, path).Scan(&f.Path, &f.Checksum, &f.Anchors, &f.Formed, &f.PatchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: get file: %w", err)
	}
	return &f, nil
}

// DeleteFile removes the recorded state of a file that no longer exists.
func (db *DB) DeleteFile(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("history: delete file: %w", err)
	}
	return nil
}

// AllChecksums returns the recorded post-patch checksum of every file.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM files`)
	if err != nil {
		return nil, fmt.Errorf("history: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// ListFiles returns the recorded state of every file, ordered by path.
func (db *DB) ListFiles() ([]FileRow, error) {
	rows, err := db.conn.Query(`
		SELECT path, checksum, anchors, formed, patched_at FROM files ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("history: list files: %w", err)
	}
	defer rows.Close()

	var out []FileRow
	for rows.Next() {
		var f FileRow
		if err := rows.Scan(&f.Path, &f.Checksum, &f.Anchors, &f.Formed, &f.PatchedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// RecentRuns returns up to limit run summaries, newest first.
func (db *DB) RecentRuns(limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, started_at, finished_at, files_scanned, files_patched, files_skipped,
			anchors, formed_before, formed_after
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.FilesScanned,
			&r.FilesPatched, &r.FilesSkipped, &r.Anchors, &r.FormedBefore, &r.FormedAfter); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
