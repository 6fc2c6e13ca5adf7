// Package engine orchestrates patch runs over the workspace: it walks the
// files, skips those already in their patched state, applies every rule,
// writes changed files back atomically, and records the outcome.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/stitchtool/stitch/internal/checksum"
	"github.com/stitchtool/stitch/internal/history"
	"github.com/stitchtool/stitch/internal/patch"
	"github.com/stitchtool/stitch/internal/rule"
	"github.com/stitchtool/stitch/internal/storage"
)

// Engine applies the configured rules to workspace files.
type Engine struct {
	store  storage.Provider
	db     history.Store
	rules  []*patch.Compiled
	logger *slog.Logger
}

// New creates an Engine. The rules are compiled up front so an invalid
// rule fails the whole run before any file is touched.
func New(store storage.Provider, db history.Store, rules []rule.Rule, logger *slog.Logger) (*Engine, error) {
	compiled, err := patch.CompileAll(rules)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return &Engine{store: store, db: db, rules: compiled, logger: logger}, nil
}

// Rules returns the source rules in application order.
func (e *Engine) Rules() []rule.Rule {
	out := make([]rule.Rule, 0, len(e.rules))
	for _, c := range e.rules {
		out = append(out, c.Rule())
	}
	return out
}

// RunOptions controls a single run.
type RunOptions struct {
	// DryRun computes results without writing files or history.
	DryRun bool
	// OnDiff, if non-nil, is called with each changed file's path and its
	// before/after text (dry-run preview hook).
	OnDiff func(path, before, after string)
}

// FileOutcome is the result of patching one file.
type FileOutcome struct {
	Path     string         `json:"path"`
	Changed  bool           `json:"changed"`
	Checksum string         `json:"checksum"`
	Results  []patch.Result `json:"results"`

	before, after string
}

// ScanCount reports anchor coverage of one rule in one file without
// modifying anything.
type ScanCount struct {
	Rule    string `json:"rule"`
	Anchors int    `json:"anchors"`
	Formed  int    `json:"formed"`
}

// Run patches every file in the workspace and returns the run summary.
// Files whose checksum matches the recorded post-patch state are skipped.
// History rows for files that disappeared from disk are pruned.
func (e *Engine) Run(opts RunOptions) (history.RunRow, error) {
	run := history.RunRow{StartedAt: time.Now()}

	metas, err := e.store.List("")
	if err != nil {
		return run, fmt.Errorf("engine: list workspace: %w", err)
	}
	checksums, err := e.db.AllChecksums()
	if err != nil {
		return run, fmt.Errorf("engine: load checksums: %w", err)
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		run.FilesScanned++

		if checksums[m.Path] == m.Checksum {
			run.FilesSkipped++
			e.logger.Debug("run: unchanged, skipped", slog.String("path", m.Path))
			continue
		}

		out, err := e.patchOne(m.Path, opts.DryRun)
		if err != nil {
			return run, err
		}
		for _, res := range out.Results {
			run.Anchors += res.Anchors
			run.FormedBefore += res.FormedBefore
			run.FormedAfter += res.FormedAfter
		}
		if out.Changed {
			run.FilesPatched++
			if opts.OnDiff != nil {
				opts.OnDiff(out.Path, out.before, out.after)
			}
		}
	}

	// Prune state for files removed from disk.
	if !opts.DryRun {
		for p := range checksums {
			if _, ok := disk[p]; !ok {
				if err := e.db.DeleteFile(p); err != nil {
					e.logger.Warn("run: prune failed", slog.String("path", p), slog.String("error", err.Error()))
				} else {
					e.logger.Debug("run: pruned stale state", slog.String("path", p))
				}
			}
		}
	}

	run.FinishedAt = time.Now()
	if run.FormedAfter != run.Anchors {
		e.logger.Warn("run: verification short of anchor count",
			slog.Int("anchors", run.Anchors),
			slog.Int("formed_after", run.FormedAfter))
	}
	if !opts.DryRun {
		id, err := e.db.RecordRun(run)
		if err != nil {
			return run, fmt.Errorf("engine: record run: %w", err)
		}
		run.ID = id
	}
	return run, nil
}

// PatchFile patches a single file and records its state. It is used by the
// watcher and the MCP server; unlike Run it does not consult the
// checksum-skip table first.
func (e *Engine) PatchFile(path string) (*FileOutcome, error) {
	return e.patchOne(path, false)
}

func (e *Engine) patchOne(path string, dryRun bool) (*FileOutcome, error) {
	data, err := e.store.Read(path)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	before := string(data)

	after, results := patch.ApplyAll(before, e.rules)

	out := &FileOutcome{
		Path:     path,
		Changed:  after != before,
		Checksum: checksum.Sum([]byte(after)),
		Results:  results,
		before:   before,
		after:    after,
	}

	if dryRun {
		return out, nil
	}

	if out.Changed {
		if err := e.store.Write(path, []byte(after)); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.logger.Info("patched", slog.String("path", path))
	}

	row := history.FileRow{
		Path:      path,
		Checksum:  out.Checksum,
		PatchedAt: time.Now(),
	}
	for _, res := range results {
		row.Anchors += res.Anchors
		row.Formed += res.FormedAfter
	}
	if err := e.db.UpsertFile(row); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return out, nil
}

// ApplyText runs the pipeline over an in-memory document without touching
// the workspace or history.
func (e *Engine) ApplyText(doc string) (string, []patch.Result) {
	return patch.ApplyAll(doc, e.rules)
}

// ScanFile counts anchors and formed pairs per rule without modifying the
// file.
func (e *Engine) ScanFile(path string) ([]ScanCount, error) {
	data, err := e.store.Read(path)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	doc := string(data)
	out := make([]ScanCount, 0, len(e.rules))
	for _, c := range e.rules {
		out = append(out, ScanCount{
			Rule:    c.Rule().Name,
			Anchors: c.CountAnchors(doc),
			Formed:  c.CountFormed(doc),
		})
	}
	return out, nil
}
