package api

import (
	"github.com/stitchtool/stitch/internal/history"
	"github.com/stitchtool/stitch/internal/rule"
)

// RunListResponse wraps recent run summaries, newest first.
type RunListResponse struct {
	Runs []history.RunRow `json:"runs"`
}

// FileListResponse wraps the recorded per-file patch state.
type FileListResponse struct {
	Files []history.FileRow `json:"files"`
}

// RuleListResponse wraps the configured rules in application order.
type RuleListResponse struct {
	Rules []rule.Rule `json:"rules"`
}

// PatchRequest is the request body for triggering a run.
type PatchRequest struct {
	DryRun bool `json:"dry_run"`
}
