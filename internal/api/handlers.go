package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stitchtool/stitch/internal/apperr"
	"github.com/stitchtool/stitch/internal/engine"
	"github.com/stitchtool/stitch/internal/history"
)

// Handler holds API route handlers.
type Handler struct {
	eng *engine.Engine
	db  history.Store
}

// NewHandler creates a new Handler.
func NewHandler(eng *engine.Engine, db history.Store) *Handler {
	return &Handler{eng: eng, db: db}
}

// filePath extracts the file path from the URL (everything after /files/).
// Supports encoded slashes (e.g. src%2Fprofile.rs).
func filePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListRuns handles GET /runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.db.RecentRuns(limit)
	if err != nil {
		slog.Error("list runs failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if runs == nil {
		runs = []history.RunRow{}
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// ListFiles handles GET /files.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.db.ListFiles()
	if err != nil {
		slog.Error("list files failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if files == nil {
		files = []history.FileRow{}
	}
	writeJSON(w, http.StatusOK, FileListResponse{Files: files})
}

// GetFile handles GET /files/*.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	row, err := h.db.GetFile(path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get file failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// ListRules handles GET /rules.
func (h *Handler) ListRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RuleListResponse{Rules: h.eng.Rules()})
}

// TriggerPatch handles POST /patch: runs the engine over the workspace and
// returns the run summary. An empty body means a real (writing) run.
func (h *Handler) TriggerPatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req PatchRequest
	// An empty body is fine; anything else must be valid JSON.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	run, err := h.eng.Run(engine.RunOptions{DryRun: req.DryRun})
	if err != nil {
		slog.Error("patch run failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, run)
}
