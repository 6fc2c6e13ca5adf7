// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes stitch tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/stitchtool/stitch/internal/engine"
	"github.com/stitchtool/stitch/internal/history"
)

// Server wraps the MCP server with stitch tools.
type Server struct {
	mcp *server.MCPServer
	eng *engine.Engine
	db  history.Store
}

// New creates a new MCP server with all stitch tools registered.
func New(eng *engine.Engine, db history.Store) *Server {
	s := &Server{eng: eng, db: db}

	s.mcp = server.NewMCPServer(
		"Stitch",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("scan_file",
		mcp.WithDescription("Count anchor occurrences and correctly formed anchor+field pairs "+
			"in a workspace file, per rule, without modifying anything."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the file (e.g. src/profile.rs)")),
	), s.scanFile)

	s.mcp.AddTool(mcp.NewTool("patch_file",
		mcp.WithDescription("Apply every configured rule to a workspace file, write the result "+
			"back atomically, and return the per-rule counts. Safe to repeat: patching is idempotent."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the file to patch")),
	), s.patchFile)

	s.mcp.AddTool(mcp.NewTool("patch_text",
		mcp.WithDescription("Apply every configured rule to the given text and return the patched "+
			"text. Pure transformation; nothing is read from or written to the workspace."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Document text to patch")),
	), s.patchText)

	s.mcp.AddTool(mcp.NewTool("list_rules",
		mcp.WithDescription("List the configured patch rules in application order. "+
			"Read the stitch://rule-format resource for the rules file contract."),
	), s.listRules)

	s.mcp.AddTool(mcp.NewTool("recent_runs",
		mcp.WithDescription("Return recent patch run summaries, newest first."),
		mcp.WithString("limit", mcp.Description("Maximum number of runs to return (default 20)")),
	), s.recentRuns)

	// Resource: rules file contract.
	s.mcp.AddResource(
		mcp.NewResource("stitch://rule-format", "Rules File Contract",
			mcp.WithResourceDescription("Canonical rules file format that stitch configurations must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRuleFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) scanFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	counts, err := s.eng.ScanFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	out, _ := json.MarshalIndent(counts, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) patchFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	outcome, err := s.eng.PatchFile(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(outcome, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) patchText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	patched, _ := s.eng.ApplyText(content)
	return mcp.NewToolResultText(patched), nil
}

func (s *Server) listRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.eng.Rules(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) recentRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 0
	if raw, err := req.RequireString("limit"); err == nil {
		limit, _ = strconv.Atoi(raw)
	}
	runs, err := s.db.RecentRuns(limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("no runs recorded"), nil
	}
	out, _ := json.MarshalIndent(runs, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readRuleFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "stitch://rule-format",
			MIMEType: "text/markdown",
			Text:     RuleFormatContract,
		},
	}, nil
}
