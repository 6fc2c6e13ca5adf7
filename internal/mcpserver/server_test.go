package mcpserver

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stitchtool/stitch/internal/engine"
	"github.com/stitchtool/stitch/internal/storage"
	"github.com/stitchtool/stitch/internal/testutil"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()

	_, store := testutil.TestWorkspace(t)
	db := testutil.TestDB(t)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	eng, err := engine.New(store, db, testutil.TestRules(), logger)
	if err != nil {
		t.Fatal(err)
	}

	srv := New(eng, db)
	return srv, store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go does not expose a direct "call tool" test helper, so we invoke
	// the handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "scan_file":
		result, err = srv.scanFile(ctx, req)
	case "patch_file":
		result, err = srv.patchFile(ctx, req)
	case "patch_text":
		result, err = srv.patchText(ctx, req)
	case "list_rules":
		result, err = srv.listRules(ctx, req)
	case "recent_runs":
		result, err = srv.recentRuns(ctx, req)
	default:
		t.Fatalf("unknown tool %q", name)
	}
	if err != nil {
		t.Fatalf("tool %s returned error: %v", name, err)
	}
	return result
}

func textContent(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return tc.Text
}

func TestScanFileTool(t *testing.T) {
	srv, store := testServer(t)
	_ = store.Write("a.rs", []byte("executed_time: 0,\n}\nexecuted_time: 0,\n    use_compact_array_encoding: false,\n}\n"))

	res := callTool(t, srv, "scan_file", map[string]interface{}{"path": "a.rs"})
	text := textContent(t, res)
	if !strings.Contains(text, `"anchors": 2`) || !strings.Contains(text, `"formed": 1`) {
		t.Errorf("unexpected scan output: %s", text)
	}
}

func TestPatchFileTool(t *testing.T) {
	srv, store := testServer(t)
	_ = store.Write("a.rs", []byte("executed_time: 0,\n}\n"))

	res := callTool(t, srv, "patch_file", map[string]interface{}{"path": "a.rs"})
	text := textContent(t, res)
	if !strings.Contains(text, `"changed": true`) {
		t.Errorf("unexpected patch output: %s", text)
	}

	data, _ := store.Read("a.rs")
	if !strings.Contains(string(data), "use_compact_array_encoding: false,") {
		t.Errorf("file not patched: %q", data)
	}

	// Second call is a no-op.
	res = callTool(t, srv, "patch_file", map[string]interface{}{"path": "a.rs"})
	if !strings.Contains(textContent(t, res), `"changed": false`) {
		t.Errorf("second patch reported a change")
	}
}

func TestPatchFileTool_MissingFile(t *testing.T) {
	srv, _ := testServer(t)
	res := callTool(t, srv, "patch_file", map[string]interface{}{"path": "missing.rs"})
	if !res.IsError {
		t.Error("expected error result for missing file")
	}
}

func TestPatchTextTool(t *testing.T) {
	srv, _ := testServer(t)
	res := callTool(t, srv, "patch_text", map[string]interface{}{"content": "executed_time: 0,\n}"})
	text := textContent(t, res)
	want := "executed_time: 0,\n    use_compact_array_encoding: false,\n}"
	if text != want {
		t.Errorf("patched text = %q, want %q", text, want)
	}
}

func TestListRulesTool(t *testing.T) {
	srv, _ := testServer(t)
	res := callTool(t, srv, "list_rules", nil)
	if !strings.Contains(textContent(t, res), "compact-array-encoding") {
		t.Errorf("rules output = %s", textContent(t, res))
	}
}

func TestRecentRunsTool_Empty(t *testing.T) {
	srv, _ := testServer(t)
	res := callTool(t, srv, "recent_runs", nil)
	if textContent(t, res) != "no runs recorded" {
		t.Errorf("output = %q", textContent(t, res))
	}
}

func TestRuleFormatResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readRuleFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("readRuleFormatResource: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("len(contents) = %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("unexpected type %T", contents[0])
	}
	if !strings.Contains(tc.Text, "rules") {
		t.Error("contract text missing rules section")
	}
}
