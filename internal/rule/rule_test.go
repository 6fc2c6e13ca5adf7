package rule

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidate_RequiredFields(t *testing.T) {
	r := Rule{Name: "r"}
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for missing anchor and field")
	}
	r = Rule{Name: "r", Anchor: "a: 1,", Field: "b: 2,"}
	if err := r.Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}
}

func TestValidate_FieldContainsAnchor(t *testing.T) {
	r := Rule{Name: "r", Anchor: "a: 1,", Field: "a: 1, b: 2,"}
	err := r.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "field text contains anchor") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_AnchorContainsField(t *testing.T) {
	r := Rule{Name: "r", Anchor: "b: 2, a: 1,", Field: "a: 1,"}
	if err := r.Validate(); err == nil {
		t.Fatal("expected error")
	}
}

func TestFileValidate_Empty(t *testing.T) {
	f := &File{}
	if err := f.Validate(); err == nil {
		t.Fatal("expected error for empty rules file")
	}
}

func TestFileValidate_DuplicateNames(t *testing.T) {
	f := &File{Rules: []Rule{
		{Name: "r", Anchor: "a,", Field: "b,"},
		{Name: "r", Anchor: "c,", Field: "d,"},
	}}
	err := f.Validate()
	if err == nil {
		t.Fatal("expected error for duplicate names")
	}
	if !strings.Contains(err.Error(), "duplicate rule name") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_RulesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `rules:
  - name: compact-array-encoding
    anchor: "executed_time: 0,"
    field: "use_compact_array_encoding: false,"
    indent: "    "
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("len(rules) = %d, want 1", len(rules))
	}
	if rules[0].Anchor != "executed_time: 0," {
		t.Errorf("anchor = %q", rules[0].Anchor)
	}
	if rules[0].Indent != "    " {
		t.Errorf("indent = %q", rules[0].Indent)
	}
}

func TestLoad_InvalidRule(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := "rules:\n  - name: broken\n    anchor: \"a,\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("STITCH_TEST_FIELD", "flag: true,")
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := "rules:\n  - name: env\n    anchor: \"a: 1,\"\n    field: \"${STITCH_TEST_FIELD}\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	rules, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rules[0].Field != "flag: true," {
		t.Errorf("field = %q", rules[0].Field)
	}
}
