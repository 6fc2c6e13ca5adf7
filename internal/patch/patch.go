// Package patch implements the insert-then-collapse pipeline that
// guarantees a field follows its anchor exactly once in every record.
//
// The pipeline works on literal text, not a parsed grammar tree: anchor
// occurrences inside comments or string literals are treated the same as
// real fields. The insertion pass is blind: it appends the field after
// every anchor without checking whether one is already there. The collapse
// pass then restores correctness by rewriting every maximal
// run of duplicates down to a single copy. Applying the pipeline twice
// yields the same document as applying it once.
package patch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stitchtool/stitch/internal/rule"
)

// defaultIndent is the whitespace prefix used when a rule does not
// specify one.
const defaultIndent = "    "

// Compiled is a rule prepared for application: the replacement text and
// the matchers for formed pairs and duplicate runs are precomputed.
type Compiled struct {
	rule        rule.Rule
	replacement string
	// formedRe matches an anchor already followed, across optional
	// whitespace, by one field copy.
	formedRe *regexp.Regexp
	// runRe matches a maximal run of two or more whitespace-separated
	// field copies. A single copy must not match, so the pattern requires
	// one repetition of "field + whitespace" before the final field.
	runRe *regexp.Regexp
}

// Compile validates r and precomputes its matchers.
func Compile(r rule.Rule) (*Compiled, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("patch: compile rule: %w", err)
	}
	indent := r.Indent
	if indent == "" {
		indent = defaultIndent
	}
	anchor := regexp.QuoteMeta(r.Anchor)
	field := regexp.QuoteMeta(r.Field)
	return &Compiled{
		rule:        r,
		replacement: r.Anchor + "\n" + indent + r.Field,
		formedRe:    regexp.MustCompile(anchor + `\s*` + field),
		runRe:       regexp.MustCompile(`(?:` + field + `\s*)+` + field),
	}, nil
}

// CompileAll compiles a slice of rules in order.
func CompileAll(rules []rule.Rule) ([]*Compiled, error) {
	out := make([]*Compiled, 0, len(rules))
	for _, r := range rules {
		c, err := Compile(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Rule returns the source rule.
func (c *Compiled) Rule() rule.Rule { return c.rule }

// CountAnchors returns the number of non-overlapping anchor occurrences.
func (c *Compiled) CountAnchors(doc string) int {
	return strings.Count(doc, c.rule.Anchor)
}

// CountFormed returns the number of non-overlapping occurrences of the
// correctly formed sequence: anchor, optional whitespace, one field copy.
func (c *Compiled) CountFormed(doc string) int {
	return len(c.formedRe.FindAllStringIndex(doc, -1))
}

// insert appends the field after every anchor occurrence, unconditionally.
// Anchors already followed by the field gain a second copy; collapse
// repairs that.
func (c *Compiled) insert(doc string) string {
	return strings.ReplaceAll(doc, c.rule.Anchor, c.replacement)
}

// collapse rewrites every maximal run of two or more whitespace-separated
// field copies to exactly one copy. The whole run is replaced in a single
// substitution, so triplicates and longer runs collapse in one pass; a
// lone copy is left untouched.
func (c *Compiled) collapse(doc string) string {
	return c.runRe.ReplaceAllLiteralString(doc, c.rule.Field)
}

// Result reports the outcome of applying one rule to one document.
type Result struct {
	Rule         string `json:"rule"`
	Anchors      int    `json:"anchors"`
	FormedBefore int    `json:"formed_before"`
	FormedAfter  int    `json:"formed_after"`
	Changed      bool   `json:"changed"`
}

// Apply runs the pipeline over doc and returns the patched text with
// diagnostic counts. Anchors and FormedBefore are measured on the input,
// FormedAfter on the output; after a successful run FormedAfter equals
// Anchors unless an anchor is separated from a pre-existing field copy by
// non-whitespace text, which the pipeline leaves alone.
func (c *Compiled) Apply(doc string) (string, Result) {
	res := Result{
		Rule:         c.rule.Name,
		Anchors:      c.CountAnchors(doc),
		FormedBefore: c.CountFormed(doc),
	}
	out := c.collapse(c.insert(doc))
	res.FormedAfter = c.CountFormed(out)
	res.Changed = out != doc
	return out, res
}

// ApplyAll applies every rule in order and returns the final text with
// one Result per rule.
func ApplyAll(doc string, rules []*Compiled) (string, []Result) {
	results := make([]Result, 0, len(rules))
	for _, c := range rules {
		var res Result
		doc, res = c.Apply(doc)
		results = append(results, res)
	}
	return doc, results
}
