// Package rule defines patch rules: which anchor field marks the insertion
// point and which field text must follow it.
package rule

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	pkgconfig "github.com/stitchtool/stitch/pkg/config"
)

// Rule describes one field to guarantee: wherever Anchor occurs in a
// document, Field must appear exactly once immediately after it,
// separated by a newline and Indent.
type Rule struct {
	Name   string `yaml:"name" json:"name"`
	Anchor string `yaml:"anchor" json:"anchor"`
	Field  string `yaml:"field" json:"field"`
	Indent string `yaml:"indent" json:"indent,omitempty"`
}

// Validate validates the rule.
//
// A rule whose field text contains the anchor text (or the reverse) can
// never reach a fixed point: each run would either re-trigger insertion on
// its own output or let the duplicate collapse eat part of the anchor.
// Such rules are rejected up front.
func (r Rule) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Anchor, validation.Required),
		validation.Field(&r.Field, validation.Required),
	); err != nil {
		return err
	}
	if strings.Contains(r.Field, r.Anchor) {
		return fmt.Errorf("rule %q: field text contains anchor text", r.Name)
	}
	if strings.Contains(r.Anchor, r.Field) {
		return fmt.Errorf("rule %q: anchor text contains field text", r.Name)
	}
	return nil
}

// File is the on-disk shape of a rules file.
type File struct {
	Rules []Rule `yaml:"rules"`
}

// Validate validates every rule in the file.
func (f *File) Validate() error {
	if len(f.Rules) == 0 {
		return fmt.Errorf("rules file contains no rules")
	}
	seen := make(map[string]struct{}, len(f.Rules))
	for _, r := range f.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("duplicate rule name %q", r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	return nil
}

// Load reads a rules file (YAML with a top-level "rules" list), expanding
// environment variables and validating every rule.
func Load(path string) ([]Rule, error) {
	var f File
	if err := pkgconfig.Load(path, &f); err != nil {
		return nil, fmt.Errorf("rule: load %s: %w", path, err)
	}
	return f.Rules, nil
}
