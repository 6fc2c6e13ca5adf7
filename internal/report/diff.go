// Package report renders human-readable previews of patch results.
package report

import (
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// contextLines is how many unchanged lines are kept around a change when
// eliding long equal stretches.
const contextLines = 3

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	addColor    = color.New(color.FgGreen)
	delColor    = color.New(color.FgRed)
)

// Diff returns a line-based diff of before and after, prefixed with a
// header naming the file. Inserted lines are marked "+", removed lines
// "-", and long unchanged stretches are elided.
func Diff(path, before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	sb.WriteString(headerColor.Sprintf("--- %s", path))
	sb.WriteString("\n")

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			writePrefixed(&sb, addColor, "+", d.Text)
		case diffmatchpatch.DiffDelete:
			writePrefixed(&sb, delColor, "-", d.Text)
		case diffmatchpatch.DiffEqual:
			writeContext(&sb, d.Text)
		}
	}
	return sb.String()
}

func splitLines(text string) []string {
	out := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if len(out) == 1 && out[0] == "" {
		return nil
	}
	return out
}

func writePrefixed(sb *strings.Builder, c *color.Color, prefix, text string) {
	for _, line := range splitLines(text) {
		sb.WriteString(c.Sprintf("%s %s", prefix, line))
		sb.WriteString("\n")
	}
}

func writeContext(sb *strings.Builder, text string) {
	lines := splitLines(text)
	if len(lines) <= 2*contextLines {
		for _, line := range lines {
			sb.WriteString("  " + line + "\n")
		}
		return
	}
	for _, line := range lines[:contextLines] {
		sb.WriteString("  " + line + "\n")
	}
	sb.WriteString("  ...\n")
	for _, line := range lines[len(lines)-contextLines:] {
		sb.WriteString("  " + line + "\n")
	}
}
