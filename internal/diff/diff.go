// Package diff renders unified diffs for edit confirmations.
package diff

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// maxDiffBytes bounds the content size we diff; larger edits get a stub.
const maxDiffBytes = 10 * 1024 * 1024

// Result holds a rendered diff plus change statistics.
type Result struct {
	Unified      string
	AddedLines   int
	DeletedLines int
}

// Summary returns a short human-readable change summary.
func (r *Result) Summary() string {
	if r.AddedLines == 0 && r.DeletedLines == 0 {
		return "no changes"
	}
	parts := make([]string, 0, 2)
	if r.AddedLines > 0 {
		parts = append(parts, fmt.Sprintf("+%d lines", r.AddedLines))
	}
	if r.DeletedLines > 0 {
		parts = append(parts, fmt.Sprintf("-%d lines", r.DeletedLines))
	}
	return strings.Join(parts, ", ")
}

// Unified produces a unified diff between old and new content for filename.
func Unified(oldContent, newContent, filename string) *Result {
	if oldContent == newContent {
		return &Result{}
	}
	if len(oldContent) > maxDiffBytes || len(newContent) > maxDiffBytes {
		return &Result{
			Unified: fmt.Sprintf("--- a/%s\n+++ b/%s\n@@ large file, diff skipped @@\n", filename, filename),
		}
	}

	dmp := diffmatchpatch.New()
	oldRunes, newRunes, lines := dmp.DiffLinesToRunes(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(oldRunes, newRunes, false), lines)

	var body strings.Builder
	result := &Result{}
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
			result.AddedLines += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			prefix = "-"
			result.DeletedLines += countLines(d.Text)
		}
		for _, line := range splitKeepingBlank(d.Text) {
			body.WriteString(prefix)
			body.WriteString(line)
			body.WriteString("\n")
		}
	}

	result.Unified = fmt.Sprintf("--- a/%s\n+++ b/%s\n%s", filename, filename, body.String())
	return result
}

// Colorize applies terminal colors to a unified diff. No-op when disabled.
func Colorize(unified string, enabled bool) string {
	if !enabled {
		return unified
	}
	var out strings.Builder
	for _, line := range strings.Split(strings.TrimSuffix(unified, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			out.WriteString(color.New(color.FgGreen).Sprint(line))
		case strings.HasPrefix(line, "-"):
			out.WriteString(color.New(color.FgRed).Sprint(line))
		case strings.HasPrefix(line, "@@"):
			out.WriteString(color.New(color.FgCyan).Sprint(line))
		default:
			out.WriteString(line)
		}
		out.WriteString("\n")
	}
	return out.String()
}

func countLines(text string) int {
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

func splitKeepingBlank(text string) []string {
	trimmed := strings.TrimSuffix(text, "\n")
	if trimmed == "" && text != "" {
		return []string{""}
	}
	return strings.Split(trimmed, "\n")
}
