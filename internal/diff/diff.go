// Package diff renders line-oriented unified diffs for mismatch
// reporting. Output is stable: no timestamps, no locale-dependent
// content, so the same inputs always produce the same report.
package diff

import (
	"github.com/pmezard/go-difflib/difflib"
)

// Unified returns a unified diff between two texts, split on line
// boundaries, with three lines of context. An empty string means the
// texts are identical.
func Unified(a, b, aLabel, bLabel string) string {
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: aLabel,
		ToFile:   bLabel,
		Context:  3,
	})
	if err != nil {
		// The writer is an in-memory buffer; this cannot happen.
		return ""
	}
	return out
}
