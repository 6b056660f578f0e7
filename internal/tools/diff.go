package tools

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

const diffContextLines = 3

// diffPreview renders a fenced unified diff of before -> after.
func diffPreview(name, before, after string) string {
	if before == after {
		return "_no changes_\n"
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  diffContextLines,
	})
	if err != nil {
		return fmt.Sprintf("_diff unavailable: %v_\n", err)
	}
	return "```diff\n" + diff + "```\n"
}
