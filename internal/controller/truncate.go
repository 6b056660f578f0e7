package controller

import "unicode/utf8"

// TruncationMarker is appended to content cut at the output limit.
const TruncationMarker = "\n[Output truncated]"

// DefaultOutputLimit is the cap, in characters, on content returned to the model.
const DefaultOutputLimit = 4000

// Truncate caps content at limit characters. Content within the limit, or a
// non-positive limit, leaves content unchanged.
func Truncate(content string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(content) <= limit {
		return content
	}
	// Cut at the byte offset of rune limit so kept bytes, valid or not, stay verbatim.
	n := 0
	for i := range content {
		if n == limit {
			return content[:i] + TruncationMarker
		}
		n++
	}
	return content
}
