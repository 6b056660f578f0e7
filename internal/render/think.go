// Package render turns model replies and tool previews into terminal output.
package render

import (
	"regexp"
	"strings"
)

var thinkBlockRe = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// SplitThink separates think block content from the main response. Several
// think blocks are joined with a blank line. If no think block is found,
// think is empty, response is content and found is false.
func SplitThink(content string) (think, response string, found bool) {
	matches := thinkBlockRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return "", content, false
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		if part := strings.TrimSpace(m[1]); part != "" {
			parts = append(parts, part)
		}
	}
	response = strings.TrimSpace(thinkBlockRe.ReplaceAllString(content, ""))
	return strings.Join(parts, "\n\n"), response, true
}
