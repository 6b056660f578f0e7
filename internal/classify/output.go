// Package classify decides whether shell output describes a success or a
// failure when the exit code alone cannot be trusted.
package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// ExitCodeMarker prefixes the line carrying the process exit code.
	ExitCodeMarker = "EXIT_CODE:"
	// StderrMarker opens the block holding the process stderr.
	StderrMarker = "STDERR:"
)

var exitCodeRe = regexp.MustCompile(`(?m)` + regexp.QuoteMeta(ExitCodeMarker) + `[ \t]*(-?\d+)`)

// Output is raw shell output split into the parts the rules look at.
type Output struct {
	Raw    string
	Stderr string
	// ExitCode is the first non-zero code among all exit-code markers, or 0
	// when every marker reads zero.
	ExitCode    int
	HasExitCode bool
}

// Parse splits raw output. A non-zero marker anywhere decides the exit code,
// so a nested runner's failure is not hidden by a later zero.
func Parse(raw string) Output {
	out := Output{Raw: raw}

	for _, m := range exitCodeRe.FindAllStringSubmatch(raw, -1) {
		code, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out.HasExitCode = true
		if code != 0 {
			out.ExitCode = code
			break
		}
	}

	out.Stderr = stderrBlock(raw)
	return out
}

func stderrBlock(raw string) string {
	lines := strings.Split(raw, "\n")
	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == StderrMarker {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return ""
	}

	end := len(lines)
	for i := start; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), ExitCodeMarker) {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}

// Render lays out process output in the shape Parse understands.
func Render(stdout, stderr string, exitCode int) string {
	var b strings.Builder
	stdout = strings.TrimRight(stdout, "\n")
	if stdout != "" {
		b.WriteString(stdout)
		b.WriteString("\n")
	}
	if strings.TrimSpace(stderr) != "" {
		b.WriteString(StderrMarker)
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(stderr, "\n"))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s %d", ExitCodeMarker, exitCode)
	return b.String()
}
