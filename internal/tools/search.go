package tools

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/MEKXH/tether/internal/policy"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/cloudwego/eino/components/tool/utils"
)

const (
	defaultGlobLimit = 200
	defaultGrepLimit = 100
	maxGrepFileBytes = 2 * 1024 * 1024
	maxGrepLineRunes = 300
)

// GlobInput parameters for glob tool.
type GlobInput struct {
	Pattern string `json:"pattern" jsonschema:"required,description=Doublestar pattern relative to the workspace, e.g. **/*.go"`
	Limit   int    `json:"limit" jsonschema:"description=Maximum number of matches to return"`
}

// GlobOutput result of glob tool.
type GlobOutput struct {
	Matches   []string `json:"matches"`
	Truncated bool     `json:"truncated"`
}

type globToolImpl struct {
	ws Workspace
}

func (g *globToolImpl) validate(ctx context.Context, input *GlobInput) error {
	pattern := strings.TrimSpace(input.Pattern)
	if pattern == "" {
		return Invalidf("pattern is required")
	}
	if strings.HasPrefix(pattern, "/") || strings.Contains(pattern, "..") {
		return Invalidf("pattern must be relative to the workspace")
	}
	if !doublestar.ValidatePattern(pattern) {
		return Invalidf("invalid glob pattern %q", pattern)
	}
	if input.Limit < 0 {
		return Invalidf("limit must be >= 0")
	}
	return nil
}

func (g *globToolImpl) execute(ctx context.Context, input *GlobInput) (*GlobOutput, error) {
	root := g.ws.BaseDir()
	matches, err := doublestar.Glob(os.DirFS(root), strings.TrimSpace(input.Pattern))
	if err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultGlobLimit
	}

	out := &GlobOutput{Matches: []string{}}
	sort.Strings(matches)
	for _, rel := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if g.ws.IsHidden(filepath.Join(root, filepath.FromSlash(rel))) {
			continue
		}
		if len(out.Matches) == limit {
			out.Truncated = true
			break
		}
		out.Matches = append(out.Matches, rel)
	}
	return out, nil
}

func (g *globToolImpl) format(in *GlobInput, result *string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**glob** `%s`\n", in.Pattern)
	appendResult(&b, result)
	return b.String()
}

// NewGlobTool creates the glob tool.
func NewGlobTool(ws Workspace) (Contract, error) {
	impl := &globToolImpl{ws: ws}
	inner, err := utils.InferTool("glob", "Find files in the workspace matching a glob pattern", impl.execute)
	if err != nil {
		return nil, err
	}
	return NewContract(inner,
		WithPolicy(policy.ReadOnly),
		WithValidator(ValidateAs(impl.validate)),
		WithFormatter(FormatAs("glob", impl.format)),
	)
}

// GrepInput parameters for grep tool.
type GrepInput struct {
	Pattern    string `json:"pattern" jsonschema:"required,description=RE2 regular expression"`
	Path       string `json:"path" jsonschema:"description=File or directory to search, defaults to the workspace"`
	Include    string `json:"include" jsonschema:"description=Optional doublestar filter on file paths, e.g. **/*.go"`
	IgnoreCase bool   `json:"ignore_case" jsonschema:"description=Case-insensitive matching"`
	Limit      int    `json:"limit" jsonschema:"description=Maximum number of matching lines"`
}

// GrepMatch is one matching line.
type GrepMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// GrepOutput result of grep tool.
type GrepOutput struct {
	Matches   []GrepMatch `json:"matches"`
	Truncated bool        `json:"truncated"`
}

type grepToolImpl struct {
	ws Workspace
}

func (g *grepToolImpl) compile(input *GrepInput) (*regexp.Regexp, error) {
	expr := input.Pattern
	if input.IgnoreCase {
		expr = "(?i)" + expr
	}
	return regexp.Compile(expr)
}

func (g *grepToolImpl) validate(ctx context.Context, input *GrepInput) error {
	if input.Pattern == "" {
		return Invalidf("pattern is required")
	}
	if _, err := g.compile(input); err != nil {
		return Invalidf("invalid pattern: %v", err)
	}
	if input.Include != "" && !doublestar.ValidatePattern(input.Include) {
		return Invalidf("invalid include pattern %q", input.Include)
	}
	if input.Limit < 0 {
		return Invalidf("limit must be >= 0")
	}
	if input.Path != "" {
		if _, err := g.ws.Resolve(input.Path); err != nil {
			return err
		}
	}
	return nil
}

func (g *grepToolImpl) execute(ctx context.Context, input *GrepInput) (*GrepOutput, error) {
	re, err := g.compile(input)
	if err != nil {
		return nil, err
	}
	start := g.ws.BaseDir()
	if input.Path != "" {
		if start, err = g.ws.Resolve(input.Path); err != nil {
			return nil, err
		}
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultGrepLimit
	}

	out := &GrepOutput{Matches: []GrepMatch{}}
	errLimit := errors.New("limit reached")
	walkErr := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != start && g.ws.IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != start && d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel := g.ws.display(path)
		if input.Include != "" {
			if ok, _ := doublestar.Match(input.Include, filepath.ToSlash(rel)); !ok {
				return nil
			}
		}
		for _, m := range grepFile(path, rel, re) {
			if len(out.Matches) == limit {
				out.Truncated = true
				return errLimit
			}
			out.Matches = append(out.Matches, m)
		}
		return nil
	})
	if walkErr != nil && walkErr != errLimit {
		return nil, walkErr
	}
	return out, nil
}

// grepFile scans one text file; binary and oversized files are skipped.
func grepFile(path, rel string, re *regexp.Regexp) []GrepMatch {
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxGrepFileBytes {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil || bytes.IndexByte(data, 0) >= 0 {
		return nil
	}

	var matches []GrepMatch
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), maxGrepFileBytes)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if !re.MatchString(text) {
			continue
		}
		if runes := []rune(text); len(runes) > maxGrepLineRunes {
			text = string(runes[:maxGrepLineRunes]) + "..."
		}
		matches = append(matches, GrepMatch{Path: filepath.ToSlash(rel), Line: line, Text: text})
	}
	return matches
}

func (g *grepToolImpl) format(in *GrepInput, result *string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**grep** `%s`", in.Pattern)
	if in.Path != "" {
		fmt.Fprintf(&b, " in `%s`", in.Path)
	}
	b.WriteString("\n")
	appendResult(&b, result)
	return b.String()
}

// NewGrepTool creates the grep tool.
func NewGrepTool(ws Workspace) (Contract, error) {
	impl := &grepToolImpl{ws: ws}
	inner, err := utils.InferTool("grep", "Search file contents in the workspace with a regular expression", impl.execute)
	if err != nil {
		return nil, err
	}
	return NewContract(inner,
		WithPolicy(policy.ReadOnly),
		WithValidator(ValidateAs(impl.validate)),
		WithFormatter(FormatAs("grep", impl.format)),
	)
}
