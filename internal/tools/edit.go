package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/MEKXH/tether/internal/policy"
	"github.com/cloudwego/eino/components/tool/utils"
)

// EditFileInput parameters for edit_file tool.
type EditFileInput struct {
	Path    string `json:"path" jsonschema:"required,description=File path, absolute or relative to the workspace"`
	OldText string `json:"old_text" jsonschema:"required,description=Exact existing text to replace"`
	NewText string `json:"new_text" jsonschema:"required,description=Replacement text"`
}

type editFileToolImpl struct {
	ws Workspace
}

func replaceUnique(content, oldText, newText string) (string, error) {
	if oldText == "" {
		return "", Invalidf("old_text must not be empty")
	}
	occurrences := strings.Count(content, oldText)
	if occurrences == 0 {
		return "", Invalidf("old_text not found in file")
	}
	if occurrences > 1 {
		return "", Invalidf("old_text matches multiple locations (%d); provide a unique snippet", occurrences)
	}
	return strings.Replace(content, oldText, newText, 1), nil
}

func (t *editFileToolImpl) validate(ctx context.Context, input *EditFileInput) error {
	if _, err := t.ws.ResolveWritable(input.Path); err != nil {
		return err
	}
	path, err := t.ws.ResolveExisting(input.Path, false)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = replaceUnique(string(data), input.OldText, input.NewText)
	return err
}

func (t *editFileToolImpl) execute(ctx context.Context, input *EditFileInput) (string, error) {
	path, err := t.ws.ResolveWritable(input.Path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	updated, err := replaceUnique(string(data), input.OldText, input.NewText)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return "", err
	}
	return "File edited successfully", nil
}

func (t *editFileToolImpl) format(in *EditFileInput, result *string) string {
	if result != nil {
		return fmt.Sprintf("**edit_file** `%s`: %s\n", in.Path, *result)
	}
	header := fmt.Sprintf("**edit_file** `%s`\n\n", in.Path)
	path, err := t.ws.Resolve(in.Path)
	if err != nil {
		return header + diffPreview(in.Path, in.OldText, in.NewText)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return header + diffPreview(in.Path, in.OldText, in.NewText)
	}
	updated, err := replaceUnique(string(data), in.OldText, in.NewText)
	if err != nil {
		return header + diffPreview(in.Path, in.OldText, in.NewText)
	}
	return header + diffPreview(in.Path, string(data), updated)
}

// NewEditFileTool creates the edit_file tool.
func NewEditFileTool(ws Workspace) (Contract, error) {
	impl := &editFileToolImpl{ws: ws}
	inner, err := utils.InferTool("edit_file", "Edit one exact snippet in a file via old_text -> new_text replacement", impl.execute)
	if err != nil {
		return nil, err
	}
	return NewContract(inner,
		WithPolicy(policy.Write),
		WithValidator(ValidateAs(impl.validate)),
		WithFormatter(FormatAs("edit_file", impl.format)),
	)
}

// EditLinesInput parameters for edit_lines tool.
type EditLinesInput struct {
	Path      string `json:"path" jsonschema:"required,description=File path, absolute or relative to the workspace"`
	StartLine int    `json:"start_line" jsonschema:"required,description=First line to replace (1-based)"`
	EndLine   int    `json:"end_line" jsonschema:"required,description=Last line to replace (1-based, inclusive)"`
	NewText   string `json:"new_text" jsonschema:"description=Replacement text; empty deletes the lines"`
}

type editLinesToolImpl struct {
	ws Workspace
}

// replaceLines swaps lines [start, end] (1-based, inclusive) for newText,
// keeping the file's trailing newline.
func replaceLines(content string, start, end int, newText string) (string, error) {
	trailing := strings.HasSuffix(content, "\n")
	var lines []string
	if content != "" {
		lines = strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	}
	if start < 1 || end < start || end > len(lines) {
		return "", Invalidf("line range %d-%d is out of bounds (file has %d lines)", start, end, len(lines))
	}

	var replacement []string
	if newText != "" {
		replacement = strings.Split(strings.TrimSuffix(newText, "\n"), "\n")
	}

	updated := make([]string, 0, len(lines)-(end-start+1)+len(replacement))
	updated = append(updated, lines[:start-1]...)
	updated = append(updated, replacement...)
	updated = append(updated, lines[end:]...)

	out := strings.Join(updated, "\n")
	if trailing && len(updated) > 0 {
		out += "\n"
	}
	return out, nil
}

func (t *editLinesToolImpl) validate(ctx context.Context, input *EditLinesInput) error {
	if _, err := t.ws.ResolveWritable(input.Path); err != nil {
		return err
	}
	path, err := t.ws.ResolveExisting(input.Path, false)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = replaceLines(string(data), input.StartLine, input.EndLine, input.NewText)
	return err
}

func (t *editLinesToolImpl) execute(ctx context.Context, input *EditLinesInput) (string, error) {
	path, err := t.ws.ResolveWritable(input.Path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	updated, err := replaceLines(string(data), input.StartLine, input.EndLine, input.NewText)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return "", err
	}
	return fmt.Sprintf("Replaced lines %d-%d", input.StartLine, input.EndLine), nil
}

func (t *editLinesToolImpl) format(in *EditLinesInput, result *string) string {
	if result != nil {
		return fmt.Sprintf("**edit_lines** `%s`: %s\n", in.Path, *result)
	}
	header := fmt.Sprintf("**edit_lines** `%s` lines %d-%d\n\n", in.Path, in.StartLine, in.EndLine)
	path, err := t.ws.Resolve(in.Path)
	if err != nil {
		return header
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return header
	}
	updated, err := replaceLines(string(data), in.StartLine, in.EndLine, in.NewText)
	if err != nil {
		return header + err.Error() + "\n"
	}
	return header + diffPreview(in.Path, string(data), updated)
}

// NewEditLinesTool creates the edit_lines tool.
func NewEditLinesTool(ws Workspace) (Contract, error) {
	impl := &editLinesToolImpl{ws: ws}
	inner, err := utils.InferTool("edit_lines", "Replace a range of lines in a file", impl.execute)
	if err != nil {
		return nil, err
	}
	return NewContract(inner,
		WithPolicy(policy.Write),
		WithValidator(ValidateAs(impl.validate)),
		WithFormatter(FormatAs("edit_lines", impl.format)),
	)
}
