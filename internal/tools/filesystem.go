package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MEKXH/tether/internal/policy"
	"github.com/cloudwego/eino/components/tool/utils"
)

// ReadFileInput parameters for read_file tool
type ReadFileInput struct {
	Path   string `json:"path" jsonschema:"required,description=File path, absolute or relative to the workspace"`
	Offset int    `json:"offset" jsonschema:"description=Starting line number (0-based)"`
	Limit  int    `json:"limit" jsonschema:"description=Maximum number of lines to read"`
}

// ReadFileOutput result of read_file tool
type ReadFileOutput struct {
	Content    string `json:"content"`
	TotalLines int    `json:"total_lines"`
}

type readFileToolImpl struct {
	ws Workspace
}

func (t *readFileToolImpl) validate(ctx context.Context, input *ReadFileInput) error {
	if input.Offset < 0 || input.Limit < 0 {
		return Invalidf("offset and limit must not be negative")
	}
	_, err := t.ws.ResolveExisting(input.Path, false)
	return err
}

func (t *readFileToolImpl) execute(ctx context.Context, input *ReadFileInput) (*ReadFileOutput, error) {
	path, err := t.ws.Resolve(input.Path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	content := string(data)
	lines := strings.Split(content, "\n")
	totalLines := len(lines)

	if input.Offset > 0 {
		if input.Offset >= len(lines) {
			lines = []string{}
		} else {
			lines = lines[input.Offset:]
		}
	}

	if input.Limit > 0 && input.Limit < len(lines) {
		lines = lines[:input.Limit]
	}

	return &ReadFileOutput{
		Content:    strings.Join(lines, "\n"),
		TotalLines: totalLines,
	}, nil
}

// NewReadFileTool creates the read_file tool
func NewReadFileTool(ws Workspace) (Contract, error) {
	impl := &readFileToolImpl{ws: ws}
	inner, err := utils.InferTool("read_file", "Read the contents of a file", impl.execute)
	if err != nil {
		return nil, err
	}
	return NewContract(inner,
		WithPolicy(policy.ReadOnly),
		WithValidator(ValidateAs(impl.validate)),
		WithFormatter(FormatAs("read_file", func(in *ReadFileInput, result *string) string {
			var b strings.Builder
			fmt.Fprintf(&b, "**read_file** `%s`", in.Path)
			if in.Offset > 0 || in.Limit > 0 {
				fmt.Fprintf(&b, " (offset %d, limit %d)", in.Offset, in.Limit)
			}
			b.WriteString("\n")
			return b.String()
		})),
	)
}

// WriteFileInput parameters for write_file tool
type WriteFileInput struct {
	Path    string `json:"path" jsonschema:"required,description=File path, absolute or relative to the workspace"`
	Content string `json:"content" jsonschema:"required,description=Content to write"`
}

type writeFileToolImpl struct {
	ws Workspace
}

func (t *writeFileToolImpl) validate(ctx context.Context, input *WriteFileInput) error {
	path, err := t.ws.ResolveWritable(input.Path)
	if err != nil {
		return err
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return Invalidf("%s is a directory", t.ws.display(path))
	}
	return nil
}

func (t *writeFileToolImpl) execute(ctx context.Context, input *WriteFileInput) (string, error) {
	path, err := t.ws.ResolveWritable(input.Path)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(input.Content), 0644); err != nil {
		return "", err
	}
	return "File written successfully", nil
}

func (t *writeFileToolImpl) format(in *WriteFileInput, result *string) string {
	path, err := t.ws.Resolve(in.Path)
	if err != nil {
		path = in.Path
	}
	if result != nil {
		return fmt.Sprintf("**write_file** `%s`: %s\n", in.Path, *result)
	}
	old, _ := os.ReadFile(path)
	return fmt.Sprintf("**write_file** `%s`\n\n%s", in.Path, diffPreview(in.Path, string(old), in.Content))
}

// NewWriteFileTool creates the write_file tool
func NewWriteFileTool(ws Workspace) (Contract, error) {
	impl := &writeFileToolImpl{ws: ws}
	inner, err := utils.InferTool("write_file", "Write content to a file, replacing it", impl.execute)
	if err != nil {
		return nil, err
	}
	return NewContract(inner,
		WithPolicy(policy.Write),
		WithValidator(ValidateAs(impl.validate)),
		WithFormatter(FormatAs("write_file", impl.format)),
	)
}

// ListDirInput parameters for list_dir tool
type ListDirInput struct {
	Path string `json:"path" jsonschema:"required,description=Directory path to list"`
}

type listDirToolImpl struct {
	ws Workspace
}

func (t *listDirToolImpl) validate(ctx context.Context, input *ListDirInput) error {
	_, err := t.ws.ResolveExisting(input.Path, true)
	return err
}

func (t *listDirToolImpl) execute(ctx context.Context, input *ListDirInput) ([]string, error) {
	path, err := t.ws.Resolve(input.Path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(entries))
	for _, entry := range entries {
		if t.ws.IsHidden(filepath.Join(path, entry.Name())) {
			continue
		}
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		result = append(result, name)
	}
	return result, nil
}

// NewListDirTool creates the list_dir tool
func NewListDirTool(ws Workspace) (Contract, error) {
	impl := &listDirToolImpl{ws: ws}
	inner, err := utils.InferTool("list_dir", "List contents of a directory", impl.execute)
	if err != nil {
		return nil, err
	}
	return NewContract(inner,
		WithPolicy(policy.ReadOnly),
		WithValidator(ValidateAs(impl.validate)),
	)
}

// AppendFileInput parameters for append_file tool.
type AppendFileInput struct {
	Path    string `json:"path" jsonschema:"required,description=File path, absolute or relative to the workspace"`
	Content string `json:"content" jsonschema:"required,description=Content to append to file end"`
}

type appendFileToolImpl struct {
	ws Workspace
}

func (t *appendFileToolImpl) validate(ctx context.Context, input *AppendFileInput) error {
	if strings.TrimSpace(input.Content) == "" {
		return Invalidf("content must not be empty")
	}
	_, err := t.ws.ResolveWritable(input.Path)
	return err
}

func (t *appendFileToolImpl) execute(ctx context.Context, input *AppendFileInput) (string, error) {
	path, err := t.ws.ResolveWritable(input.Path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input.Content) == "" {
		return "", fmt.Errorf("content must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.WriteString(input.Content); err != nil {
		return "", err
	}
	return "File appended successfully", nil
}

func (t *appendFileToolImpl) format(in *AppendFileInput, result *string) string {
	if result != nil {
		return fmt.Sprintf("**append_file** `%s`: %s\n", in.Path, *result)
	}
	path, err := t.ws.Resolve(in.Path)
	if err != nil {
		path = in.Path
	}
	old, _ := os.ReadFile(path)
	return fmt.Sprintf("**append_file** `%s`\n\n%s", in.Path, diffPreview(in.Path, string(old), string(old)+in.Content))
}

// NewAppendFileTool creates the append_file tool.
func NewAppendFileTool(ws Workspace) (Contract, error) {
	impl := &appendFileToolImpl{ws: ws}
	inner, err := utils.InferTool("append_file", "Append content to a file", impl.execute)
	if err != nil {
		return nil, err
	}
	return NewContract(inner,
		WithPolicy(policy.Write),
		WithValidator(ValidateAs(impl.validate)),
		WithFormatter(FormatAs("append_file", impl.format)),
	)
}
