package agent

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/MEKXH/tether/internal/mode"
	"github.com/cloudwego/eino/schema"
)

// projectFiles are read from the workspace root, in order, into the system prompt.
var projectFiles = []string{"AGENTS.md", "TETHER.md"}

// ContextBuilder builds the system prompt.
type ContextBuilder struct {
	workspacePath string
	modes         *mode.Store
	toolNames     func() []string
}

// NewContextBuilder creates a context builder. modes and toolNames may be nil.
func NewContextBuilder(workspacePath string, modes *mode.Store, toolNames func() []string) *ContextBuilder {
	return &ContextBuilder{workspacePath: workspacePath, modes: modes, toolNames: toolNames}
}

// BuildSystemPrompt assembles the system prompt. It is rebuilt every turn so
// mode changes and edits to project files are picked up.
func (c *ContextBuilder) BuildSystemPrompt() string {
	var parts []string
	parts = append(parts, c.coreIdentity())

	if c.workspacePath != "" {
		parts = append(parts, "## Workspace\n"+c.workspacePath)
	}
	if c.modes != nil {
		parts = append(parts, "## Mode\n"+modeGuidance(c.modes.Current()))
	}
	if c.toolNames != nil {
		if names := c.toolNames(); len(names) > 0 {
			parts = append(parts, "## Tools\n"+strings.Join(names, ", "))
		}
	}
	for _, name := range projectFiles {
		if content := c.readWorkspaceFile(name); content != "" {
			parts = append(parts, "## "+strings.TrimSuffix(name, ".md")+"\n"+content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (c *ContextBuilder) coreIdentity() string {
	return `You are tether, a coding agent working inside a local project.
Use the tools to read, search, edit and run commands in the workspace.
Some calls need the user's approval; if a call is declined, do not retry it unchanged.
Be concise. Prefer small, verifiable steps.`
}

func modeGuidance(m mode.Mode) string {
	switch m {
	case mode.Plan:
		return "plan: discuss and plan the change before editing files."
	case mode.AutoAccept:
		return "auto-accept: file edits run without confirmation; shell commands still ask."
	default:
		return "normal: file edits and shell commands ask for confirmation."
	}
}

func (c *ContextBuilder) readWorkspaceFile(name string) string {
	if c.workspacePath == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(c.workspacePath, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// BuildMessages prepends the system prompt to history and appends the user input.
func (c *ContextBuilder) BuildMessages(history []*schema.Message, current string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(c.BuildSystemPrompt()))
	messages = append(messages, history...)
	messages = append(messages, schema.UserMessage(strings.TrimSpace(current)))
	return messages
}
