package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MEKXH/tether/internal/mode"
	"github.com/cloudwego/eino/schema"
)

func TestBuildSystemPrompt_IncludesProjectFiles(t *testing.T) {
	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspace, "AGENTS.md"), []byte("run make test before committing"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cb := NewContextBuilder(workspace, nil, func() []string { return []string{"exec", "read_file"} })
	prompt := cb.BuildSystemPrompt()

	for _, want := range []string{"tether", workspace, "run make test before committing", "exec, read_file"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q, got: %s", want, prompt)
		}
	}
}

func TestBuildSystemPrompt_FollowsMode(t *testing.T) {
	store := mode.NewStore(mode.Normal)
	cb := NewContextBuilder("", store, nil)

	if !strings.Contains(cb.BuildSystemPrompt(), "normal:") {
		t.Fatal("expected normal mode guidance")
	}
	if err := store.Set(mode.AutoAccept); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !strings.Contains(cb.BuildSystemPrompt(), "auto-accept:") {
		t.Fatal("expected prompt to follow the mode change")
	}
}

func TestBuildMessages(t *testing.T) {
	cb := NewContextBuilder(t.TempDir(), nil, nil)
	history := []*schema.Message{schema.UserMessage("hi"), schema.AssistantMessage("hello", nil)}

	msgs := cb.BuildMessages(history, "  list files  ")
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Role != schema.System {
		t.Fatalf("expected system message first, got %s", msgs[0].Role)
	}
	if msgs[3].Role != schema.User || msgs[3].Content != "list files" {
		t.Fatalf("unexpected user message %+v", msgs[3])
	}
}
