package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

type stubTool struct {
	name string
}

func (s *stubTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: s.name, Desc: "stub tool for tests"}, nil
}

func (s *stubTool) InvokableRun(ctx context.Context, args string, opts ...tool.Option) (string, error) {
	return "stub result", nil
}

func mustContract(t *testing.T, name string, opts ...Option) Contract {
	t.Helper()
	c, err := NewContract(&stubTool{name: name}, opts...)
	if err != nil {
		t.Fatalf("NewContract error: %v", err)
	}
	return c
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	c := mustContract(t, "stub")

	if err := reg.Register(c); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	got, err := reg.Get("stub")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != c {
		t.Fatal("expected Get to return the registered contract")
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	reg := NewRegistry()
	first := mustContract(t, "stub")
	if err := reg.Register(first); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	err := reg.Register(mustContract(t, "stub"))
	if !errors.Is(err, ErrDuplicateToolName) {
		t.Fatalf("expected ErrDuplicateToolName, got %v", err)
	}
	got, _ := reg.Get("stub")
	if got != first {
		t.Fatal("duplicate registration must not replace the original")
	}
}

func TestRegistry_UnknownTool(t *testing.T) {
	_, err := NewRegistry().Get("missing")
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestRegistry_ListIsSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"write_file", "exec", "read_file"} {
		if err := reg.Register(mustContract(t, name)); err != nil {
			t.Fatalf("Register error: %v", err)
		}
	}

	names := reg.Names()
	want := []string{"exec", "read_file", "write_file"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %v", len(want), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}

	infos, err := reg.ToolInfos(context.Background())
	if err != nil {
		t.Fatalf("ToolInfos error: %v", err)
	}
	if len(infos) != 3 || infos[0].Name != "exec" {
		t.Fatalf("unexpected tool infos: %+v", infos)
	}
}

func TestRegisterDefaults(t *testing.T) {
	reg := NewRegistry()
	if err := RegisterDefaults(reg, Options{Workspace: NewWorkspace(t.TempDir())}); err != nil {
		t.Fatalf("RegisterDefaults error: %v", err)
	}
	for _, name := range []string{
		"append_file", "edit_file", "edit_lines", "exec", "glob", "grep",
		"list_dir", "read_file", "web_fetch", "web_search", "write_file",
	} {
		if _, err := reg.Get(name); err != nil {
			t.Errorf("expected %s to be registered: %v", name, err)
		}
	}
	if err := RegisterDefaults(reg, Options{}); !errors.Is(err, ErrDuplicateToolName) {
		t.Fatalf("expected second registration to collide, got %v", err)
	}
}
