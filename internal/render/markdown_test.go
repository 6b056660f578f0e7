package render

import (
	"errors"
	"strings"
	"testing"
)

type fakeRenderer struct {
	inputs []string
	err    error
}

func (f *fakeRenderer) Render(s string) (string, error) {
	f.inputs = append(f.inputs, s)
	if f.err != nil {
		return "", f.err
	}
	return "R:" + s, nil
}

func TestResponseParts_WithThinkRendersBoth(t *testing.T) {
	r := &fakeRenderer{}
	think, main, hasThink := ResponseParts("<think>**t**</think>**m**", r)
	if !hasThink {
		t.Fatal("expected hasThink=true")
	}
	if len(r.inputs) != 2 {
		t.Fatalf("expected 2 renders, got %d", len(r.inputs))
	}
	if think != "R:**t**\n" {
		t.Fatalf("unexpected think: %q", think)
	}
	if main != "R:**m**\n" {
		t.Fatalf("unexpected main: %q", main)
	}
}

func TestResponseParts_NoThinkRendersMainOnly(t *testing.T) {
	r := &fakeRenderer{}
	think, main, hasThink := ResponseParts("**m**", r)
	if hasThink || think != "" {
		t.Fatalf("expected no think part, got %q", think)
	}
	if len(r.inputs) != 1 || main != "R:**m**\n" {
		t.Fatalf("unexpected render: %v %q", r.inputs, main)
	}
}

func TestMarkdown_FallsBackToRaw(t *testing.T) {
	if got := Markdown(nil, "# raw"); got != "# raw" {
		t.Fatalf("nil renderer should return input, got %q", got)
	}
	r := &fakeRenderer{err: errors.New("bad style")}
	if got := Markdown(r, "# raw"); got != "# raw" {
		t.Fatalf("failing renderer should return input, got %q", got)
	}
}

func TestNewMarkdown_RendersCode(t *testing.T) {
	r, err := NewMarkdown(0)
	if err != nil {
		t.Fatalf("NewMarkdown error: %v", err)
	}
	out := Markdown(r, "**exec**\n\n```json\n{\"command\": \"ls\"}\n```\n")
	if !strings.Contains(out, "exec") || !strings.Contains(out, "command") {
		t.Fatalf("rendered output lost content: %q", out)
	}
}
