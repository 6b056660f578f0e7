package commands

import (
	"strings"
	"testing"
)

func TestClassify_FromArgs(t *testing.T) {
	output := captureOutput(t, func() {
		if err := runClassify(nil, []string{"build", "ok", "EXIT_CODE: 2"}); err != nil {
			t.Fatalf("runClassify: %v", err)
		}
	})
	if !strings.Contains(output, "Outcome: failure") || !strings.Contains(output, "Rule:    exit_code") {
		t.Fatalf("expected exit code failure, got: %s", output)
	}
}

func TestClassify_FromStdin(t *testing.T) {
	cmd := NewClassifyCmd()
	cmd.SetIn(strings.NewReader("ok: 0 errors\nEXIT_CODE: 0\n"))

	output := captureOutput(t, func() {
		if err := runClassify(cmd, nil); err != nil {
			t.Fatalf("runClassify: %v", err)
		}
	})
	if !strings.Contains(output, "Outcome: success") {
		t.Fatalf("expected success, got: %s", output)
	}
	if strings.Contains(output, "Rule:") {
		t.Fatalf("success should not name a rule, got: %s", output)
	}
}

func TestClassify_EmptyInput(t *testing.T) {
	cmd := NewClassifyCmd()
	cmd.SetIn(strings.NewReader("  \n"))
	if err := runClassify(cmd, nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}
