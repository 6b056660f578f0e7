package tools

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/MEKXH/tether/internal/classify"
	"github.com/MEKXH/tether/internal/policy"
)

func TestExecTool_ContractShape(t *testing.T) {
	tool, err := NewExecTool(time.Minute, Workspace{})
	if err != nil {
		t.Fatalf("NewExecTool error: %v", err)
	}
	if tool.Name() != "exec" {
		t.Fatalf("unexpected name %q", tool.Name())
	}
	if tool.ApprovalPolicy() != policy.AlwaysAsk {
		t.Fatalf("expected exec to always ask, got %s", tool.ApprovalPolicy())
	}
	if !tool.ClassifiesOutput() {
		t.Fatal("expected exec output to be classified")
	}
}

func TestExecTool_UsesWorkspaceDirWhenWorkingDirEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	tool, err := NewExecTool(time.Minute, NewWorkspace(tmpDir))
	if err != nil {
		t.Fatalf("NewExecTool error: %v", err)
	}

	cmd := "pwd"
	if runtime.GOOS == "windows" {
		cmd = "cd"
	}
	result, err := tool.InvokableRun(context.Background(), fmt.Sprintf(`{"command": %q}`, cmd))
	if err != nil {
		t.Fatalf("InvokableRun error: %v", err)
	}

	out := classify.Parse(result)
	if !out.HasExitCode || out.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %+v", out)
	}
	resolved, _ := filepath.EvalSymlinks(tmpDir)
	if !strings.Contains(result, tmpDir) && !strings.Contains(result, resolved) {
		t.Fatalf("expected command to run in workspace dir %q, got output: %s", tmpDir, result)
	}
}

func TestExecTool_RendersStderrAndExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh syntax")
	}
	tool, err := NewExecTool(time.Minute, Workspace{})
	if err != nil {
		t.Fatalf("NewExecTool error: %v", err)
	}

	result, err := tool.InvokableRun(context.Background(), `{"command": "echo out; echo oops >&2; exit 3"}`)
	if err != nil {
		t.Fatalf("InvokableRun error: %v", err)
	}
	want := "out\nSTDERR:\noops\nEXIT_CODE: 3"
	if result != want {
		t.Fatalf("unexpected rendering:\n%q\nwant\n%q", result, want)
	}
	if v := classify.Classify(result); !v.Failed() || v.Rule != "exit_code" {
		t.Fatalf("expected exit_code failure, got %+v", v)
	}
}

func TestExecTool_DangerousCommandsFailValidation(t *testing.T) {
	dangerousCmds := []struct {
		name    string
		command string
	}{
		{"rm -rf /", "rm -rf /"},
		{"rm -r -f /", "rm -r -f /"},
		{"rm -fr /", "rm -fr /"},
		{"sudo rm -rf /", "sudo rm -rf /"},
		{"rm -rf ~", "rm -rf ~"},
		{"mkfs.ext4 /dev/sda", "mkfs.ext4 /dev/sda"},
		{"dd if=/dev/zero of=/dev/sda", "dd if=/dev/zero of=/dev/sda"},
		{"fork bomb", ":(){:|:&};:"},
	}

	tool, err := NewExecTool(time.Minute, Workspace{})
	if err != nil {
		t.Fatalf("NewExecTool error: %v", err)
	}
	for _, tc := range dangerousCmds {
		t.Run(tc.name, func(t *testing.T) {
			err := tool.Validate(context.Background(), fmt.Sprintf(`{"command": %q}`, tc.command))
			if !IsValidationError(err) || !strings.Contains(err.Error(), "blocked dangerous command") {
				t.Fatalf("expected %q to be blocked, got %v", tc.command, err)
			}
		})
	}
}

func TestExecTool_SafeCommandsPassValidation(t *testing.T) {
	tool, err := NewExecTool(time.Minute, Workspace{})
	if err != nil {
		t.Fatalf("NewExecTool error: %v", err)
	}
	for _, cmd := range []string{"echo hello", "ls -la", "rm -rf ./build", "go test ./..."} {
		if err := tool.Validate(context.Background(), fmt.Sprintf(`{"command": %q}`, cmd)); err != nil {
			t.Errorf("expected %q to pass validation, got %v", cmd, err)
		}
	}
	if err := tool.Validate(context.Background(), `{"command": "  "}`); !IsValidationError(err) {
		t.Errorf("expected empty command to fail validation, got %v", err)
	}
}

func TestExecTool_RestrictToWorkspace(t *testing.T) {
	tmpDir := t.TempDir()
	tool, err := NewExecTool(time.Minute, NewWorkspace(tmpDir))
	if err != nil {
		t.Fatalf("NewExecTool error: %v", err)
	}

	outsideDir := filepath.Dir(tmpDir)
	err = tool.Validate(context.Background(), fmt.Sprintf(`{"command": "echo test", "working_dir": %q}`, outsideDir))
	if !IsValidationError(err) || !strings.Contains(err.Error(), "working directory rejected") {
		t.Fatalf("expected working directory rejection, got %v", err)
	}
}

func TestExecTool_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sleep")
	}
	tool, err := NewExecTool(200*time.Millisecond, Workspace{})
	if err != nil {
		t.Fatalf("NewExecTool error: %v", err)
	}

	result, err := tool.InvokableRun(context.Background(), `{"command": "sleep 5"}`)
	if err != nil {
		t.Fatalf("timeout should be reported as output, got error %v", err)
	}
	out := classify.Parse(result)
	if out.ExitCode != -1 || !strings.Contains(out.Stderr, "timed out") {
		t.Fatalf("unexpected timeout rendering: %q", result)
	}
}

func TestExecTool_CancelKillsProcessGroup(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("process groups are unix-only")
	}
	tool, err := NewExecTool(0, Workspace{})
	if err != nil {
		t.Fatalf("NewExecTool error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	// The background sleep inherits stdout; if it survived, Wait would block
	// until the pipe grace period expires.
	start := time.Now()
	_, err = tool.InvokableRun(ctx, `{"command": "sleep 30 & sleep 30"}`)
	elapsed := time.Since(start)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed > killGrace {
		t.Fatalf("expected process tree to be killed promptly, took %s", elapsed)
	}
}
