package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/MEKXH/tether/internal/classify"
	"github.com/MEKXH/tether/internal/policy"
	"github.com/cloudwego/eino/components/tool/utils"
)

// ExecInput parameters for exec tool
type ExecInput struct {
	Command    string `json:"command" jsonschema:"required,description=Shell command to execute"`
	WorkingDir string `json:"working_dir" jsonschema:"description=Working directory for the command"`
}

// dangerousPatterns are regex patterns that match destructive commands.
var dangerousPatterns = []*regexp.Regexp{
	// rm with force/recursive targeting root or home
	regexp.MustCompile(`(?i)\brm\s+(-[a-z]*r[a-z]*\s+-[a-z]*f[a-z]*|-[a-z]*f[a-z]*\s+-[a-z]*r[a-z]*|-[a-z]*rf[a-z]*|-[a-z]*fr[a-z]*)\s+/\s*$`),
	regexp.MustCompile(`(?i)\brm\s+(-[a-z]*r[a-z]*\s+-[a-z]*f[a-z]*|-[a-z]*f[a-z]*\s+-[a-z]*r[a-z]*|-[a-z]*rf[a-z]*|-[a-z]*fr[a-z]*)\s+~`),
	regexp.MustCompile(`(?i)--no-preserve-root`),
	regexp.MustCompile(`(?i)\bmkfs\b`),
	regexp.MustCompile(`(?i)\bdd\s+if=`),
	// fork bomb
	regexp.MustCompile(`:\(\)\s*\{.*\|.*&\s*\}\s*;`),
	regexp.MustCompile(`(?i)\bformat\s+[a-z]:`),
	regexp.MustCompile(`(?i)\bdel\s+/[a-z]\s+/[a-z]\s+/[a-z]`),
}

// isDangerous checks whether a command matches any dangerous command pattern.
func isDangerous(cmd string) (bool, string) {
	for _, pat := range dangerousPatterns {
		if pat.MatchString(cmd) {
			return true, pat.String()
		}
	}
	return false, ""
}

// killGrace bounds how long Wait blocks on pipes after the process group is killed.
const killGrace = 2 * time.Second

type execToolImpl struct {
	timeout time.Duration
	ws      Workspace
}

func (e *execToolImpl) workDir(requested string) (string, error) {
	if strings.TrimSpace(requested) == "" {
		if e.ws.Root != "" {
			return e.ws.Root, nil
		}
		return "", nil
	}
	if !e.ws.Restrict {
		return requested, nil
	}
	dir, err := e.ws.ResolveExisting(requested, true)
	if err != nil {
		return "", Invalidf("working directory rejected: %v", err)
	}
	return dir, nil
}

func (e *execToolImpl) validate(ctx context.Context, input *ExecInput) error {
	if strings.TrimSpace(input.Command) == "" {
		return Invalidf("command is required")
	}
	if dangerous, pattern := isDangerous(input.Command); dangerous {
		return Invalidf("blocked dangerous command matching pattern: %s", pattern)
	}
	_, err := e.workDir(input.WorkingDir)
	return err
}

func (e *execToolImpl) execute(ctx context.Context, input *ExecInput) (string, error) {
	dir, err := e.workDir(input.WorkingDir)
	if err != nil {
		return "", err
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(runCtx, "cmd", "/C", input.Command)
	} else {
		cmd = exec.CommandContext(runCtx, "sh", "-c", input.Command)
	}
	cmd.Dir = dir
	cmd.Env = os.Environ()
	setProcessGroup(cmd)
	cmd.WaitDelay = killGrace

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	// The caller's cancellation wins over whatever the killed process printed.
	if err := ctx.Err(); err != nil {
		return "", context.Cause(ctx)
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			exitCode = -1
			fmt.Fprintf(&stderr, "command timed out after %s\n", e.timeout)
		case errors.As(runErr, &exitErr):
			exitCode = exitErr.ExitCode()
		default:
			return "", runErr
		}
	}

	return classify.Render(stdout.String(), stderr.String(), exitCode), nil
}

func (e *execToolImpl) format(in *ExecInput, result *string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**exec**\n\n```sh\n%s\n```\n", in.Command)
	if in.WorkingDir != "" {
		fmt.Fprintf(&b, "in `%s`\n", in.WorkingDir)
	}
	appendResult(&b, result)
	return b.String()
}

// NewExecTool creates the exec tool. A zero timeout leaves the command
// bounded only by cancellation.
func NewExecTool(timeout time.Duration, ws Workspace) (Contract, error) {
	impl := &execToolImpl{timeout: timeout, ws: ws}
	inner, err := utils.InferTool("exec", "Execute a shell command", impl.execute)
	if err != nil {
		return nil, err
	}
	return NewContract(inner,
		WithPolicy(policy.AlwaysAsk),
		WithValidator(ValidateAs(impl.validate)),
		WithFormatter(FormatAs("exec", impl.format)),
		WithShellOutput(),
	)
}
