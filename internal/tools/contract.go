package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MEKXH/tether/internal/policy"
	"github.com/cloudwego/eino/components/tool"
)

// Contract is everything the invocation controller needs from a tool: the
// eino tool itself (schema via Info, execution via InvokableRun) plus its
// approval policy, a precondition check and a preview formatter.
type Contract interface {
	tool.InvokableTool

	Name() string
	ApprovalPolicy() policy.ApprovalPolicy
	// Validate checks preconditions the schema cannot express. The returned
	// error text is handed to the model verbatim.
	Validate(ctx context.Context, argsJSON string) error
	// Format renders a markdown preview of the call; result is nil before execution.
	Format(argsJSON string, result *string) string
	// ClassifiesOutput marks shell-like tools whose output needs failure classification.
	ClassifiesOutput() bool
}

// Validator checks call arguments before execution.
type Validator func(ctx context.Context, argsJSON string) error

// Formatter renders a preview of a call and, when available, its result.
type Formatter func(argsJSON string, result *string) string

// ValidationError is a precondition failure the model can correct.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Invalidf builds a ValidationError.
func Invalidf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateAs decodes the arguments into T before running fn.
func ValidateAs[T any](fn func(ctx context.Context, input *T) error) Validator {
	return func(ctx context.Context, argsJSON string) error {
		var input T
		if err := decodeArgs(argsJSON, &input); err != nil {
			return Invalidf("invalid arguments: %v", err)
		}
		return fn(ctx, &input)
	}
}

// FormatAs decodes the arguments into T before running fn. Undecodable
// arguments fall back to the default preview.
func FormatAs[T any](name string, fn func(input *T, result *string) string) Formatter {
	return func(argsJSON string, result *string) string {
		var input T
		if err := decodeArgs(argsJSON, &input); err != nil {
			return defaultFormat(name, argsJSON, result)
		}
		return fn(&input, result)
	}
}

func decodeArgs(argsJSON string, dst any) error {
	trimmed := strings.TrimSpace(argsJSON)
	if trimmed == "" {
		trimmed = "{}"
	}
	return json.Unmarshal([]byte(trimmed), dst)
}

type contract struct {
	tool.InvokableTool

	name     string
	policy   policy.ApprovalPolicy
	validate Validator
	format   Formatter
	shell    bool
}

// Option customises a contract built by NewContract.
type Option func(*contract)

// WithPolicy sets the approval policy. Contracts default to policy.AlwaysAsk.
func WithPolicy(p policy.ApprovalPolicy) Option {
	return func(c *contract) { c.policy = p }
}

// WithValidator sets the precondition check.
func WithValidator(v Validator) Option {
	return func(c *contract) { c.validate = v }
}

// WithFormatter sets the preview formatter.
func WithFormatter(f Formatter) Option {
	return func(c *contract) { c.format = f }
}

// WithShellOutput marks the tool's output for failure classification.
func WithShellOutput() Option {
	return func(c *contract) { c.shell = true }
}

// NewContract wraps an eino tool into a Contract.
func NewContract(inner tool.InvokableTool, opts ...Option) (Contract, error) {
	if inner == nil {
		return nil, fmt.Errorf("tool is nil")
	}
	info, err := inner.Info(context.Background())
	if err != nil {
		return nil, err
	}
	if info == nil || strings.TrimSpace(info.Name) == "" {
		return nil, fmt.Errorf("tool info missing name")
	}

	c := &contract{
		InvokableTool: inner,
		name:          info.Name,
		policy:        policy.AlwaysAsk,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *contract) Name() string { return c.name }

func (c *contract) ApprovalPolicy() policy.ApprovalPolicy { return c.policy }

func (c *contract) ClassifiesOutput() bool { return c.shell }

func (c *contract) Validate(ctx context.Context, argsJSON string) error {
	if c.validate == nil {
		var probe map[string]any
		if err := decodeArgs(argsJSON, &probe); err != nil {
			return Invalidf("invalid arguments: %v", err)
		}
		return nil
	}
	return c.validate(ctx, argsJSON)
}

func (c *contract) Format(argsJSON string, result *string) string {
	if c.format == nil {
		return defaultFormat(c.name, argsJSON, result)
	}
	return c.format(argsJSON, result)
}

func defaultFormat(name, argsJSON string, result *string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n```json\n%s\n```\n", name, prettyArgs(argsJSON))
	appendResult(&b, result)
	return b.String()
}

func appendResult(b *strings.Builder, result *string) {
	if result == nil {
		return
	}
	fmt.Fprintf(b, "\n```\n%s\n```\n", strings.TrimRight(*result, "\n"))
}

func prettyArgs(argsJSON string) string {
	var v any
	if err := decodeArgs(argsJSON, &v); err != nil {
		return strings.TrimSpace(argsJSON)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return strings.TrimSpace(argsJSON)
	}
	return string(pretty)
}
