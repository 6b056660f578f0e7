// Package controller runs the tool calls of one model response: validation,
// the approval gate, execution under the turn's cancellation token, output
// classification and truncation.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MEKXH/tether/internal/approval"
	"github.com/MEKXH/tether/internal/audit"
	"github.com/MEKXH/tether/internal/classify"
	"github.com/MEKXH/tether/internal/metrics"
	"github.com/MEKXH/tether/internal/policy"
	"github.com/MEKXH/tether/internal/tools"
	"github.com/MEKXH/tether/internal/turn"
)

var (
	// ErrNilToken is returned by RunTurn without a cancellation token.
	ErrNilToken = errors.New("controller: nil turn token")
	// ErrNilRegistry is returned by RunTurn when no registry is configured.
	ErrNilRegistry = errors.New("controller: nil tool registry")

	errNoApprover = errors.New("no approver configured")
)

// Approver makes the human decision for one gated call. Implementations
// should return when ctx is done; the controller stops waiting on
// cancellation regardless.
type Approver interface {
	Approve(ctx context.Context, p approval.Prompt) (bool, error)
}

// AuditSink receives lifecycle events.
type AuditSink interface {
	Append(event audit.Event) error
}

// Options configures a Controller.
type Options struct {
	Registry  *tools.Registry
	Evaluator policy.Evaluator
	Approver  Approver
	// Classifier defaults to classify.New().
	Classifier *classify.Classifier
	// OutputLimit caps result content in characters; zero means DefaultOutputLimit.
	OutputLimit int
	Audit       AuditSink
	Metrics     *metrics.RuntimeMetrics
}

// Controller is the invocation lifecycle controller.
type Controller struct {
	registry    *tools.Registry
	evaluator   policy.Evaluator
	approver    Approver
	classifier  *classify.Classifier
	outputLimit int
	audit       AuditSink
	metrics     *metrics.RuntimeMetrics
	now         func() time.Time

	// OnToolStart fires right before a call executes.
	OnToolStart func(req Request)
	// OnToolFinish fires once per request with its final result.
	OnToolFinish func(req Request, res Result)
}

// New creates a controller.
func New(opts Options) *Controller {
	limit := opts.OutputLimit
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = classify.New()
	}
	return &Controller{
		registry:    opts.Registry,
		evaluator:   opts.Evaluator,
		approver:    opts.Approver,
		classifier:  classifier,
		outputLimit: limit,
		audit:       opts.Audit,
		metrics:     opts.Metrics,
		now:         time.Now,
	}
}

// Registry returns the registry calls are resolved against.
func (c *Controller) Registry() *tools.Registry {
	return c.registry
}

// RunTurn processes requests strictly in order and returns exactly one
// result per request, in request order. A failing request never aborts the
// batch; once token is cancelled every remaining request resolves as
// Cancelled. Only a missing registry or token is reported as an error.
func (c *Controller) RunTurn(token *turn.Token, requests []Request) ([]Result, error) {
	if c == nil || c.registry == nil {
		return nil, ErrNilRegistry
	}
	if token == nil {
		return nil, ErrNilToken
	}

	results := make([]Result, 0, len(requests))
	cancelledSeen := false
	for _, req := range requests {
		res := c.run(token, req)
		if res.Kind == KindCancelled && !cancelledSeen {
			cancelledSeen = true
			c.record(audit.Event{Type: audit.EventTurnCancelled, TurnID: token.ID(), CallID: req.ID, Tool: req.Name})
		}
		results = append(results, res)
	}
	return results, nil
}

// run drives one request through the lifecycle and post-processes its result.
func (c *Controller) run(token *turn.Token, req Request) Result {
	start := c.now()
	logger := slog.With("turn_id", token.ID(), "call_id", req.ID, "tool", req.Name)
	c.record(audit.Event{Type: audit.EventToolReceived, TurnID: token.ID(), CallID: req.ID, Tool: req.Name})

	kind, content, executed := c.lifecycle(token, req, logger)

	res := Result{
		ID:      req.ID,
		Name:    req.Name,
		Kind:    kind,
		Content: Truncate(content, c.outputLimit),
	}
	duration := c.now().Sub(start)

	logger.Info("tool call finished", "kind", res.Kind, "duration_ms", duration.Milliseconds())
	c.record(audit.Event{Type: audit.EventToolResult, TurnID: token.ID(), CallID: req.ID, Tool: req.Name, Kind: string(res.Kind)})
	if c.metrics != nil {
		if _, err := c.metrics.RecordToolResult(string(res.Kind), duration, executed); err != nil {
			logger.Warn("record runtime metrics failed", "error", err)
		}
	}
	if c.OnToolFinish != nil {
		c.OnToolFinish(req, res)
	}
	return res
}

func (c *Controller) lifecycle(token *turn.Token, req Request, logger *slog.Logger) (kind Kind, content string, executed bool) {
	ctx := token.Context()
	cancelled := func() (Kind, string, bool) {
		return KindCancelled, cancelledMessage(req.Name), executed
	}

	if token.Cancelled() {
		return cancelled()
	}

	contract, err := c.registry.Get(req.Name)
	if err != nil {
		logger.Warn("unknown tool requested")
		return KindExecutionFailure, unknownToolMessage(req.Name), false
	}

	if err := guard(func() error { return contract.Validate(ctx, req.Arguments) }); err != nil {
		if token.Cancelled() {
			return cancelled()
		}
		var pe *panicError
		if errors.As(err, &pe) {
			logger.Error("tool validation panicked", "panic", pe.value)
			return KindExecutionFailure, errorMessage(err), false
		}
		logger.Debug("tool validation failed", "reason", err.Error())
		return KindValidationFailure, err.Error(), false
	}

	decision := c.evaluator.RequiresApproval(contract, req.Arguments)
	if decision.Required {
		c.record(audit.Event{Type: audit.EventApprovalRequired, TurnID: token.ID(), CallID: req.ID, Tool: req.Name, Detail: decision.Rationale})
		if token.Cancelled() {
			return cancelled()
		}
		approved, err := c.awaitApproval(token, contract, req, decision)
		if token.Cancelled() {
			return cancelled()
		}
		if err != nil {
			logger.Warn("approval failed", "error", err)
			return KindExecutionFailure, errorMessage(fmt.Errorf("approval failed: %w", err)), false
		}
		if !approved {
			c.record(audit.Event{Type: audit.EventApprovalRejected, TurnID: token.ID(), CallID: req.ID, Tool: req.Name})
			return KindUserRejected, rejectedMessage(req.Name), false
		}
		c.record(audit.Event{Type: audit.EventApprovalGranted, TurnID: token.ID(), CallID: req.ID, Tool: req.Name})
	}

	if token.Cancelled() {
		return cancelled()
	}

	if c.OnToolStart != nil {
		c.OnToolStart(req)
	}
	executed = true
	var output string
	err = guard(func() error {
		var runErr error
		output, runErr = contract.InvokableRun(ctx, req.Arguments)
		return runErr
	})
	// A call that returned normally has completed, even if the turn was
	// cancelled while it ran.
	if err != nil {
		if token.Cancelled() {
			return cancelled()
		}
		return KindExecutionFailure, errorMessage(err), true
	}

	if contract.ClassifiesOutput() {
		if verdict := c.classifier.Classify(output); verdict.Failed() {
			logger.Debug("shell output classified as failure", "rule", verdict.Rule, "detail", verdict.Detail)
			return KindExecutionFailure, fmt.Sprintf("Command failed (%s):\n%s", verdict.Rule, output), true
		}
	}
	return KindSuccess, output, true
}

type approvalOutcome struct {
	approved bool
	err      error
}

// awaitApproval blocks on the approver or the token, whichever comes first.
func (c *Controller) awaitApproval(token *turn.Token, contract tools.Contract, req Request, decision policy.Decision) (bool, error) {
	if c.approver == nil {
		return false, errNoApprover
	}

	prompt := approval.Prompt{
		TurnID:    token.ID(),
		CallID:    req.ID,
		ToolName:  req.Name,
		ArgsJSON:  req.Arguments,
		Rationale: decision.Rationale,
		Preview:   safeFormat(contract, req.Arguments, nil),
	}

	done := make(chan approvalOutcome, 1)
	go func() {
		var out approvalOutcome
		out.err = guard(func() error {
			var err error
			out.approved, err = c.approver.Approve(token.Context(), prompt)
			return err
		})
		done <- out
	}()

	select {
	case out := <-done:
		return out.approved, out.err
	case <-token.Done():
		return false, token.Err()
	}
}

func (c *Controller) record(event audit.Event) {
	if c.audit == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = c.now().UTC()
	}
	if err := c.audit.Append(event); err != nil {
		slog.Warn("failed to append audit event", "type", event.Type, "tool", event.Tool, "error", err)
	}
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("tool panicked: %v", e.value)
}

// guard runs fn and turns a panic into a *panicError.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return fn()
}

// safeFormat renders a preview, falling back to the raw arguments if the
// formatter panics.
func safeFormat(contract tools.Contract, argsJSON string, result *string) (preview string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tool formatter panicked", "tool", contract.Name(), "panic", r)
			preview = fmt.Sprintf("**%s**\n\n```json\n%s\n```\n", contract.Name(), argsJSON)
		}
	}()
	return contract.Format(argsJSON, result)
}

// Preview renders the tool's preview for a request, with the result once known.
func (c *Controller) Preview(req Request, result *string) string {
	if c == nil || c.registry == nil {
		return ""
	}
	contract, err := c.registry.Get(req.Name)
	if err != nil {
		return ""
	}
	return safeFormat(contract, req.Arguments, result)
}
