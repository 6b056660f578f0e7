package policy

import (
	"fmt"

	"github.com/MEKXH/tether/internal/mode"
)

// ApprovalPolicy declares a tool's risk tier. It is either Static, a constant
// answer, or Dynamic, a pure function of the call arguments and the live mode.
type ApprovalPolicy interface {
	requires(argsJSON string, m mode.Mode) Decision
	String() string
}

// Static is a constant approval answer independent of mode.
type Static bool

const (
	// ReadOnly never asks; used by search, read and fetch tools.
	ReadOnly Static = false
	// AlwaysAsk asks in every mode, auto-accept included; used by shell execution.
	AlwaysAsk Static = true
)

func (s Static) requires(string, mode.Mode) Decision {
	if bool(s) {
		return Decision{Required: true, Rationale: "tool always requires approval"}
	}
	return Decision{Required: false}
}

func (s Static) String() string {
	if bool(s) {
		return "always"
	}
	return "never"
}

// Dynamic computes the answer per call.
type Dynamic struct {
	Name string
	Fn   func(argsJSON string, m mode.Mode) bool
}

func (d Dynamic) requires(argsJSON string, m mode.Mode) Decision {
	if d.Fn == nil {
		return Decision{Required: true, Rationale: "approval policy has no function"}
	}
	if !d.Fn(argsJSON, m) {
		return Decision{Required: false}
	}
	return Decision{
		Required:  true,
		Rationale: fmt.Sprintf("mode %s requires approval for %s operations", m, d.Name),
	}
}

func (d Dynamic) String() string {
	if d.Name == "" {
		return "dynamic"
	}
	return d.Name
}

// Write is the shared policy for file-mutating tools: ask unless the mode is auto-accept.
var Write = Dynamic{
	Name: "write",
	Fn: func(_ string, m mode.Mode) bool {
		return m != mode.AutoAccept
	},
}

// Decision is the per-call answer of the evaluator. It is never stored.
type Decision struct {
	Required  bool
	Rationale string
}
