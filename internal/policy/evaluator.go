package policy

import "github.com/MEKXH/tether/internal/mode"

// Governed is anything that declares an approval policy, typically a tool contract.
type Governed interface {
	ApprovalPolicy() ApprovalPolicy
}

// Evaluator decides whether a call must wait for human confirmation. It reads
// the mode store on every call, so a mode change applies to the next call
// evaluated, even within a batch already in progress.
type Evaluator struct {
	modes *mode.Store
}

// NewEvaluator builds an evaluator over the given mode store. A nil store
// falls back to the process-wide one.
func NewEvaluator(modes *mode.Store) Evaluator {
	if modes == nil {
		modes = mode.Global()
	}
	return Evaluator{modes: modes}
}

// Mode returns the mode the next evaluation would observe.
func (e Evaluator) Mode() mode.Mode {
	return e.store().Current()
}

// RequiresApproval evaluates subject's policy for argsJSON under the current mode.
func (e Evaluator) RequiresApproval(subject Governed, argsJSON string) Decision {
	if subject == nil {
		return Decision{Required: true, Rationale: "no approval policy declared"}
	}
	p := subject.ApprovalPolicy()
	if p == nil {
		return Decision{Required: true, Rationale: "no approval policy declared"}
	}
	return p.requires(argsJSON, e.store().Current())
}

func (e Evaluator) store() *mode.Store {
	if e.modes == nil {
		return mode.Global()
	}
	return e.modes
}
