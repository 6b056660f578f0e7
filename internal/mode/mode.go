// Package mode holds the process-wide operating mode that sets how strictly
// tool calls are gated behind human approval.
package mode

import (
	"fmt"
	"strings"
)

// Mode is the operating mode.
type Mode string

const (
	Normal     Mode = "normal"
	Plan       Mode = "plan"
	AutoAccept Mode = "auto-accept"
)

// All lists every mode in keybinding cycle order.
var All = []Mode{Normal, Plan, AutoAccept}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case Normal, Plan, AutoAccept:
		return true
	default:
		return false
	}
}

func (m Mode) String() string {
	return string(m)
}

// Next returns the mode that follows m in cycle order.
func (m Mode) Next() Mode {
	for i, candidate := range All {
		if candidate == m {
			return All[(i+1)%len(All)]
		}
	}
	return Normal
}

// Parse converts user input to a Mode. Separators and case are ignored,
// so "auto_accept", "AutoAccept" and "auto-accept" are all accepted.
func Parse(raw string) (Mode, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("_", "", "-", "", " ", "").Replace(normalized)
	switch normalized {
	case "normal", "default":
		return Normal, nil
	case "plan":
		return Plan, nil
	case "autoaccept", "auto":
		return AutoAccept, nil
	default:
		return "", fmt.Errorf("%w: %q (valid: normal, plan, auto-accept)", ErrInvalidMode, raw)
	}
}
