package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// Outcome is the verdict of a classification.
type Outcome int

const (
	Success Outcome = iota
	Failure
)

func (o Outcome) String() string {
	if o == Failure {
		return "failure"
	}
	return "success"
}

// Verdict names the outcome and, for failures, the rule that fired.
type Verdict struct {
	Outcome Outcome
	Rule    string
	Detail  string
}

// Failed reports whether the verdict is a failure.
func (v Verdict) Failed() bool {
	return v.Outcome == Failure
}

// Rule is one step of the ordered heuristic. Match reports whether the
// rule classifies the output as a failure.
type Rule interface {
	Name() string
	Match(out Output) (bool, string)
}

// ExitCodeRule fires on a present, non-zero exit code.
type ExitCodeRule struct{}

func (ExitCodeRule) Name() string { return "exit_code" }

func (ExitCodeRule) Match(out Output) (bool, string) {
	if out.HasExitCode && out.ExitCode != 0 {
		return true, fmt.Sprintf("exit code %d", out.ExitCode)
	}
	return false, ""
}

// PhraseRule fires when a critical phrase appears anywhere in the output,
// unless a false-positive phrasing is also present.
type PhraseRule struct {
	Phrases        []string
	LinePrefixes   []string
	FalsePositives []string
}

func (PhraseRule) Name() string { return "critical_phrase" }

func (r PhraseRule) Match(out Output) (bool, string) {
	lower := strings.ToLower(out.Raw)
	if guarded(lower, r.FalsePositives) {
		return false, ""
	}
	for _, phrase := range r.Phrases {
		if strings.Contains(lower, phrase) {
			return true, phrase
		}
	}
	for _, line := range strings.Split(lower, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, prefix := range r.LinePrefixes {
			if strings.HasPrefix(trimmed, prefix) {
				return true, strings.TrimSpace(line)
			}
		}
	}
	return false, ""
}

// StderrRule re-scans only the stderr block for error wording. Stderr alone
// is not a failure signal since many tools report progress there.
type StderrRule struct {
	Words          *regexp.Regexp
	FalsePositives []string
}

func (StderrRule) Name() string { return "stderr_wording" }

func (r StderrRule) Match(out Output) (bool, string) {
	if out.Stderr == "" || r.Words == nil {
		return false, ""
	}
	lower := strings.ToLower(out.Stderr)
	if guarded(lower, r.FalsePositives) {
		return false, ""
	}
	if word := r.Words.FindString(lower); word != "" {
		return true, "stderr mentions " + word
	}
	return false, ""
}

func guarded(lower string, falsePositives []string) bool {
	for _, fp := range falsePositives {
		if strings.Contains(lower, fp) {
			return true
		}
	}
	return false
}

// FalsePositives are phrasings that contain error words but report success.
var FalsePositives = []string{"0 errors", "error-free", "no errors found"}

// DefaultRules is the heuristic in priority order.
func DefaultRules() []Rule {
	return []Rule{
		ExitCodeRule{},
		PhraseRule{
			Phrases: []string{
				"command not found",
				"permission denied",
				"no such file or directory",
				"fatal",
			},
			LinePrefixes:   []string{"error:"},
			FalsePositives: FalsePositives,
		},
		StderrRule{
			Words:          regexp.MustCompile(`\b(errors?|fatal|cannot)\b`),
			FalsePositives: FalsePositives,
		},
	}
}

// Classifier applies an ordered rule list; the first rule that fires decides.
type Classifier struct {
	rules []Rule
}

// New builds a classifier over rules, or DefaultRules when none are given.
func New(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify returns Failure for the first matching rule, Success otherwise.
// It is a pure function of raw.
func (c *Classifier) Classify(raw string) Verdict {
	out := Parse(raw)
	for _, rule := range c.rules {
		if matched, detail := rule.Match(out); matched {
			return Verdict{Outcome: Failure, Rule: rule.Name(), Detail: detail}
		}
	}
	return Verdict{Outcome: Success}
}

var defaultClassifier = New()

// Classify runs the default heuristic.
func Classify(raw string) Verdict {
	return defaultClassifier.Classify(raw)
}
