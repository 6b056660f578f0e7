package classify

import (
	"strings"
	"testing"
)

func TestClassify_Scenarios(t *testing.T) {
	cases := []struct {
		name     string
		output   string
		want     Outcome
		wantRule string
	}{
		{"exit code wins over text", "all good, 0 errors found\nEXIT_CODE: 1", Failure, "exit_code"},
		{"exit code anywhere", "EXIT_CODE: 1\nlooks fine", Failure, "exit_code"},
		{"false positive guard", "Linting complete: 0 errors found", Success, ""},
		{"error-free guard", "build is error-free", Success, ""},
		{"command not found", "command not found: foo", Failure, "critical_phrase"},
		{"permission denied", "open /etc/shadow: Permission denied\nEXIT_CODE: 0", Failure, "critical_phrase"},
		{"missing file", "cat: x.txt: No such file or directory", Failure, "critical_phrase"},
		{"fatal", "fatal: not a git repository", Failure, "critical_phrase"},
		{"error line prefix", "compiling\nerror: mismatched types", Failure, "critical_phrase"},
		{"error mid line is not a prefix", "handled the error gracefully", Success, ""},
		{"stderr wording", "done\nSTDERR:\ncannot open cache\nEXIT_CODE: 0", Failure, "stderr_wording"},
		{"stderr progress only", "done\nSTDERR:\nDownloading 10%\nEXIT_CODE: 0", Success, ""},
		{"plain success", "hello\nEXIT_CODE: 0", Success, ""},
		{"empty", "", Success, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := Classify(tc.output)
			if v.Outcome != tc.want {
				t.Fatalf("expected %s, got %s (rule=%s detail=%s)", tc.want, v.Outcome, v.Rule, v.Detail)
			}
			if v.Rule != tc.wantRule {
				t.Fatalf("expected rule %q, got %q", tc.wantRule, v.Rule)
			}
		})
	}
}

func TestClassify_IsPure(t *testing.T) {
	inputs := []string{
		"command not found: foo",
		"0 errors found",
		"ok\nEXIT_CODE: 2",
	}
	for _, in := range inputs {
		first := Classify(in)
		for i := 0; i < 5; i++ {
			if again := Classify(in); again != first {
				t.Fatalf("classification of %q changed between calls: %+v vs %+v", in, first, again)
			}
		}
	}
}

func TestParse_AnyNonZeroExitCodeMarkerWins(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"echo says EXIT_CODE: 0\nEXIT_CODE: 3", 3},
		{"EXIT_CODE: 1\nbuild output\nEXIT_CODE: 0", 1},
		{"log line EXIT_CODE: 2 from child\nEXIT_CODE: 0", 2},
		{"EXIT_CODE: 0\nEXIT_CODE: 0", 0},
	}
	for _, tt := range tests {
		out := Parse(tt.raw)
		if !out.HasExitCode || out.ExitCode != tt.want {
			t.Fatalf("Parse(%q): expected exit code %d, got %+v", tt.raw, tt.want, out)
		}
	}
}

func TestClassify_NestedFailureBeforeZeroExitFails(t *testing.T) {
	v := Classify("EXIT_CODE: 1\nbuild output\nEXIT_CODE: 0")
	if !v.Failed() || v.Rule != "exit_code" {
		t.Fatalf("expected exit_code failure, got %+v", v)
	}
}

func TestParse_StderrBlockStopsAtExitCode(t *testing.T) {
	out := Parse(Render("out", "warn: slow\nsecond line\n", 0))
	if out.Stderr != "warn: slow\nsecond line" {
		t.Fatalf("unexpected stderr block: %q", out.Stderr)
	}
	if !out.HasExitCode || out.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %+v", out)
	}
}

func TestRender_OmitsEmptyStderr(t *testing.T) {
	rendered := Render("hello\n", "", 0)
	if strings.Contains(rendered, StderrMarker) {
		t.Fatalf("unexpected stderr marker in %q", rendered)
	}
	if rendered != "hello\nEXIT_CODE: 0" {
		t.Fatalf("unexpected rendering: %q", rendered)
	}
}

func TestRules_AreIndependentlyUsable(t *testing.T) {
	rule := PhraseRule{Phrases: []string{"fatal"}, FalsePositives: []string{"not fatal"}}
	if matched, _ := rule.Match(Parse("this is not fatal")); matched {
		t.Fatal("expected guard to suppress match")
	}
	if matched, _ := rule.Match(Parse("fatal crash")); !matched {
		t.Fatal("expected phrase to match")
	}

	c := New(ExitCodeRule{})
	if v := c.Classify("command not found"); v.Failed() {
		t.Fatalf("exit-code-only classifier should ignore phrases, got %+v", v)
	}
}
