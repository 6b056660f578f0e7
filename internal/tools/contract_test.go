package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/MEKXH/tether/internal/policy"
)

func TestNewContract_Defaults(t *testing.T) {
	c := mustContract(t, "stub")

	if c.Name() != "stub" {
		t.Fatalf("unexpected name %q", c.Name())
	}
	if c.ApprovalPolicy() != policy.AlwaysAsk {
		t.Fatalf("expected contracts to default to AlwaysAsk, got %s", c.ApprovalPolicy())
	}
	if c.ClassifiesOutput() {
		t.Fatal("expected plain contract not to classify output")
	}
	if err := c.Validate(context.Background(), ""); err != nil {
		t.Fatalf("empty arguments should validate as {}: %v", err)
	}
	if err := c.Validate(context.Background(), `{"a":`); !IsValidationError(err) {
		t.Fatalf("expected malformed JSON to fail validation, got %v", err)
	}
}

func TestNewContract_RejectsNamelessTool(t *testing.T) {
	if _, err := NewContract(&stubTool{name: " "}); err == nil {
		t.Fatal("expected error for tool without a name")
	}
	if _, err := NewContract(nil); err == nil {
		t.Fatal("expected error for nil tool")
	}
}

func TestContract_DefaultFormat(t *testing.T) {
	c := mustContract(t, "stub")

	preview := c.Format(`{"b":1,"a":"x"}`, nil)
	if !strings.HasPrefix(preview, "**stub**") || !strings.Contains(preview, `"a": "x"`) {
		t.Fatalf("unexpected preview:\n%s", preview)
	}

	result := "done\n"
	withResult := c.Format(`{}`, &result)
	if !strings.Contains(withResult, "```\ndone\n```") {
		t.Fatalf("expected result block, got:\n%s", withResult)
	}
}

func TestValidateAs_DecodesArguments(t *testing.T) {
	type input struct {
		N int `json:"n"`
	}
	var seen int
	v := ValidateAs(func(ctx context.Context, in *input) error {
		seen = in.N
		if in.N > 3 {
			return Invalidf("n too large: %d", in.N)
		}
		return nil
	})

	if err := v(context.Background(), `{"n": 2}`); err != nil || seen != 2 {
		t.Fatalf("expected n=2 to validate, got err=%v seen=%d", err, seen)
	}
	if err := v(context.Background(), `{"n": 9}`); err == nil || err.Error() != "n too large: 9" {
		t.Fatalf("expected reason verbatim, got %v", err)
	}
	if err := v(context.Background(), `{"n": "x"}`); !IsValidationError(err) {
		t.Fatalf("expected decode failure as validation error, got %v", err)
	}
}

func TestDiffPreview(t *testing.T) {
	if got := diffPreview("x", "same", "same"); got != "_no changes_\n" {
		t.Fatalf("unexpected no-op preview %q", got)
	}
	got := diffPreview("f.txt", "a\nb\n", "a\nc\n")
	for _, want := range []string{"--- a/f.txt", "+++ b/f.txt", "-b", "+c", " a"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in diff:\n%s", want, got)
		}
	}
}
