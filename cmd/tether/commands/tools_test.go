package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/MEKXH/tether/internal/config"
)

func TestRenderToolTable(t *testing.T) {
	registry, err := buildRegistry(config.DefaultConfig(), t.TempDir())
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}

	var buf bytes.Buffer
	renderToolTable(&buf, registry)
	output := buf.String()

	if !strings.Contains(output, "AUTO-ACCEPT") {
		t.Fatalf("expected a column per mode, got:\n%s", output)
	}

	want := map[string][]string{
		"read_file":  {"read_file", "never", "auto", "auto", "auto"},
		"write_file": {"write_file", "write", "ask", "ask", "auto"},
		"exec":       {"exec", "always", "ask", "ask", "ask"},
	}
	found := map[string]bool{}
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		expected, ok := want[fields[0]]
		if !ok {
			continue
		}
		found[fields[0]] = true
		if strings.Join(fields, " ") != strings.Join(expected, " ") {
			t.Fatalf("row for %s = %v, want %v", fields[0], fields, expected)
		}
	}
	for name := range want {
		if !found[name] {
			t.Fatalf("missing row for %s in:\n%s", name, output)
		}
	}
}
