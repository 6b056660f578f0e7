package render

import "testing"

func TestSplitThink(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantThink string
		wantMain  string
		wantFound bool
	}{
		{
			name:      "leading block",
			input:     "<think>check the edit first</think>Edited main.go.",
			wantThink: "check the edit first",
			wantMain:  "Edited main.go.",
			wantFound: true,
		},
		{
			name:     "no block",
			input:    "Tests pass.",
			wantMain: "Tests pass.",
		},
		{
			name:      "empty block",
			input:     "<think></think>done",
			wantMain:  "done",
			wantFound: true,
		},
		{
			name:      "multiline block is trimmed",
			input:     "<think>\nread the file\nthen run go test\n</think>\nAll green.",
			wantThink: "read the file\nthen run go test",
			wantMain:  "All green.",
			wantFound: true,
		},
		{
			name:      "several blocks are joined",
			input:     "<think>one</think>A <think>two</think>B",
			wantThink: "one\n\ntwo",
			wantMain:  "A B",
			wantFound: true,
		},
		{
			name:     "unclosed block is plain text",
			input:    "<think>still going",
			wantMain: "<think>still going",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			think, main, found := SplitThink(tt.input)
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if think != tt.wantThink {
				t.Fatalf("think = %q, want %q", think, tt.wantThink)
			}
			if main != tt.wantMain {
				t.Fatalf("main = %q, want %q", main, tt.wantMain)
			}
		})
	}
}
