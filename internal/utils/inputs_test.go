package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestPromptYesNo(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "y\n", true},
		{"full yes", "YES\n", true},
		{"no", "n\n", false},
		{"retry on invalid", "maybe\nyes\n", true},
		{"trimmed input", "  y  \n", true},
		{"end of input", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := PromptYesNoWithReader("Delete task 42?", strings.NewReader(tt.input), &out)
			if got != tt.want {
				t.Errorf("PromptYesNoWithReader(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "Delete task 42? (y/n): ") {
				t.Errorf("prompt not written, got %q", out.String())
			}
		})
	}
}

func TestReadString(t *testing.T) {
	got, err := ReadStringWithReader(strings.NewReader("  secret-token \nignored\n"))
	if err != nil {
		t.Fatalf("ReadStringWithReader error = %v", err)
	}
	if got != "secret-token" {
		t.Errorf("ReadStringWithReader = %q, want %q", got, "secret-token")
	}

	if _, err := ReadStringWithReader(strings.NewReader("")); err == nil {
		t.Error("ReadStringWithReader on empty input should fail")
	}
}
