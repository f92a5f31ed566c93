package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestPrompter_Confirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"sure\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := &Prompter{In: strings.NewReader(tt.input), Out: &out}
		got, err := p.Confirm(context.Background(), "Are you sure you want to proceed?")
		if err != nil {
			t.Fatalf("Confirm(%q) failed: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "[y/N]") {
			t.Errorf("expected question in output, got %q", out.String())
		}
	}
}

func TestPrompter_ConfirmEOF(t *testing.T) {
	p := &Prompter{In: strings.NewReader(""), Out: &bytes.Buffer{}}
	if _, err := p.Confirm(context.Background(), "?"); err == nil {
		t.Error("expected error at end of input")
	}
}
