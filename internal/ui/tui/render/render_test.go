package render

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

func TestTruncateDisplayWidth(t *testing.T) {
	tests := []struct {
		name  string
		value string
		width int
		want  string
	}{
		{name: "fits", value: "general", width: 10, want: "general"},
		{name: "truncated", value: "general chat", width: 6, want: "gener…"},
		{name: "single cell", value: "general", width: 1, want: "…"},
		{name: "zero width", value: "general", width: 0, want: ""},
		{name: "wide runes", value: "日本語チャット", width: 5, want: "日本…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateDisplayWidth(tt.value, tt.width); got != tt.want {
				t.Fatalf("TruncateDisplayWidth(%q, %d) = %q, want %q", tt.value, tt.width, got, tt.want)
			}
		})
	}
}

func TestWithScrollBarPadsToHeight(t *testing.T) {
	out := WithScrollBar("one\ntwo", 5, 4, 1)
	lines := strings.Split(out, "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}
	for i, line := range lines {
		if w := ansi.StringWidth(line); w != 7 {
			t.Fatalf("line %d width = %d, want 7", i, w)
		}
	}
	if !strings.HasSuffix(ansi.Strip(lines[3]), "▯") {
		t.Fatalf("thumb not on last line at 100%%: %q", ansi.Strip(lines[3]))
	}
}

func TestWrap(t *testing.T) {
	got := Wrap("hello wide world", 6)
	for _, line := range strings.Split(got, "\n") {
		if ansi.StringWidth(line) > 6 {
			t.Fatalf("line %q exceeds width", line)
		}
	}
	if Wrap("abc", 0) != "abc" {
		t.Fatal("zero width should leave text untouched")
	}
}
