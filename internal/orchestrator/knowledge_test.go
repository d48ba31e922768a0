package orchestrator

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"ascii", "hello world", 5, "hello..."},
		{"trims first", "  hello  ", 5, "hello"},
		{"multi-byte kept whole", "héllo wörld", 7, "héllo w..."},
		{"cjk", "日本語のテキスト", 3, "日本語..."},
		{"emoji", "🚀🚀🚀🚀", 2, "🚀🚀..."},
		{"zero", "abc", 0, "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8: %q", tt.in, tt.n, got)
			}
		})
	}
}

func TestTruncate_SnippetLength(t *testing.T) {
	s := strings.Repeat("ü", maxSummarySnippet+50)
	got := truncate(s, maxSummarySnippet)
	if n := utf8.RuneCountInString(strings.TrimSuffix(got, "...")); n != maxSummarySnippet {
		t.Errorf("expected %d runes, got %d", maxSummarySnippet, n)
	}
	if !utf8.ValidString(got) {
		t.Error("snippet is not valid UTF-8")
	}
}
