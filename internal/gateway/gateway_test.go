package gateway

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunk(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		got := Chunk("  hello  ", 10)
		if len(got) != 1 || got[0] != "hello" {
			t.Errorf("unexpected chunks %q", got)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		if got := Chunk(" \n ", 10); got != nil {
			t.Errorf("expected no chunks, got %q", got)
		}
	})

	t.Run("prefers paragraph breaks", func(t *testing.T) {
		text := "first paragraph\n\nsecond paragraph"
		got := Chunk(text, 20)
		if len(got) != 2 || got[0] != "first paragraph" || got[1] != "second paragraph" {
			t.Errorf("unexpected chunks %q", got)
		}
	})

	t.Run("respects rune limit", func(t *testing.T) {
		text := strings.Repeat("é", 25)
		got := Chunk(text, 10)
		if len(got) != 3 {
			t.Fatalf("expected 3 chunks, got %d", len(got))
		}
		for _, c := range got {
			if utf8.RuneCountInString(c) > 10 || !utf8.ValidString(c) {
				t.Errorf("bad chunk %q", c)
			}
		}
		if strings.Join(got, "") != text {
			t.Error("chunks should reassemble the text")
		}
	})
}

func TestGoalFrom(t *testing.T) {
	tests := []struct {
		name    string
		content string
		direct  bool
		want    string
		ok      bool
	}{
		{"mention in guild", "<@42> write a haiku", false, "write a haiku", true},
		{"nick mention", "<@!42> plan the sprint", false, "plan the sprint", true},
		{"no mention in guild", "write a haiku", false, "", false},
		{"direct message", "write a haiku", true, "write a haiku", true},
		{"mention only", "<@42>", false, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := goalFrom(tt.content, "42", tt.direct)
			if got != tt.want || ok != tt.ok {
				t.Errorf("goalFrom(%q) = %q, %v", tt.content, got, ok)
			}
		})
	}
}
