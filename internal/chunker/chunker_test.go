package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSegments_EmptyInput(t *testing.T) {
	result := Segments("   ", DefaultOptions())
	if result != nil {
		t.Errorf("expected nil, got %v", result)
	}
}

func TestSegments_ShortContent(t *testing.T) {
	text := "haan jaan. main sun rahi hoon!"
	result := Segments(text, DefaultOptions())
	if len(result) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(result))
	}
	if result[0] != text {
		t.Errorf("expected %q, got %q", text, result[0])
	}
}

func TestSegments_SplitsOnSentences(t *testing.T) {
	text := "First sentence here. Second one is here! Third? Fourth."
	result := Segments(text, Options{MaxSize: 25})

	want := []string{"First sentence here.", "Second one is here!", "Third? Fourth."}
	if len(result) != len(want) {
		t.Fatalf("expected %d segments, got %d: %q", len(want), len(result), result)
	}
	for i := range want {
		if result[i] != want[i] {
			t.Errorf("segment %d: expected %q, got %q", i, want[i], result[i])
		}
	}
}

func TestSegments_KeepsDecimals(t *testing.T) {
	result := Segments("It costs 3.50 rupees. Cheap na?", Options{MaxSize: 22})
	if len(result) != 2 || result[0] != "It costs 3.50 rupees." {
		t.Errorf("unexpected segments: %q", result)
	}
}

func TestSegments_RespectsMaxSize(t *testing.T) {
	opts := Options{MaxSize: 50}
	text := strings.Repeat("uff yaar tum kabhi time pe nahi aate ", 10) + strings.Repeat("x", 120)

	result := Segments(text, opts)
	if len(result) < 3 {
		t.Fatalf("expected several segments, got %d", len(result))
	}
	for i, s := range result {
		if n := utf8.RuneCountInString(s); n > opts.MaxSize {
			t.Errorf("segment %d has %d runes, max %d", i, n, opts.MaxSize)
		}
		if s == "" {
			t.Errorf("segment %d is empty", i)
		}
	}
}

func TestSegments_PreservesWords(t *testing.T) {
	text := strings.Repeat("acha theek hai jaan. ", 30)
	result := Segments(text, Options{MaxSize: 60})

	joined := strings.Join(result, " ")
	if strings.Join(strings.Fields(joined), " ") != strings.Join(strings.Fields(text), " ") {
		t.Error("segments should reassemble into the original words")
	}
}

func TestSegments_Multibyte(t *testing.T) {
	text := strings.Repeat("💕", 30)
	result := Segments(text, Options{MaxSize: 10})
	if len(result) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(result))
	}
	for _, s := range result {
		if !utf8.ValidString(s) {
			t.Errorf("invalid utf8 in %q", s)
		}
	}
}

func TestSegments_DefaultsWhenUnset(t *testing.T) {
	text := strings.Repeat("a", DefaultMaxSize)
	if got := Segments(text, Options{}); len(got) != 1 {
		t.Errorf("expected 1 segment at default max, got %d", len(got))
	}
}
