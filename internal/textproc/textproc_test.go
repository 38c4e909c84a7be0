package textproc

import (
	"strings"
	"testing"
)

func TestNormalizeCollapsesCaseAndWhitespace(t *testing.T) {
	a := Normalize("  Board Meeting ", "  moved   to 10 AM\n\n")
	b := Normalize("board meeting", "moved to 10 am")
	if a != b {
		t.Fatalf("expected equal normalization, got %q vs %q", a, b)
	}
}

func TestFingerprintStableAcrossFormatting(t *testing.T) {
	a := Fingerprint("Hello World", "some body text")
	b := Fingerprint("  hello   WORLD ", "some  body\ttext")
	if a != b {
		t.Fatalf("expected identical fingerprints, got %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	c := Fingerprint("hello world", "different body")
	if a == c {
		t.Fatal("different content must not collide on trivial inputs")
	}
}

func TestTokenizeSplitsOnNonAlphanumeric(t *testing.T) {
	tokens := Tokenize("WINNER! You've won $1,000,000")
	want := []string{"winner", "you", "ve", "won", "1", "000", "000"}
	if strings.Join(tokens, " ") != strings.Join(want, " ") {
		t.Fatalf("unexpected tokens: %v", tokens)
	}
	if Tokenize("") != nil {
		t.Fatal("empty input should yield nil tokens")
	}
}

func TestBigrams(t *testing.T) {
	got := Bigrams([]string{"board", "meeting", "moved"})
	if len(got) != 2 || got[0] != "board_meeting" || got[1] != "meeting_moved" {
		t.Fatalf("unexpected bigrams: %v", got)
	}
	if Bigrams([]string{"solo"}) != nil {
		t.Fatal("single token should yield no bigrams")
	}
}
