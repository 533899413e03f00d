package usecase

import (
	"strings"
	"testing"
)

func TestQueryTokensPreservesQuotedPhrases(t *testing.T) {
	tokens := queryTokens(`base "governing law" Salary`)
	want := []string{"base", "governing law", "salary"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %v", len(want), tokens)
	}
	for i, tok := range want {
		if tokens[i] != tok {
			t.Fatalf("token %d: expected %q, got %q", i, tok, tokens[i])
		}
	}
}

func TestQueryTokensEmpty(t *testing.T) {
	if got := queryTokens("   "); got != nil {
		t.Fatalf("expected nil tokens, got %v", got)
	}
}

func TestFindMatchesOffsets(t *testing.T) {
	text := "base salary is $100,000"
	matches := findMatches(text, queryTokens("salary"))
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %v", matches)
	}
	m := matches[0]
	if m.Offset != 5 {
		t.Fatalf("expected offset 5, got %d", m.Offset)
	}
	if got := strings.ToLower(text[m.Offset : m.Offset+len(m.Term)]); got != "salary" {
		t.Fatalf("match span mismatch: %q", got)
	}
}

func TestFindMatchesCaseInsensitiveAndRepeated(t *testing.T) {
	text := "Salary review: the salary band"
	matches := findMatches(text, queryTokens("SALARY"))
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %v", matches)
	}
	if matches[0].Offset != 0 || matches[1].Offset != 19 {
		t.Fatalf("unexpected offsets: %v", matches)
	}
}

func TestFindMatchesOffsetsIndexOriginalTextForFoldingRunes(t *testing.T) {
	// U+0130 shrinks from two bytes to one under ToLower, which used to
	// shift every offset computed after it.
	text := "İstanbul office lease agreement"

	matches := findMatches(text, queryTokens("istanbul lease"))
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %v", matches)
	}
	if matches[0].Offset != 0 {
		t.Fatalf("expected folded match at offset 0, got %d", matches[0].Offset)
	}
	want := strings.Index(text, "lease")
	if matches[1].Offset != want {
		t.Fatalf("expected offset %d in the original text, got %d", want, matches[1].Offset)
	}
	if got := text[matches[1].Offset : matches[1].Offset+len("lease")]; got != "lease" {
		t.Fatalf("match span points at %q", got)
	}
}

func TestFindMatchesEmptyInputs(t *testing.T) {
	if got := findMatches("", queryTokens("x")); len(got) != 0 {
		t.Fatalf("expected empty matches, got %v", got)
	}
	if got := findMatches("text", nil); len(got) != 0 {
		t.Fatalf("expected empty matches, got %v", got)
	}
}
