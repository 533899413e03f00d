package usecase

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dsemenov/blockquery/internal/core/domain"
)

// queryTokens splits a query string into lowercase search terms, keeping
// double-quoted phrases intact as single terms.
func queryTokens(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	var tokens []string
	var b strings.Builder
	inQuote := false

	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, strings.ToLower(b.String()))
			b.Reset()
		}
	}

	for _, r := range query {
		switch {
		case r == '"':
			if inQuote {
				flush()
			}
			inQuote = !inQuote
		case !inQuote && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// findMatches locates every byte offset in text where a query term begins,
// case-insensitively. Offsets are ascending; a position is reported once even
// if two terms start there. Offsets index the original text: the comparison
// folds rune by rune instead of lowercasing the whole string, since
// lowercasing can change a rune's byte length and shift every later offset.
func findMatches(text string, terms []string) []domain.Match {
	if text == "" || len(terms) == 0 {
		return []domain.Match{}
	}

	seen := make(map[int]struct{})
	matches := make([]domain.Match, 0, 4)

	for _, term := range terms {
		if term == "" {
			continue
		}
		termRunes := []rune(term)
		for offset := 0; offset < len(text); {
			_, size := utf8.DecodeRuneInString(text[offset:])
			if foldMatchAt(text, offset, termRunes) {
				if _, dup := seen[offset]; !dup {
					seen[offset] = struct{}{}
					matches = append(matches, domain.Match{Offset: offset, Term: term})
				}
			}
			offset += size
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Offset < matches[j].Offset })
	return matches
}

// foldMatchAt reports whether term begins at the given byte offset of text
// under simple case folding.
func foldMatchAt(text string, offset int, term []rune) bool {
	rest := text[offset:]
	for _, want := range term {
		r, size := utf8.DecodeRuneInString(rest)
		if size == 0 {
			return false
		}
		if unicode.ToLower(r) != unicode.ToLower(want) {
			return false
		}
		rest = rest[size:]
	}
	return true
}
