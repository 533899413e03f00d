package usecase

import (
	"context"
	"sort"
	"strings"

	"github.com/dsemenov/blockquery/internal/core/domain"
)

// ApplySemanticRanking re-orders an existing result list by running a
// semantic pass with altQuery (or the list's own query when empty): entries
// found in the semantic pass come first, in semantic order with their
// distance attached; the rest keep their original relative order.
func (e *Engine) ApplySemanticRanking(ctx context.Context, results []domain.ResultRecord, altQuery string) ([]domain.ResultRecord, error) {
	if len(results) == 0 {
		return results, nil
	}
	if altQuery == "" && results[0].Query != "" {
		altQuery = results[0].Query
	}

	sample := len(results)
	if sample < DefaultResultCount {
		sample = DefaultResultCount
	}
	semantic, err := e.semanticSearch(ctx, altQuery, altQuery, SemanticOptions{ResultCount: sample}, domain.DocFilter{})
	if err != nil {
		return nil, err
	}

	rank := make(map[string]int, len(semantic))
	distance := make(map[string]float64, len(semantic))
	for i, rec := range semantic {
		key := rec.IdentityKey()
		if _, dup := rank[key]; !dup {
			rank[key] = i
			distance[key] = rec.Distance
		}
	}

	ranked := make([]domain.ResultRecord, 0, len(results))
	unranked := make([]domain.ResultRecord, 0, len(results))
	for _, rec := range results {
		if _, ok := rank[rec.IdentityKey()]; ok {
			rec.Distance = distance[rec.IdentityKey()]
			ranked = append(ranked, rec)
		} else {
			unranked = append(unranked, rec)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return rank[ranked[i].IdentityKey()] < rank[ranked[j].IdentityKey()]
	})

	return append(ranked, unranked...), nil
}

// MoreLikeThis scores candidates by lexical token overlap with a reference
// text and returns those at or above the threshold, sorted by descending
// overlap ratio. A lightweight alternative to embedding similarity; the
// ratio lands in each record's Similarity field.
func MoreLikeThis(target string, candidates []domain.ResultRecord, threshold float64) []domain.ResultRecord {
	targetTokens := toTokenSet(target)
	if len(targetTokens) == 0 {
		return []domain.ResultRecord{}
	}

	out := make([]domain.ResultRecord, 0, len(candidates))
	for _, rec := range candidates {
		overlap := tokenOverlap(targetTokens, toTokenSet(rec.Text))
		if overlap < threshold {
			continue
		}
		rec.Similarity = overlap
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		if out[i].DocID != out[j].DocID {
			return out[i].DocID < out[j].DocID
		}
		return out[i].BlockID < out[j].BlockID
	})
	return out
}

func tokenOverlap(reference, candidate map[string]struct{}) float64 {
	if len(reference) == 0 || len(candidate) == 0 {
		return 0
	}
	matches := 0
	for token := range reference {
		if _, ok := candidate[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(reference))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
