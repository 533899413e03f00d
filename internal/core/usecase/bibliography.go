package usecase

import (
	"fmt"
	"sort"

	"github.com/dsemenov/blockquery/internal/core/domain"
)

// BibliographyEntry maps one document label to the pages it was cited on,
// ordered by citation frequency (ties broken by first appearance).
type BibliographyEntry map[string][]int64

// BibliographyFromResults groups result records by document and, per
// document, orders the referenced pages by how often they appear. Documents
// keep the order of their first appearance in the result list.
func BibliographyFromResults(results []domain.ResultRecord) []BibliographyEntry {
	type pageStat struct {
		page  int64
		count int
		first int
	}

	docOrder := make([]string, 0, 8)
	pagesByDoc := make(map[string]map[int64]*pageStat)

	for i, rec := range results {
		label := rec.FileSource
		if label == "" {
			label = fmt.Sprintf("doc_%d", rec.DocID)
		}
		pages, ok := pagesByDoc[label]
		if !ok {
			pages = make(map[int64]*pageStat)
			pagesByDoc[label] = pages
			docOrder = append(docOrder, label)
		}
		stat, ok := pages[rec.PageNum]
		if !ok {
			stat = &pageStat{page: rec.PageNum, first: i}
			pages[rec.PageNum] = stat
		}
		stat.count++
	}

	out := make([]BibliographyEntry, 0, len(docOrder))
	for _, label := range docOrder {
		stats := make([]*pageStat, 0, len(pagesByDoc[label]))
		for _, s := range pagesByDoc[label] {
			stats = append(stats, s)
		}
		sort.Slice(stats, func(i, j int) bool {
			if stats[i].count != stats[j].count {
				return stats[i].count > stats[j].count
			}
			return stats[i].first < stats[j].first
		})
		pages := make([]int64, 0, len(stats))
		for _, s := range stats {
			pages = append(pages, s.page)
		}
		out = append(out, BibliographyEntry{label: pages})
	}
	return out
}
