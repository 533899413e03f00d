package usecase

import (
	"context"
	"fmt"

	"github.com/dsemenov/blockquery/internal/core/domain"
)

// uniqueSupplementCap bounds how many unconfirmed records each pass may
// contribute to the merged output: agreement between both strategies is
// trusted first, then each strategy adds its unique top findings as a
// bounded supplement.
const uniqueSupplementCap = 5

// DualPassOptions controls one hybrid retrieval.
type DualPassOptions struct {
	// ResultCount caps each pass; 0 means DefaultResultCount. Requests above
	// HybridSafetyCap are clamped unless DisableSafetyCheck is set.
	ResultCount int
	// Primary selects which pass anchors reconciliation: ModeText (default)
	// or ModeSemantic.
	Primary string
	// CustomFilter applies identically to both passes.
	CustomFilter map[string]any
	// DisableSafetyCheck lets a caller exceed HybridSafetyCap explicitly.
	DisableSafetyCheck bool
}

// DualPassResult carries the merged records plus the clamping decision, so
// callers can see when their requested count was reduced.
type DualPassResult struct {
	Records              []domain.ResultRecord
	EffectiveResultCount int
	Clamped              bool
}

// DualPassQuery runs text and semantic retrieval independently and
// reconciles them by store identity. Output order is deterministic given
// deterministic sub-query results: confirming records in primary order, then
// up to five primary-only, then up to five secondary-only records.
func (e *Engine) DualPassQuery(ctx context.Context, query string, opts DualPassOptions) (*DualPassResult, error) {
	count := opts.ResultCount
	if count <= 0 {
		count = DefaultResultCount
	}

	clamped := false
	if count > HybridSafetyCap && !opts.DisableSafetyCheck {
		e.logger.Warn("dual_pass_result_count_clamped",
			"requested", count,
			"effective", HybridSafetyCap,
		)
		count = HybridSafetyCap
		clamped = true
	}

	primaryMode := opts.Primary
	if primaryMode == "" {
		primaryMode = ModeText
	}
	if primaryMode != ModeText && primaryMode != ModeSemantic {
		return nil, fmt.Errorf("dual pass primary %q: %w", primaryMode, domain.ErrInvalidInput)
	}

	// Only the merged output goes into the session; the sub-passes run with
	// history suppressed.
	textRecords, err := e.dualPassText(ctx, query, count, opts.CustomFilter)
	if err != nil {
		return nil, err
	}
	semanticRecords, err := e.SemanticQuery(ctx, query, SemanticOptions{
		ResultCount:  count,
		CustomFilter: opts.CustomFilter,
		skipHistory:  true,
	})
	if err != nil {
		return nil, err
	}

	primary, secondary := textRecords, semanticRecords
	if primaryMode == ModeSemantic {
		primary, secondary = semanticRecords, textRecords
	}

	merged := reconcileDualPass(primary, secondary)
	e.register(query, merged)

	return &DualPassResult{
		Records:              merged,
		EffectiveResultCount: count,
		Clamped:              clamped,
	}, nil
}

func (e *Engine) dualPassText(ctx context.Context, query string, count int, filter map[string]any) ([]domain.ResultRecord, error) {
	opts := TextOptions{ResultCount: count, skipHistory: true}
	if len(filter) > 0 {
		return e.TextQueryWithCustomFilter(ctx, query, filter, opts)
	}
	return e.TextQuery(ctx, query, opts)
}

// reconcileDualPass joins the two candidate lists on store identity with a
// hash map, keeping the confirming-first ordering and the per-pass
// supplement caps.
func reconcileDualPass(primary, secondary []domain.ResultRecord) []domain.ResultRecord {
	secondaryByKey := make(map[string]int, len(secondary))
	for i, rec := range secondary {
		key := rec.IdentityKey()
		if _, dup := secondaryByKey[key]; !dup {
			secondaryByKey[key] = i
		}
	}

	confirming := make([]domain.ResultRecord, 0, len(primary))
	primaryOnly := make([]domain.ResultRecord, 0, uniqueSupplementCap)
	matchedSecondary := make(map[int]struct{}, len(secondary))

	for _, rec := range primary {
		if idx, ok := secondaryByKey[rec.IdentityKey()]; ok {
			matchedSecondary[idx] = struct{}{}
			rec.MatchStatus = domain.MatchConfirmed
			// Carry the semantic distance onto the confirming copy when the
			// primary pass was lexical.
			if rec.Distance == 0 && secondary[idx].Distance != 0 {
				rec.Distance = secondary[idx].Distance
			}
			confirming = append(confirming, rec)
			continue
		}
		if len(primaryOnly) < uniqueSupplementCap {
			rec.MatchStatus = domain.MatchPrimaryOnly
			primaryOnly = append(primaryOnly, rec)
		}
	}

	secondaryOnly := make([]domain.ResultRecord, 0, uniqueSupplementCap)
	for i, rec := range secondary {
		if _, ok := matchedSecondary[i]; ok {
			continue
		}
		if len(secondaryOnly) == uniqueSupplementCap {
			break
		}
		rec.MatchStatus = domain.MatchSecondaryOnly
		secondaryOnly = append(secondaryOnly, rec)
	}

	merged := make([]domain.ResultRecord, 0, len(confirming)+len(primaryOnly)+len(secondaryOnly))
	merged = append(merged, confirming...)
	merged = append(merged, primaryOnly...)
	merged = append(merged, secondaryOnly...)
	return merged
}
