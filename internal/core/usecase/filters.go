package usecase

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dsemenov/blockquery/internal/core/domain"
)

// blockSchemaKeys is the set of block attributes a custom filter may
// constrain. Unknown keys are dropped with a warning, not a hard error, so a
// query still executes with the remaining valid keys.
var blockSchemaKeys = map[string]struct{}{
	"_id":                 {},
	"doc_id":              {},
	"block_id":            {},
	"text":                {},
	"content_type":        {},
	"table":               {},
	"external_files":      {},
	"page_num":            {},
	"coords_x":            {},
	"coords_y":            {},
	"coords_cx":           {},
	"coords_cy":           {},
	"file_source":         {},
	"author_or_speaker":   {},
	"added_to_collection": {},
	"special_field1":      {},
	"special_field2":      {},
	"special_field3":      {},
}

// validateCustomFilter drops filter keys that are not part of the block
// schema and reports what survived.
func validateCustomFilter(logger *slog.Logger, filter map[string]any) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	cleaned := make(map[string]any, len(filter))
	for key, value := range filter {
		if _, ok := blockSchemaKeys[key]; !ok {
			logger.Warn("custom_filter_key_dropped", "key", key)
			continue
		}
		cleaned[key] = value
	}
	if len(cleaned) == 0 {
		return nil
	}
	return cleaned
}

// blockMatchesFilter applies a validated custom filter as an exact-equality
// post-filter: a block survives only if every key equals the corresponding
// field.
func blockMatchesFilter(b domain.Block, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := blockFieldValue(b, key)
		if !ok || got != filterValueString(want) {
			return false
		}
	}
	return true
}

func blockFieldValue(b domain.Block, key string) (string, bool) {
	switch key {
	case "_id":
		return b.ID, true
	case "doc_id":
		return strconv.FormatInt(b.DocID, 10), true
	case "block_id":
		return strconv.FormatInt(b.BlockID, 10), true
	case "text":
		return b.Text, true
	case "content_type":
		return string(b.ContentType), true
	case "table":
		return b.Table, true
	case "external_files":
		return b.ExternalFiles, true
	case "page_num":
		return strconv.FormatInt(b.PageNum, 10), true
	case "coords_x":
		return formatCoord(b.CoordX), true
	case "coords_y":
		return formatCoord(b.CoordY), true
	case "coords_cx":
		return formatCoord(b.CoordCX), true
	case "coords_cy":
		return formatCoord(b.CoordCY), true
	case "file_source":
		return b.FileSource, true
	case "author_or_speaker":
		return b.AuthorOrSpeaker, true
	case "added_to_collection":
		return b.AddedToCollection, true
	case "special_field1":
		return b.SpecialField1, true
	case "special_field2":
		return b.SpecialField2, true
	case "special_field3":
		return b.SpecialField3, true
	}
	return "", false
}

func filterValueString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return formatCoord(t)
	case domain.ContentType:
		return string(t)
	default:
		return fmt.Sprint(v)
	}
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
