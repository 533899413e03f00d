package domain

import "fmt"

// Match locates one query term inside a result's text. Offset is the byte
// offset where the term begins; the comparison is case-insensitive.
type Match struct {
	Offset int    `json:"offset"`
	Term   string `json:"term"`
}

// MatchStatus tags hybrid-query results by which retrieval pass found them.
type MatchStatus string

const (
	MatchConfirmed     MatchStatus = "matched"
	MatchPrimaryOnly   MatchStatus = "primary_only"
	MatchSecondaryOnly MatchStatus = "secondary_only"
)

// ResultRecord is the uniform record every retrieval mode produces. It is
// built fresh per query and only persisted as part of a query session. For
// text search Score/Similarity/Distance stay 0; for semantic search Distance
// holds the raw nearest-neighbor distance.
type ResultRecord struct {
	Query string `json:"query"`

	AccountName string `json:"account_name"`
	LibraryName string `json:"library_name"`

	ID      string `json:"_id,omitempty"`
	DocID   int64  `json:"doc_id"`
	BlockID int64  `json:"block_id"`

	Text          string      `json:"text"`
	ContentType   ContentType `json:"content_type,omitempty"`
	Table         string      `json:"table,omitempty"`
	ExternalFiles string      `json:"external_files,omitempty"`

	PageNum int64   `json:"page_num"`
	CoordX  float64 `json:"coords_x,omitempty"`
	CoordY  float64 `json:"coords_y,omitempty"`
	CoordCX float64 `json:"coords_cx,omitempty"`
	CoordCY float64 `json:"coords_cy,omitempty"`

	FileSource        string `json:"file_source"`
	AuthorOrSpeaker   string `json:"author_or_speaker,omitempty"`
	AddedToCollection string `json:"added_to_collection,omitempty"`
	SpecialField1     string `json:"special_field1,omitempty"`
	SpecialField2     string `json:"special_field2,omitempty"`
	SpecialField3     string `json:"special_field3,omitempty"`

	Matches []Match `json:"matches"`

	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
	Distance   float64 `json:"distance"`

	MatchStatus MatchStatus `json:"match_status,omitempty"`
}

// IdentityKey mirrors Block.IdentityKey for packaged records.
func (r ResultRecord) IdentityKey() string {
	if r.ID != "" {
		return r.ID
	}
	return blockKey(r.DocID, r.BlockID)
}

func blockKey(docID, blockID int64) string {
	return fmt.Sprintf("%d:%d", docID, blockID)
}

// Field names a projectable ResultRecord attribute. The names double as
// custom-filter keys and CSV column headers.
type Field string

const (
	FieldID                Field = "_id"
	FieldDocID             Field = "doc_id"
	FieldBlockID           Field = "block_id"
	FieldText              Field = "text"
	FieldContentType       Field = "content_type"
	FieldTable             Field = "table"
	FieldExternalFiles     Field = "external_files"
	FieldPageNum           Field = "page_num"
	FieldCoordX            Field = "coords_x"
	FieldCoordY            Field = "coords_y"
	FieldCoordCX           Field = "coords_cx"
	FieldCoordCY           Field = "coords_cy"
	FieldFileSource        Field = "file_source"
	FieldAuthorOrSpeaker   Field = "author_or_speaker"
	FieldAddedToCollection Field = "added_to_collection"
	FieldSpecialField1     Field = "special_field1"
	FieldSpecialField2     Field = "special_field2"
	FieldSpecialField3     Field = "special_field3"
	FieldMatches           Field = "matches"
	FieldScore             Field = "score"
	FieldSimilarity        Field = "similarity"
	FieldDistance          Field = "distance"
)

// MinimumFields are always present on a packaged record regardless of the
// caller's projection.
func MinimumFields() []Field {
	return []Field{FieldText, FieldFileSource, FieldPageNum}
}

// Projection is the explicit field set applied by the result packager. The
// zero value projects nothing beyond the minimum fields and identity.
type Projection struct {
	keys map[Field]struct{}
}

func NewProjection(fields ...Field) Projection {
	p := Projection{keys: make(map[Field]struct{}, len(fields)+3)}
	for _, f := range fields {
		p.keys[f] = struct{}{}
	}
	for _, f := range MinimumFields() {
		p.keys[f] = struct{}{}
	}
	return p
}

// DefaultProjection is the standard output key set.
func DefaultProjection() Projection {
	return NewProjection(
		FieldID, FieldDocID, FieldBlockID, FieldText, FieldContentType,
		FieldTable, FieldExternalFiles, FieldPageNum, FieldCoordX, FieldCoordY,
		FieldCoordCX, FieldCoordCY, FieldFileSource, FieldAuthorOrSpeaker,
		FieldAddedToCollection, FieldSpecialField1, FieldSpecialField2,
		FieldSpecialField3, FieldMatches, FieldScore, FieldSimilarity,
		FieldDistance,
	)
}

// IsZero reports whether the projection was never configured.
func (p Projection) IsZero() bool {
	return p.keys == nil
}

func (p Projection) Has(f Field) bool {
	if p.keys == nil {
		for _, m := range MinimumFields() {
			if m == f {
				return true
			}
		}
		return false
	}
	_, ok := p.keys[f]
	return ok
}

// Fields returns the projected field set in a stable order.
func (p Projection) Fields() []Field {
	ordered := []Field{
		FieldID, FieldDocID, FieldBlockID, FieldText, FieldContentType,
		FieldTable, FieldExternalFiles, FieldPageNum, FieldCoordX, FieldCoordY,
		FieldCoordCX, FieldCoordCY, FieldFileSource, FieldAuthorOrSpeaker,
		FieldAddedToCollection, FieldSpecialField1, FieldSpecialField2,
		FieldSpecialField3, FieldMatches, FieldScore, FieldSimilarity,
		FieldDistance,
	}
	out := make([]Field, 0, len(ordered))
	for _, f := range ordered {
		if p.Has(f) {
			out = append(out, f)
		}
	}
	return out
}
