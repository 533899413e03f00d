package usecase

import "github.com/dsemenov/blockquery/internal/core/domain"

// packager normalizes raw store blocks and vector matches into the uniform
// ResultRecord schema. Identity fields (_id, doc_id, block_id), the account
// and library names, and the minimum keys (text, file_source, page_num) are
// always populated regardless of the caller's projection; every other field
// is subject to it.
type packager struct {
	lib        domain.LibraryRef
	projection domain.Projection
}

func (p packager) fromBlock(query string, b domain.Block, matches []domain.Match) domain.ResultRecord {
	rec := domain.ResultRecord{
		Query:       query,
		AccountName: p.lib.Account,
		LibraryName: p.lib.Library,

		ID:      b.ID,
		DocID:   b.DocID,
		BlockID: b.BlockID,

		Text:          b.Text,
		ContentType:   b.ContentType,
		Table:         b.Table,
		ExternalFiles: b.ExternalFiles,

		PageNum: b.PageNum,
		CoordX:  b.CoordX,
		CoordY:  b.CoordY,
		CoordCX: b.CoordCX,
		CoordCY: b.CoordCY,

		FileSource:        b.FileSource,
		AuthorOrSpeaker:   b.AuthorOrSpeaker,
		AddedToCollection: b.AddedToCollection,
		SpecialField1:     b.SpecialField1,
		SpecialField2:     b.SpecialField2,
		SpecialField3:     b.SpecialField3,

		Matches: matches,
	}
	if rec.Matches == nil {
		rec.Matches = []domain.Match{}
	}
	return p.applyProjection(rec)
}

// fromNeighbor packages a nearest-neighbor candidate. Matches stays empty in
// pure semantic mode; Score and Similarity default to 0 until a re-ranking
// step populates them.
func (p packager) fromNeighbor(query string, b domain.Block, distance float64) domain.ResultRecord {
	rec := p.fromBlock(query, b, nil)
	if p.projection.Has(domain.FieldDistance) {
		rec.Distance = distance
	}
	return rec
}

func (p packager) applyProjection(rec domain.ResultRecord) domain.ResultRecord {
	if !p.projection.Has(domain.FieldContentType) {
		rec.ContentType = ""
	}
	if !p.projection.Has(domain.FieldTable) {
		rec.Table = ""
	}
	if !p.projection.Has(domain.FieldExternalFiles) {
		rec.ExternalFiles = ""
	}
	if !p.projection.Has(domain.FieldCoordX) {
		rec.CoordX = 0
	}
	if !p.projection.Has(domain.FieldCoordY) {
		rec.CoordY = 0
	}
	if !p.projection.Has(domain.FieldCoordCX) {
		rec.CoordCX = 0
	}
	if !p.projection.Has(domain.FieldCoordCY) {
		rec.CoordCY = 0
	}
	if !p.projection.Has(domain.FieldAuthorOrSpeaker) {
		rec.AuthorOrSpeaker = ""
	}
	if !p.projection.Has(domain.FieldAddedToCollection) {
		rec.AddedToCollection = ""
	}
	if !p.projection.Has(domain.FieldSpecialField1) {
		rec.SpecialField1 = ""
	}
	if !p.projection.Has(domain.FieldSpecialField2) {
		rec.SpecialField2 = ""
	}
	if !p.projection.Has(domain.FieldSpecialField3) {
		rec.SpecialField3 = ""
	}
	if !p.projection.Has(domain.FieldMatches) {
		rec.Matches = []domain.Match{}
	}
	return rec
}
