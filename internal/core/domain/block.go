package domain

// LibraryRef identifies one indexed text collection.
type LibraryRef struct {
	Account string `json:"account"`
	Library string `json:"library"`
}

func (l LibraryRef) Valid() bool {
	return l.Account != "" && l.Library != ""
}

type ContentType string

const (
	ContentText  ContentType = "text"
	ContentTable ContentType = "table"
	ContentImage ContentType = "image"
)

// Block is one normalized text unit produced by the parsing subsystem.
// Retrieval reads blocks, it never writes them. (account, library, doc_id,
// block_id) is unique; block_id ordering within a document reflects original
// document order.
type Block struct {
	ID      string `json:"_id,omitempty"`
	DocID   int64  `json:"doc_id"`
	BlockID int64  `json:"block_id"`

	Text          string      `json:"text"`
	ContentType   ContentType `json:"content_type"`
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
}

// IdentityKey is the store identity used for cross-list reconciliation. The
// store-assigned ID wins when present so that two retrieval passes over the
// same library agree on identity.
func (b Block) IdentityKey() string {
	if b.ID != "" {
		return b.ID
	}
	return blockKey(b.DocID, b.BlockID)
}
