package domain

import "time"

// EmbeddingStatus values as written by the embedding subsystem. Retrieval
// only ever binds to completed entries.
const EmbeddingStatusComplete = "complete"

// EmbeddingRecord is one entry in a library's embedding history, ordered
// oldest-first as appended by the indexing subsystem.
type EmbeddingRecord struct {
	Model      string    `json:"embedding_model"`
	VectorDB   string    `json:"embedding_db"`
	Status     string    `json:"embedding_status"`
	Dims       int       `json:"embedding_dims"`
	BlockCount int64     `json:"embedded_blocks"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r EmbeddingRecord) Complete() bool {
	return r.Status == EmbeddingStatusComplete
}

// EmbeddingBinding is the resolved model/vector-store pair a retrieval engine
// uses for semantic queries.
type EmbeddingBinding struct {
	Model    string
	VectorDB string
	Dims     int
}

func (b EmbeddingBinding) Bound() bool {
	return b.Model != "" && b.VectorDB != ""
}
