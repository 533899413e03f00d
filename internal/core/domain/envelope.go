package domain

// QueryEnvelope is the full result of one retrieval call: the packaged
// records plus the document identity sets they touch. EffectiveResultCount
// surfaces any safety clamp applied to the caller's requested count.
type QueryEnvelope struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`

	Records     []ResultRecord `json:"results"`
	DocIDs      []int64        `json:"doc_ids"`
	FileSources []string       `json:"file_sources"`

	EffectiveResultCount int  `json:"effective_result_count"`
	Clamped              bool `json:"clamped,omitempty"`
}

// NewQueryEnvelope packages records with their derived document sets.
func NewQueryEnvelope(query, mode string, records []ResultRecord, effectiveCount int, clamped bool) *QueryEnvelope {
	env := &QueryEnvelope{
		Query:                query,
		Mode:                 mode,
		Records:              records,
		EffectiveResultCount: effectiveCount,
		Clamped:              clamped,
	}
	for _, rec := range records {
		if !containsInt64(env.DocIDs, rec.DocID) {
			env.DocIDs = append(env.DocIDs, rec.DocID)
		}
		if rec.FileSource != "" && !containsString(env.FileSources, rec.FileSource) {
			env.FileSources = append(env.FileSources, rec.FileSource)
		}
	}
	return env
}
