package domain

// DocFilter is the document identity set harvested by a filter-building
// query: the building block for narrow-then-search workflows.
type DocFilter struct {
	DocIDs      []int64  `json:"doc_ids"`
	FileSources []string `json:"file_sources"`
}

func (f DocFilter) Empty() bool {
	return len(f.DocIDs) == 0 && len(f.FileSources) == 0
}

// ContainsDoc reports whether a document belongs to the filter, matching on
// doc_id first and falling back to file_source.
func (f DocFilter) ContainsDoc(docID int64, fileSource string) bool {
	for _, id := range f.DocIDs {
		if id == docID {
			return true
		}
	}
	if fileSource == "" {
		return false
	}
	for _, fs := range f.FileSources {
		if fs == fileSource {
			return true
		}
	}
	return false
}

// Add records a document identity, deduplicating both keys.
func (f *DocFilter) Add(docID int64, fileSource string) {
	if !containsInt64(f.DocIDs, docID) {
		f.DocIDs = append(f.DocIDs, docID)
	}
	if fileSource != "" && !containsString(f.FileSources, fileSource) {
		f.FileSources = append(f.FileSources, fileSource)
	}
}
