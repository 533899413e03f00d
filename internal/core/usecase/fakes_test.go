package usecase

import (
	"context"
	"strings"
	"sync"

	"github.com/dsemenov/blockquery/internal/core/domain"
	"github.com/dsemenov/blockquery/internal/core/ports"
)

type sliceCursor struct {
	blocks []domain.Block
	pos    int
	closed bool
}

func (c *sliceCursor) Next(context.Context) (*domain.Block, bool, error) {
	if c.pos >= len(c.blocks) {
		return nil, false, nil
	}
	b := c.blocks[c.pos]
	c.pos++
	return &b, true, nil
}

func (c *sliceCursor) Close() error {
	c.closed = true
	return nil
}

// fakeBlockStore serves canned blocks with a minimal text-match semantic:
// empty text matches everything, quoted text is a phrase containment check,
// anything else matches when any token is contained, all case-insensitive.
// The recorded call arguments are guarded so concurrency tests stay clean.
type fakeBlockStore struct {
	blocks []domain.Block

	mu         sync.Mutex
	lastText   string
	lastKey    string
	lastValues []any
	lastFilter map[string]any
}

func (s *fakeBlockStore) recordCall(text, key string, values []any, filter map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastText = text
	if key != "" {
		s.lastKey = key
		s.lastValues = values
	}
	if filter != nil {
		s.lastFilter = filter
	}
}

func textMatches(text, search string) bool {
	if search == "" {
		return true
	}
	lower := strings.ToLower(text)
	if strings.HasPrefix(search, `"`) && strings.HasSuffix(search, `"`) && len(search) > 1 {
		return strings.Contains(lower, strings.ToLower(strings.Trim(search, `"`)))
	}
	for _, token := range strings.Fields(strings.ToLower(search)) {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

func (s *fakeBlockStore) matching(search string, keep func(domain.Block) bool) []domain.Block {
	out := make([]domain.Block, 0, len(s.blocks))
	for _, b := range s.blocks {
		if !textMatches(b.Text, search) {
			continue
		}
		if keep != nil && !keep(b) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (s *fakeBlockStore) BasicQuery(_ context.Context, _ domain.LibraryRef, text string) (ports.BlockCursor, error) {
	s.recordCall(text, "", nil, nil)
	return &sliceCursor{blocks: s.matching(text, nil)}, nil
}

func (s *fakeBlockStore) TextSearchWithKeyValueRange(_ context.Context, _ domain.LibraryRef, text, key string, values []any) (ports.BlockCursor, error) {
	s.recordCall(text, key, values, nil)
	return &sliceCursor{blocks: s.matching(text, func(b domain.Block) bool {
		got, ok := blockFieldValue(b, key)
		if !ok {
			return false
		}
		for _, v := range values {
			if got == filterValueString(v) {
				return true
			}
		}
		return false
	})}, nil
}

func (s *fakeBlockStore) TextSearchWithFilter(_ context.Context, _ domain.LibraryRef, text string, filter map[string]any) (ports.BlockCursor, error) {
	s.recordCall(text, "", nil, filter)
	return &sliceCursor{blocks: s.matching(text, func(b domain.Block) bool {
		return blockMatchesFilter(b, filter)
	})}, nil
}

func (s *fakeBlockStore) FilterByKeyDict(_ context.Context, _ domain.LibraryRef, filter map[string]any) ([]domain.Block, error) {
	keep := func(b domain.Block) bool {
		for key, want := range filter {
			got, ok := blockFieldValue(b, key)
			if !ok {
				return false
			}
			switch values := want.(type) {
			case []int64:
				found := false
				for _, v := range values {
					if got == filterValueString(v) {
						found = true
					}
				}
				if !found {
					return false
				}
			case []string:
				found := false
				for _, v := range values {
					if got == v {
						found = true
					}
				}
				if !found {
					return false
				}
			default:
				if got != filterValueString(want) {
					return false
				}
			}
		}
		return true
	}
	return s.matching("", keep), nil
}

func (s *fakeBlockStore) WholeCollection(_ context.Context, _ domain.LibraryRef) (ports.BlockCursor, error) {
	return &sliceCursor{blocks: s.blocks}, nil
}

func (s *fakeBlockStore) DistinctList(_ context.Context, _ domain.LibraryRef, key string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, b := range s.blocks {
		v, ok := blockFieldValue(b, key)
		if !ok {
			continue
		}
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeCatalog struct {
	records []domain.EmbeddingRecord
	err     error
	calls   int
}

func (c *fakeCatalog) GetEmbeddingStatus(context.Context, domain.LibraryRef) ([]domain.EmbeddingRecord, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.records, nil
}

type fakeEmbedder struct {
	lastText string
	calls    int
	err      error
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.calls++
	f.lastText = text
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeEmbedderFactory struct {
	embedder   *fakeEmbedder
	resolved   []string
	resolveErr error
}

func (f *fakeEmbedderFactory) Resolve(model string) (ports.Embedder, error) {
	f.resolved = append(f.resolved, model)
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.embedder, nil
}

type fakeVectorIndex struct {
	matches    []ports.VectorMatch
	lastSample int
	lastModel  string
	err        error
}

func (f *fakeVectorIndex) Search(_ context.Context, _ domain.LibraryRef, model string, _ []float32, sampleCount int) ([]ports.VectorMatch, error) {
	f.lastModel = model
	f.lastSample = sampleCount
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

type fakeVectorResolver struct {
	index    *fakeVectorIndex
	resolved []string
	err      error
}

func (f *fakeVectorResolver) Resolve(name string) (ports.VectorIndex, error) {
	f.resolved = append(f.resolved, name)
	if f.err != nil {
		return nil, f.err
	}
	return f.index, nil
}

type fakeStateStore struct {
	saved map[string]domain.QueryState
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{saved: make(map[string]domain.QueryState)}
}

func (f *fakeStateStore) Save(_ context.Context, state *domain.QueryState) error {
	f.saved[state.QueryID] = *state
	return nil
}

func (f *fakeStateStore) Load(_ context.Context, queryID string) (*domain.QueryState, error) {
	state, ok := f.saved[queryID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &state, nil
}

func (f *fakeStateStore) Delete(_ context.Context, queryID string) error {
	delete(f.saved, queryID)
	return nil
}

func testLibrary() domain.LibraryRef {
	return domain.LibraryRef{Account: "acct", Library: "contracts"}
}

func completedRecord(model, store string, dims int) domain.EmbeddingRecord {
	return domain.EmbeddingRecord{
		Model:    model,
		VectorDB: store,
		Status:   domain.EmbeddingStatusComplete,
		Dims:     dims,
	}
}

func contractBlocks() []domain.Block {
	return []domain.Block{
		{ID: "b1", DocID: 1, BlockID: 1, Text: "base salary is $100,000", ContentType: domain.ContentText, PageNum: 2, FileSource: "A.pdf"},
		{ID: "b2", DocID: 1, BlockID: 2, Text: "governing law is Delaware", ContentType: domain.ContentText, PageNum: 2, FileSource: "A.pdf"},
		{ID: "b3", DocID: 2, BlockID: 1, Text: "effective date is Jan 1", ContentType: domain.ContentText, PageNum: 5, FileSource: "B.pdf"},
	}
}
