package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps decision records in memory. Used in tests and when
// no persistence backend is configured.
type MemoryStore struct {
	mu   sync.Mutex
	recs []DecisionRecord
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Append(_ context.Context, rec DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, q Query) ([]DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []DecisionRecord
	for _, r := range s.recs {
		if !q.matches(r) {
			continue
		}
		res = append(res, r)
		if q.Limit > 0 && len(res) == q.Limit {
			break
		}
	}
	return res, nil
}

func (s *MemoryStore) Close() error { return nil }
