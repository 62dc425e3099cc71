package tracker

import (
	"context"
	"sync"
)

// MemoryStore keeps execution records in process. Intended for tests and
// single-node runs without Postgres.
type MemoryStore struct {
	mu      sync.RWMutex
	records []ExecutionRecord
}

func NewMemoryStore() *MemoryStore {
	return new(MemoryStore)
}

// Record upserts by record id, matching the Postgres store's lifecycle
// semantics: a running record is replaced in place when it settles.
func (s *MemoryStore) Record(ctx context.Context, record ExecutionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == record.ID {
			record.CreatedAt = s.records[i].CreatedAt
			s.records[i] = record
			return nil
		}
	}
	s.records = append(s.records, record)
	return nil
}

func (s *MemoryStore) LatestCompleted(ctx context.Context, unitID string) (*ExecutionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		record := s.records[i]
		if record.UnitID == unitID && record.Status == StatusCompleted {
			return &record, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) History(ctx context.Context, unitID string, limit int) ([]ExecutionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ExecutionRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].UnitID != unitID {
			continue
		}
		out = append(out, s.records[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := Stats{ByStatus: make(map[Status]int64)}
	units := make(map[string]struct{})
	for _, record := range s.records {
		stats.TotalExecutions++
		stats.ByStatus[record.Status]++
		units[record.UnitID] = struct{}{}
	}
	stats.DistinctUnits = int64(len(units))
	return stats, nil
}

var _ Store = (*MemoryStore)(nil)
