package tabular

import (
	"context"
	"sync"

	"github.com/foliostack/tradeledger/errs"
)

// MemoryStore is an in-memory Store used by tests and the fake backend.
type MemoryStore struct {
	mu     sync.RWMutex
	sheets map[string]map[string]Table
	order  map[string][]string
}

// NewMemoryStore constructs an empty in-memory tabular store.
func NewMemoryStore() *MemoryStore {
	store := new(MemoryStore)
	store.sheets = make(map[string]map[string]Table)
	store.order = make(map[string][]string)
	return store
}

// SheetNames lists sheets for the unit in write order.
func (s *MemoryStore) SheetNames(ctx context.Context, unitID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	names, ok := s.order[unitID]
	if !ok {
		return nil, errs.New("tabular/memory", errs.CodeNotFound,
			errs.WithMessage("unknown unit"), errs.WithField("unit_id", unitID))
	}
	return append([]string(nil), names...), nil
}

// Read returns a copy of the named sheet.
func (s *MemoryStore) Read(ctx context.Context, unitID, sheet string) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	unit, ok := s.sheets[unitID]
	if !ok {
		return Table{}, errs.New("tabular/memory", errs.CodeNotFound,
			errs.WithMessage("unknown unit"), errs.WithField("unit_id", unitID))
	}
	table, ok := unit[sheet]
	if !ok {
		return Table{}, errs.New("tabular/memory", errs.CodeNotFound,
			errs.WithMessage("unknown sheet"),
			errs.WithField("unit_id", unitID), errs.WithField("sheet", sheet))
	}
	return table.Clone(), nil
}

// Write replaces the named sheet. Styles are accepted and discarded; the
// memory backend has no presentation layer.
func (s *MemoryStore) Write(ctx context.Context, unitID, sheet string, table Table, style StyleFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = style
	s.mu.Lock()
	defer s.mu.Unlock()
	unit, ok := s.sheets[unitID]
	if !ok {
		unit = make(map[string]Table)
		s.sheets[unitID] = unit
	}
	if _, exists := unit[sheet]; !exists {
		s.order[unitID] = append(s.order[unitID], sheet)
	}
	unit[sheet] = table.Clone()
	return nil
}

var _ Store = (*MemoryStore)(nil)
