package projectionstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Column reads the text value of one column from a record.
type Column[R any] func(record R) string

// MemoryStore is a mutex-guarded in-memory Store. Records live only as long as the process.
type MemoryStore[R any] struct {
	mu      sync.RWMutex
	records map[string]R
	columns map[string]Column[R]
}

// NewMemoryStore creates an empty MemoryStore whose List can filter on the given columns.
func NewMemoryStore[R any](columns map[string]Column[R]) *MemoryStore[R] {
	return &MemoryStore[R]{
		records: make(map[string]R),
		columns: columns,
	}
}

// Insert stores record under id unless the id is taken. The first insert wins.
func (s *MemoryStore[R]) Insert(ctx context.Context, id string, record R) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if id == "" {
		return false, ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; exists {
		return false, nil
	}

	s.records[id] = record

	return true, nil
}

// Update mutates a copy of the stored record and stores it back under the same lock.
func (s *MemoryStore[R]) Update(ctx context.Context, id string, mutate func(*R)) (R, bool, error) {
	var zero R

	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	if id == "" {
		return zero, false, ErrEmptyID
	}

	if mutate == nil {
		return zero, false, ErrNilMutation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[id]
	if !exists {
		return zero, false, nil
	}

	mutate(&record)
	s.records[id] = record

	return record, true, nil
}

// Get returns the record stored under id.
func (s *MemoryStore[R]) Get(ctx context.Context, id string) (R, bool, error) {
	var zero R

	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[id]
	if !exists {
		return zero, false, nil
	}

	return record, true, nil
}

// List filters with a case-sensitive LIKE match and pages the result ordered by id.
func (s *MemoryStore[R]) List(ctx context.Context, criteria Criteria) ([]R, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := criteria.validate(); err != nil {
		return nil, err
	}

	match := func(R) bool { return true }

	if criteria.Like != "" {
		column, ok := s.columns[criteria.Column]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, criteria.Column)
		}

		pattern, err := likeToRegexp(criteria.Like)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCriteria, err)
		}

		match = func(record R) bool { return pattern.MatchString(column(record)) }
	}

	s.mu.RLock()

	ids := make([]string, 0, len(s.records))
	for id, record := range s.records {
		if match(record) {
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)

	if criteria.Offset >= len(ids) {
		s.mu.RUnlock()
		return []R{}, nil
	}

	ids = ids[criteria.Offset:]
	if criteria.Limit > 0 && criteria.Limit < len(ids) {
		ids = ids[:criteria.Limit]
	}

	result := make([]R, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.records[id])
	}

	s.mu.RUnlock()

	return result, nil
}

// Len returns the number of stored records.
func (s *MemoryStore[R]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}
