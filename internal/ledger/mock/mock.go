// Package mock provides an in-memory ledger.Store for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/salesnote/internal/ledger"
)

// Store records every write. Set OrderErr or TaskErr to make the matching
// write fail; failed writes are still recorded in the attempt counters.
type Store struct {
	mu sync.Mutex

	OrderErr error
	TaskErr  error

	Orders []ledger.OrderRecord
	Tasks  []ledger.TaskRecord

	OrderAttempts int
	TaskAttempts  int
}

var _ ledger.Store = (*Store)(nil)

// WriteOrder implements ledger.Store.
func (s *Store) WriteOrder(_ context.Context, rec ledger.OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OrderAttempts++
	if s.OrderErr != nil {
		return s.OrderErr
	}
	s.Orders = append(s.Orders, rec)
	return nil
}

// WriteTask implements ledger.Store.
func (s *Store) WriteTask(_ context.Context, rec ledger.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TaskAttempts++
	if s.TaskErr != nil {
		return s.TaskErr
	}
	s.Tasks = append(s.Tasks, rec)
	return nil
}

// SetErrors replaces the injected errors under the lock.
func (s *Store) SetErrors(orderErr, taskErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OrderErr, s.TaskErr = orderErr, taskErr
}

// Snapshot returns copies of the written records.
func (s *Store) Snapshot() ([]ledger.OrderRecord, []ledger.TaskRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.OrderRecord(nil), s.Orders...), append([]ledger.TaskRecord(nil), s.Tasks...)
}
