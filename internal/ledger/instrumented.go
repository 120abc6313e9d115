package ledger

import (
	"context"

	"github.com/MrWong99/salesnote/internal/observe"
)

// Instrumented wraps a Store and records every write on the ledger writes
// counter, labelled by backend.
type Instrumented struct {
	store   Store
	backend string
	metrics *observe.Metrics
}

var _ Store = (*Instrumented)(nil)

// NewInstrumented wraps store. A nil m uses observe.DefaultMetrics().
func NewInstrumented(store Store, backend string, m *observe.Metrics) *Instrumented {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Instrumented{store: store, backend: backend, metrics: m}
}

// WriteOrder implements [Store].
func (s *Instrumented) WriteOrder(ctx context.Context, rec OrderRecord) error {
	err := s.store.WriteOrder(ctx, rec)
	s.record(ctx, "order", rec.ID, err)
	return err
}

// WriteTask implements [Store].
func (s *Instrumented) WriteTask(ctx context.Context, rec TaskRecord) error {
	err := s.store.WriteTask(ctx, rec)
	s.record(ctx, "task", rec.ID, err)
	return err
}

func (s *Instrumented) record(ctx context.Context, kind, id string, err error) {
	if err != nil {
		s.metrics.RecordLedgerWrite(ctx, kind, "error")
		observe.Logger(ctx).Warn("ledger write failed", "backend", s.backend, "kind", kind, "id", id, "err", err)
		return
	}
	s.metrics.RecordLedgerWrite(ctx, kind, "ok")
	observe.Logger(ctx).Debug("ledger write", "backend", s.backend, "kind", kind, "id", id)
}
