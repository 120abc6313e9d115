package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrWong99/salesnote/internal/extract"
)

type execCall struct {
	sql  string
	args []any
}

type mockExecer struct {
	calls []execCall
	err   error
}

func (m *mockExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.calls = append(m.calls, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, m.err
}

func TestPostgresStore_Migrate(t *testing.T) {
	t.Parallel()

	db := &mockExecer{}
	if err := NewPostgresStore(db).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(db.calls) != 1 || !strings.Contains(db.calls[0].sql, "ledger_orders") {
		t.Errorf("unexpected calls: %+v", db.calls)
	}
}

func TestPostgresStore_WriteOrder(t *testing.T) {
	t.Parallel()

	db := &mockExecer{}
	s := NewPostgresStore(db)
	vendor := "v1"
	rec := OrderRecord{
		ID:             "o-1",
		OrganizationID: "org-1",
		VendorID:       &vendor,
		Customer:       "Acme Corp",
		LineItems:      []extract.LineItem{{ProductName: "Widget A", Quantity: 2, UnitPrice: 3}},
		Timestamp:      time.Unix(0, 0).UTC(),
	}
	if err := s.WriteOrder(context.Background(), rec); err != nil {
		t.Fatalf("WriteOrder: %v", err)
	}

	if len(db.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(db.calls))
	}
	call := db.calls[0]
	if !strings.Contains(call.sql, "ON CONFLICT (id) DO NOTHING") {
		t.Errorf("insert is not idempotent: %s", call.sql)
	}
	if call.args[0] != "o-1" || call.args[1] != "org-1" {
		t.Errorf("args = %v", call.args)
	}
	if p, ok := call.args[2].(*string); !ok || *p != "v1" {
		t.Errorf("vendor arg = %#v", call.args[2])
	}
	var items []extract.LineItem
	if err := json.Unmarshal(call.args[4].([]byte), &items); err != nil || len(items) != 1 {
		t.Errorf("line items arg = %s (%v)", call.args[4], err)
	}
}

func TestPostgresStore_WriteTask_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	db := &mockExecer{err: boom}
	s := NewPostgresStore(db)

	if err := s.WriteTask(context.Background(), TaskRecord{OrganizationID: "org"}); !errors.Is(err, ErrEmptyTask) {
		t.Errorf("invalid task error = %v", err)
	}
	if len(db.calls) != 0 {
		t.Error("invalid task must not reach the database")
	}

	err := s.WriteTask(context.Background(), TaskRecord{ID: "t", OrganizationID: "org", Description: "call"})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}
