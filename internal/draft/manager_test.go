package draft_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/salesnote/internal/draft"
	"github.com/MrWong99/salesnote/internal/ledger/mock"
	"github.com/MrWong99/salesnote/internal/observe"
	"github.com/MrWong99/salesnote/internal/pipeline"
)

func content() draft.Content {
	return draft.Content{OrganizationID: "org-1", Order: draftedOrder(), Catalog: testCatalog()}
}

func TestManager_BeginComplete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := draft.NewManager()
	tok, err := m.Begin(ctx, "alice", "org-1", "acme 10 widget a")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if tok.Note != "acme 10 widget a" || tok.OrganizationID != "org-1" {
		t.Errorf("token = %+v", tok)
	}

	v, err := m.Complete(ctx, tok, content())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if v.State != draft.StateDrafted || v.Order == nil || v.Order.Customer != "Acme Corp" {
		t.Errorf("view = %+v", v)
	}
	if m.Active() != 1 {
		t.Errorf("Active() = %d, want 1", m.Active())
	}
}

func TestManager_BeginTakesBuffer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := draft.NewManager()
	if _, err := m.Begin(ctx, "alice", "org-1", " "); !errors.Is(err, pipeline.ErrEmptyNote) {
		t.Errorf("empty begin: err = %v", err)
	}

	m.Buffer("alice").Set("Acme Corp")
	m.Buffer("alice").Append("3 BoxSet at $9")
	tok, err := m.Begin(ctx, "alice", "org-1", "")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if tok.Note != "Acme Corp\n3 BoxSet at $9" {
		t.Errorf("Note = %q", tok.Note)
	}
	if got := m.Buffer("alice").String(); got != "" {
		t.Errorf("buffer after Begin = %q, want empty", got)
	}
}

func TestManager_StaleRunDiscarded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := draft.NewManager()
	first, _ := m.Begin(ctx, "alice", "org-1", "first note")
	second, _ := m.Begin(ctx, "alice", "org-1", "second note")

	if _, err := m.Complete(ctx, first, content()); !errors.Is(err, draft.ErrStaleRun) {
		t.Errorf("superseded Complete: err = %v, want ErrStaleRun", err)
	}
	v, err := m.Get("alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.State != draft.StateProcessing || v.Input != "second note" {
		t.Errorf("view = %+v, want still processing second note", v)
	}
	if _, err := m.Complete(ctx, second, content()); err != nil {
		t.Errorf("current Complete: %v", err)
	}
}

func TestManager_CancelAbandonsRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := draft.NewManager()
	tok, _ := m.Begin(ctx, "alice", "org-1", "note")
	if _, err := m.Cancel(ctx, "alice"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := m.Complete(ctx, tok, content()); !errors.Is(err, draft.ErrStaleRun) {
		t.Errorf("late Complete: err = %v, want ErrStaleRun", err)
	}
	if _, err := m.Fail(ctx, tok, "late"); !errors.Is(err, draft.ErrStaleRun) {
		t.Errorf("late Fail: err = %v, want ErrStaleRun", err)
	}
}

func TestManager_FailRestoresNote(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := draft.NewManager()
	tok, _ := m.Begin(ctx, "alice", "org-1", "Acme Corp, BoxSet, 3, $9")
	m.Buffer("alice").Append("also 2 Widget A at $12")

	v, err := m.Fail(ctx, tok, "The completion service could not process the request.")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if v.State != draft.StateEmpty || v.Error == "" {
		t.Errorf("view = %+v", v)
	}
	want := "Acme Corp, BoxSet, 3, $9\nalso 2 Widget A at $12"
	if got := m.Buffer("alice").String(); got != want {
		t.Errorf("buffer = %q, want %q", got, want)
	}
}

func TestManager_UnknownUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := draft.NewManager()
	if _, err := m.Get("nobody"); !errors.Is(err, draft.ErrNoSession) {
		t.Errorf("Get: err = %v", err)
	}
	if _, err := m.Update(ctx, "nobody", func(*draft.Session) error { return nil }); !errors.Is(err, draft.ErrNoSession) {
		t.Errorf("Update: err = %v", err)
	}
	if _, err := m.Confirm(ctx, "nobody", &mock.Store{}); !errors.Is(err, draft.ErrNoSession) {
		t.Errorf("Confirm: err = %v", err)
	}
	if _, err := m.Complete(ctx, draft.RunToken{User: "nobody", Seq: 1}, content()); !errors.Is(err, draft.ErrNoSession) {
		t.Errorf("Complete: err = %v", err)
	}
}

// A failed ledger write leaves the draft populated and unconfirmed; the
// next confirm resends the same records.
func TestManager_ConfirmFailureThenRetry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := draft.NewManager()
	tok, _ := m.Begin(ctx, "alice", "org-1", "note")
	if _, err := m.Complete(ctx, tok, content()); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	store := &mock.Store{OrderErr: errors.New("connection refused")}
	v, err := m.Confirm(ctx, "alice", store)
	if err == nil {
		t.Fatal("Confirm succeeded against failing store")
	}
	if v.State != draft.StateDrafted || v.Order == nil || len(v.Order.LineItems) != 1 {
		t.Errorf("view after failure = %+v", v)
	}
	if v.Receipt != nil {
		t.Error("receipt present after failed confirm")
	}

	store.SetErrors(nil, nil)
	v, err = m.Confirm(ctx, "alice", store)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if v.State != draft.StateConfirmed || v.Receipt == nil {
		t.Fatalf("view after retry = %+v", v)
	}
	orders, tasks := store.Snapshot()
	if len(orders) != 1 || len(tasks) != 1 {
		t.Fatalf("orders/tasks = %d/%d, want 1/1", len(orders), len(tasks))
	}
	if orders[0].ID != v.Receipt.OrderID {
		t.Errorf("order ID = %q, receipt = %q", orders[0].ID, v.Receipt.OrderID)
	}
	if m.Active() != 0 {
		t.Errorf("Active() = %d, want 0", m.Active())
	}
}

func TestManager_Update(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := draft.NewManager()
	tok, _ := m.Begin(ctx, "alice", "org-1", "note")
	_, _ = m.Complete(ctx, tok, content())

	v, err := m.Update(ctx, "alice", func(s *draft.Session) error { return s.SetTask("send brochure") })
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if v.Order.Task != "send brochure" {
		t.Errorf("Task = %q", v.Order.Task)
	}
	if _, err := m.Update(ctx, "alice", func(s *draft.Session) error { return s.RemoveItem(9) }); !errors.Is(err, draft.ErrItemIndex) {
		t.Errorf("bad edit: err = %v", err)
	}
}

func TestManager_ActiveDraftsMetric(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m := draft.NewManager(draft.WithManagerMetrics(metrics))
	a, _ := m.Begin(ctx, "alice", "org-1", "note")
	_, _ = m.Begin(ctx, "bob", "org-1", "note")
	_, _ = m.Complete(ctx, a, content())
	_, _ = m.Cancel(ctx, "bob")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var got int64 = -1
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "salesnote.active_drafts" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("active_drafts is %T", met.Data)
			}
			got = 0
			for _, dp := range sum.DataPoints {
				got += dp.Value
			}
		}
	}
	if got != 1 {
		t.Errorf("active drafts = %d, want 1", got)
	}
}

func TestManager_ConcurrentUsers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := draft.NewManager()
	store := &mock.Store{}
	users := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := m.Begin(ctx, u, "org-1", "note for "+u)
			if err != nil {
				t.Errorf("Begin(%s): %v", u, err)
				return
			}
			if _, err := m.Complete(ctx, tok, content()); err != nil {
				t.Errorf("Complete(%s): %v", u, err)
				return
			}
			if _, err := m.Confirm(ctx, u, store); err != nil {
				t.Errorf("Confirm(%s): %v", u, err)
			}
		}()
	}
	wg.Wait()

	orders, _ := store.Snapshot()
	if len(orders) != len(users) {
		t.Errorf("orders = %d, want %d", len(orders), len(users))
	}
}
