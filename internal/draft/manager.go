package draft

import (
	"context"
	"strings"
	"sync"

	"github.com/MrWong99/salesnote/internal/ledger"
	"github.com/MrWong99/salesnote/internal/observe"
	"github.com/MrWong99/salesnote/internal/pipeline"
)

// RunToken identifies one processing run. Only the most recent token of a
// user may complete or fail its run.
type RunToken struct {
	User string
	Seq  uint64

	// OrganizationID and Note are the inputs the run must process.
	OrganizationID string
	Note           string
}

// ManagerOption is a functional option for [NewManager].
type ManagerOption func(*Manager)

// WithManagerMetrics tracks active drafts on m. Default:
// observe.DefaultMetrics().
func WithManagerMetrics(m *observe.Metrics) ManagerOption {
	return func(mgr *Manager) { mgr.metrics = m }
}

// Manager owns the single live session of every user together with the
// note buffer dictation appends to. All exported methods are safe for
// concurrent use; calls for the same user are serialised.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	metrics *observe.Metrics
}

type entry struct {
	mu      sync.Mutex
	session *Session
	buffer  pipeline.NoteBuffer
	seq     uint64
}

// NewManager creates an empty Manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{entries: make(map[string]*entry)}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

func (m *Manager) entry(user string, create bool) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[user]
	if !ok && create {
		e = &entry{session: NewSession(user)}
		m.entries[user] = e
	}
	return e
}

// Buffer returns the note buffer of user, creating the user's session if
// needed.
func (m *Manager) Buffer(user string) *pipeline.NoteBuffer {
	return &m.entry(user, true).buffer
}

// Begin starts a processing run for user. When note is blank the buffered
// note is taken instead. Any drafted content is discarded and any run in
// flight is superseded.
func (m *Manager) Begin(ctx context.Context, user, orgID, note string) (RunToken, error) {
	e := m.entry(user, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	if strings.TrimSpace(note) == "" {
		note = e.buffer.Take()
	} else {
		e.buffer.Set("")
	}
	if strings.TrimSpace(note) == "" {
		return RunToken{}, pipeline.ErrEmptyNote
	}

	before := e.session.State()
	e.session.StartProcessing(orgID, note)
	e.seq++
	m.track(ctx, before, e.session.State())

	return RunToken{User: user, Seq: e.seq, OrganizationID: orgID, Note: note}, nil
}

// Complete installs the result of the run identified by tok. A result for a
// superseded or cancelled run is discarded with [ErrStaleRun].
func (m *Manager) Complete(ctx context.Context, tok RunToken, c Content) (View, error) {
	e, err := m.current(tok)
	if err != nil {
		return View{}, err
	}
	defer e.mu.Unlock()

	before := e.session.State()
	if err := e.session.Install(c); err != nil {
		return View{}, err
	}
	m.track(ctx, before, e.session.State())
	return e.session.View(), nil
}

// Fail records a failed run. The session returns to Empty and the note is
// put back in front of anything buffered since, so nothing typed is lost.
func (m *Manager) Fail(ctx context.Context, tok RunToken, message string) (View, error) {
	e, err := m.current(tok)
	if err != nil {
		return View{}, err
	}
	defer e.mu.Unlock()

	before := e.session.State()
	if err := e.session.Fail(message); err != nil {
		return View{}, err
	}
	m.track(ctx, before, e.session.State())

	since := e.buffer.Take()
	e.buffer.Set(tok.Note)
	e.buffer.Append(since)
	return e.session.View(), nil
}

// current locks and returns the entry of tok if tok is still the latest
// run and the session is still processing it.
func (m *Manager) current(tok RunToken) (*entry, error) {
	e := m.entry(tok.User, false)
	if e == nil {
		return nil, ErrNoSession
	}
	e.mu.Lock()
	if tok.Seq != e.seq || e.session.State() != StateProcessing {
		e.mu.Unlock()
		return nil, ErrStaleRun
	}
	return e, nil
}

// Get returns the view of user's session.
func (m *Manager) Get(user string) (View, error) {
	e := m.entry(user, false)
	if e == nil {
		return View{}, ErrNoSession
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.View(), nil
}

// Update runs fn on user's session, typically one edit method, and returns
// the resulting view.
func (m *Manager) Update(ctx context.Context, user string, fn func(*Session) error) (View, error) {
	e := m.entry(user, false)
	if e == nil {
		return View{}, ErrNoSession
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.session.State()
	err := fn(e.session)
	m.track(ctx, before, e.session.State())
	if err != nil {
		return View{}, err
	}
	return e.session.View(), nil
}

// Confirm writes user's draft to store. The view is returned on failure
// too so callers can show the retained draft.
func (m *Manager) Confirm(ctx context.Context, user string, store ledger.Store) (View, error) {
	e := m.entry(user, false)
	if e == nil {
		return View{}, ErrNoSession
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.session.State()
	if _, err := e.session.Confirm(ctx, store); err != nil {
		observe.Logger(ctx).Warn("draft confirmation failed", "user", user, "err", err)
		return e.session.View(), err
	}
	m.track(ctx, before, e.session.State())
	return e.session.View(), nil
}

// Cancel discards user's draft. A run in flight is abandoned; its result
// will be rejected as stale.
func (m *Manager) Cancel(ctx context.Context, user string) (View, error) {
	e := m.entry(user, false)
	if e == nil {
		return View{}, ErrNoSession
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.session.State()
	if err := e.session.Cancel(); err != nil {
		return View{}, err
	}
	m.track(ctx, before, e.session.State())
	return e.session.View(), nil
}

// Active returns the number of sessions processing or awaiting
// confirmation.
func (m *Manager) Active() int {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	n := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.session.State().active() {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

func (m *Manager) track(ctx context.Context, from, to State) {
	switch {
	case !from.active() && to.active():
		m.metrics.ActiveDrafts.Add(ctx, 1)
	case from.active() && !to.active():
		m.metrics.ActiveDrafts.Add(ctx, -1)
	}
}
