package gist

import (
	"context"
	"sync"
	"time"

	"github.com/mesh-intelligence/snip/pkg/types"
)

// Compile-time interface check: MemoryRemote must implement types.Remote.
var _ types.Remote = (*MemoryRemote)(nil)

// MemoryRemote is an in-process types.Remote. Every write advances the
// aggregate timestamp, like a gist's updated_at. Failures can be injected
// per snippet id.
type MemoryRemote struct {
	mu       sync.Mutex
	snippets map[uint64]*types.Snippet
	updated  time.Time
	now      func() time.Time
	failures map[uint64]error
	listErr  error
	writes   int
}

// NewMemoryRemote returns an empty remote. A nil now uses time.Now.
func NewMemoryRemote(now func() time.Time) *MemoryRemote {
	if now == nil {
		now = time.Now
	}
	return &MemoryRemote{
		snippets: make(map[uint64]*types.Snippet),
		failures: make(map[uint64]error),
		now:      now,
	}
}

// Seed stores snippets without counting writes and sets the timestamp.
func (m *MemoryRemote) Seed(updated time.Time, snippets ...*types.Snippet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range snippets {
		c := s.Clone()
		c.Normalize()
		m.snippets[s.ID] = c
	}
	m.updated = updated
}

// FailOn makes every write touching id fail with err. A nil err clears it.
func (m *MemoryRemote) FailOn(id uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, id)
		return
	}
	m.failures[id] = err
}

// FailList makes List fail with err.
func (m *MemoryRemote) FailList(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// Writes returns the number of successful writes.
func (m *MemoryRemote) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Get returns a copy of the stored snippet.
func (m *MemoryRemote) Get(id uint64) (*types.Snippet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snippets[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// List returns copies of every snippet stamped with the aggregate time.
func (m *MemoryRemote) List(ctx context.Context) (*types.RemoteSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, remoteErr(0, "list", m.listErr)
	}
	snap := &types.RemoteSnapshot{
		Snippets:     make(map[uint64]*types.Snippet, len(m.snippets)),
		DateModified: m.updated,
	}
	for id, s := range m.snippets {
		c := s.Clone()
		c.DateCreated = m.updated
		c.DateModified = m.updated
		snap.Snippets[id] = c
	}
	return snap, nil
}

// Create stores s at s.ID.
func (m *MemoryRemote) Create(ctx context.Context, s *types.Snippet) error {
	return m.put(ctx, "create", s.ID, s)
}

// Update replaces the snippet at id.
func (m *MemoryRemote) Update(ctx context.Context, id uint64, s *types.Snippet) error {
	return m.put(ctx, "update", id, s)
}

func (m *MemoryRemote) put(ctx context.Context, op string, id uint64, s *types.Snippet) error {
	if err := ctx.Err(); err != nil {
		return remoteErr(id, op, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[id]; err != nil {
		return remoteErr(id, op, err)
	}
	c := s.Clone()
	c.ID = id
	c.Normalize()
	m.snippets[id] = c
	m.touch()
	return nil
}

// Delete removes the snippet at id.
func (m *MemoryRemote) Delete(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return remoteErr(id, "delete", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[id]; err != nil {
		return remoteErr(id, "delete", err)
	}
	if _, ok := m.snippets[id]; !ok {
		return remoteErr(id, "delete", types.NotFound(id))
	}
	delete(m.snippets, id)
	m.touch()
	return nil
}

// touch advances the aggregate timestamp. The caller must hold m.mu.
func (m *MemoryRemote) touch() {
	m.writes++
	t := m.now().UTC()
	if !t.After(m.updated) {
		t = m.updated.Add(time.Nanosecond)
	}
	m.updated = t
}
