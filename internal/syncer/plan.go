// Package syncer reconciles the local snippet store with a remote snapshot
// under one of the date, local or gist policies.
package syncer

import (
	"slices"
	"time"

	"github.com/mesh-intelligence/snip/pkg/types"
)

// Action is one write the engine will apply. Snippet is the content to
// write and is nil for deletes.
type Action struct {
	ID      uint64
	Side    types.Side
	Op      types.Op
	Snippet *types.Snippet
	Reason  string
}

// Plan is the reconciliation for one run, ordered by id.
type Plan struct {
	Mode      types.SyncMode
	Actions   []Action
	UpToDate  []*types.Snippet
	Conflicts []uint64
	// Stale lists sync records whose snippet is gone on both sides.
	Stale     []uint64
}

// Count tallies the planned actions per side.
func (p *Plan) Count() (local, remote types.Counts) {
	for _, a := range p.Actions {
		c := &remote
		if a.Side == types.SideLocal {
			c = &local
		}
		switch a.Op {
		case types.OpCreate:
			c.Created++
		case types.OpUpdate:
			c.Updated++
		case types.OpDelete:
			c.Deleted++
		}
	}
	return local, remote
}

// state is everything a plan is computed from. stamp is the remote
// aggregate timestamp stored by the previous sync, zero before the first.
type state struct {
	local   map[uint64]*types.Snippet
	remote  *types.RemoteSnapshot
	records map[uint64]types.SyncRecord
	stamp   time.Time
}

// remoteUnchanged reports whether the remote has not been written since
// the previous sync stored its timestamp.
func (s *state) remoteUnchanged() bool {
	return !s.stamp.IsZero() && s.remote.DateModified.Equal(s.stamp)
}

// ids returns the union of local, remote and recorded ids, ascending.
func (s *state) ids() []uint64 {
	seen := make(map[uint64]bool)
	var out []uint64
	add := func(id uint64) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for id := range s.local {
		add(id)
	}
	for id := range s.remote.Snippets {
		add(id)
	}
	for id := range s.records {
		add(id)
	}
	slices.Sort(out)
	return out
}

// buildPlan computes the actions for mode. It is pure: equal inputs give
// equal plans.
func buildPlan(mode types.SyncMode, st *state) *Plan {
	p := &Plan{Mode: mode}
	for _, id := range st.ids() {
		l := st.local[id]
		r := st.remote.Snippets[id]
		rec, synced := st.records[id]

		if l != nil && r != nil && l.Same(r) {
			p.UpToDate = append(p.UpToDate, l)
			continue
		}
		if l == nil && r == nil {
			p.Stale = append(p.Stale, id)
			continue
		}

		var a *Action
		switch mode {
		case types.SyncLocal:
			a = planLocal(id, l, r)
		case types.SyncGist:
			a = planGist(id, l, r)
		case types.SyncDate:
			a = planDate(id, l, r, rec, synced, st)
			if a == nil {
				p.Conflicts = append(p.Conflicts, id)
			}
		}
		if a != nil {
			p.Actions = append(p.Actions, *a)
		}
	}
	return p
}

// planLocal makes the remote match the local store.
func planLocal(id uint64, l, r *types.Snippet) *Action {
	switch {
	case r == nil:
		return &Action{ID: id, Side: types.SideRemote, Op: types.OpCreate, Snippet: l, Reason: "missing remotely"}
	case l == nil:
		return &Action{ID: id, Side: types.SideRemote, Op: types.OpDelete, Reason: "missing locally"}
	default:
		return &Action{ID: id, Side: types.SideRemote, Op: types.OpUpdate, Snippet: l, Reason: "differs"}
	}
}

// planGist makes the local store match the remote.
func planGist(id uint64, l, r *types.Snippet) *Action {
	switch {
	case l == nil:
		return &Action{ID: id, Side: types.SideLocal, Op: types.OpCreate, Snippet: r, Reason: "missing locally"}
	case r == nil:
		return &Action{ID: id, Side: types.SideLocal, Op: types.OpDelete, Reason: "missing remotely"}
	default:
		return &Action{ID: id, Side: types.SideLocal, Op: types.OpUpdate, Snippet: r, Reason: "differs"}
	}
}

// planDate is the three-way merge against the last synced fingerprint.
// A synced remote snippet counts as unchanged while the remote timestamp
// still equals the stored one. A nil result is a conflict: both sides
// changed and carry the same date.
func planDate(id uint64, l, r *types.Snippet, rec types.SyncRecord, synced bool, st *state) *Action {
	snap := st.remote
	localChanged := l != nil && (!synced || l.Fingerprint() != rec.Fingerprint)
	remoteChanged := r != nil && (!synced || (!st.remoteUnchanged() && r.Fingerprint() != rec.Fingerprint))

	switch {
	case l != nil && r == nil:
		if synced && !localChanged {
			return &Action{ID: id, Side: types.SideLocal, Op: types.OpDelete, Reason: "deleted remotely"}
		}
		return &Action{ID: id, Side: types.SideRemote, Op: types.OpCreate, Snippet: l, Reason: "new locally"}

	case l == nil && r != nil:
		if synced && !remoteChanged {
			return &Action{ID: id, Side: types.SideRemote, Op: types.OpDelete, Reason: "deleted locally"}
		}
		return &Action{ID: id, Side: types.SideLocal, Op: types.OpCreate, Snippet: r, Reason: "new remotely"}
	}

	push := &Action{ID: id, Side: types.SideRemote, Op: types.OpUpdate, Snippet: l}
	pull := &Action{ID: id, Side: types.SideLocal, Op: types.OpUpdate, Snippet: r}
	switch {
	case localChanged && !remoteChanged:
		push.Reason = "changed locally"
		return push
	case remoteChanged && !localChanged:
		pull.Reason = "changed remotely"
		return pull
	case l.DateModified.After(snap.DateModified):
		push.Reason = "changed on both sides, local is newer"
		return push
	case snap.DateModified.After(l.DateModified):
		pull.Reason = "changed on both sides, remote is newer"
		return pull
	}
	return nil
}
