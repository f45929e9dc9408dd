package syncer

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/snip/pkg/types"
)

// Options tunes an Engine.
type Options struct {
	// Workers bounds concurrent apply calls. Zero means one.
	Workers int
	// DryRun computes the plan and reports it without writing anything.
	DryRun  bool
	Logger  *slog.Logger
	Now     func() time.Time
}

// Engine reconciles a Store with a Remote.
type Engine struct {
	store  types.Store
	remote types.Remote
	opts   Options
}

// New returns an engine over store and remote.
func New(store types.Store, remote types.Remote, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{store: store, remote: remote, opts: opts}
}

// Plan loads both snapshots and the sync state and computes the actions
// for mode without applying them.
func (e *Engine) Plan(ctx context.Context, mode types.SyncMode) (*Plan, error) {
	if _, err := types.ParseSyncMode(string(mode)); err != nil {
		return nil, err
	}
	st, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	return buildPlan(mode, st), nil
}

// Run performs one sync. Per-id failures are collected in the report and
// do not stop the batch; the returned error is reserved for failures that
// prevent a plan from being made.
func (e *Engine) Run(ctx context.Context, mode types.SyncMode) (*types.Report, error) {
	start := e.opts.Now()
	report := &types.Report{RunID: newRunID(), Mode: mode, DryRun: e.opts.DryRun}
	log := e.opts.Logger.With("run_id", report.RunID, "mode", string(mode))

	if _, err := types.ParseSyncMode(string(mode)); err != nil {
		return nil, err
	}
	st, err := e.load(ctx)
	if err != nil {
		log.Error("sync aborted", "error", err)
		return nil, err
	}
	plan := buildPlan(mode, st)
	if !st.stamp.IsZero() {
		prev := st.stamp
		report.PreviousSync = &prev
	}
	report.UpToDate = len(plan.UpToDate)
	report.Conflicts = plan.Conflicts
	log.Info("sync planned",
		"local", len(st.local), "remote", len(st.remote.Snippets), "remote_unchanged", st.remoteUnchanged(),
		"actions", len(plan.Actions), "up_to_date", report.UpToDate, "conflicts", len(plan.Conflicts))
	for _, id := range plan.Conflicts {
		log.Warn("conflict left untouched", "id", id)
	}

	if e.opts.DryRun {
		report.Local, report.Remote = plan.Count()
		report.Duration = e.opts.Now().Sub(start)
		return report, nil
	}

	remoteWrites := e.apply(ctx, log, plan, report)
	e.settle(ctx, log, st, plan, remoteWrites)

	report.Duration = e.opts.Now().Sub(start)
	log.Info("sync finished",
		"local_changes", report.Local.Total(), "remote_changes", report.Remote.Total(),
		"failures", len(report.Failures), "duration", report.Duration)
	return report, ctx.Err()
}

// load reads the local snapshot, the sync records and the remote snapshot.
func (e *Engine) load(ctx context.Context) (*state, error) {
	snippets, err := e.store.List(ctx, types.Filter{})
	if err != nil {
		return nil, fmt.Errorf("loading local snippets: %w", err)
	}
	local := make(map[uint64]*types.Snippet, len(snippets))
	for _, s := range snippets {
		local[s.ID] = s
	}
	records, err := e.store.SyncRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading sync state: %w", err)
	}
	remote, err := e.remote.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading remote snippets: %w", err)
	}
	if remote.Snippets == nil {
		remote.Snippets = make(map[uint64]*types.Snippet)
	}
	stamp, err := e.store.RemoteStamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading sync state: %w", err)
	}
	return &state{local: local, remote: remote, records: records, stamp: stamp}, nil
}

// apply runs every action on a bounded pool. Each action reports its own
// outcome and never fails the group, so one failure cannot cancel the
// others. Returns whether any remote write succeeded.
func (e *Engine) apply(ctx context.Context, log *slog.Logger, plan *Plan, report *types.Report) bool {
	var (
		mu           sync.Mutex
		remoteWrites bool
	)
	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for _, a := range plan.Actions {
		g.Go(func() error {
			err := e.applyOne(ctx, a)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, types.Failure{
					ID: a.ID, Side: a.Side, Op: a.Op, Reason: err.Error(),
				})
				log.Warn("sync action failed", "id", a.ID, "side", a.Side, "op", a.Op, "error", err)
				return nil
			}
			report.Record(a.Side, a.Op)
			if a.Side == types.SideRemote {
				remoteWrites = true
			}
			log.Debug("sync action applied", "id", a.ID, "side", a.Side, "op", a.Op, "reason", a.Reason)
			return nil
		})
	}
	_ = g.Wait()
	slices.SortFunc(report.Failures, func(x, y types.Failure) int {
		return cmp.Compare(x.ID, y.ID)
	})
	return remoteWrites
}

// applyOne writes one action and then the matching sync state.
func (e *Engine) applyOne(ctx context.Context, a Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var err error
	switch {
	case a.Side == types.SideRemote && a.Op == types.OpCreate:
		err = e.remote.Create(ctx, a.Snippet)
	case a.Side == types.SideRemote && a.Op == types.OpUpdate:
		err = e.remote.Update(ctx, a.ID, a.Snippet)
	case a.Side == types.SideRemote && a.Op == types.OpDelete:
		err = e.remote.Delete(ctx, a.ID)
	case a.Side == types.SideLocal && a.Op == types.OpCreate:
		err = e.store.Put(ctx, a.Snippet)
	case a.Side == types.SideLocal && a.Op == types.OpUpdate:
		err = e.store.Update(ctx, a.ID, a.Snippet, types.UpdateOptions{KeepDates: true})
	case a.Side == types.SideLocal && a.Op == types.OpDelete:
		err = e.store.Delete(ctx, a.ID)
	default:
		err = fmt.Errorf("unknown action %s %s", a.Side, a.Op)
	}
	if err != nil {
		return err
	}

	if a.Op == types.OpDelete {
		if err := e.store.ForgetSync(ctx, a.ID); err != nil {
			return fmt.Errorf("forgetting sync state: %w", err)
		}
		return nil
	}
	rec := types.SyncRecord{ID: a.ID, Fingerprint: a.Snippet.Fingerprint(), SyncedAt: e.opts.Now()}
	if err := e.store.RecordSync(ctx, rec); err != nil {
		return fmt.Errorf("recording sync state: %w", err)
	}
	return nil
}

// settle refreshes records of snippets already equal on both sides, drops
// stale records and stores the remote timestamp. Failures here only cost
// precision on the next date sync, so they are logged.
func (e *Engine) settle(ctx context.Context, log *slog.Logger, st *state, plan *Plan, remoteWrites bool) {
	now := e.opts.Now()
	for _, s := range plan.UpToDate {
		fp := s.Fingerprint()
		if rec, ok := st.records[s.ID]; ok && rec.Fingerprint == fp {
			continue
		}
		if err := e.store.RecordSync(ctx, types.SyncRecord{ID: s.ID, Fingerprint: fp, SyncedAt: now}); err != nil {
			log.Warn("recording sync state failed", "id", s.ID, "error", err)
		}
	}
	for _, id := range plan.Stale {
		if err := e.store.ForgetSync(ctx, id); err != nil {
			log.Warn("dropping stale sync state failed", "id", id, "error", err)
		}
	}

	stamp := st.remote.DateModified
	if remoteWrites {
		snap, err := e.remote.List(ctx)
		if err != nil {
			log.Warn("re-reading remote timestamp failed", "error", err)
			return
		}
		stamp = snap.DateModified
	}
	if stamp.IsZero() {
		return
	}
	if err := e.store.SetRemoteStamp(ctx, stamp); err != nil {
		log.Warn("recording remote timestamp failed", "error", err)
	}
}

// newRunID generates a UUID v7 for the run.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
