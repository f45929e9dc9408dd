package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/snip/internal/gist"
	"github.com/mesh-intelligence/snip/internal/sqlite"
	"github.com/mesh-intelligence/snip/pkg/types"
)

var base = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

// ticker returns a clock that advances one second per call.
func ticker(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Second)
	}
}

func setupStore(t *testing.T) *sqlite.Backend {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })
	return b
}

func setup(t *testing.T) (*sqlite.Backend, *gist.MemoryRemote) {
	t.Helper()
	return setupStore(t), gist.NewMemoryRemote(ticker(base))
}

func insert(t *testing.T, store types.Store, desc, lang string, tags ...string) uint64 {
	t.Helper()
	id, err := store.Insert(context.Background(), &types.Snippet{
		Description: desc, Language: lang, Code: "code of " + desc, Tags: tags,
	})
	require.NoError(t, err)
	return id
}

func run(t *testing.T, store types.Store, remote types.Remote, mode types.SyncMode) *types.Report {
	t.Helper()
	report, err := New(store, remote, Options{}).Run(context.Background(), mode)
	require.NoError(t, err)
	require.Empty(t, report.Failures)
	return report
}

func TestSyncLocalPushesAndIsIdempotent(t *testing.T) {
	store, remote := setup(t)
	id := insert(t, store, "foo", "python", "x")

	report := run(t, store, remote, types.SyncLocal)
	assert.Equal(t, types.Counts{Created: 1}, report.Remote)
	assert.Equal(t, types.Counts{}, report.Local)
	assert.NotEmpty(t, report.RunID)

	got, ok := remote.Get(id)
	require.True(t, ok)
	assert.Equal(t, "foo", got.Description)
	assert.Equal(t, "python", got.Language)
	assert.Equal(t, []string{"x"}, got.Tags)

	writes := remote.Writes()
	again := run(t, store, remote, types.SyncLocal)
	assert.Zero(t, again.Actions(), "second local sync is a no-op")
	assert.Equal(t, 1, again.UpToDate)
	assert.Equal(t, writes, remote.Writes())

	date := run(t, store, remote, types.SyncDate)
	assert.Zero(t, date.Actions(), "date sync after local sync is a fixed point")
}

func TestSyncGistPullsWithRemoteIDs(t *testing.T) {
	store, remote := setup(t)
	remote.Seed(base, &types.Snippet{ID: 5, Description: "bar", Language: "sh", Code: "echo bar", Tags: []string{}})

	report := run(t, store, remote, types.SyncGist)
	assert.Equal(t, types.Counts{Created: 1}, report.Local)

	got, err := store.Get(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "bar", got.Description)
	assert.Equal(t, "sh", got.Language)
	assert.Equal(t, base, got.DateModified)

	next, err := store.NextID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(6), next, "allocator moves past pulled ids")

	assert.Zero(t, run(t, store, remote, types.SyncDate).Actions())
}

func TestSyncLocalOverwritesRemote(t *testing.T) {
	store, remote := setup(t)
	insert(t, store, "one", "sh")
	insert(t, store, "two", "sh")
	remote.Seed(base,
		&types.Snippet{ID: 2, Description: "two (old)", Language: "sh", Code: "old"},
		&types.Snippet{ID: 3, Description: "three", Language: "go", Code: "_ = 3"},
	)

	report := run(t, store, remote, types.SyncLocal)
	assert.Equal(t, types.Counts{Created: 1, Updated: 1, Deleted: 1}, report.Remote)
	assert.Equal(t, types.Counts{}, report.Local)

	got, ok := remote.Get(2)
	require.True(t, ok)
	assert.Equal(t, "two", got.Description)
	_, ok = remote.Get(3)
	assert.False(t, ok)
}

func TestSyncGistOverwritesLocal(t *testing.T) {
	ctx := context.Background()
	store, remote := setup(t)
	insert(t, store, "one", "sh")
	insert(t, store, "two", "sh", "keep")
	remote.Seed(base,
		&types.Snippet{ID: 2, Description: "two (remote)", Language: "sh", Code: "remote", Tags: []string{"remote"}},
		&types.Snippet{ID: 3, Description: "three", Language: "go", Code: "_ = 3"},
	)

	report := run(t, store, remote, types.SyncGist)
	assert.Equal(t, types.Counts{Created: 1, Updated: 1, Deleted: 1}, report.Local)
	assert.Equal(t, types.Counts{}, report.Remote)

	_, err := store.Get(ctx, 1)
	assert.ErrorIs(t, err, types.ErrNotFound)
	got, err := store.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "two (remote)", got.Description)

	tags, err := store.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]uint64{"remote": {2}}, tags, "indexes follow pulled content")
}

func TestSyncLocalThenGistConverges(t *testing.T) {
	store, remote := setup(t)
	insert(t, store, "a", "sh", "t")
	insert(t, store, "b", "go")

	run(t, store, remote, types.SyncLocal)
	gistReport := run(t, store, remote, types.SyncGist)
	assert.Zero(t, gistReport.Actions())
	assert.Zero(t, run(t, store, remote, types.SyncDate).Actions())
}

func TestSyncDate(t *testing.T) {
	ctx := context.Background()

	edit := func(s *types.Snippet, desc string) *types.Snippet {
		c := s.Clone()
		c.Description = desc
		return c
	}

	tests := []struct {
		name string
		// change runs after an initial local sync of snippet 1 ("orig").
		change     func(t *testing.T, store *sqlite.Backend, remote *gist.MemoryRemote, s *types.Snippet)
		wantLocal  types.Counts
		wantRemote types.Counts
		conflicts  []uint64
		check      func(t *testing.T, store *sqlite.Backend, remote *gist.MemoryRemote)
	}{
		{
			name: "local edit is pushed",
			change: func(t *testing.T, store *sqlite.Backend, _ *gist.MemoryRemote, s *types.Snippet) {
				require.NoError(t, store.Update(ctx, 1, edit(s, "local"), types.UpdateOptions{}))
			},
			wantRemote: types.Counts{Updated: 1},
			check: func(t *testing.T, _ *sqlite.Backend, remote *gist.MemoryRemote) {
				got, _ := remote.Get(1)
				assert.Equal(t, "local", got.Description)
			},
		},
		{
			name: "remote edit is pulled",
			change: func(t *testing.T, _ *sqlite.Backend, remote *gist.MemoryRemote, s *types.Snippet) {
				require.NoError(t, remote.Update(ctx, 1, edit(s, "remote")))
			},
			wantLocal: types.Counts{Updated: 1},
			check: func(t *testing.T, store *sqlite.Backend, _ *gist.MemoryRemote) {
				got, err := store.Get(ctx, 1)
				require.NoError(t, err)
				assert.Equal(t, "remote", got.Description)
			},
		},
		{
			name: "local delete removes remote copy",
			change: func(t *testing.T, store *sqlite.Backend, _ *gist.MemoryRemote, _ *types.Snippet) {
				require.NoError(t, store.Delete(ctx, 1))
			},
			wantRemote: types.Counts{Deleted: 1},
			check: func(t *testing.T, store *sqlite.Backend, remote *gist.MemoryRemote) {
				_, ok := remote.Get(1)
				assert.False(t, ok)
				recs, err := store.SyncRecords(ctx)
				require.NoError(t, err)
				assert.NotContains(t, recs, uint64(1), "tombstone consumed")
			},
		},
		{
			name: "remote delete removes local copy",
			change: func(t *testing.T, _ *sqlite.Backend, remote *gist.MemoryRemote, _ *types.Snippet) {
				require.NoError(t, remote.Delete(ctx, 1))
			},
			wantLocal: types.Counts{Deleted: 1},
			check: func(t *testing.T, store *sqlite.Backend, _ *gist.MemoryRemote) {
				_, err := store.Get(ctx, 1)
				assert.ErrorIs(t, err, types.ErrNotFound)
			},
		},
		{
			name: "remote delete of a locally edited snippet recreates it remotely",
			change: func(t *testing.T, store *sqlite.Backend, remote *gist.MemoryRemote, s *types.Snippet) {
				require.NoError(t, remote.Delete(ctx, 1))
				require.NoError(t, store.Update(ctx, 1, edit(s, "local"), types.UpdateOptions{}))
			},
			wantRemote: types.Counts{Created: 1},
		},
		{
			name: "local delete of a remotely edited snippet recreates it locally",
			change: func(t *testing.T, store *sqlite.Backend, remote *gist.MemoryRemote, s *types.Snippet) {
				require.NoError(t, store.Delete(ctx, 1))
				require.NoError(t, remote.Update(ctx, 1, edit(s, "remote")))
			},
			wantLocal: types.Counts{Created: 1},
			check: func(t *testing.T, store *sqlite.Backend, _ *gist.MemoryRemote) {
				got, err := store.Get(ctx, 1)
				require.NoError(t, err)
				assert.Equal(t, "remote", got.Description)
			},
		},
		{
			name: "both edited and local newer pushes",
			change: func(t *testing.T, store *sqlite.Backend, remote *gist.MemoryRemote, s *types.Snippet) {
				require.NoError(t, remote.Update(ctx, 1, edit(s, "remote")))
				l := edit(s, "local")
				l.DateModified = base.Add(100 * time.Hour)
				require.NoError(t, store.Update(ctx, 1, l, types.UpdateOptions{KeepDates: true}))
			},
			wantRemote: types.Counts{Updated: 1},
			check: func(t *testing.T, _ *sqlite.Backend, remote *gist.MemoryRemote) {
				got, _ := remote.Get(1)
				assert.Equal(t, "local", got.Description)
			},
		},
		{
			name: "both edited and remote newer pulls",
			change: func(t *testing.T, store *sqlite.Backend, remote *gist.MemoryRemote, s *types.Snippet) {
				require.NoError(t, remote.Update(ctx, 1, edit(s, "remote")))
				l := edit(s, "local")
				l.DateModified = base.Add(-time.Hour)
				require.NoError(t, store.Update(ctx, 1, l, types.UpdateOptions{KeepDates: true}))
			},
			wantLocal: types.Counts{Updated: 1},
			check: func(t *testing.T, store *sqlite.Backend, _ *gist.MemoryRemote) {
				got, err := store.Get(ctx, 1)
				require.NoError(t, err)
				assert.Equal(t, "remote", got.Description)
			},
		},
		{
			name: "both edited with equal dates is a conflict",
			change: func(t *testing.T, store *sqlite.Backend, remote *gist.MemoryRemote, s *types.Snippet) {
				require.NoError(t, remote.Update(ctx, 1, edit(s, "remote")))
				snap, err := remote.List(ctx)
				require.NoError(t, err)
				l := edit(s, "local")
				l.DateModified = snap.DateModified
				require.NoError(t, store.Update(ctx, 1, l, types.UpdateOptions{KeepDates: true}))
			},
			conflicts: []uint64{1},
			check: func(t *testing.T, store *sqlite.Backend, remote *gist.MemoryRemote) {
				got, err := store.Get(ctx, 1)
				require.NoError(t, err)
				assert.Equal(t, "local", got.Description)
				r, _ := remote.Get(1)
				assert.Equal(t, "remote", r.Description)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, remote := setup(t)
			insert(t, store, "orig", "sh", "t")
			run(t, store, remote, types.SyncLocal)
			s, err := store.Get(ctx, 1)
			require.NoError(t, err)

			tt.change(t, store, remote, s)

			report := run(t, store, remote, types.SyncDate)
			assert.Equal(t, tt.wantLocal, report.Local, "local counts")
			assert.Equal(t, tt.wantRemote, report.Remote, "remote counts")
			assert.Equal(t, tt.conflicts, report.Conflicts)
			if tt.check != nil {
				tt.check(t, store, remote)
			}
			if len(tt.conflicts) == 0 {
				assert.Zero(t, run(t, store, remote, types.SyncDate).Actions(), "converged")
			}
		})
	}
}

func TestSyncDateWithoutHistory(t *testing.T) {
	ctx := context.Background()
	store, remote := setup(t)
	insert(t, store, "local only", "sh")
	remote.Seed(base, &types.Snippet{ID: 7, Description: "remote only", Language: "go", Code: "_ = 7"})

	report := run(t, store, remote, types.SyncDate)
	assert.Equal(t, types.Counts{Created: 1}, report.Local)
	assert.Equal(t, types.Counts{Created: 1}, report.Remote)

	_, err := store.Get(ctx, 7)
	assert.NoError(t, err)
	_, ok := remote.Get(1)
	assert.True(t, ok)
}

func TestSyncCollectsFailures(t *testing.T) {
	ctx := context.Background()
	store, remote := setup(t)
	for i := 0; i < 3; i++ {
		insert(t, store, fmt.Sprintf("s%d", i), "sh")
	}
	remote.FailOn(2, errors.New("permission denied"))

	report, err := New(store, remote, Options{Workers: 3}).Run(ctx, types.SyncLocal)
	require.NoError(t, err)
	assert.Equal(t, types.Counts{Created: 2}, report.Remote)
	require.Len(t, report.Failures, 1)
	f := report.Failures[0]
	assert.Equal(t, uint64(2), f.ID)
	assert.Equal(t, types.SideRemote, f.Side)
	assert.Equal(t, types.OpCreate, f.Op)
	assert.Contains(t, f.Reason, "permission denied")
	assert.True(t, report.Failed())

	recs, err := store.SyncRecords(ctx)
	require.NoError(t, err)
	assert.NotContains(t, recs, uint64(2), "failed ids keep no sync state")

	remote.FailOn(2, nil)
	retry := run(t, store, remote, types.SyncLocal)
	assert.Equal(t, types.Counts{Created: 1}, retry.Remote, "rerun converges")
}

func TestSyncAbortsWhenRemoteUnreadable(t *testing.T) {
	store, remote := setup(t)
	insert(t, store, "a", "sh")
	remote.FailList(errors.New("connection refused"))

	_, err := New(store, remote, Options{}).Run(context.Background(), types.SyncDate)
	require.ErrorIs(t, err, types.ErrRemoteFailure)
	assert.Zero(t, remote.Writes())
}

func TestSyncDryRun(t *testing.T) {
	ctx := context.Background()
	store, remote := setup(t)
	insert(t, store, "a", "sh")
	remote.Seed(base, &types.Snippet{ID: 9, Description: "b", Language: "sh", Code: "true"})

	report, err := New(store, remote, Options{DryRun: true}).Run(ctx, types.SyncGist)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, types.Counts{Created: 1, Deleted: 1}, report.Local)

	_, err = store.Get(ctx, 1)
	assert.NoError(t, err, "nothing deleted")
	_, err = store.Get(ctx, 9)
	assert.ErrorIs(t, err, types.ErrNotFound, "nothing created")
}

func TestSyncPlan(t *testing.T) {
	store, remote := setup(t)
	insert(t, store, "a", "sh")
	insert(t, store, "b", "sh")

	plan, err := New(store, remote, Options{}).Plan(context.Background(), types.SyncLocal)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 2)
	assert.Equal(t, uint64(1), plan.Actions[0].ID)
	assert.Equal(t, uint64(2), plan.Actions[1].ID)
	local, rem := plan.Count()
	assert.Equal(t, types.Counts{}, local)
	assert.Equal(t, types.Counts{Created: 2}, rem)
}

func TestSyncManyWorkers(t *testing.T) {
	store, remote := setup(t)
	for i := 0; i < 40; i++ {
		insert(t, store, fmt.Sprintf("s%d", i), "go", "bulk")
	}

	report, err := New(store, remote, Options{Workers: 8}).Run(context.Background(), types.SyncLocal)
	require.NoError(t, err)
	assert.Empty(t, report.Failures)
	assert.Equal(t, 40, report.Remote.Created)
	assert.Zero(t, run(t, store, remote, types.SyncDate).Actions())
}

func TestSyncInvalidMode(t *testing.T) {
	store, remote := setup(t)
	_, err := New(store, remote, Options{}).Run(context.Background(), types.SyncMode("both"))
	assert.ErrorIs(t, err, types.ErrInvalidMode)
}

func TestSyncStoresRemoteStamp(t *testing.T) {
	ctx := context.Background()
	store, remote := setup(t)
	insert(t, store, "a", "sh")

	first := run(t, store, remote, types.SyncLocal)
	assert.Nil(t, first.PreviousSync, "first sync has no history")

	snap, err := remote.List(ctx)
	require.NoError(t, err)
	stamp, err := store.RemoteStamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.DateModified, stamp)

	second := run(t, store, remote, types.SyncDate)
	require.NotNil(t, second.PreviousSync)
	assert.True(t, stamp.Equal(*second.PreviousSync))
}
