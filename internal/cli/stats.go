package cli

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/snip/pkg/types"
)

// countRow is one line of a stats section.
type countRow struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// statsView is what "snip stats" reports.
type statsView struct {
	Total        int        `json:"total"`
	NextID       uint64     `json:"next_id"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	LastSync     *time.Time `json:"last_sync,omitempty"`
	Synced       int        `json:"synced"`
	GistUpdated  *time.Time `json:"gist_updated,omitempty"`
	Languages    []countRow `json:"languages"`
	Tags         []countRow `json:"tags"`
	Months       []countRow `json:"months"`
}

// countRows turns an index into rows, largest first, ties by name.
func countRows(index map[string][]uint64) []countRow {
	rows := make([]countRow, 0, len(index))
	for name, ids := range index {
		rows = append(rows, countRow{Name: name, Count: len(ids)})
	}
	slices.SortFunc(rows, func(a, b countRow) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return rows
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show snippet counts per language, tag and month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			ctx := cmd.Context()
			langs, err := store.Languages(ctx)
			if err != nil {
				return err
			}
			tags, err := store.Tags(ctx)
			if err != nil {
				return err
			}
			next, err := store.NextID(ctx)
			if err != nil {
				return err
			}
			all, err := store.List(ctx, types.Filter{})
			if err != nil {
				return err
			}

			st := &statsView{
				Total:     len(all),
				NextID:    next,
				Languages: countRows(langs),
				Tags:      countRows(tags),
			}
			months := make(map[string][]uint64)
			for _, s := range all {
				m := s.DateCreated.Local().Format("2006-01")
				months[m] = append(months[m], s.ID)
				if st.LastModified == nil || s.DateModified.After(*st.LastModified) {
					t := s.DateModified
					st.LastModified = &t
				}
			}
			if err := syncStats(ctx, store, st); err != nil {
				return err
			}
			st.Months = countRows(months)
			slices.SortFunc(st.Months, func(a, b countRow) int { return cmp.Compare(a.Name, b.Name) })
			return a.printer(cmd).stats(st)
		},
	}
}

// syncStats fills the sync fields of st from the stored sync state.
func syncStats(ctx context.Context, store types.SyncState, st *statsView) error {
	records, err := store.SyncRecords(ctx)
	if err != nil {
		return err
	}
	st.Synced = len(records)
	for _, rec := range records {
		if st.LastSync == nil || rec.SyncedAt.After(*st.LastSync) {
			t := rec.SyncedAt
			st.LastSync = &t
		}
	}
	stamp, err := store.RemoteStamp(ctx)
	if err != nil {
		return err
	}
	if !stamp.IsZero() {
		st.GistUpdated = &stamp
	}
	return nil
}
