package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/mesh-intelligence/snip/pkg/types"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// applyIndexDelta moves snippet id from the index keys of before to those
// of after. Either side may be nil (insert or delete). Only keys in the
// symmetric difference are touched.
func applyIndexDelta(ctx context.Context, tx querier, id uint64, before, after *types.Snippet) error {
	var oldLang, newLang string
	var oldTags, newTags []string
	if before != nil {
		oldLang, oldTags = before.Language, before.Tags
	}
	if after != nil {
		newLang, newTags = after.Language, after.Tags
	}

	if oldLang != newLang {
		if oldLang != "" {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM snippet_languages WHERE language = ? AND snippet_id = ?", oldLang, id,
			); err != nil {
				return fmt.Errorf("removing language index: %w", err)
			}
		}
		if newLang != "" {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO snippet_languages (language, snippet_id) VALUES (?, ?)", newLang, id,
			); err != nil {
				return fmt.Errorf("adding language index: %w", err)
			}
		}
	}

	removed, added := tagDelta(oldTags, newTags)
	for _, tag := range removed {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM snippet_tags WHERE tag = ? AND snippet_id = ?", tag, id,
		); err != nil {
			return fmt.Errorf("removing tag index: %w", err)
		}
	}
	for _, tag := range added {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO snippet_tags (tag, snippet_id) VALUES (?, ?)", tag, id,
		); err != nil {
			return fmt.Errorf("adding tag index: %w", err)
		}
	}
	return nil
}

// tagDelta returns the tags only in before and the tags only in after.
func tagDelta(before, after []string) (removed, added []string) {
	for _, t := range before {
		if !slices.Contains(after, t) {
			removed = append(removed, t)
		}
	}
	for _, t := range after {
		if !slices.Contains(before, t) {
			added = append(added, t)
		}
	}
	return removed, added
}

// readIndex loads one key -> ids index table. Ids are ascending per key.
func readIndex(ctx context.Context, q querier, table, column string) (map[string][]uint64, error) {
	rows, err := q.QueryContext(ctx,
		fmt.Sprintf("SELECT %s, snippet_id FROM %s ORDER BY %s, snippet_id", column, table, column),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := make(map[string][]uint64)
	for rows.Next() {
		var key string
		var id uint64
		if err := rows.Scan(&key, &id); err != nil {
			return nil, err
		}
		index[key] = append(index[key], id)
	}
	return index, rows.Err()
}

// Languages returns the by_language index.
func (b *Backend) Languages(ctx context.Context) (map[string][]uint64, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	index, err := readIndex(ctx, db, "snippet_languages", "language")
	if err != nil {
		return nil, types.StorageError("reading language index", err)
	}
	return index, nil
}

// Tags returns the by_tag index.
func (b *Backend) Tags(ctx context.Context) (map[string][]uint64, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	index, err := readIndex(ctx, db, "snippet_tags", "tag")
	if err != nil {
		return nil, types.StorageError("reading tag index", err)
	}
	return index, nil
}
