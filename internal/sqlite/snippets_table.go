// This file implements the snippet operations of the SQLite backend:
// allocation, create, replace, update, delete and filtered listing.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/snip/pkg/types"
)

const snippetColumns = "snippet_id, description, language, code, tags, date_created, date_modified"

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// hydrateSnippet converts a snippets row into a *types.Snippet.
func hydrateSnippet(row rowScanner) (*types.Snippet, error) {
	var (
		s                 types.Snippet
		tagsJSON          string
		created, modified string
	)
	if err := row.Scan(&s.ID, &s.Description, &s.Language, &s.Code, &tagsJSON, &created, &modified); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &s.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags of snippet %d: %w", s.ID, err)
	}
	s.Tags = types.NormalizeTags(s.Tags)
	var err error
	if s.DateCreated, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parsing date_created of snippet %d: %w", s.ID, err)
	}
	if s.DateModified, err = parseTime(modified); err != nil {
		return nil, fmt.Errorf("parsing date_modified of snippet %d: %w", s.ID, err)
	}
	return &s, nil
}

// loadSnippet reads one snippet. Returns a NotFoundError when absent.
func loadSnippet(ctx context.Context, q querier, id uint64) (*types.Snippet, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+snippetColumns+" FROM snippets WHERE snippet_id = ?", id,
	)
	s, err := hydrateSnippet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NotFound(id)
	}
	return s, err
}

// writeSnippet stores s over before (nil for a new row) and moves its
// index memberships accordingly.
func writeSnippet(ctx context.Context, tx querier, before, s *types.Snippet) error {
	tags, err := json.Marshal(s.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	if before == nil {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO snippets ("+snippetColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
			s.ID, s.Description, s.Language, s.Code, string(tags),
			formatTime(s.DateCreated), formatTime(s.DateModified),
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE snippets SET description = ?, language = ?, code = ?, tags = ?,
			date_created = ?, date_modified = ? WHERE snippet_id = ?`,
			s.Description, s.Language, s.Code, string(tags),
			formatTime(s.DateCreated), formatTime(s.DateModified), s.ID,
		)
	}
	if err != nil {
		return fmt.Errorf("persisting snippet %d: %w", s.ID, err)
	}
	return applyIndexDelta(ctx, tx, s.ID, before, s)
}

// readNextID returns the allocator value.
func readNextID(ctx context.Context, q querier) (uint64, error) {
	var v string
	if err := q.QueryRowContext(ctx,
		"SELECT value FROM meta WHERE key = ?", metaNextID,
	).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading allocator: %w", err)
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing allocator %q: %w", v, err)
	}
	return id, nil
}

// raiseNextID moves the allocator to at least next. It never lowers it.
func raiseNextID(ctx context.Context, tx querier, next uint64) error {
	cur, err := readNextID(ctx, tx)
	if err != nil {
		return err
	}
	if next <= cur {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE meta SET value = ? WHERE key = ?", strconv.FormatUint(next, 10), metaNextID,
	); err != nil {
		return fmt.Errorf("advancing allocator: %w", err)
	}
	return nil
}

// prepare normalizes and validates a snippet about to be written.
func prepare(s *types.Snippet) (*types.Snippet, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil snippet", types.ErrInvalidSnippet)
	}
	rec := s.Clone()
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Insert allocates the next id and writes s. On success s.ID and any unset
// dates are filled in.
func (b *Backend) Insert(ctx context.Context, s *types.Snippet) (uint64, error) {
	rec, err := prepare(s)
	if err != nil {
		return 0, err
	}
	now := b.now().UTC()
	if rec.DateCreated.IsZero() {
		rec.DateCreated = now
	}
	if rec.DateModified.IsZero() {
		rec.DateModified = rec.DateCreated
	}

	err = b.withTx(ctx, "inserting snippet", func(tx *sql.Tx) error {
		id, err := readNextID(ctx, tx)
		if err != nil {
			return types.StorageError("inserting snippet", err)
		}
		rec.ID = id
		if err := writeSnippet(ctx, tx, nil, rec); err != nil {
			return types.StorageError("inserting snippet", err)
		}
		if err := raiseNextID(ctx, tx, id+1); err != nil {
			return types.StorageError("inserting snippet", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.ID, s.DateCreated, s.DateModified = rec.ID, rec.DateCreated, rec.DateModified
	return rec.ID, nil
}

// InsertAll allocates fresh ids for every snippet and writes them in one
// transaction. Any invalid snippet rejects the whole batch before anything
// is written. On success each snippet's ID is set.
func (b *Backend) InsertAll(ctx context.Context, snippets []*types.Snippet) (int, error) {
	recs := make([]*types.Snippet, 0, len(snippets))
	for i, s := range snippets {
		rec, err := prepare(s)
		if err != nil {
			return 0, fmt.Errorf("snippet %d: %w", i+1, err)
		}
		recs = append(recs, rec)
	}
	n, err := b.writeBatch(ctx, "inserting snippets", recs, false)
	if err != nil {
		return 0, err
	}
	for i, rec := range recs {
		snippets[i].ID = rec.ID
	}
	return n, nil
}

// Put writes s at s.ID, creating or replacing the record. Dates are taken
// from s; unset dates become now.
func (b *Backend) Put(ctx context.Context, s *types.Snippet) error {
	rec, err := prepare(s)
	if err != nil {
		return err
	}
	if rec.ID == 0 {
		return fmt.Errorf("%w: id must be positive", types.ErrInvalidSnippet)
	}
	now := b.now().UTC()
	if rec.DateCreated.IsZero() {
		rec.DateCreated = now
	}
	if rec.DateModified.IsZero() {
		rec.DateModified = now
	}

	return b.withTx(ctx, "putting snippet", func(tx *sql.Tx) error {
		return putSnippet(ctx, tx, rec)
	})
}

func putSnippet(ctx context.Context, tx querier, rec *types.Snippet) error {
	before, err := loadSnippet(ctx, tx, rec.ID)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return types.StorageError("putting snippet", err)
	}
	if err := writeSnippet(ctx, tx, before, rec); err != nil {
		return types.StorageError("putting snippet", err)
	}
	if err := raiseNextID(ctx, tx, rec.ID+1); err != nil {
		return types.StorageError("putting snippet", err)
	}
	return nil
}

// Get retrieves a snippet by id.
func (b *Backend) Get(ctx context.Context, id uint64) (*types.Snippet, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	s, err := loadSnippet(ctx, db, id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
		return nil, types.StorageError(fmt.Sprintf("getting snippet %d", id), err)
	}
	return s, nil
}

// Update replaces the content of snippet id with s. DateCreated is kept;
// DateModified becomes now unless opts.KeepDates is set.
func (b *Backend) Update(ctx context.Context, id uint64, s *types.Snippet, opts types.UpdateOptions) error {
	rec, err := prepare(s)
	if err != nil {
		return err
	}
	rec.ID = id

	return b.withTx(ctx, "updating snippet", func(tx *sql.Tx) error {
		before, err := loadSnippet(ctx, tx, id)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return err
			}
			return types.StorageError("updating snippet", err)
		}
		rec.DateCreated = before.DateCreated
		if !opts.KeepDates || rec.DateModified.IsZero() {
			rec.DateModified = b.now().UTC()
		}
		if err := writeSnippet(ctx, tx, before, rec); err != nil {
			return types.StorageError("updating snippet", err)
		}
		return nil
	})
}

// Delete removes snippet id and its index memberships.
func (b *Backend) Delete(ctx context.Context, id uint64) error {
	return b.withTx(ctx, "deleting snippet", func(tx *sql.Tx) error {
		before, err := loadSnippet(ctx, tx, id)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return err
			}
			return types.StorageError("deleting snippet", err)
		}
		if err := applyIndexDelta(ctx, tx, id, before, nil); err != nil {
			return types.StorageError("deleting snippet", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM snippets WHERE snippet_id = ?", id); err != nil {
			return types.StorageError("deleting snippet", err)
		}
		return nil
	})
}

// List returns snippets matching filter. Language and tag conditions are
// answered from the index tables, the date range from the date index.
func (b *Backend) List(ctx context.Context, filter types.Filter) ([]*types.Snippet, error) {
	match, err := filter.Matcher()
	if err != nil {
		return nil, err
	}
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	query, args := buildListQuery(filter)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.StorageError("listing snippets", err)
	}
	defer rows.Close()

	var out []*types.Snippet
	for rows.Next() {
		s, err := hydrateSnippet(rows)
		if err != nil {
			return nil, types.StorageError("listing snippets", err)
		}
		if match != nil && !match(s) {
			continue
		}
		out = append(out, s)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, types.StorageError("listing snippets", err)
	}
	return out, nil
}

// buildListQuery translates the indexed part of a filter into SQL.
func buildListQuery(filter types.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if langs := lowerAll(filter.Languages); len(langs) > 0 {
		where = append(where,
			"snippet_id IN (SELECT snippet_id FROM snippet_languages WHERE language IN ("+placeholders(len(langs))+"))")
		for _, l := range langs {
			args = append(args, l)
		}
	}
	if tags := types.NormalizeTags(filter.Tags); len(tags) > 0 {
		where = append(where,
			"snippet_id IN (SELECT snippet_id FROM snippet_tags WHERE tag IN ("+placeholders(len(tags))+"))")
		for _, t := range tags {
			args = append(args, t)
		}
	}
	if !filter.From.IsZero() {
		where = append(where, "date_modified >= ?")
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "date_modified < ?")
		args = append(args, formatTime(filter.To))
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + snippetColumns + " FROM snippets")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if filter.HasDateRange() {
		sb.WriteString(" ORDER BY date_modified, snippet_id")
	} else {
		sb.WriteString(" ORDER BY snippet_id")
	}
	return sb.String(), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func lowerAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// NextID returns the id the next Insert will allocate.
func (b *Backend) NextID(ctx context.Context) (uint64, error) {
	db, err := b.conn()
	if err != nil {
		return 0, err
	}
	id, err := readNextID(ctx, db)
	if err != nil {
		return 0, types.StorageError("reading next id", err)
	}
	return id, nil
}

// Clear removes every snippet, index row and sync record. The allocator
// and the remote stamp are kept.
func (b *Backend) Clear(ctx context.Context) error {
	return b.withTx(ctx, "clearing store", func(tx *sql.Tx) error {
		for _, table := range []string{"snippet_tags", "snippet_languages", "snippets", "sync_state"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return types.StorageError("clearing "+table, err)
			}
		}
		return nil
	})
}
