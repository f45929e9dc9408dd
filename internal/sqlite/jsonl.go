// This file provides newline-delimited JSON export and import, plus the
// atomic file write used by export to a path.
package sqlite

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/snip/pkg/types"
)

// maxRecordSize bounds a single JSONL line.
const maxRecordSize = 16 << 20

// Export writes every snippet matching filter to w, one JSON object per
// line. Returns the number of records written.
func (b *Backend) Export(ctx context.Context, w io.Writer, filter types.Filter) (int, error) {
	snippets, err := b.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i, s := range snippets {
		if err := enc.Encode(s); err != nil {
			return i, fmt.Errorf("encoding snippet %d: %w", s.ID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return len(snippets), fmt.Errorf("flushing export: %w", err)
	}
	return len(snippets), nil
}

// ExportFile writes the export to path atomically.
func (b *Backend) ExportFile(ctx context.Context, path string, filter types.Filter) (int, error) {
	snippets, err := b.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	records := make([]json.RawMessage, 0, len(snippets))
	for _, s := range snippets {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(s); err != nil {
			return 0, fmt.Errorf("encoding snippet %d: %w", s.ID, err)
		}
		records = append(records, bytes.TrimRight(buf.Bytes(), "\n"))
	}
	if err := writeJSONL(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Import reads snippets from r and writes them in one transaction. The
// stream is decoded completely first, so a malformed record leaves the
// store untouched.
func (b *Backend) Import(ctx context.Context, r io.Reader, opts types.ImportOptions) (int, error) {
	snippets, err := readJSONL(r)
	if err != nil {
		return 0, err
	}
	return b.writeBatch(ctx, "importing snippets", snippets, opts.PreserveIDs)
}

// writeBatch writes validated snippets in one transaction, either at their
// own ids or at freshly allocated ones. Allocated ids are set on the
// snippets only once the transaction commits.
func (b *Backend) writeBatch(ctx context.Context, op string, snippets []*types.Snippet, preserveIDs bool) (int, error) {
	if len(snippets) == 0 {
		return 0, nil
	}

	now := b.now().UTC()
	ids := make([]uint64, len(snippets))
	err := b.withTx(ctx, op, func(tx *sql.Tx) error {
		seen := make(map[uint64]bool, len(snippets))
		for i, s := range snippets {
			rec := s.Clone()
			if rec.DateCreated.IsZero() {
				rec.DateCreated = now
			}
			if rec.DateModified.IsZero() {
				rec.DateModified = rec.DateCreated
			}
			if preserveIDs {
				if err := checkFreeID(ctx, tx, rec.ID, seen); err != nil {
					return err
				}
				if err := putSnippet(ctx, tx, rec); err != nil {
					return err
				}
				ids[i] = rec.ID
				continue
			}
			id, err := readNextID(ctx, tx)
			if err != nil {
				return types.StorageError(op, err)
			}
			rec.ID = id
			if err := writeSnippet(ctx, tx, nil, rec); err != nil {
				return types.StorageError(op, err)
			}
			if err := raiseNextID(ctx, tx, id+1); err != nil {
				return types.StorageError(op, err)
			}
			ids[i] = id
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for i, s := range snippets {
		s.ID = ids[i]
	}
	return len(snippets), nil
}

// checkFreeID fails with ErrIDConflict when id is zero, repeated in the
// stream, or already stored.
func checkFreeID(ctx context.Context, tx querier, id uint64, seen map[uint64]bool) error {
	if id == 0 {
		return fmt.Errorf("%w: record without id", types.ErrIDConflict)
	}
	if seen[id] {
		return fmt.Errorf("%w: id %d repeated in input", types.ErrIDConflict, id)
	}
	seen[id] = true
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM snippets WHERE snippet_id = ?", id).Scan(&one)
	if err == nil {
		return fmt.Errorf("%w: id %d", types.ErrIDConflict, id)
	}
	if err != sql.ErrNoRows {
		return types.StorageError("importing snippets", err)
	}
	return nil
}

// readJSONL decodes every non-empty line of r as a snippet. The first line
// that does not decode or validate yields a SchemaMismatchError.
func readJSONL(r io.Reader) ([]*types.Snippet, error) {
	var out []*types.Snippet
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var s types.Snippet
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return nil, &types.SchemaMismatchError{Line: line, Text: excerpt(raw), Err: err}
		}
		s.Normalize()
		if err := s.Validate(); err != nil {
			return nil, &types.SchemaMismatchError{Line: line, Text: excerpt(raw), Err: err}
		}
		out = append(out, &s)
	}
	if err := scanner.Err(); err != nil {
		return nil, &types.SchemaMismatchError{Line: line + 1, Err: err}
	}
	return out, nil
}

func excerpt(raw []byte) string {
	const limit = 80
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	fail := func(step string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%s: %w", step, err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
