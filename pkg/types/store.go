package types

import (
	"context"
	"io"
	"time"
)

// Store persists snippets together with their language, tag and date
// indexes. Every mutation commits the primary record and its index deltas
// as one transaction.
type Store interface {
	// Insert allocates the next id and writes the snippet. Dates default to
	// now when unset. Returns the allocated id.
	Insert(ctx context.Context, s *Snippet) (uint64, error)

	// InsertAll allocates fresh ids for every snippet and writes them in
	// one transaction. An invalid snippet rejects the whole batch.
	InsertAll(ctx context.Context, snippets []*Snippet) (int, error)

	// Put writes the snippet at s.ID, replacing any existing record.
	// The allocator is moved past s.ID and never lowered.
	Put(ctx context.Context, s *Snippet) error

	// Get returns the snippet with the given id or a NotFoundError.
	Get(ctx context.Context, id uint64) (*Snippet, error)

	// Update replaces the content of an existing snippet and refreshes
	// DateModified unless opts.KeepDates is set.
	Update(ctx context.Context, id uint64, s *Snippet, opts UpdateOptions) error

	// Delete removes the snippet and its index memberships. Deleting a
	// missing id returns a NotFoundError.
	Delete(ctx context.Context, id uint64) error

	// List returns the snippets matching filter, ordered by id, or by
	// DateModified when the filter carries a date range.
	List(ctx context.Context, filter Filter) ([]*Snippet, error)

	// NextID returns the id the next Insert will allocate.
	NextID(ctx context.Context) (uint64, error)

	// Languages and Tags return the by_language and by_tag indexes.
	Languages(ctx context.Context) (map[string][]uint64, error)
	Tags(ctx context.Context) (map[string][]uint64, error)

	// Clear removes every snippet. The allocator keeps its value.
	Clear(ctx context.Context) error

	// Export writes matching snippets as newline-delimited JSON.
	Export(ctx context.Context, w io.Writer, filter Filter) (int, error)

	// Import reads newline-delimited JSON and inserts every record in one
	// transaction. A malformed record aborts the whole import.
	Import(ctx context.Context, r io.Reader, opts ImportOptions) (int, error)

	SyncState
}

// SyncState persists what the last sync saw for each snippet.
type SyncState interface {
	SyncRecords(ctx context.Context) (map[uint64]SyncRecord, error)
	RecordSync(ctx context.Context, rec SyncRecord) error
	ForgetSync(ctx context.Context, id uint64) error
	RemoteStamp(ctx context.Context) (time.Time, error)
	SetRemoteStamp(ctx context.Context, t time.Time) error
}

// SyncRecord is the fingerprint of a snippet as of its last successful
// sync. A record without a local snippet marks a local deletion.
type SyncRecord struct {
	ID          uint64
	Fingerprint string
	SyncedAt    time.Time
}

// UpdateOptions tunes Store.Update.
type UpdateOptions struct {
	// KeepDates stores DateModified as given instead of now.
	KeepDates bool
}

// ImportOptions tunes Store.Import.
type ImportOptions struct {
	// PreserveIDs keeps the exported ids. An id already in use fails the
	// import with ErrIDConflict.
	PreserveIDs bool
}
