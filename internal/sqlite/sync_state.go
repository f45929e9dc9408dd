package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mesh-intelligence/snip/pkg/types"
)

// SyncRecords returns every sync record keyed by snippet id, tombstones
// included.
func (b *Backend) SyncRecords(ctx context.Context) (map[uint64]types.SyncRecord, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, "SELECT snippet_id, fingerprint, synced_at FROM sync_state")
	if err != nil {
		return nil, types.StorageError("reading sync state", err)
	}
	defer rows.Close()

	records := make(map[uint64]types.SyncRecord)
	for rows.Next() {
		var (
			rec      types.SyncRecord
			syncedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Fingerprint, &syncedAt); err != nil {
			return nil, types.StorageError("reading sync state", err)
		}
		if rec.SyncedAt, err = parseTime(syncedAt); err != nil {
			return nil, types.StorageError("reading sync state", err)
		}
		records[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, types.StorageError("reading sync state", err)
	}
	return records, nil
}

// RecordSync stores the fingerprint of a snippet as both sides now agree on
// it. SyncedAt defaults to now.
func (b *Backend) RecordSync(ctx context.Context, rec types.SyncRecord) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	if rec.SyncedAt.IsZero() {
		rec.SyncedAt = b.now()
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO sync_state (snippet_id, fingerprint, synced_at) VALUES (?, ?, ?)
		ON CONFLICT(snippet_id) DO UPDATE SET fingerprint = excluded.fingerprint, synced_at = excluded.synced_at`,
		rec.ID, rec.Fingerprint, formatTime(rec.SyncedAt),
	); err != nil {
		return types.StorageError("recording sync state", err)
	}
	return nil
}

// ForgetSync drops the sync record of id. Forgetting an unknown id is not
// an error.
func (b *Backend) ForgetSync(ctx context.Context, id uint64) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM sync_state WHERE snippet_id = ?", id); err != nil {
		return types.StorageError("forgetting sync state", err)
	}
	return nil
}

// RemoteStamp returns the remote timestamp seen at the end of the last
// sync, or the zero time before the first one.
func (b *Backend) RemoteStamp(ctx context.Context) (time.Time, error) {
	db, err := b.conn()
	if err != nil {
		return time.Time{}, err
	}
	var v string
	err = db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaRemoteUpdatedAt).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, types.StorageError("reading remote stamp", err)
	}
	t, err := parseTime(v)
	if err != nil {
		return time.Time{}, types.StorageError("reading remote stamp", err)
	}
	return t, nil
}

// SetRemoteStamp records the remote timestamp.
func (b *Backend) SetRemoteStamp(ctx context.Context, t time.Time) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaRemoteUpdatedAt, formatTime(t),
	); err != nil {
		return types.StorageError("writing remote stamp", err)
	}
	return nil
}
