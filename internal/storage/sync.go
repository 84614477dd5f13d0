package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PendingSyncEntry is the minimal record the sync queue needs to re-enqueue
// an export.
type PendingSyncEntry struct {
	ID       string
	Attempts int
}

// ListPendingSyncEntries returns entries still waiting for export, oldest
// first.
func (r *SQLiteRepository) ListPendingSyncEntries(ctx context.Context, limit int) ([]PendingSyncEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, sync_attempts FROM entries
	WHERE sync_status = 'pending'
	ORDER BY created_at ASC, rowid ASC
	LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending sync entries: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncEntry
	for rows.Next() {
		var p PendingSyncEntry
		if err := rows.Scan(&p.ID, &p.Attempts); err != nil {
			return nil, fmt.Errorf("scan pending sync entry: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending sync entries: %w", err)
	}
	return out, nil
}

// ClaimEntryForSync flips a pending entry to syncing. It reports false when
// the entry was already claimed, exported, or deleted meanwhile.
func (r *SQLiteRepository) ClaimEntryForSync(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
	UPDATE entries SET sync_status = 'syncing', updated_at = CURRENT_TIMESTAMP
	WHERE id = ? AND sync_status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("claim entry for sync: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim entry for sync: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) MarkEntrySynced(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE entries SET sync_status = 'synced', synced_at = CURRENT_TIMESTAMP,
		updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark entry synced: %w", err)
	}

	slog.InfoContext(ctx, "Entry marked as synced", "id", id)
	return nil
}

// MarkEntrySyncFailed counts a failed export attempt. The entry goes back to
// pending until maxAttempts is reached, then sticks as failed.
func (r *SQLiteRepository) MarkEntrySyncFailed(ctx context.Context, id string, maxAttempts int) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE entries SET
		sync_attempts = sync_attempts + 1,
		sync_status = CASE WHEN sync_attempts + 1 >= ? THEN 'failed' ELSE 'pending' END,
		updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`, maxAttempts, id)
	if err != nil {
		return fmt.Errorf("mark entry sync failed: %w", err)
	}

	slog.WarnContext(ctx, "Entry export attempt failed", "id", id)
	return nil
}

// ResetStaleSyncing returns entries stuck in syncing (a worker died between
// claim and result) to the pending queue.
func (r *SQLiteRepository) ResetStaleSyncing(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
	UPDATE entries SET sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
	WHERE sync_status = 'syncing' AND updated_at <= datetime('now', ?)`,
		fmt.Sprintf("-%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("reset stale syncing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset stale syncing: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Reset stale syncing entries", "count", n)
	}
	return n, nil
}
