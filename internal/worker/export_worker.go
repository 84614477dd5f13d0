package worker

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/sheets"
	"tally/internal/storage"
)

// exportConcurrency bounds parallel exports within a batch; the sheets API
// tolerates only a handful of in-flight writes per spreadsheet.
const exportConcurrency = 4

// ExportWorker pushes ledger entries from SQLite to the export backend. It
// serves three paths: the AMQP consumer, the polling sync processor, and
// the startup backstop for messages lost while the worker was down.
type ExportWorker struct {
	storage    *storage.SQLiteRepository
	writer     sheets.RowWriter
	remover    sheets.RowRemover
	batchSize  int
	maxRetries int
}

func NewExportWorker(storage *storage.SQLiteRepository, writer sheets.RowWriter, remover sheets.RowRemover, batchSize, maxRetries int) *ExportWorker {
	return &ExportWorker{
		storage:    storage,
		writer:     writer,
		remover:    remover,
		batchSize:  batchSize,
		maxRetries: maxRetries,
	}
}

// ExportEntry loads an entry with its payments, derives the settlement, and
// upserts the resulting row. It writes no sync bookkeeping; callers own the
// claim and the status update.
func (w *ExportWorker) ExportEntry(ctx context.Context, entryID string) error {
	entry, err := w.storage.GetEntryByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("get entry %s: %w", entryID, err)
	}

	payments, err := w.storage.ListPaymentsForEntries(ctx, []string{entryID})
	if err != nil {
		return fmt.Errorf("list payments for %s: %w", entryID, err)
	}

	row := sheets.NewExportRow(entry, core.ComputeSettlement(entry, payments[entryID]))

	ref, err := w.writer.UpsertRow(ctx, row)
	if err != nil {
		return fmt.Errorf("upsert row: %w", err)
	}

	slog.InfoContext(ctx, "Exported entry",
		"entry_id", entryID,
		"row_ref", ref,
		"status", row.Status)

	return nil
}

// HandleSyncMessage processes a single entry sync message from AMQP.
func (w *ExportWorker) HandleSyncMessage(ctx context.Context, msg *amqp.EntrySyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"entry_id", msg.EntryID,
		"action", msg.Action)

	if msg.Action == amqp.ActionDeleted {
		return w.handleDelete(ctx, msg.EntryID)
	}

	claimed, err := w.storage.ClaimEntryForSync(ctx, msg.EntryID)
	if err != nil {
		return fmt.Errorf("claim entry %s: %w", msg.EntryID, err)
	}
	if !claimed {
		// Already exported by the poller, claimed elsewhere, or deleted
		// meanwhile; either way there is nothing left to do.
		slog.DebugContext(ctx, "Entry not pending, skipping", "entry_id", msg.EntryID)
		return nil
	}

	return w.syncClaimedEntry(ctx, msg.EntryID)
}

// handleDelete removes the exported row for a deleted entry.
func (w *ExportWorker) handleDelete(ctx context.Context, entryID string) error {
	if w.remover == nil {
		slog.WarnContext(ctx, "No row remover configured, skipping export deletion",
			"entry_id", entryID)
		return nil
	}

	if err := w.remover.RemoveRow(ctx, entryID); err != nil {
		return fmt.Errorf("remove exported row %s: %w", entryID, err)
	}

	slog.InfoContext(ctx, "Removed exported row", "entry_id", entryID)
	return nil
}

// syncClaimedEntry exports one claimed entry and records the outcome.
func (w *ExportWorker) syncClaimedEntry(ctx context.Context, entryID string) error {
	if err := w.ExportEntry(ctx, entryID); err != nil {
		if markErr := w.storage.MarkEntrySyncFailed(ctx, entryID, w.maxRetries); markErr != nil {
			slog.ErrorContext(ctx, "Failed to record export failure",
				"entry_id", entryID, "error", markErr)
		}
		return err
	}

	if err := w.storage.MarkEntrySynced(ctx, entryID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark entry synced",
			"entry_id", entryID, "error", err)
		// Don't return an error here - the export actually worked
	}

	return nil
}

// ProcessPendingEntries drains one batch of the pending queue. This is the
// backstop for AMQP messages that never arrived. Entries are exported
// concurrently with a bounded group; per-entry failures are recorded for
// retry and never abort the batch.
func (w *ExportWorker) ProcessPendingEntries(ctx context.Context) error {
	pending, err := w.storage.ListPendingSyncEntries(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending entries: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending entries", "count", len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(exportConcurrency)

	for _, item := range pending {
		g.Go(func() error {
			claimed, err := w.storage.ClaimEntryForSync(gctx, item.ID)
			if err != nil {
				slog.ErrorContext(gctx, "Failed to claim entry",
					"entry_id", item.ID, "error", err)
				return nil
			}
			if !claimed {
				return nil
			}
			if err := w.syncClaimedEntry(gctx, item.ID); err != nil {
				slog.ErrorContext(gctx, "Failed to export entry",
					"entry_id", item.ID, "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// StartupSyncCheck drains a larger batch of pending entries at worker boot.
// This recovers entries whose messages were missed during downtime.
func (w *ExportWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.ListPendingSyncEntries(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending entries for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending entries found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending entries on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, item := range pending {
		claimed, err := w.storage.ClaimEntryForSync(ctx, item.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to claim entry for startup sync",
				"entry_id", item.ID, "error", err)
			errorCount++
			continue
		}
		if !claimed {
			continue
		}

		if err := w.syncClaimedEntry(ctx, item.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export entry during startup",
				"entry_id", item.ID, "error", err)
			errorCount++
			continue
		}

		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)

	return nil
}
