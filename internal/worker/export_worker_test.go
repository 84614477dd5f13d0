package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/sheets"
	"tally/internal/sheets/memory"
	"tally/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "tally.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedEntry(t *testing.T, repo *storage.SQLiteRepository, id, amount string) {
	t.Helper()
	e := core.Entry{
		ID:          id,
		Owner:       "u1",
		Type:        core.Expense,
		Amount:      dec(amount),
		Date:        core.NewDate(2024, 3, 10),
		Description: "seeded",
	}
	if err := repo.CreateEntry(context.Background(), e); err != nil {
		t.Fatalf("seed entry %s: %v", id, err)
	}
}

// failingWriter rejects every upsert.
type failingWriter struct{}

func (failingWriter) UpsertRow(context.Context, sheets.ExportRow) (string, error) {
	return "", errors.New("backend down")
}

func TestExportWorker_ExportEntry(t *testing.T) {
	repo := newTestRepo(t)
	store := memory.New()
	w := NewExportWorker(repo, store, store, 10, 3)
	ctx := context.Background()

	seedEntry(t, repo, "e1", "150.00")
	if err := repo.CreatePayment(ctx, core.Payment{
		ID: "p1", EntryID: "e1", Amount: dec("50.00"), Date: core.NewDate(2024, 3, 11),
	}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	if err := w.ExportEntry(ctx, "e1"); err != nil {
		t.Fatalf("export entry: %v", err)
	}

	rows := store.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 exported row, got %d", len(rows))
	}
	row := rows[0]
	if row.EntryID != "e1" || row.Amount != "150.00" || row.TotalPaid != "50.00" ||
		row.Remaining != "100.00" || row.Status != sheets.StatusPartial {
		t.Errorf("exported row wrong: %+v", row)
	}
}

func TestExportWorker_ExportEntryMissing(t *testing.T) {
	repo := newTestRepo(t)
	store := memory.New()
	w := NewExportWorker(repo, store, store, 10, 3)

	if err := w.ExportEntry(context.Background(), "ghost"); err == nil {
		t.Error("expected error for missing entry")
	}
}

func TestExportWorker_HandleSyncMessage(t *testing.T) {
	repo := newTestRepo(t)
	store := memory.New()
	w := NewExportWorker(repo, store, store, 10, 3)
	ctx := context.Background()

	seedEntry(t, repo, "e1", "25.00")

	msg := amqp.NewEntrySyncMessage("e1", amqp.ActionCreated)
	if err := w.HandleSyncMessage(ctx, msg); err != nil {
		t.Fatalf("handle sync message: %v", err)
	}

	if store.Len() != 1 {
		t.Fatalf("expected 1 exported row, got %d", store.Len())
	}

	pending, err := repo.ListPendingSyncEntries(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("entry should be marked synced, still pending: %v", pending)
	}

	// A second delivery of the same message finds nothing pending
	if err := w.HandleSyncMessage(ctx, msg); err != nil {
		t.Fatalf("redelivered message should be acked quietly: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("redelivery must not duplicate the row, got %d", store.Len())
	}
}

func TestExportWorker_HandleSyncMessageDeleted(t *testing.T) {
	repo := newTestRepo(t)
	store := memory.New()
	w := NewExportWorker(repo, store, store, 10, 3)
	ctx := context.Background()

	seedEntry(t, repo, "e1", "25.00")
	if err := w.HandleSyncMessage(ctx, amqp.NewEntrySyncMessage("e1", amqp.ActionCreated)); err != nil {
		t.Fatalf("export: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("row should be exported before deletion")
	}

	if err := w.HandleSyncMessage(ctx, amqp.NewEntrySyncMessage("e1", amqp.ActionDeleted)); err != nil {
		t.Fatalf("handle delete message: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("row should be removed, store has %d", store.Len())
	}

	// Deleting an entry that was never exported is fine
	if err := w.HandleSyncMessage(ctx, amqp.NewEntrySyncMessage("never-exported", amqp.ActionDeleted)); err != nil {
		t.Errorf("delete for unknown entry should be acked: %v", err)
	}
}

func TestExportWorker_HandleSyncMessageMissingEntry(t *testing.T) {
	repo := newTestRepo(t)
	store := memory.New()
	w := NewExportWorker(repo, store, store, 10, 3)

	// No entry in storage: the claim finds nothing and the message is acked
	msg := amqp.NewEntrySyncMessage("ghost", amqp.ActionCreated)
	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Errorf("message for missing entry should be acked, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("nothing should be exported, got %d rows", store.Len())
	}
}

func TestExportWorker_ProcessPendingEntries(t *testing.T) {
	repo := newTestRepo(t)
	store := memory.New()
	w := NewExportWorker(repo, store, store, 10, 3)
	ctx := context.Background()

	seedEntry(t, repo, "e1", "10.00")
	seedEntry(t, repo, "e2", "20.00")
	seedEntry(t, repo, "e3", "30.00")

	if err := w.ProcessPendingEntries(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}

	if store.Len() != 3 {
		t.Fatalf("expected 3 exported rows, got %d", store.Len())
	}

	pending, err := repo.ListPendingSyncEntries(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("queue should be drained, still pending: %v", pending)
	}
}

func TestExportWorker_ProcessPendingEntriesFailureRetries(t *testing.T) {
	repo := newTestRepo(t)
	w := NewExportWorker(repo, failingWriter{}, nil, 10, 3)
	ctx := context.Background()

	seedEntry(t, repo, "e1", "10.00")

	if err := w.ProcessPendingEntries(ctx); err != nil {
		t.Fatalf("batch should not fail on per-entry errors: %v", err)
	}

	pending, err := repo.ListPendingSyncEntries(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Attempts != 1 {
		t.Fatalf("entry should be back in the queue with one attempt, got %v", pending)
	}
}

func TestExportWorker_StartupSyncCheck(t *testing.T) {
	repo := newTestRepo(t)
	store := memory.New()
	w := NewExportWorker(repo, store, store, 2, 3)
	ctx := context.Background()

	// More entries than one regular batch; startup uses a widened batch
	for _, id := range []string{"e1", "e2", "e3", "e4", "e5"} {
		seedEntry(t, repo, id, "10.00")
	}

	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("startup sync check: %v", err)
	}

	if store.Len() != 5 {
		t.Fatalf("expected 5 exported rows, got %d", store.Len())
	}
}
