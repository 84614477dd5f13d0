package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tally/internal/core"
)

// fakeExporter records exported entry IDs and can be told to fail for some.
type fakeExporter struct {
	mu       sync.Mutex
	exported []string
	failFor  map[string]error
}

func (f *fakeExporter) ExportEntry(_ context.Context, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[entryID]; ok {
		return err
	}
	f.exported = append(f.exported, entryID)
	return nil
}

func (f *fakeExporter) exportedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.exported...)
}

func TestNewSyncProcessor(t *testing.T) {
	config := DefaultSyncProcessorConfig()
	processor := NewSyncProcessor(nil, nil, config)

	if processor == nil {
		t.Fatal("NewSyncProcessor should return non-nil processor")
	}
	if processor.storage != nil {
		t.Error("storage should be nil when passed nil")
	}
	if processor.exporter != nil {
		t.Error("exporter should be nil when passed nil")
	}
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()

	if config.PollInterval != 10*time.Second {
		t.Errorf("expected PollInterval 10s, got %v", config.PollInterval)
	}
	if config.BatchSize != 10 {
		t.Errorf("expected BatchSize 10, got %d", config.BatchSize)
	}
	if config.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", config.MaxRetries)
	}
	if config.StaleCheckInterval != 10*time.Minute {
		t.Errorf("expected StaleCheckInterval 10m, got %v", config.StaleCheckInterval)
	}
	if config.StaleAge != 15*time.Minute {
		t.Errorf("expected StaleAge 15m, got %v", config.StaleAge)
	}
}

func TestSyncProcessor_IsRunning(t *testing.T) {
	config := DefaultSyncProcessorConfig()
	processor := NewSyncProcessor(nil, nil, config)

	if processor.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestSyncProcessor_StartTwice(t *testing.T) {
	config := DefaultSyncProcessorConfig()
	config.PollInterval = 100 * time.Millisecond
	processor := NewSyncProcessor(nil, nil, config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// We can't actually start without a real storage, so we just test the
	// running-state guard.
	processor.mu.Lock()
	processor.running = true
	processor.mu.Unlock()

	// Second start should fail
	err := processor.Start(ctx)
	if err == nil {
		t.Error("expected error when starting already running processor")
	}
}

func TestSyncProcessor_StopNotRunning(t *testing.T) {
	config := DefaultSyncProcessorConfig()
	processor := NewSyncProcessor(nil, nil, config)

	ctx := context.Background()

	// Stop when not running should not error
	err := processor.Stop(ctx)
	if err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestSyncProcessorConfig_CustomValues(t *testing.T) {
	config := SyncProcessorConfig{
		PollInterval:       5 * time.Second,
		BatchSize:          20,
		MaxRetries:         5,
		StaleCheckInterval: 30 * time.Minute,
		StaleAge:           5 * time.Minute,
	}

	processor := NewSyncProcessor(nil, nil, config)

	if processor.config.PollInterval != 5*time.Second {
		t.Errorf("expected custom PollInterval 5s, got %v", processor.config.PollInterval)
	}
	if processor.config.BatchSize != 20 {
		t.Errorf("expected custom BatchSize 20, got %d", processor.config.BatchSize)
	}
	if processor.config.MaxRetries != 5 {
		t.Errorf("expected custom MaxRetries 5, got %d", processor.config.MaxRetries)
	}
	if processor.config.StaleCheckInterval != 30*time.Minute {
		t.Errorf("expected custom StaleCheckInterval 30m, got %v", processor.config.StaleCheckInterval)
	}
	if processor.config.StaleAge != 5*time.Minute {
		t.Errorf("expected custom StaleAge 5m, got %v", processor.config.StaleAge)
	}
}

func TestSyncProcessor_ProcessBatch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seed := func(id string) {
		t.Helper()
		e := core.Entry{
			ID:     id,
			Owner:  "u1",
			Type:   core.Expense,
			Amount: dec("10.00"),
			Date:   core.NewDate(2024, 3, 1),
		}
		if err := repo.CreateEntry(ctx, e); err != nil {
			t.Fatalf("seed entry %s: %v", id, err)
		}
	}
	seed("e1")
	seed("e2")

	exporter := &fakeExporter{}
	config := DefaultSyncProcessorConfig()
	processor := NewSyncProcessor(repo, exporter, config)

	processor.processBatch(ctx)

	got := exporter.exportedIDs()
	if len(got) != 2 {
		t.Fatalf("expected 2 exported entries, got %v", got)
	}

	pending, err := repo.ListPendingSyncEntries(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("queue should be drained, still pending: %v", pending)
	}
}

func TestSyncProcessor_ProcessBatchRetriesThenFails(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := core.Entry{
		ID:     "e1",
		Owner:  "u1",
		Type:   core.Expense,
		Amount: dec("10.00"),
		Date:   core.NewDate(2024, 3, 1),
	}
	if err := repo.CreateEntry(ctx, e); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	exporter := &fakeExporter{failFor: map[string]error{
		"e1": errors.New("backend down"),
	}}
	config := DefaultSyncProcessorConfig()
	config.MaxRetries = 2
	processor := NewSyncProcessor(repo, exporter, config)

	// First failure returns the entry to pending
	processor.processBatch(ctx)
	pending, err := repo.ListPendingSyncEntries(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Attempts != 1 {
		t.Fatalf("expected one pending entry with 1 attempt, got %v", pending)
	}

	// Second failure exhausts the retries
	processor.processBatch(ctx)
	pending, err = repo.ListPendingSyncEntries(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("entry should be parked as failed, still pending: %v", pending)
	}
}

func TestSyncProcessor_StartStop(t *testing.T) {
	repo := newTestRepo(t)
	exporter := &fakeExporter{}
	config := DefaultSyncProcessorConfig()
	config.PollInterval = 50 * time.Millisecond
	processor := NewSyncProcessor(repo, exporter, config)

	ctx := context.Background()
	if err := processor.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !processor.IsRunning() {
		t.Error("processor should report running after Start")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := processor.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if processor.IsRunning() {
		t.Error("processor should not report running after Stop")
	}
}
