package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tally/internal/storage"
)

// EntryExporter pushes one entry's current state to the export backend.
// The worker package provides the implementation.
type EntryExporter interface {
	ExportEntry(ctx context.Context, entryID string) error
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending entries (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of entries to process per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the maximum export attempts before an entry sticks as failed (default: 3)
	MaxRetries int

	// StaleCheckInterval is how often to look for stuck claims (default: 10m)
	StaleCheckInterval time.Duration

	// StaleAge is how long an entry may sit claimed before it returns to pending (default: 15m)
	StaleAge time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:       10 * time.Second,
		BatchSize:          10,
		MaxRetries:         3,
		StaleCheckInterval: 10 * time.Minute,
		StaleAge:           15 * time.Minute,
	}
}

// SyncProcessor drains the SQLite-backed export queue: it polls for entries
// marked pending, claims them, and hands each to the exporter.
type SyncProcessor struct {
	storage  *storage.SQLiteRepository
	exporter EntryExporter
	config   SyncProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(
	storage *storage.SQLiteRepository,
	exporter EntryExporter,
	config SyncProcessorConfig,
) *SyncProcessor {
	return &SyncProcessor{
		storage:  storage,
		exporter: exporter,
		config:   config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Return claims orphaned by a previous crash to the queue
	if _, err := p.storage.ResetStaleSyncing(ctx, p.config.StaleAge); err != nil {
		slog.WarnContext(ctx, "Failed to reset stale syncing entries", "error", err)
	}

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	// Signal stop
	close(p.stopCh)

	// Wait for completion or context cancellation
	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// runLoop is the main processing loop
func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	staleTicker := time.NewTicker(p.config.StaleCheckInterval)
	defer staleTicker.Stop()

	// Process immediately on startup
	p.processBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.processBatch(ctx)
		case <-staleTicker.C:
			p.resetStale(ctx)
		}
	}
}

// processBatch processes a single batch of pending entries
func (p *SyncProcessor) processBatch(ctx context.Context) {
	if p.exporter == nil {
		slog.WarnContext(ctx, "No exporter configured, skipping batch")
		return
	}

	items, err := p.storage.ListPendingSyncEntries(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list pending sync entries", "error", err)
		return
	}

	if len(items) == 0 {
		return
	}

	slog.DebugContext(ctx, "Processing sync batch", "count", len(items))

	for _, item := range items {
		// Check if we should stop
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		claimed, err := p.storage.ClaimEntryForSync(ctx, item.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to claim entry for sync",
				"entry_id", item.ID, "error", err)
			continue
		}
		if !claimed {
			// Another worker got it, or it was exported or deleted meanwhile
			continue
		}

		if err := p.exporter.ExportEntry(ctx, item.ID); err != nil {
			p.handleFailure(ctx, item, err)
		} else {
			p.handleSuccess(ctx, item)
		}
	}
}

// handleSuccess marks an entry as exported
func (p *SyncProcessor) handleSuccess(ctx context.Context, item storage.PendingSyncEntry) {
	if err := p.storage.MarkEntrySynced(ctx, item.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark entry synced",
			"entry_id", item.ID, "error", err)
	}
}

// handleFailure counts a failed export attempt with retry bookkeeping
func (p *SyncProcessor) handleFailure(ctx context.Context, item storage.PendingSyncEntry, processErr error) {
	slog.WarnContext(ctx, "Entry export failed",
		"entry_id", item.ID,
		"attempt", item.Attempts+1,
		"error", processErr)

	if err := p.storage.MarkEntrySyncFailed(ctx, item.ID, p.config.MaxRetries); err != nil {
		slog.ErrorContext(ctx, "Failed to record export failure",
			"entry_id", item.ID, "error", err)
		return
	}

	if item.Attempts+1 >= p.config.MaxRetries {
		slog.ErrorContext(ctx, "Entry export failed permanently after max retries",
			"entry_id", item.ID,
			"attempts", item.Attempts+1)
	}
}

// resetStale returns stuck claims to the pending queue
func (p *SyncProcessor) resetStale(ctx context.Context) {
	if _, err := p.storage.ResetStaleSyncing(ctx, p.config.StaleAge); err != nil {
		slog.ErrorContext(ctx, "Failed to reset stale syncing entries", "error", err)
	}
}
