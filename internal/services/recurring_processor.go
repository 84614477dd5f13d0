package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/core"
	"tally/internal/storage"
)

// RecurringProcessor materializes real ledger entries from recurring rules
// that have come due.
type RecurringProcessor struct {
	storage *storage.SQLiteRepository
	ledger  *LedgerService
}

// NewRecurringProcessor creates a new recurring rule processor
func NewRecurringProcessor(storage *storage.SQLiteRepository, ledger *LedgerService) *RecurringProcessor {
	return &RecurringProcessor{
		storage: storage,
		ledger:  ledger,
	}
}

// ProcessDueRules creates an entry for every active rule that is due at now.
// Rules are independent: one failing rule never blocks the rest. Returns the
// number of entries created.
func (p *RecurringProcessor) ProcessDueRules(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil || p.ledger == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	today := core.NewDate(now.Year(), int(now.Month()), now.Day())

	// Get all active rules whose start date has arrived
	rules, err := p.storage.ListActiveRules(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("failed to list active recurring rules: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring rules",
		"total_active", len(rules),
		"processing_date", today.String())

	processedCount := 0

	for _, rule := range rules {
		checker, err := GetDuenessChecker(rule.Frequency)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to resolve dueness checker",
				"rule_id", rule.ID,
				"error", err)
			continue
		}

		var lastRun time.Time
		if !rule.LastRun.IsEmpty() {
			lastRun = rule.LastRun.Time
		}

		if !checker.IsDue(lastRun, now, rule.StartDate) {
			continue
		}

		// Materialize the actual entry
		entry := core.Entry{
			Owner:       rule.Owner,
			Type:        rule.Type,
			Amount:      rule.Amount,
			Date:        today,
			Description: rule.Description,
			CategoryID:  rule.CategoryID,
		}

		created, err := p.ledger.CreateEntry(ctx, entry)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to create entry from recurring rule",
				"rule_id", rule.ID,
				"description", rule.Description,
				"error", err)
			continue
		}

		// Record the run date
		if err := p.storage.MarkRuleRun(ctx, rule.ID, today); err != nil {
			slog.ErrorContext(ctx, "Failed to update last run date",
				"rule_id", rule.ID,
				"error", err)
			// Continue anyway - the entry was created successfully
		}

		processedCount++
		slog.InfoContext(ctx, "Created entry from recurring rule",
			"rule_id", rule.ID,
			"entry_id", created.ID,
			"description", rule.Description,
			"amount", rule.Amount.String(),
			"frequency", rule.Frequency)
	}

	slog.InfoContext(ctx, "Recurring rule processing complete",
		"processed", processedCount,
		"total_checked", len(rules))

	return processedCount, nil
}
