package services

import (
	"context"
	"testing"
	"time"

	"tally/internal/core"
)

func TestNewRecurringProcessor(t *testing.T) {
	processor := NewRecurringProcessor(nil, nil)

	if processor == nil {
		t.Fatal("NewRecurringProcessor should return non-nil processor")
	}
}

func TestRecurringProcessor_NotInitialized(t *testing.T) {
	processor := NewRecurringProcessor(nil, nil)

	_, err := processor.ProcessDueRules(context.Background(), time.Now())
	if err == nil {
		t.Error("expected error when processor has nil dependencies")
	}
}

func TestRecurringProcessor_ProcessDueRules(t *testing.T) {
	repo := newTestRepo(t)
	ledger := NewLedgerService(repo, nil)
	processor := NewRecurringProcessor(repo, ledger)
	ctx := context.Background()

	rule, err := ledger.CreateRecurringRule(ctx, core.RecurringRule{
		Owner:       "u1",
		Type:        core.Expense,
		Amount:      dec("9.99"),
		Description: "streaming",
		Frequency:   core.Daily,
		StartDate:   core.NewDate(2024, 3, 1),
		Active:      true,
	})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}

	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	processed, err := processor.ProcessDueRules(ctx, now)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 rule processed, got %d", processed)
	}

	entries, err := repo.ListEntries(ctx, core.EntryFilter{Owner: "u1"})
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected 1 materialized entry, got %v err=%v", entries, err)
	}
	if entries[0].Description != "streaming" || !entries[0].Amount.Equal(dec("9.99")) {
		t.Errorf("materialized entry wrong: %+v", entries[0])
	}
	if entries[0].Date.String() != "2024-03-10" {
		t.Errorf("entry date = %s, want 2024-03-10", entries[0].Date)
	}

	got, err := repo.GetRecurringRule(ctx, "u1", rule.ID)
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if got.LastRun.String() != "2024-03-10" {
		t.Errorf("last run = %s, want 2024-03-10", got.LastRun)
	}

	// Same day again: nothing is due
	processed, err = processor.ProcessDueRules(ctx, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("process again: %v", err)
	}
	if processed != 0 {
		t.Errorf("expected 0 rules processed on re-run, got %d", processed)
	}

	// Next day: due again
	processed, err = processor.ProcessDueRules(ctx, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("process next day: %v", err)
	}
	if processed != 1 {
		t.Errorf("expected 1 rule processed next day, got %d", processed)
	}
}

func TestRecurringProcessor_SkipsInactiveAndFuture(t *testing.T) {
	repo := newTestRepo(t)
	ledger := NewLedgerService(repo, nil)
	processor := NewRecurringProcessor(repo, ledger)
	ctx := context.Background()

	if _, err := ledger.CreateRecurringRule(ctx, core.RecurringRule{
		Owner:       "u1",
		Type:        core.Expense,
		Amount:      dec("5.00"),
		Description: "paused",
		Frequency:   core.Daily,
		StartDate:   core.NewDate(2024, 3, 1),
		Active:      false,
	}); err != nil {
		t.Fatalf("create inactive rule: %v", err)
	}
	if _, err := ledger.CreateRecurringRule(ctx, core.RecurringRule{
		Owner:       "u1",
		Type:        core.Expense,
		Amount:      dec("5.00"),
		Description: "not started yet",
		Frequency:   core.Daily,
		StartDate:   core.NewDate(2024, 4, 1),
		Active:      true,
	}); err != nil {
		t.Fatalf("create future rule: %v", err)
	}

	processed, err := processor.ProcessDueRules(ctx, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if processed != 0 {
		t.Errorf("expected 0 rules processed, got %d", processed)
	}

	entries, err := repo.ListEntries(ctx, core.EntryFilter{Owner: "u1"})
	if err != nil || len(entries) != 0 {
		t.Fatalf("no entries should materialize: %v err=%v", entries, err)
	}
}
