package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/storage"
)

// LedgerService orchestrates ledger writes across SQLite and AMQP. Every
// mutation is saved locally first; the export notification is published
// best-effort afterwards, so a broker outage never fails a request.
type LedgerService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewLedgerService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *LedgerService {
	return &LedgerService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// CreateEntry validates and saves a new income or expense entry, then
// publishes a sync message. The returned entry carries the assigned ID and
// the resolved category name.
func (s *LedgerService) CreateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	if err := s.checkCategory(ctx, e.Owner, e.CategoryID); err != nil {
		return core.Entry{}, err
	}

	e.ID = uuid.NewString()

	// Save to SQLite first (fast, reliable)
	if err := s.storage.CreateEntry(ctx, e); err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}

	// Publish async sync message (non-blocking)
	if err := s.publishSyncMessage(ctx, e.ID, amqp.ActionCreated); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"entry_id", e.ID, "error", err)
		// Don't fail the request - entry is saved locally
	}

	return s.storage.GetEntry(ctx, e.Owner, e.ID)
}

// UpdateEntry validates and overwrites an existing entry, then publishes a
// sync message so the exported row is rewritten.
func (s *LedgerService) UpdateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	if err := s.checkCategory(ctx, e.Owner, e.CategoryID); err != nil {
		return core.Entry{}, err
	}

	if err := s.storage.UpdateEntry(ctx, e); err != nil {
		return core.Entry{}, fmt.Errorf("update entry: %w", err)
	}

	if err := s.publishSyncMessage(ctx, e.ID, amqp.ActionUpdated); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"entry_id", e.ID, "error", err)
	}

	return s.storage.GetEntry(ctx, e.Owner, e.ID)
}

// DeleteEntry removes an entry and its payments locally and publishes a
// delete message so the exported row is removed.
func (s *LedgerService) DeleteEntry(ctx context.Context, owner, id string) error {
	if err := s.storage.DeleteEntry(ctx, owner, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	if err := s.publishSyncMessage(ctx, id, amqp.ActionDeleted); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"entry_id", id, "error", err)
		// Don't fail the request - entry is deleted locally
	}

	return nil
}

// RecordPayment saves a payment against an entry the owner holds. The
// entry's settlement changes, so an update message is published for it.
func (s *LedgerService) RecordPayment(ctx context.Context, owner string, p core.Payment) (core.Payment, error) {
	// Scope the entry lookup by owner so payments cannot attach to
	// someone else's entry.
	if _, err := s.storage.GetEntry(ctx, owner, p.EntryID); err != nil {
		return core.Payment{}, fmt.Errorf("entry %s: %w", p.EntryID, err)
	}

	if err := p.Validate(); err != nil {
		return core.Payment{}, err
	}

	p.ID = uuid.NewString()
	if err := s.storage.CreatePayment(ctx, p); err != nil {
		return core.Payment{}, fmt.Errorf("save payment: %w", err)
	}

	if err := s.publishSyncMessage(ctx, p.EntryID, amqp.ActionUpdated); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"entry_id", p.EntryID, "error", err)
	}

	return p, nil
}

// DeletePayment removes a payment. Payments are immutable, so deletion is
// the only way to correct one; the owning entry is re-exported.
func (s *LedgerService) DeletePayment(ctx context.Context, owner, id string) error {
	entryID, err := s.storage.DeletePayment(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}

	if err := s.publishSyncMessage(ctx, entryID, amqp.ActionUpdated); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"entry_id", entryID, "error", err)
	}

	return nil
}

// ListPayments returns the payments recorded against an entry the owner
// holds, oldest first.
func (s *LedgerService) ListPayments(ctx context.Context, owner, entryID string) ([]core.Payment, error) {
	if _, err := s.storage.GetEntry(ctx, owner, entryID); err != nil {
		return nil, fmt.Errorf("entry %s: %w", entryID, err)
	}
	return s.storage.ListPayments(ctx, owner, entryID)
}

// CreateCategory validates and saves a new category.
func (s *LedgerService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	c.ID = uuid.NewString()
	if err := s.storage.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	return c, nil
}

func (s *LedgerService) GetCategory(ctx context.Context, owner, id string) (core.Category, error) {
	return s.storage.GetCategory(ctx, owner, id)
}

func (s *LedgerService) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	return s.storage.ListCategories(ctx, owner)
}

func (s *LedgerService) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.storage.UpdateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	return c, nil
}

// DeleteCategory removes a category. Entries referencing it fall back to
// uncategorized on the read path.
func (s *LedgerService) DeleteCategory(ctx context.Context, owner, id string) error {
	if err := s.storage.DeleteCategory(ctx, owner, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// CreateRecurringRule validates and saves a new recurring rule template.
// Rules publish nothing; the entries they materialize into do.
func (s *LedgerService) CreateRecurringRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if err := s.checkCategory(ctx, rule.Owner, rule.CategoryID); err != nil {
		return core.RecurringRule{}, err
	}

	rule.ID = uuid.NewString()
	if err := s.storage.CreateRecurringRule(ctx, rule); err != nil {
		return core.RecurringRule{}, fmt.Errorf("save recurring rule: %w", err)
	}
	return rule, nil
}

func (s *LedgerService) GetRecurringRule(ctx context.Context, owner, id string) (core.RecurringRule, error) {
	return s.storage.GetRecurringRule(ctx, owner, id)
}

func (s *LedgerService) ListRecurringRules(ctx context.Context, owner string) ([]core.RecurringRule, error) {
	return s.storage.ListRecurringRules(ctx, owner)
}

func (s *LedgerService) UpdateRecurringRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if err := s.checkCategory(ctx, rule.Owner, rule.CategoryID); err != nil {
		return core.RecurringRule{}, err
	}
	if err := s.storage.UpdateRecurringRule(ctx, rule); err != nil {
		return core.RecurringRule{}, fmt.Errorf("update recurring rule: %w", err)
	}
	return rule, nil
}

func (s *LedgerService) DeleteRecurringRule(ctx context.Context, owner, id string) error {
	if err := s.storage.DeleteRecurringRule(ctx, owner, id); err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	return nil
}

// checkCategory verifies a referenced category exists for the owner. An
// empty ID means uncategorized and is always fine.
func (s *LedgerService) checkCategory(ctx context.Context, owner, categoryID string) error {
	if categoryID == "" {
		return nil
	}
	if _, err := s.storage.GetCategory(ctx, owner, categoryID); err != nil {
		return fmt.Errorf("category %s: %w", categoryID, err)
	}
	return nil
}

func (s *LedgerService) publishSyncMessage(ctx context.Context, entryID, action string) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}

	return s.amqpClient.PublishEntrySync(ctx, entryID, action)
}

// Close closes both storage and AMQP connections
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
