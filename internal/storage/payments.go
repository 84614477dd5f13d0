package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/core"
)

func (r *SQLiteRepository) CreatePayment(ctx context.Context, p core.Payment) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO payments(id, entry_id, amount, paid_on, notes)
	VALUES(?, ?, ?, ?, ?)`,
		p.ID, p.EntryID, core.FormatAmount(p.Amount), p.Date.String(), p.Notes)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}

	slog.InfoContext(ctx, "Payment saved",
		"id", p.ID,
		"entry_id", p.EntryID,
		"amount", core.FormatAmount(p.Amount))
	return nil
}

// ListPayments returns the payments of one entry, oldest first, with the
// entry's ownership enforced in the query.
func (r *SQLiteRepository) ListPayments(ctx context.Context, owner, entryID string) ([]core.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT p.id, p.entry_id, p.amount, p.paid_on, p.notes
	FROM payments p
	JOIN entries e ON e.id = p.entry_id
	WHERE p.entry_id = ? AND e.owner = ?
	ORDER BY p.paid_on ASC, p.rowid ASC`, entryID, owner)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

// ListPaymentsForEntries batch-loads payments for a set of entries keyed by
// entry id, so one report query does not fan out into per-entry reads.
func (r *SQLiteRepository) ListPaymentsForEntries(ctx context.Context, entryIDs []string) (map[string][]core.Payment, error) {
	out := make(map[string][]core.Payment, len(entryIDs))
	if len(entryIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(entryIDs))
	for i, id := range entryIDs {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, entry_id, amount, paid_on, notes
	FROM payments
	WHERE entry_id IN (`+placeholders(len(entryIDs))+`)
	ORDER BY paid_on ASC, rowid ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments for entries: %w", err)
	}
	defer rows.Close()

	ps, err := collectPayments(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range ps {
		out[p.EntryID] = append(out[p.EntryID], p)
	}
	return out, nil
}

// DeletePayment removes a payment after checking the parent entry's owner.
// It returns the entry id so callers can flag the entry for re-export.
func (r *SQLiteRepository) DeletePayment(ctx context.Context, owner, id string) (string, error) {
	var entryID string
	err := r.db.QueryRowContext(ctx, `
	SELECT p.entry_id
	FROM payments p
	JOIN entries e ON e.id = p.entry_id
	WHERE p.id = ? AND e.owner = ?`, id, owner).Scan(&entryID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("delete payment: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("delete payment: %w", err)
	}

	slog.InfoContext(ctx, "Payment deleted", "id", id, "entry_id", entryID)
	return entryID, nil
}

func collectPayments(rows *sql.Rows) ([]core.Payment, error) {
	var out []core.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read payments: %w", err)
	}
	return out, nil
}

func scanPayment(s scanner) (core.Payment, error) {
	var (
		p      core.Payment
		amount string
		paidOn string
	)
	if err := s.Scan(&p.ID, &p.EntryID, &amount, &paidOn, &p.Notes); err != nil {
		return core.Payment{}, err
	}
	var err error
	if p.Amount, err = parseAmountColumn(amount); err != nil {
		return core.Payment{}, err
	}
	if p.Date, err = parseDateColumn(paidOn); err != nil {
		return core.Payment{}, err
	}
	return p, nil
}
