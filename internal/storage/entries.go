package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tally/internal/core"
)

const entryColumns = `e.id, e.owner, e.entry_type, e.amount, e.entry_date,
	e.description, e.category_id, COALESCE(c.name, '')`

const entryFrom = ` FROM entries e LEFT JOIN categories c ON c.id = e.category_id`

func (r *SQLiteRepository) CreateEntry(ctx context.Context, e core.Entry) error {
	var categoryID any
	if e.CategoryID != "" {
		categoryID = e.CategoryID
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO entries(id, owner, entry_type, amount, entry_date, description, category_id)
	VALUES(?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Owner, string(e.Type), core.FormatAmount(e.Amount), e.Date.String(), e.Description, categoryID)
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved",
		"id", e.ID,
		"owner", e.Owner,
		"type", e.Type,
		"amount", core.FormatAmount(e.Amount),
		"date", e.Date.String())
	return nil
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, owner, id string) (core.Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+entryFrom+` WHERE e.id = ? AND e.owner = ?`, id, owner)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, ErrNotFound
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// GetEntryByID fetches an entry without an owner check. It serves the sync
// path, where messages carry only the entry id.
func (r *SQLiteRepository) GetEntryByID(ctx context.Context, id string) (core.Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+entryFrom+` WHERE e.id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, ErrNotFound
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry by id: %w", err)
	}
	return e, nil
}

// ListEntries returns the filtered entry set ordered by date ascending,
// ties in insertion order.
func (r *SQLiteRepository) ListEntries(ctx context.Context, f core.EntryFilter) ([]core.Entry, error) {
	where := []string{"e.owner = ?"}
	args := []any{f.Owner}

	if f.Type != "" {
		where = append(where, "e.entry_type = ?")
		args = append(args, string(f.Type))
	}
	if len(f.CategoryIDs) > 0 {
		where = append(where, "e.category_id IN ("+placeholders(len(f.CategoryIDs))+")")
		for _, id := range f.CategoryIDs {
			args = append(args, id)
		}
	}
	if !f.From.IsZero() {
		where = append(where, "e.entry_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "e.entry_date <= ?")
		args = append(args, f.To.String())
	}

	query := `SELECT ` + entryColumns + entryFrom +
		` WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY e.entry_date ASC, e.created_at ASC, e.rowid ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []core.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return out, nil
}

// UpdateEntry rewrites the mutable fields and flags the entry for re-export.
func (r *SQLiteRepository) UpdateEntry(ctx context.Context, e core.Entry) error {
	var categoryID any
	if e.CategoryID != "" {
		categoryID = e.CategoryID
	}
	res, err := r.db.ExecContext(ctx, `
	UPDATE entries SET entry_type = ?, amount = ?, entry_date = ?, description = ?,
		category_id = ?, sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
	WHERE id = ? AND owner = ?`,
		string(e.Type), core.FormatAmount(e.Amount), e.Date.String(), e.Description,
		categoryID, e.ID, e.Owner)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEntry removes an entry; its payments go with it (ON DELETE CASCADE).
func (r *SQLiteRepository) DeleteEntry(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `
	DELETE FROM entries WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Entry deleted", "id", id, "owner", owner)
	return nil
}

func scanEntry(s scanner) (core.Entry, error) {
	var (
		e          core.Entry
		entryType  string
		amount     string
		entryDate  string
		categoryID sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Owner, &entryType, &amount, &entryDate,
		&e.Description, &categoryID, &e.CategoryName); err != nil {
		return core.Entry{}, err
	}
	e.Type = core.EntryType(entryType)
	if categoryID.Valid {
		e.CategoryID = categoryID.String
	}
	var err error
	if e.Amount, err = parseAmountColumn(amount); err != nil {
		return core.Entry{}, err
	}
	if e.Date, err = parseDateColumn(entryDate); err != nil {
		return core.Entry{}, err
	}
	return e, nil
}
