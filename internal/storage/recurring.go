package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/core"
)

func (r *SQLiteRepository) CreateRecurringRule(ctx context.Context, rule core.RecurringRule) error {
	var categoryID any
	if rule.CategoryID != "" {
		categoryID = rule.CategoryID
	}
	var lastRun any
	if !rule.LastRun.IsZero() {
		lastRun = rule.LastRun.String()
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO recurring_rules(id, owner, entry_type, amount, description,
		category_id, frequency, start_date, last_run, active)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.Owner, string(rule.Type), core.FormatAmount(rule.Amount),
		rule.Description, categoryID, string(rule.Frequency),
		rule.StartDate.String(), lastRun, boolToInt(rule.Active))
	if err != nil {
		return fmt.Errorf("create recurring rule: %w", err)
	}

	slog.InfoContext(ctx, "Recurring rule saved",
		"id", rule.ID,
		"owner", rule.Owner,
		"frequency", rule.Frequency)
	return nil
}

func (r *SQLiteRepository) GetRecurringRule(ctx context.Context, owner, id string) (core.RecurringRule, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, owner, entry_type, amount, description, category_id,
		frequency, start_date, last_run, active
	FROM recurring_rules
	WHERE id = ? AND owner = ?`, id, owner)
	rule, err := scanRecurringRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringRule{}, ErrNotFound
	}
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("get recurring rule: %w", err)
	}
	return rule, nil
}

func (r *SQLiteRepository) ListRecurringRules(ctx context.Context, owner string) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, owner, entry_type, amount, description, category_id,
		frequency, start_date, last_run, active
	FROM recurring_rules
	WHERE owner = ?
	ORDER BY created_at ASC, rowid ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	defer rows.Close()
	return collectRecurringRules(rows)
}

// ListActiveRules returns every active rule whose start date has passed,
// across all owners. Dueness against last_run is the processor's call.
func (r *SQLiteRepository) ListActiveRules(ctx context.Context, asOf core.Date) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, owner, entry_type, amount, description, category_id,
		frequency, start_date, last_run, active
	FROM recurring_rules
	WHERE active = 1 AND start_date <= ?
	ORDER BY created_at ASC, rowid ASC`, asOf.String())
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()
	return collectRecurringRules(rows)
}

func (r *SQLiteRepository) UpdateRecurringRule(ctx context.Context, rule core.RecurringRule) error {
	var categoryID any
	if rule.CategoryID != "" {
		categoryID = rule.CategoryID
	}
	res, err := r.db.ExecContext(ctx, `
	UPDATE recurring_rules SET entry_type = ?, amount = ?, description = ?,
		category_id = ?, frequency = ?, start_date = ?, active = ?,
		updated_at = CURRENT_TIMESTAMP
	WHERE id = ? AND owner = ?`,
		string(rule.Type), core.FormatAmount(rule.Amount), rule.Description,
		categoryID, string(rule.Frequency), rule.StartDate.String(),
		boolToInt(rule.Active), rule.ID, rule.Owner)
	if err != nil {
		return fmt.Errorf("update recurring rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update recurring rule: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteRecurringRule(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `
	DELETE FROM recurring_rules WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Recurring rule deleted", "id", id, "owner", owner)
	return nil
}

// MarkRuleRun advances a rule's last_run after its entry was materialized.
func (r *SQLiteRepository) MarkRuleRun(ctx context.Context, id string, ranOn core.Date) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE recurring_rules SET last_run = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`, ranOn.String(), id)
	if err != nil {
		return fmt.Errorf("mark rule run: %w", err)
	}
	return nil
}

func collectRecurringRules(rows *sql.Rows) ([]core.RecurringRule, error) {
	var out []core.RecurringRule
	for rows.Next() {
		rule, err := scanRecurringRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring rule: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read recurring rules: %w", err)
	}
	return out, nil
}

func scanRecurringRule(s scanner) (core.RecurringRule, error) {
	var (
		rule       core.RecurringRule
		entryType  string
		amount     string
		frequency  string
		startDate  string
		categoryID sql.NullString
		lastRun    sql.NullString
		active     int
	)
	if err := s.Scan(&rule.ID, &rule.Owner, &entryType, &amount, &rule.Description,
		&categoryID, &frequency, &startDate, &lastRun, &active); err != nil {
		return core.RecurringRule{}, err
	}
	rule.Type = core.EntryType(entryType)
	rule.Frequency = core.Frequency(frequency)
	rule.Active = active != 0
	if categoryID.Valid {
		rule.CategoryID = categoryID.String
	}
	var err error
	if rule.Amount, err = parseAmountColumn(amount); err != nil {
		return core.RecurringRule{}, err
	}
	if rule.StartDate, err = parseDateColumn(startDate); err != nil {
		return core.RecurringRule{}, err
	}
	if lastRun.Valid {
		if rule.LastRun, err = parseDateColumn(lastRun.String); err != nil {
			return core.RecurringRule{}, err
		}
	}
	return rule, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
