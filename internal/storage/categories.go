package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/core"
)

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO categories(id, owner, name, description)
	VALUES(?, ?, ?, ?)`,
		c.ID, c.Owner, c.Name, c.Description)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}

	slog.InfoContext(ctx, "Category saved",
		"id", c.ID,
		"owner", c.Owner,
		"name", c.Name)
	return nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, owner, id string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, owner, name, description FROM categories
	WHERE id = ? AND owner = ?`, id, owner)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, owner, name, description FROM categories
	WHERE owner = ?
	ORDER BY name COLLATE NOCASE ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE categories SET name = ?, description = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ? AND owner = ?`,
		c.Name, c.Description, c.ID, c.Owner)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCategory removes a category; entries referencing it keep existing
// with a null category (enforced by ON DELETE SET NULL).
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `
	DELETE FROM categories WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Category deleted", "id", id, "owner", owner)
	return nil
}

func scanCategory(s scanner) (core.Category, error) {
	var c core.Category
	if err := s.Scan(&c.ID, &c.Owner, &c.Name, &c.Description); err != nil {
		return core.Category{}, err
	}
	return c, nil
}
