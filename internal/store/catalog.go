package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/consigna/internal/apperr"
	"github.com/erazemk/consigna/internal/model"
)

const brandSelect = `SELECT b.id, b.name, b.active,
        (SELECT COUNT(*) FROM items i WHERE i.brand_id = b.id) AS item_count
 FROM brands b`

// CreateBrand creates a new brand.
func CreateBrand(ctx context.Context, q sqlx.ExtContext, name string) (*model.Brand, error) {
	result, err := q.ExecContext(ctx, `INSERT INTO brands (name) VALUES (?)`, name)
	if isUniqueViolation(err) {
		return nil, apperr.Validation("brand already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("creating brand: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting brand id: %w", err)
	}
	return GetBrand(ctx, q, id)
}

// GetBrand returns a brand by ID.
func GetBrand(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Brand, error) {
	var b model.Brand
	err := sqlx.GetContext(ctx, q, &b, brandSelect+` WHERE b.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting brand: %w", err)
	}
	return &b, nil
}

// ListBrands returns brands ordered by name, optionally only active ones.
func ListBrands(ctx context.Context, q sqlx.QueryerContext, activeOnly bool) ([]model.Brand, error) {
	query := brandSelect
	if activeOnly {
		query += ` WHERE b.active = 1`
	}
	query += ` ORDER BY b.name`

	var brands []model.Brand
	if err := sqlx.SelectContext(ctx, q, &brands, query); err != nil {
		return nil, fmt.Errorf("listing brands: %w", err)
	}
	return brands, nil
}

// UpdateBrand updates a brand's name and active flag.
func UpdateBrand(ctx context.Context, q sqlx.ExtContext, id int64, name string, active bool) (*model.Brand, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE brands SET name = ?, active = ? WHERE id = ?`, name, active, id)
	if isUniqueViolation(err) {
		return nil, apperr.Validation("brand already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("updating brand: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, apperr.NotFound("brand not found")
	}
	return GetBrand(ctx, q, id)
}

// DeleteBrand deletes a brand that no item references.
func DeleteBrand(ctx context.Context, q sqlx.ExtContext, id int64) error {
	return deleteReference(ctx, q, "brands", "brand_id", id, "brand")
}

const sizeSelect = `SELECT s.id, s.name, s.sort_order, s.active,
        (SELECT COUNT(*) FROM items i WHERE i.size_id = s.id) AS item_count
 FROM sizes s`

// CreateSize creates a new size.
func CreateSize(ctx context.Context, q sqlx.ExtContext, name string, sortOrder int) (*model.Size, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO sizes (name, sort_order) VALUES (?, ?)`, name, sortOrder)
	if isUniqueViolation(err) {
		return nil, apperr.Validation("size already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("creating size: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting size id: %w", err)
	}
	return GetSize(ctx, q, id)
}

// GetSize returns a size by ID.
func GetSize(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Size, error) {
	var s model.Size
	err := sqlx.GetContext(ctx, q, &s, sizeSelect+` WHERE s.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting size: %w", err)
	}
	return &s, nil
}

// ListSizes returns sizes by sort order, optionally only active ones.
func ListSizes(ctx context.Context, q sqlx.QueryerContext, activeOnly bool) ([]model.Size, error) {
	query := sizeSelect
	if activeOnly {
		query += ` WHERE s.active = 1`
	}
	query += ` ORDER BY s.sort_order, s.name`

	var sizes []model.Size
	if err := sqlx.SelectContext(ctx, q, &sizes, query); err != nil {
		return nil, fmt.Errorf("listing sizes: %w", err)
	}
	return sizes, nil
}

// UpdateSize updates a size.
func UpdateSize(ctx context.Context, q sqlx.ExtContext, id int64, name string, sortOrder int, active bool) (*model.Size, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE sizes SET name = ?, sort_order = ?, active = ? WHERE id = ?`,
		name, sortOrder, active, id)
	if isUniqueViolation(err) {
		return nil, apperr.Validation("size already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("updating size: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, apperr.NotFound("size not found")
	}
	return GetSize(ctx, q, id)
}

// DeleteSize deletes a size that no item references.
func DeleteSize(ctx context.Context, q sqlx.ExtContext, id int64) error {
	return deleteReference(ctx, q, "sizes", "size_id", id, "size")
}

// deleteReference removes a reference-data row unless items still use it.
// table and column are fixed identifiers, never user input.
func deleteReference(ctx context.Context, q sqlx.ExtContext, table, column string, id int64, noun string) error {
	var count int
	err := sqlx.GetContext(ctx, q, &count,
		`SELECT COUNT(*) FROM items WHERE `+column+` = ?`, id)
	if err != nil {
		return fmt.Errorf("counting %s items: %w", noun, err)
	}
	if count > 0 {
		return apperr.Newf(apperr.KindInvalidState,
			"cannot delete %s with %d items; deactivate it instead", noun, count)
	}

	result, err := q.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", noun, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.KindNotFound, "%s not found", noun)
	}
	return nil
}
