package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/erazemk/consigna/internal/model"
)

const saleDetailSelect = `SELECT sa.id, sa.item_id, sa.sold_for_value, sa.sold_at,
        i.tag_code, b.name AS brand_name, s.name AS size_name, i.partner_id
 FROM sales sa
 JOIN items i ON i.id = sa.item_id
 JOIN brands b ON b.id = i.brand_id
 JOIN sizes s ON s.id = i.size_id`

// SaleFilter narrows ListSales. Zero values mean no filter.
type SaleFilter struct {
	PartnerID *int64
	Paid      *bool
}

// InsertSale records a sale of an item.
func InsertSale(ctx context.Context, q sqlx.ExecerContext, itemID int64, soldFor decimal.Decimal, soldAt time.Time) (*model.Sale, error) {
	soldAt = soldAt.UTC()
	result, err := q.ExecContext(ctx,
		`INSERT INTO sales (item_id, sold_for_value, sold_at) VALUES (?, ?, ?)`,
		itemID, soldFor, soldAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting sale: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting sale id: %w", err)
	}
	return &model.Sale{ID: id, ItemID: itemID, SoldForValue: soldFor, SoldAt: soldAt}, nil
}

// GetSale returns a sale by ID.
func GetSale(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Sale, error) {
	var sale model.Sale
	err := sqlx.GetContext(ctx, q, &sale,
		`SELECT id, item_id, sold_for_value, sold_at FROM sales WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting sale: %w", err)
	}
	return &sale, nil
}

// DeleteSale removes a sale. Its payment must already be gone.
func DeleteSale(ctx context.Context, q sqlx.ExecerContext, id int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting sale: %w", err)
	}
	return nil
}

// ListSales returns sales with item details and payments, newest first.
func ListSales(ctx context.Context, q sqlx.QueryerContext, f SaleFilter) ([]model.SaleDetail, error) {
	var (
		where []string
		args  []any
	)
	if f.PartnerID != nil {
		where = append(where, "i.partner_id = ?")
		args = append(args, *f.PartnerID)
	}
	if f.Paid != nil {
		where = append(where, "EXISTS (SELECT 1 FROM payments pm WHERE pm.sale_id = sa.id AND pm.paid = ?)")
		args = append(args, *f.Paid)
	}

	query := saleDetailSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY sa.sold_at DESC, sa.id DESC"

	sales := []model.SaleDetail{}
	if err := sqlx.SelectContext(ctx, q, &sales, query, args...); err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	if len(sales) == 0 {
		return sales, nil
	}

	ids := make([]int64, len(sales))
	for i := range sales {
		ids[i] = sales[i].ID
	}
	payments, err := paymentsBySale(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		if p, ok := payments[sales[i].ID]; ok {
			sales[i].Payment = &p
		}
	}
	return sales, nil
}
