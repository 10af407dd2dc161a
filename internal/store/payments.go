package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/consigna/internal/apperr"
	"github.com/erazemk/consigna/internal/model"
)

const paymentColumns = `pm.id, pm.sale_id, pm.partner_id, pm.percentage_snapshot, pm.payout_amount,
        pm.paid, pm.paid_at, pm.notes, pm.created_at`

const paymentDetailSelect = `SELECT ` + paymentColumns + `,
        i.tag_code, b.name AS brand_name, s.name AS size_name, sa.sold_for_value, sa.sold_at
 FROM payments pm
 JOIN sales sa ON sa.id = pm.sale_id
 JOIN items i ON i.id = sa.item_id
 JOIN brands b ON b.id = i.brand_id
 JOIN sizes s ON s.id = i.size_id`

// PaymentFilter narrows ListPayments. Zero values mean no filter.
type PaymentFilter struct {
	PartnerID *int64
	Paid      *bool
	IDs       []int64
	// OldestFirst orders by creation ascending instead of newest first.
	OldestFirst bool
}

// InsertPayment records the payout owed for a sale.
func InsertPayment(ctx context.Context, q sqlx.ExecerContext, p *model.Payment) error {
	p.CreatedAt = p.CreatedAt.UTC()
	result, err := q.ExecContext(ctx,
		`INSERT INTO payments (sale_id, partner_id, percentage_snapshot, payout_amount, paid, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.SaleID, p.PartnerID, p.PercentageSnapshot, p.PayoutAmount, p.Paid, p.Notes, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting payment: %w", err)
	}

	p.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting payment id: %w", err)
	}
	return nil
}

// GetPayment returns a payment by ID.
func GetPayment(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Payment, error) {
	var p model.Payment
	err := sqlx.GetContext(ctx, q, &p, `SELECT `+paymentColumns+` FROM payments pm WHERE pm.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting payment: %w", err)
	}
	return &p, nil
}

// GetPaymentBySale returns the payment of a sale.
func GetPaymentBySale(ctx context.Context, q sqlx.QueryerContext, saleID int64) (*model.Payment, error) {
	var p model.Payment
	err := sqlx.GetContext(ctx, q, &p, `SELECT `+paymentColumns+` FROM payments pm WHERE pm.sale_id = ?`, saleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting payment by sale: %w", err)
	}
	return &p, nil
}

// DeletePayment removes an unpaid payment. It reports whether a row was removed.
func DeletePayment(ctx context.Context, q sqlx.ExecerContext, id int64) (bool, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM payments WHERE id = ? AND paid = 0`, id)
	if err != nil {
		return false, fmt.Errorf("deleting payment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting payment: %w", err)
	}
	return n > 0, nil
}

// ListPayments returns payments with their sale and item details.
func ListPayments(ctx context.Context, q sqlx.QueryerContext, f PaymentFilter) ([]model.PaymentDetail, error) {
	var (
		where []string
		args  []any
	)
	if f.PartnerID != nil {
		where = append(where, "pm.partner_id = ?")
		args = append(args, *f.PartnerID)
	}
	if f.Paid != nil {
		where = append(where, "pm.paid = ?")
		args = append(args, *f.Paid)
	}
	if len(f.IDs) > 0 {
		where = append(where, "pm.id IN (?)")
		args = append(args, f.IDs)
	}

	query := paymentDetailSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.OldestFirst {
		query += " ORDER BY pm.created_at ASC, pm.id ASC"
	} else {
		query += " ORDER BY pm.created_at DESC, pm.id DESC"
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("building payment query: %w", err)
	}

	payments := []model.PaymentDetail{}
	if err := sqlx.SelectContext(ctx, q, &payments, sqlx.Rebind(sqlx.QUESTION, query), args...); err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	return payments, nil
}

// MarkPaymentsPaid flips the given unpaid payments to paid. Missing or
// already-paid ids are skipped. A nil notes leaves notes unchanged.
func MarkPaymentsPaid(ctx context.Context, q sqlx.ExecerContext, ids []int64, paidAt time.Time, notes *string) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.Validation("no payment ids given")
	}

	query, args, err := sqlx.In(
		`UPDATE payments SET paid = 1, paid_at = ?, notes = COALESCE(?, notes)
		 WHERE id IN (?) AND paid = 0`,
		paidAt.UTC(), notes, ids,
	)
	if err != nil {
		return 0, fmt.Errorf("building mark paid query: %w", err)
	}

	result, err := q.ExecContext(ctx, sqlx.Rebind(sqlx.QUESTION, query), args...)
	if err != nil {
		return 0, fmt.Errorf("marking payments paid: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("marking payments paid: %w", err)
	}
	return n, nil
}

// UpdatePaymentNotes replaces a payment's notes.
func UpdatePaymentNotes(ctx context.Context, q sqlx.ExtContext, id int64, notes string) (*model.Payment, error) {
	result, err := q.ExecContext(ctx, `UPDATE payments SET notes = ? WHERE id = ?`, notes, id)
	if err != nil {
		return nil, fmt.Errorf("updating payment notes: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, apperr.NotFound("payment not found")
	}
	return GetPayment(ctx, q, id)
}

func paymentsBySale(ctx context.Context, q sqlx.QueryerContext, saleIDs []int64) (map[int64]model.Payment, error) {
	query, args, err := sqlx.In(`SELECT `+paymentColumns+` FROM payments pm WHERE pm.sale_id IN (?)`, saleIDs)
	if err != nil {
		return nil, fmt.Errorf("building payment query: %w", err)
	}

	var payments []model.Payment
	if err := sqlx.SelectContext(ctx, q, &payments, sqlx.Rebind(sqlx.QUESTION, query), args...); err != nil {
		return nil, fmt.Errorf("listing sale payments: %w", err)
	}

	bySale := make(map[int64]model.Payment, len(payments))
	for _, p := range payments {
		bySale[p.SaleID] = p
	}
	return bySale, nil
}
