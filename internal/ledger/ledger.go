// Package ledger reads and settles partner payments.
package ledger

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/erazemk/consigna/internal/access"
	"github.com/erazemk/consigna/internal/apperr"
	"github.com/erazemk/consigna/internal/metrics"
	"github.com/erazemk/consigna/internal/model"
	"github.com/erazemk/consigna/internal/store"
)

// Ledger answers payment queries on behalf of a caller.
type Ledger struct {
	DB      *sqlx.DB
	Metrics *metrics.Ledger
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// Pending is the set of unpaid payments owed to one partner.
type Pending struct {
	PartnerID int64                 `json:"partner_id"`
	Payments  []model.PaymentDetail `json:"payments"`
	Total     decimal.Decimal       `json:"total"`
	Count     int                   `json:"count"`
}

// MarkPaidRequest flips payments to paid. PaidAt defaults to now and a nil
// Notes leaves existing notes alone.
type MarkPaidRequest struct {
	IDs    []int64
	PaidAt *time.Time
	Notes  *string
}

// PartnerHeader identifies the partner a receipt is for.
type PartnerHeader struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone,omitempty"`
	Percentage decimal.Decimal `json:"percentage"`
}

// ReceiptLine is one payment on a receipt.
type ReceiptLine struct {
	PaymentID  int64           `json:"payment_id"`
	TagCode    string          `json:"tag_code"`
	BrandName  string          `json:"brand_name"`
	SizeName   string          `json:"size_name"`
	SoldAt     time.Time       `json:"sold_at"`
	SoldFor    decimal.Decimal `json:"sold_for_value"`
	Percentage decimal.Decimal `json:"percentage"`
	Payout     decimal.Decimal `json:"payout"`
	Paid       bool            `json:"paid"`
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
}

// Receipt is a read-only statement of a partner's payments.
type Receipt struct {
	Partner      PartnerHeader   `json:"partner"`
	Lines        []ReceiptLine   `json:"lines"`
	ItemCount    int             `json:"item_count"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	TotalPending decimal.Decimal `json:"total_pending"`
	Total        decimal.Decimal `json:"total"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// ListPending returns a partner's unpaid payments, oldest first, with their sum.
func (l *Ledger) ListPending(ctx context.Context, caller access.Caller, partnerID int64) (*Pending, error) {
	if err := caller.CheckPartner(partnerID); err != nil {
		return nil, err
	}
	if _, err := l.partner(ctx, partnerID); err != nil {
		return nil, err
	}

	unpaid := false
	payments, err := store.ListPayments(ctx, l.DB, store.PaymentFilter{
		PartnerID:   &partnerID,
		Paid:        &unpaid,
		OldestFirst: true,
	})
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to list pending payments")
	}

	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.PayoutAmount)
	}
	return &Pending{PartnerID: partnerID, Payments: payments, Total: total, Count: len(payments)}, nil
}

// MarkPaid flips the given unpaid payments to paid and returns how many
// changed. Unknown and already-paid ids are skipped.
func (l *Ledger) MarkPaid(ctx context.Context, caller access.Caller, req MarkPaidRequest) (int64, error) {
	if err := caller.RequireAdmin(); err != nil {
		return 0, err
	}
	if len(req.IDs) == 0 {
		return 0, apperr.Validation("at least one payment id is required")
	}

	paidAt := l.now()
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}

	n, err := store.MarkPaymentsPaid(ctx, l.DB, req.IDs, paidAt, req.Notes)
	if err != nil {
		if apperr.As(err) != nil {
			return 0, err
		}
		return 0, apperr.Unexpected(err, "failed to mark payments paid")
	}
	l.Metrics.AddMarkedPaid(n)

	zerolog.Ctx(ctx).Info().
		Int("requested", len(req.IDs)).
		Int64("updated", n).
		Time("paid_at", paidAt).
		Msg("payments marked paid")
	return n, nil
}

// BuildReceipt summarises a partner's payments, optionally only the given ids.
func (l *Ledger) BuildReceipt(ctx context.Context, caller access.Caller, partnerID int64, paymentIDs []int64) (*Receipt, error) {
	if err := caller.CheckPartner(partnerID); err != nil {
		return nil, err
	}
	partner, err := l.partner(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	payments, err := store.ListPayments(ctx, l.DB, store.PaymentFilter{
		PartnerID:   &partnerID,
		IDs:         paymentIDs,
		OldestFirst: true,
	})
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to load receipt payments")
	}
	if len(payments) == 0 {
		return nil, apperr.NotFound("no payments found for receipt")
	}

	r := &Receipt{
		Partner: PartnerHeader{
			ID:         partner.ID,
			Name:       partner.Name,
			Email:      partner.Email,
			Phone:      partner.Phone,
			Percentage: partner.Percentage,
		},
		Lines:        make([]ReceiptLine, 0, len(payments)),
		ItemCount:    len(payments),
		TotalPaid:    decimal.Zero,
		TotalPending: decimal.Zero,
		GeneratedAt:  l.now(),
	}
	for _, p := range payments {
		if p.Paid {
			r.TotalPaid = r.TotalPaid.Add(p.PayoutAmount)
		} else {
			r.TotalPending = r.TotalPending.Add(p.PayoutAmount)
		}
		r.Lines = append(r.Lines, ReceiptLine{
			PaymentID:  p.ID,
			TagCode:    p.TagCode,
			BrandName:  p.BrandName,
			SizeName:   p.SizeName,
			SoldAt:     p.SoldAt,
			SoldFor:    p.SoldForValue,
			Percentage: p.PercentageSnapshot,
			Payout:     p.PayoutAmount,
			Paid:       p.Paid,
			PaidAt:     p.PaidAt,
		})
	}
	r.Total = r.TotalPaid.Add(r.TotalPending)
	return r, nil
}

// ListPayments lists payments visible to the caller.
func (l *Ledger) ListPayments(ctx context.Context, caller access.Caller, partnerID *int64, paid *bool) ([]model.PaymentDetail, error) {
	scoped, err := caller.ScopePartner(partnerID)
	if err != nil {
		return nil, err
	}
	payments, err := store.ListPayments(ctx, l.DB, store.PaymentFilter{PartnerID: scoped, Paid: paid})
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to list payments")
	}
	return payments, nil
}

// ListSales lists sales visible to the caller, newest first.
func (l *Ledger) ListSales(ctx context.Context, caller access.Caller, partnerID *int64, paid *bool) ([]model.SaleDetail, error) {
	scoped, err := caller.ScopePartner(partnerID)
	if err != nil {
		return nil, err
	}
	sales, err := store.ListSales(ctx, l.DB, store.SaleFilter{PartnerID: scoped, Paid: paid})
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to list sales")
	}
	return sales, nil
}

// UpdateNotes replaces the notes on a payment.
func (l *Ledger) UpdateNotes(ctx context.Context, caller access.Caller, paymentID int64, notes string) (*model.Payment, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	p, err := store.UpdatePaymentNotes(ctx, l.DB, paymentID, notes)
	if err != nil {
		if apperr.As(err) != nil {
			return nil, err
		}
		return nil, apperr.Unexpected(err, "failed to update payment notes")
	}
	return p, nil
}

func (l *Ledger) partner(ctx context.Context, id int64) (*model.Partner, error) {
	p, err := store.GetPartner(ctx, l.DB, id)
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to load partner")
	}
	if p == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "partner %d not found", id)
	}
	return p, nil
}
