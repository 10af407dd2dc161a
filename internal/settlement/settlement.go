// Package settlement turns an item sale into a recorded sale and the partner
// payment it owes, and undoes that when a sale is reversed.
package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/erazemk/consigna/internal/apperr"
	"github.com/erazemk/consigna/internal/db"
	"github.com/erazemk/consigna/internal/metrics"
	"github.com/erazemk/consigna/internal/model"
	"github.com/erazemk/consigna/internal/store"
)

// Engine settles and reverses sales against the store.
type Engine struct {
	DB      *sqlx.DB
	Metrics *metrics.Ledger
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// Request asks to sell one item for a given value.
type Request struct {
	ItemID  int64           `json:"item_id"`
	SoldFor decimal.Decimal `json:"sold_for_value"`
}

// Result is the sale and payment created by a settlement.
type Result struct {
	Sale    model.Sale    `json:"sale"`
	Payment model.Payment `json:"payment"`
}

// Failure describes why one batch row was not settled.
type Failure struct {
	ItemID int64       `json:"item_id"`
	Kind   apperr.Kind `json:"kind"`
	Reason string      `json:"reason"`
}

// BatchResult lists the rows that settled and the rows that did not.
type BatchResult struct {
	Created []Result  `json:"created"`
	Failed  []Failure `json:"failed"`
}

// Reversal confirms a reversed sale.
type Reversal struct {
	SaleID    int64  `json:"sale_id"`
	ItemID    int64  `json:"item_id"`
	PaymentID *int64 `json:"payment_id,omitempty"`
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// SettleSingle sells an available item. The sale, its payment and the item
// status change commit together or not at all.
func (e *Engine) SettleSingle(ctx context.Context, req Request) (*Result, error) {
	res, err := e.settle(ctx, req)
	e.Metrics.ObserveSettlement(metrics.ModeSingle, outcome(err), req.SoldFor)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Int64("item_id", req.ItemID).
		Int64("sale_id", res.Sale.ID).
		Int64("payment_id", res.Payment.ID).
		Str("sold_for", req.SoldFor.String()).
		Str("payout", res.Payment.PayoutAmount.String()).
		Msg("sale settled")
	return res, nil
}

// SettleBatch settles each request in its own transaction. A failing row is
// reported and does not affect the others.
func (e *Engine) SettleBatch(ctx context.Context, reqs []Request) (*BatchResult, error) {
	if len(reqs) == 0 {
		return nil, apperr.Validation("batch must contain at least one sale")
	}

	out := &BatchResult{Created: []Result{}, Failed: []Failure{}}
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := e.settle(ctx, req)
		e.Metrics.ObserveSettlement(metrics.ModeBatch, outcome(err), req.SoldFor)
		if err != nil {
			kind := apperr.KindOf(err)
			reason := "failed to settle sale"
			if typed := apperr.As(err); typed != nil && kind != apperr.KindUnexpected {
				reason = typed.Message()
			} else {
				zerolog.Ctx(ctx).Error().Err(err).Int64("item_id", req.ItemID).Msg("batch row failed")
			}
			out.Failed = append(out.Failed, Failure{ItemID: req.ItemID, Kind: kind, Reason: reason})
			continue
		}
		out.Created = append(out.Created, *res)
	}

	zerolog.Ctx(ctx).Info().
		Int("requested", len(reqs)).
		Int("created", len(out.Created)).
		Int("failed", len(out.Failed)).
		Msg("batch settled")
	return out, nil
}

func (e *Engine) settle(ctx context.Context, req Request) (*Result, error) {
	if req.ItemID <= 0 {
		return nil, apperr.Validation("item id is required")
	}
	if !req.SoldFor.IsPositive() {
		return nil, apperr.Validation("sold-for value must be positive")
	}

	now := e.now()
	var res Result
	err := db.WithTx(ctx, e.DB, func(tx *sqlx.Tx) error {
		// The conditional status flip runs first so that of two concurrent
		// settlements of one item only one sees an available row.
		if err := store.MarkItemSold(ctx, tx, req.ItemID); err != nil {
			return err
		}

		var partner struct {
			ID         int64           `db:"id"`
			Percentage decimal.Decimal `db:"percentage"`
		}
		err := sqlx.GetContext(ctx, tx, &partner,
			`SELECT p.id, p.percentage FROM items i JOIN partners p ON p.id = i.partner_id WHERE i.id = ?`,
			req.ItemID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("partner of item not found")
		}
		if err != nil {
			return fmt.Errorf("loading item partner: %w", err)
		}

		sale, err := store.InsertSale(ctx, tx, req.ItemID, req.SoldFor, now)
		if err != nil {
			return err
		}

		payment := model.Payment{
			SaleID:             sale.ID,
			PartnerID:          partner.ID,
			PercentageSnapshot: partner.Percentage,
			PayoutAmount:       model.Payout(req.SoldFor, partner.Percentage),
			CreatedAt:          now,
		}
		if err := store.InsertPayment(ctx, tx, &payment); err != nil {
			return err
		}

		res = Result{Sale: *sale, Payment: payment}
		return nil
	})
	if err != nil {
		if apperr.As(err) == nil {
			return nil, apperr.Unexpected(err, "failed to settle sale")
		}
		return nil, err
	}
	return &res, nil
}

// ReverseSale deletes an unpaid sale and its payment and makes the item
// available again. Paid sales cannot be reversed.
func (e *Engine) ReverseSale(ctx context.Context, saleID int64) (*Reversal, error) {
	rev, err := e.reverse(ctx, saleID)
	e.Metrics.ObserveReversal(outcome(err))
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Int64("sale_id", rev.SaleID).
		Int64("item_id", rev.ItemID).
		Msg("sale reversed")
	return rev, nil
}

func (e *Engine) reverse(ctx context.Context, saleID int64) (*Reversal, error) {
	var rev Reversal
	err := db.WithTx(ctx, e.DB, func(tx *sqlx.Tx) error {
		sale, err := store.GetSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if sale == nil {
			return apperr.Newf(apperr.KindNotFound, "sale %d not found", saleID)
		}

		payment, err := store.GetPaymentBySale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if payment != nil {
			if payment.Paid {
				return apperr.Newf(apperr.KindInvalidState, "sale %d is already paid out and cannot be reversed", saleID)
			}
			removed, err := store.DeletePayment(ctx, tx, payment.ID)
			if err != nil {
				return err
			}
			if !removed {
				return apperr.Newf(apperr.KindInvalidState, "sale %d is already paid out and cannot be reversed", saleID)
			}
			rev.PaymentID = &payment.ID
		}

		if err := store.DeleteSale(ctx, tx, saleID); err != nil {
			return err
		}
		if err := store.MarkItemAvailable(ctx, tx, sale.ItemID); err != nil {
			return err
		}

		rev.SaleID = saleID
		rev.ItemID = sale.ItemID
		return nil
	})
	if err != nil {
		if apperr.As(err) == nil {
			return nil, apperr.Unexpected(err, "failed to reverse sale")
		}
		return nil, err
	}
	return &rev, nil
}

func outcome(err error) string {
	switch apperr.KindOf(err) {
	case "":
		return metrics.OutcomeSuccess
	case apperr.KindNotFound:
		return metrics.OutcomeNotFound
	case apperr.KindInvalidState:
		return metrics.OutcomeInvalidState
	case apperr.KindValidation:
		return metrics.OutcomeValidation
	default:
		return metrics.OutcomeError
	}
}
