package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/erazemk/consigna/internal/ledger"
	"github.com/erazemk/consigna/internal/settlement"
)

// SalesHandler handles settlement, reversal and sale listing.
type SalesHandler struct {
	Engine *settlement.Engine
	Ledger *ledger.Ledger
}

type settleRequest struct {
	ItemID       int64           `json:"item_id" validate:"required,gt=0"`
	SoldForValue decimal.Decimal `json:"sold_for_value"`
}

// Batch rows carry no field rules: a bad row is reported in the result's
// failed list rather than rejecting the whole batch.
type settleBatchRow struct {
	ItemID       int64           `json:"item_id"`
	SoldForValue decimal.Decimal `json:"sold_for_value"`
}

type settleBatchRequest struct {
	Sales []settleBatchRow `json:"sales" validate:"required,min=1,max=500"`
}

// List handles GET /api/sales?partner_id=&paid=.
func (h *SalesHandler) List(w http.ResponseWriter, r *http.Request) {
	partnerID, err := queryInt(r, "partner_id")
	if err != nil {
		jsonError(w, r, err)
		return
	}
	paid, err := queryBool(r, "paid")
	if err != nil {
		jsonError(w, r, err)
		return
	}

	sales, err := h.Ledger.ListSales(r.Context(), GetCaller(r.Context()), partnerID, paid)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, sales)
}

// Settle handles POST /api/sales.
func (h *SalesHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, r, err)
		return
	}

	res, err := h.Engine.SettleSingle(r.Context(), settlement.Request{ItemID: req.ItemID, SoldFor: req.SoldForValue})
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusCreated, res)
}

// SettleBatch handles POST /api/sales/batch. The response lists settled and
// failed rows; a batch with failures still answers 200.
func (h *SalesHandler) SettleBatch(w http.ResponseWriter, r *http.Request) {
	var req settleBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, r, err)
		return
	}

	reqs := make([]settlement.Request, len(req.Sales))
	for i, s := range req.Sales {
		reqs[i] = settlement.Request{ItemID: s.ItemID, SoldFor: s.SoldForValue}
	}

	res, err := h.Engine.SettleBatch(r.Context(), reqs)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, res)
}

// Reverse handles DELETE /api/sales/{id}.
func (h *SalesHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}

	rev, err := h.Engine.ReverseSale(r.Context(), id)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, rev)
}
