package api

import (
	"net/http"
	"time"

	"github.com/erazemk/consigna/internal/ledger"
)

// PaymentsHandler handles payment listing and marking.
type PaymentsHandler struct {
	Ledger *ledger.Ledger
}

type markPaidRequest struct {
	PaymentIDs []int64    `json:"payment_ids" validate:"required,min=1,dive,gt=0"`
	PaidAt     *time.Time `json:"paid_at"`
	Notes      *string    `json:"notes" validate:"omitempty,max=1000"`
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

// List handles GET /api/payments?partner_id=&paid=.
func (h *PaymentsHandler) List(w http.ResponseWriter, r *http.Request) {
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

	payments, err := h.Ledger.ListPayments(r.Context(), GetCaller(r.Context()), partnerID, paid)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, payments)
}

// MarkPaid handles POST /api/payments/mark-paid.
func (h *PaymentsHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	var req markPaidRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, r, err)
		return
	}

	n, err := h.Ledger.MarkPaid(r.Context(), GetCaller(r.Context()), ledger.MarkPaidRequest{
		IDs:    req.PaymentIDs,
		PaidAt: req.PaidAt,
		Notes:  req.Notes,
	})
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, map[string]int64{"updated": n})
}

// UpdateNotes handles PUT /api/payments/{id}/notes.
func (h *PaymentsHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}

	var req notesRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, r, err)
		return
	}

	p, err := h.Ledger.UpdateNotes(r.Context(), GetCaller(r.Context()), id, req.Notes)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, p)
}
