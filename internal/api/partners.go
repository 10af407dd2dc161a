package api

import (
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/consigna/internal/apperr"
	"github.com/erazemk/consigna/internal/ledger"
	"github.com/erazemk/consigna/internal/model"
	"github.com/erazemk/consigna/internal/store"
)

// PartnersHandler handles partner endpoints and the per-partner ledger views.
type PartnersHandler struct {
	DB     *sqlx.DB
	Ledger *ledger.Ledger
}

type createPartnerRequest struct {
	Name       string           `json:"name" validate:"required,max=200"`
	Email      string           `json:"email" validate:"required,email"`
	Password   string           `json:"password" validate:"required"`
	Phone      string           `json:"phone" validate:"max=50"`
	Percentage *decimal.Decimal `json:"percentage"`
}

type updatePartnerRequest struct {
	Name       *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Phone      *string          `json:"phone" validate:"omitempty,max=50"`
	Percentage *decimal.Decimal `json:"percentage"`
	Active     *bool            `json:"active"`
}

// List handles GET /api/partners.
func (h *PartnersHandler) List(w http.ResponseWriter, r *http.Request) {
	partners, err := store.ListPartners(r.Context(), h.DB)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, partners)
}

// Create handles POST /api/partners.
func (h *PartnersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPartnerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, r, err)
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, r, apperr.Validation(err.Error()))
		return
	}

	pct := model.DefaultPercentage
	if req.Percentage != nil {
		pct = *req.Percentage
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	partner, err := store.CreatePartner(r.Context(), h.DB, store.NewPartner{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		Phone:        strings.TrimSpace(req.Phone),
		Percentage:   pct,
	})
	if err != nil {
		jsonError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Int64("partner", partner.ID).Str("percentage", pct.String()).Msg("partner created")
	jsonResponse(w, r, http.StatusCreated, partner)
}

// Get handles GET /api/partners/{id}. Partners may read their own record.
func (h *PartnersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if err := GetCaller(r.Context()).CheckPartner(id); err != nil {
		jsonError(w, r, err)
		return
	}

	partner, err := store.GetPartner(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if partner == nil {
		jsonError(w, r, apperr.NotFound("partner not found"))
		return
	}
	jsonResponse(w, r, http.StatusOK, partner)
}

// Update handles PUT /api/partners/{id}.
func (h *PartnersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}

	var req updatePartnerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, r, err)
		return
	}

	partner, err := store.UpdatePartner(r.Context(), h.DB, id, store.PartnerUpdate{
		Name:       req.Name,
		Phone:      req.Phone,
		Percentage: req.Percentage,
		Active:     req.Active,
	})
	if err != nil {
		jsonError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Int64("partner", id).Msg("partner updated")
	jsonResponse(w, r, http.StatusOK, partner)
}

// Delete handles DELETE /api/partners/{id}. Partners are deactivated, never removed.
func (h *PartnersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if err := store.DeactivatePartner(r.Context(), h.DB, id); err != nil {
		jsonError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Int64("partner", id).Msg("partner deactivated")
	jsonResponse(w, r, http.StatusOK, map[string]string{"message": "partner deactivated"})
}

// Pending handles GET /api/partners/{id}/pending.
func (h *PartnersHandler) Pending(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}

	pending, err := h.Ledger.ListPending(r.Context(), GetCaller(r.Context()), id)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, pending)
}

// Receipt handles GET /api/partners/{id}/receipt?ids=1,2,3.
func (h *PartnersHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}
	ids, err := queryIDs(r, "ids")
	if err != nil {
		jsonError(w, r, err)
		return
	}

	receipt, err := h.Ledger.BuildReceipt(r.Context(), GetCaller(r.Context()), id, ids)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, receipt)
}
