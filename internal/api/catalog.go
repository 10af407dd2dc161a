package api

import (
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/erazemk/consigna/internal/store"
)

// CatalogHandler handles brand and size endpoints.
type CatalogHandler struct {
	DB *sqlx.DB
}

type brandRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	Active *bool  `json:"active"`
}

type sizeRequest struct {
	Name      string `json:"name" validate:"required,max=50"`
	SortOrder int    `json:"sort_order"`
	Active    *bool  `json:"active"`
}

// activeOnly reports whether a listing should hide inactive entries. Only
// admins may ask for everything.
func activeOnly(r *http.Request) (bool, error) {
	all, err := queryBool(r, "all")
	if err != nil {
		return false, err
	}
	if all == nil || !*all {
		return true, nil
	}
	if err := GetCaller(r.Context()).RequireAdmin(); err != nil {
		return false, err
	}
	return false, nil
}

// ListBrands handles GET /api/brands.
func (h *CatalogHandler) ListBrands(w http.ResponseWriter, r *http.Request) {
	onlyActive, err := activeOnly(r)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	brands, err := store.ListBrands(r.Context(), h.DB, onlyActive)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, brands)
}

// CreateBrand handles POST /api/brands.
func (h *CatalogHandler) CreateBrand(w http.ResponseWriter, r *http.Request) {
	var req brandRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, r, err)
		return
	}

	brand, err := store.CreateBrand(r.Context(), h.DB, req.Name)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Int64("brand_id", brand.ID).Msg("brand created")
	jsonResponse(w, r, http.StatusCreated, brand)
}

// UpdateBrand handles PUT /api/brands/{id}.
func (h *CatalogHandler) UpdateBrand(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}

	var req brandRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, r, err)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	brand, err := store.UpdateBrand(r.Context(), h.DB, id, req.Name, active)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, brand)
}

// DeleteBrand handles DELETE /api/brands/{id}.
func (h *CatalogHandler) DeleteBrand(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if err := store.DeleteBrand(r.Context(), h.DB, id); err != nil {
		jsonError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Int64("brand_id", id).Msg("brand deleted")
	jsonResponse(w, r, http.StatusOK, map[string]string{"message": "brand deleted"})
}

// ListSizes handles GET /api/sizes.
func (h *CatalogHandler) ListSizes(w http.ResponseWriter, r *http.Request) {
	onlyActive, err := activeOnly(r)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	sizes, err := store.ListSizes(r.Context(), h.DB, onlyActive)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, sizes)
}

// CreateSize handles POST /api/sizes.
func (h *CatalogHandler) CreateSize(w http.ResponseWriter, r *http.Request) {
	var req sizeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, r, err)
		return
	}

	size, err := store.CreateSize(r.Context(), h.DB, req.Name, req.SortOrder)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Int64("size_id", size.ID).Msg("size created")
	jsonResponse(w, r, http.StatusCreated, size)
}

// UpdateSize handles PUT /api/sizes/{id}.
func (h *CatalogHandler) UpdateSize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}

	var req sizeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, r, err)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	size, err := store.UpdateSize(r.Context(), h.DB, id, req.Name, req.SortOrder, active)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, size)
}

// DeleteSize handles DELETE /api/sizes/{id}.
func (h *CatalogHandler) DeleteSize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if err := store.DeleteSize(r.Context(), h.DB, id); err != nil {
		jsonError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Int64("size_id", id).Msg("size deleted")
	jsonResponse(w, r, http.StatusOK, map[string]string{"message": "size deleted"})
}
