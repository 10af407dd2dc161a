package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/erazemk/consigna/internal/apperr"
	"github.com/erazemk/consigna/internal/imaging"
	"github.com/erazemk/consigna/internal/model"
	"github.com/erazemk/consigna/internal/store"
)

// ItemsHandler handles item endpoints.
type ItemsHandler struct {
	DB             *sqlx.DB
	Photos         imaging.Processor
	MaxUploadBytes int64
}

type createItemRequest struct {
	TagCode   string          `json:"tag_code" validate:"required,max=64"`
	CostValue decimal.Decimal `json:"cost_value"`
	ListValue decimal.Decimal `json:"list_value"`
	PartnerID int64           `json:"partner_id" validate:"required,gt=0"`
	BrandID   int64           `json:"brand_id" validate:"required,gt=0"`
	SizeID    int64           `json:"size_id" validate:"required,gt=0"`
	Notes     string          `json:"notes" validate:"max=1000"`
	EnteredAt *time.Time      `json:"entered_at"`
}

type updateItemRequest struct {
	TagCode   *string          `json:"tag_code" validate:"omitempty,min=1,max=64"`
	CostValue *decimal.Decimal `json:"cost_value"`
	ListValue *decimal.Decimal `json:"list_value"`
	PartnerID *int64           `json:"partner_id" validate:"omitempty,gt=0"`
	BrandID   *int64           `json:"brand_id" validate:"omitempty,gt=0"`
	SizeID    *int64           `json:"size_id" validate:"omitempty,gt=0"`
	Notes     *string          `json:"notes" validate:"omitempty,max=1000"`
	EnteredAt *time.Time       `json:"entered_at"`
}

// itemView is an item with its computed margins.
type itemView struct {
	*model.Item
	MarginAbsolute decimal.Decimal `json:"margin_absolute"`
	MarginPercent  decimal.Decimal `json:"margin_percent"`
}

func viewItem(item *model.Item) itemView {
	return itemView{Item: item, MarginAbsolute: item.MarginAbsolute(), MarginPercent: item.MarginPercent()}
}

// loadItem fetches an item the caller may see.
func (h *ItemsHandler) loadItem(r *http.Request, id int64) (*model.Item, error) {
	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("item not found")
	}
	if err := GetCaller(r.Context()).CheckPartner(item.PartnerID); err != nil {
		return nil, err
	}
	return item, nil
}

// List handles GET /api/items. Partners only see their own items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	var f store.ItemFilter
	var err error

	if f.PartnerID, err = queryInt(r, "partner_id"); err != nil {
		jsonError(w, r, err)
		return
	}
	if f.PartnerID, err = GetCaller(r.Context()).ScopePartner(f.PartnerID); err != nil {
		jsonError(w, r, err)
		return
	}
	if f.BrandID, err = queryInt(r, "brand_id"); err != nil {
		jsonError(w, r, err)
		return
	}
	if f.SizeID, err = queryInt(r, "size_id"); err != nil {
		jsonError(w, r, err)
		return
	}

	switch status := model.ItemStatus(r.URL.Query().Get("status")); status {
	case "", model.ItemStatusAvailable, model.ItemStatusSold:
		f.Status = status
	default:
		jsonError(w, r, apperr.Validation("status must be available or sold"))
		return
	}
	f.Search = r.URL.Query().Get("q")

	items, err := store.ListItems(r.Context(), h.DB, f)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	views := make([]itemView, len(items))
	for i := range items {
		views[i] = viewItem(&items[i])
	}
	jsonResponse(w, r, http.StatusOK, views)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, r, err)
		return
	}

	in := store.NewItem{
		TagCode:   req.TagCode,
		CostValue: req.CostValue,
		ListValue: req.ListValue,
		PartnerID: req.PartnerID,
		BrandID:   req.BrandID,
		SizeID:    req.SizeID,
		Notes:     req.Notes,
	}
	if req.EnteredAt != nil {
		in.EnteredAt = *req.EnteredAt
	}

	item, err := store.CreateItem(r.Context(), h.DB, in)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Int64("item_id", item.ID).Str("tag_code", item.TagCode).Msg("item created")
	jsonResponse(w, r, http.StatusCreated, viewItem(item))
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}

	item, err := h.loadItem(r, id)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, viewItem(item))
}

// Update handles PUT /api/items/{id}. Status cannot be changed here.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, r, err)
		return
	}

	item, err := store.UpdateItem(r.Context(), h.DB, id, store.ItemUpdate{
		TagCode:   req.TagCode,
		CostValue: req.CostValue,
		ListValue: req.ListValue,
		PartnerID: req.PartnerID,
		BrandID:   req.BrandID,
		SizeID:    req.SizeID,
		Notes:     req.Notes,
		EnteredAt: req.EnteredAt,
	})
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, viewItem(item))
}

// Delete handles DELETE /api/items/{id}. Items with a sale cannot be deleted.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if err := store.DeleteItem(r.Context(), h.DB, id); err != nil {
		jsonError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Int64("item_id", id).Msg("item deleted")
	jsonResponse(w, r, http.StatusOK, map[string]string{"message": "item deleted"})
}

// CanDelete handles GET /api/items/{id}/can-delete.
func (h *ItemsHandler) CanDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}
	ok, err := store.CanDeleteItem(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, map[string]bool{"can_delete": ok})
}

// UploadPhoto handles POST /api/items/{id}/photos.
func (h *ItemsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, r, apperr.Newf(apperr.KindValidation, "photo larger than %d bytes", h.MaxUploadBytes))
			return
		}
		jsonError(w, r, apperr.Validation("invalid multipart form"))
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		jsonError(w, r, apperr.Validation("photo file required"))
		return
	}
	defer file.Close()

	photo, err := h.Photos.Process(file)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	stored, err := store.AddItemPhoto(r.Context(), h.DB, id, photo.Data, photo.MIME)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	uri := model.PhotoURI(id, stored.ID)
	zerolog.Ctx(r.Context()).Info().Int64("item_id", id).Int64("photo_id", stored.ID).Msg("photo uploaded")
	jsonResponse(w, r, http.StatusCreated, map[string]any{"id": stored.ID, "uri": uri})
}

// GetPhoto handles GET /api/items/{id}/photos/{photoID}.
func (h *ItemsHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}
	photoID, err := pathID(r, "photoID")
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if _, err := h.loadItem(r, id); err != nil {
		jsonError(w, r, err)
		return
	}

	photo, err := store.GetItemPhoto(r.Context(), h.DB, id, photoID)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if photo == nil {
		jsonError(w, r, apperr.NotFound("photo not found"))
		return
	}

	w.Header().Set("Content-Type", photo.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(photo.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(photo.Data)
}

// DeletePhoto handles DELETE /api/items/{id}/photos/{photoID}.
func (h *ItemsHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, r, err)
		return
	}
	photoID, err := pathID(r, "photoID")
	if err != nil {
		jsonError(w, r, err)
		return
	}

	if err := store.DeleteItemPhoto(r.Context(), h.DB, id, photoID); err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, map[string]string{"message": "photo deleted"})
}
