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

	"github.com/erazemk/consigna/internal/apperr"
	"github.com/erazemk/consigna/internal/db"
	"github.com/erazemk/consigna/internal/model"
)

const itemSelect = `SELECT i.id, i.tag_code, i.cost_value, i.list_value, i.partner_id, i.brand_id, i.size_id,
        i.status, i.notes, i.entered_at, i.created_at, i.updated_at,
        u.name AS partner_name, b.name AS brand_name, s.name AS size_name
 FROM items i
 JOIN partners p ON p.id = i.partner_id
 JOIN users u ON u.id = p.user_id
 JOIN brands b ON b.id = i.brand_id
 JOIN sizes s ON s.id = i.size_id`

// NewItem holds the fields of an item being entered into consignment.
// Items always start available.
type NewItem struct {
	TagCode   string
	CostValue decimal.Decimal
	ListValue decimal.Decimal
	PartnerID int64
	BrandID   int64
	SizeID    int64
	Notes     string
	EnteredAt time.Time
}

// ItemUpdate holds optional item changes. Status is not updatable here;
// it only moves through settlement and reversal.
type ItemUpdate struct {
	TagCode   *string
	CostValue *decimal.Decimal
	ListValue *decimal.Decimal
	PartnerID *int64
	BrandID   *int64
	SizeID    *int64
	Notes     *string
	EnteredAt *time.Time
}

// ItemFilter narrows ListItems. Zero values mean no filter.
type ItemFilter struct {
	Status    model.ItemStatus
	PartnerID *int64
	BrandID   *int64
	SizeID    *int64
	Search    string
}

func validateItemValues(cost, list decimal.Decimal) error {
	if cost.IsNegative() || list.IsNegative() {
		return apperr.Validation("values must not be negative")
	}
	return nil
}

func itemWriteError(err error, action string) error {
	if isUniqueViolation(err) {
		return apperr.Validation("tag code already in use")
	}
	if isForeignKeyViolation(err) {
		return apperr.Validation("unknown partner, brand or size")
	}
	return fmt.Errorf("%s item: %w", action, err)
}

// CreateItem enters a new item as available.
func CreateItem(ctx context.Context, q sqlx.ExtContext, in NewItem) (*model.Item, error) {
	if strings.TrimSpace(in.TagCode) == "" {
		return nil, apperr.Validation("tag code is required")
	}
	if err := validateItemValues(in.CostValue, in.ListValue); err != nil {
		return nil, err
	}
	if in.EnteredAt.IsZero() {
		in.EnteredAt = time.Now()
	}
	now := time.Now().UTC()

	result, err := q.ExecContext(ctx,
		`INSERT INTO items (tag_code, cost_value, list_value, partner_id, brand_id, size_id, status, notes,
		                    entered_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.TagCode, in.CostValue, in.ListValue, in.PartnerID, in.BrandID, in.SizeID,
		model.ItemStatusAvailable, in.Notes, in.EnteredAt.UTC(), now, now,
	)
	if err != nil {
		return nil, itemWriteError(err, "creating")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}
	return GetItem(ctx, q, id)
}

// GetItem returns an item by ID with its joined names and photo URIs.
func GetItem(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Item, error) {
	var item model.Item
	err := sqlx.GetContext(ctx, q, &item, itemSelect+` WHERE i.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	items := []model.Item{item}
	if err := attachPhotos(ctx, q, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// ListItems returns items matching the filter, most recently entered first.
func ListItems(ctx context.Context, q sqlx.QueryerContext, f ItemFilter) ([]model.Item, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "i.status = ?")
		args = append(args, f.Status)
	}
	if f.PartnerID != nil {
		where = append(where, "i.partner_id = ?")
		args = append(args, *f.PartnerID)
	}
	if f.BrandID != nil {
		where = append(where, "i.brand_id = ?")
		args = append(args, *f.BrandID)
	}
	if f.SizeID != nil {
		where = append(where, "i.size_id = ?")
		args = append(args, *f.SizeID)
	}
	if f.Search != "" {
		where = append(where, "(i.tag_code LIKE ? OR i.notes LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}

	query := itemSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY i.entered_at DESC, i.id DESC"

	items := []model.Item{}
	if err := sqlx.SelectContext(ctx, q, &items, query, args...); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	if err := attachPhotos(ctx, q, items); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateItem applies the non-nil fields of upd.
func UpdateItem(ctx context.Context, q sqlx.ExtContext, id int64, upd ItemUpdate) (*model.Item, error) {
	current, err := GetItem(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperr.NotFound("item not found")
	}

	if upd.TagCode != nil {
		if strings.TrimSpace(*upd.TagCode) == "" {
			return nil, apperr.Validation("tag code is required")
		}
		current.TagCode = *upd.TagCode
	}
	if upd.CostValue != nil {
		current.CostValue = *upd.CostValue
	}
	if upd.ListValue != nil {
		current.ListValue = *upd.ListValue
	}
	if upd.PartnerID != nil {
		current.PartnerID = *upd.PartnerID
	}
	if upd.BrandID != nil {
		current.BrandID = *upd.BrandID
	}
	if upd.SizeID != nil {
		current.SizeID = *upd.SizeID
	}
	if upd.Notes != nil {
		current.Notes = *upd.Notes
	}
	if upd.EnteredAt != nil {
		current.EnteredAt = *upd.EnteredAt
	}
	if err := validateItemValues(current.CostValue, current.ListValue); err != nil {
		return nil, err
	}

	_, err = q.ExecContext(ctx,
		`UPDATE items SET tag_code = ?, cost_value = ?, list_value = ?, partner_id = ?, brand_id = ?,
		                  size_id = ?, notes = ?, entered_at = ?, updated_at = ?
		 WHERE id = ?`,
		current.TagCode, current.CostValue, current.ListValue, current.PartnerID, current.BrandID,
		current.SizeID, current.Notes, current.EnteredAt.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, itemWriteError(err, "updating")
	}
	return GetItem(ctx, q, id)
}

// MarkItemSold moves an available item to sold. It is the first write of a
// settlement, so the conditional update also decides concurrent races.
func MarkItemSold(ctx context.Context, q sqlx.ExtContext, id int64) error {
	result, err := q.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		model.ItemStatusSold, time.Now().UTC(), id, model.ItemStatusAvailable,
	)
	if err != nil {
		return fmt.Errorf("marking item sold: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 1 {
		return nil
	}

	exists, err := itemExists(ctx, q, id)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.Newf(apperr.KindNotFound, "item %d not found", id)
	}
	return apperr.Newf(apperr.KindInvalidState, "item %d is already sold", id)
}

// MarkItemAvailable moves an item back to available after its sale is reversed.
func MarkItemAvailable(ctx context.Context, q sqlx.ExecerContext, id int64) error {
	result, err := q.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = ? WHERE id = ?`,
		model.ItemStatusAvailable, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking item available: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.KindNotFound, "item %d not found", id)
	}
	return nil
}

// CanDeleteItem reports whether no sale references the item.
func CanDeleteItem(ctx context.Context, q sqlx.QueryerContext, id int64) (bool, error) {
	exists, err := itemExists(ctx, q, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, apperr.Newf(apperr.KindNotFound, "item %d not found", id)
	}

	var sales int
	err = sqlx.GetContext(ctx, q, &sales, `SELECT COUNT(*) FROM sales WHERE item_id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("counting item sales: %w", err)
	}
	return sales == 0, nil
}

// DeleteItem removes an item and its photos. Items with a sale are kept.
// The check and the delete share one transaction.
func DeleteItem(ctx context.Context, database *sqlx.DB, id int64) error {
	return db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		ok, err := CanDeleteItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("item has a sale and cannot be deleted")
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
		if isForeignKeyViolation(err) {
			return apperr.InvalidState("item has a sale and cannot be deleted")
		}
		if err != nil {
			return fmt.Errorf("deleting item: %w", err)
		}
		return nil
	})
}

func itemExists(ctx context.Context, q sqlx.QueryerContext, id int64) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("checking item: %w", err)
	}
	return n > 0, nil
}

// AddItemPhoto stores a processed photo for an item.
func AddItemPhoto(ctx context.Context, q sqlx.ExtContext, itemID int64, data []byte, mime string) (*model.ItemPhoto, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO item_photos (item_id, mime, data) VALUES (?, ?, ?)`,
		itemID, mime, data,
	)
	if isForeignKeyViolation(err) {
		return nil, apperr.NotFound("item not found")
	}
	if err != nil {
		return nil, fmt.Errorf("adding item photo: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting photo id: %w", err)
	}
	return &model.ItemPhoto{ID: id, ItemID: itemID, MIME: mime, Data: data}, nil
}

// GetItemPhoto returns a photo belonging to an item.
func GetItemPhoto(ctx context.Context, q sqlx.QueryerContext, itemID, photoID int64) (*model.ItemPhoto, error) {
	var photo model.ItemPhoto
	err := sqlx.GetContext(ctx, q, &photo,
		`SELECT id, item_id, mime, data FROM item_photos WHERE id = ? AND item_id = ?`,
		photoID, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item photo: %w", err)
	}
	return &photo, nil
}

// DeleteItemPhoto removes a photo from an item.
func DeleteItemPhoto(ctx context.Context, q sqlx.ExecerContext, itemID, photoID int64) error {
	result, err := q.ExecContext(ctx,
		`DELETE FROM item_photos WHERE id = ? AND item_id = ?`, photoID, itemID)
	if err != nil {
		return fmt.Errorf("deleting item photo: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("photo not found")
	}
	return nil
}

// attachPhotos fills Photos on each item with the URIs of its photos.
func attachPhotos(ctx context.Context, q sqlx.QueryerContext, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]int64, len(items))
	byID := make(map[int64]*model.Item, len(items))
	for i := range items {
		ids[i] = items[i].ID
		items[i].Photos = []string{}
		byID[items[i].ID] = &items[i]
	}

	query, args, err := sqlx.In(
		`SELECT id, item_id FROM item_photos WHERE item_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("building photo query: %w", err)
	}

	var refs []struct {
		ID     int64 `db:"id"`
		ItemID int64 `db:"item_id"`
	}
	if err := sqlx.SelectContext(ctx, q, &refs, sqlx.Rebind(sqlx.QUESTION, query), args...); err != nil {
		return fmt.Errorf("listing item photos: %w", err)
	}
	for _, r := range refs {
		item := byID[r.ItemID]
		item.Photos = append(item.Photos, model.PhotoURI(r.ItemID, r.ID))
	}
	return nil
}
