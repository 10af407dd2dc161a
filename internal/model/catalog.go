package model

// Brand is reference data for items.
type Brand struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Active    bool   `db:"active" json:"active"`
	ItemCount int    `db:"item_count" json:"item_count"`
}

// Size is reference data for items, listed by SortOrder.
type Size struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	SortOrder int    `db:"sort_order" json:"sort_order"`
	Active    bool   `db:"active" json:"active"`
	ItemCount int    `db:"item_count" json:"item_count"`
}
