package models

import (
	"time"
)

// StockPool represents fungible bulk stock keyed by (category, location,
// item name). Invariant: 0 <= available_quantity <= total_quantity, and
// total - available equals the count of active assignments drawn from the
// pool.
type StockPool struct {
	ID                int64     `json:"id"`
	OrgID             int64     `json:"org_id"`
	CategoryID        int64     `json:"category_id"`
	Location          string    `json:"location"`
	ItemName          string    `json:"item_name"`
	TotalQuantity     int       `json:"total_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CreateStockPoolRequest represents the request body for creating a pool
type CreateStockPoolRequest struct {
	CategoryID    int64  `json:"category_id" validate:"required"`
	Location      string `json:"location" validate:"required"`
	ItemName      string `json:"item_name" validate:"required"`
	TotalQuantity int    `json:"total_quantity" validate:"required,min=0"`
}

// UpdateStockPoolRequest represents the request body for adjusting a pool.
// TotalQuantity adjustments restock or shrink the pool; the available
// counter moves by the same delta and may never cross its bounds.
type UpdateStockPoolRequest struct {
	Location      *string `json:"location,omitempty"`
	ItemName      *string `json:"item_name,omitempty"`
	TotalQuantity *int    `json:"total_quantity,omitempty"`
}
