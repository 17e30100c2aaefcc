package models

import (
	"time"
)

// Tracking types determine which inventory representation a category uses.
const (
	TrackingSerialized = "serialized"
	TrackingBulk       = "bulk"
)

// AssetCategory represents a named grouping of assets. Categories are
// soft-deleted (is_active = false) because historical requests keep
// referencing them.
type AssetCategory struct {
	ID           int64     `json:"id"`
	OrgID        int64     `json:"org_id"`
	Name         string    `json:"name"`
	TrackingType string    `json:"tracking_type"`
	Description  *string   `json:"description,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateCategoryRequest represents the request body for creating a category
type CreateCategoryRequest struct {
	Name         string  `json:"name" validate:"required"`
	TrackingType string  `json:"tracking_type" validate:"required"`
	Description  *string `json:"description,omitempty"`
}

// UpdateCategoryRequest represents the request body for updating a category
type UpdateCategoryRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// IsValidTrackingType checks if a tracking type is one of the two inventory models
func IsValidTrackingType(t string) bool {
	return t == TrackingSerialized || t == TrackingBulk
}
