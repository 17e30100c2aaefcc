package models

import (
	"time"
)

// Serialized unit statuses. A new assignment may only be created from
// UnitAvailable; UnitIssued flips to UnitInUse when the assignee
// acknowledges receipt.
const (
	UnitAvailable        = "available"
	UnitIssued           = "issued"
	UnitInUse            = "in_use"
	UnitUnderRepair      = "under_repair"
	UnitAwaitingDisposal = "awaiting_disposal"
	UnitRetired          = "retired"
	UnitLost             = "lost"
)

// Unit conditions
const (
	ConditionNew     = "new"
	ConditionGood    = "good"
	ConditionFair    = "fair"
	ConditionPoor    = "poor"
	ConditionDamaged = "damaged"
)

// SerializedUnit represents one individually tracked physical unit.
// Asset tag and serial number are globally unique when present.
type SerializedUnit struct {
	ID            int64      `json:"id"`
	OrgID         int64      `json:"org_id"`
	CategoryID    int64      `json:"category_id"`
	AssetTag      *string    `json:"asset_tag,omitempty"`
	SerialNumber  *string    `json:"serial_number,omitempty"`
	Manufacturer  *string    `json:"manufacturer,omitempty"`
	Model         *string    `json:"model,omitempty"`
	PurchasedAt   *time.Time `json:"purchased_at,omitempty"`
	WarrantyUntil *time.Time `json:"warranty_until,omitempty"`
	Status        string     `json:"status"`
	Condition     string     `json:"condition"`
	Location      *string    `json:"location,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CreateUnitRequest represents the request body for registering a unit
type CreateUnitRequest struct {
	CategoryID    int64      `json:"category_id" validate:"required"`
	AssetTag      *string    `json:"asset_tag,omitempty"`
	SerialNumber  *string    `json:"serial_number,omitempty"`
	Manufacturer  *string    `json:"manufacturer,omitempty"`
	Model         *string    `json:"model,omitempty"`
	PurchasedAt   *time.Time `json:"purchased_at,omitempty"`
	WarrantyUntil *time.Time `json:"warranty_until,omitempty"`
	Condition     *string    `json:"condition,omitempty"`
	Location      *string    `json:"location,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

// UpdateUnitRequest represents the request body for updating a unit.
// Status changes through this endpoint are limited to non-assignment
// states; issuing and clearing go through fulfillment and returns.
type UpdateUnitRequest struct {
	AssetTag      *string    `json:"asset_tag,omitempty"`
	SerialNumber  *string    `json:"serial_number,omitempty"`
	Manufacturer  *string    `json:"manufacturer,omitempty"`
	Model         *string    `json:"model,omitempty"`
	PurchasedAt   *time.Time `json:"purchased_at,omitempty"`
	WarrantyUntil *time.Time `json:"warranty_until,omitempty"`
	Status        *string    `json:"status,omitempty"`
	Condition     *string    `json:"condition,omitempty"`
	Location      *string    `json:"location,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

// ValidUnitStatuses lists every serialized unit status
var ValidUnitStatuses = []string{
	UnitAvailable,
	UnitIssued,
	UnitInUse,
	UnitUnderRepair,
	UnitAwaitingDisposal,
	UnitRetired,
	UnitLost,
}

// ValidConditions lists every unit condition
var ValidConditions = []string{
	ConditionNew,
	ConditionGood,
	ConditionFair,
	ConditionPoor,
	ConditionDamaged,
}

// IsValidUnitStatus checks if a status is valid
func IsValidUnitStatus(s string) bool {
	for _, v := range ValidUnitStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsValidCondition checks if a condition is valid
func IsValidCondition(c string) bool {
	for _, v := range ValidConditions {
		if c == v {
			return true
		}
	}
	return false
}

// IsAssigned reports whether the unit status implies an active holder
func IsAssigned(status string) bool {
	return status == UnitIssued || status == UnitInUse
}
