package models

import (
	"time"
)

// Return sign-off outcomes
const (
	SignoffCleared             = "cleared"
	SignoffClearedWithIssues   = "cleared_with_issues"
	SignoffPendingCompensation = "pending_compensation"
)

// AssetAssignment binds a fulfilled request to exactly one inventory
// reference: a serialized unit or a stock pool, never both and never
// neither. At most one active assignment may reference a given unit.
type AssetAssignment struct {
	ID                int64      `json:"id"`
	OrgID             int64      `json:"org_id"`
	RequestID         int64      `json:"request_id"`
	AssigneeID        int64      `json:"assignee_id"`
	UnitID            *int64     `json:"unit_id,omitempty"`
	StockPoolID       *int64     `json:"stock_pool_id,omitempty"`
	AssignedBy        int64      `json:"assigned_by"`
	AssignedAt        time.Time  `json:"assigned_at"`
	Notes             *string    `json:"notes,omitempty"`
	IsActive          bool       `json:"is_active"`
	ReturnedAt        *time.Time `json:"returned_at,omitempty"`
	ReturnedCondition *string    `json:"returned_condition,omitempty"`
	DamageNotes       *string    `json:"damage_notes,omitempty"`
	Signoff           *string    `json:"signoff,omitempty"`
	ReceivedBy        *int64     `json:"received_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// FulfillRequestRequest represents the request body for fulfilling an
// approved request. Exactly one of UnitID and StockPoolID must be set,
// matching the category's tracking type.
type FulfillRequestRequest struct {
	UnitID      *int64     `json:"unit_id,omitempty"`
	StockPoolID *int64     `json:"stock_pool_id,omitempty"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
}

// ProcessReturnRequest represents the request body for clearing an
// active assignment
type ProcessReturnRequest struct {
	ReturnedAt    *time.Time `json:"returned_at,omitempty"`
	Condition     string     `json:"condition" validate:"required"`
	NewUnitStatus *string    `json:"new_unit_status,omitempty"`
	Signoff       string     `json:"signoff" validate:"required"`
	DamageNotes   *string    `json:"damage_notes,omitempty"`
}

// ValidSignoffs lists the accepted return sign-off outcomes
var ValidSignoffs = []string{
	SignoffCleared,
	SignoffClearedWithIssues,
	SignoffPendingCompensation,
}

// IsValidSignoff checks if a sign-off outcome is valid
func IsValidSignoff(s string) bool {
	for _, v := range ValidSignoffs {
		if s == v {
			return true
		}
	}
	return false
}
