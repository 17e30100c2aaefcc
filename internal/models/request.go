package models

import (
	"time"
)

// Request lifecycle statuses. The pending stages advance through the
// approval router only; approved/awaiting_procurement are the only states
// fulfillment may proceed from; rejected and fulfilled are terminal.
const (
	StatusPendingManagerApproval   = "pending_manager_approval"
	StatusPendingSecondaryApproval = "pending_secondary_approval"
	StatusPendingAdminApproval     = "pending_admin_approval"
	StatusApproved                 = "approved"
	StatusAwaitingProcurement      = "awaiting_procurement"
	StatusFulfilled                = "fulfilled"
	StatusRejected                 = "rejected"
)

// Request types
const (
	RequestTypeNew         = "new"
	RequestTypeReplacement = "replacement"
	RequestTypeUpgrade     = "upgrade"
	RequestTypeTemporary   = "temporary"
)

// Urgency levels
const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

// AssetRequest represents one employee's equipment request together with
// its approval-chain snapshot. The chain is copied from the directory at
// submission time and never re-resolved.
type AssetRequest struct {
	ID                  int64      `json:"id"`
	OrgID               int64      `json:"org_id"`
	RequesterID         int64      `json:"requester_id"`
	CategoryID          int64      `json:"category_id"`
	RequestType         string     `json:"request_type"`
	Justification       string     `json:"justification"`
	Urgency             string     `json:"urgency"`
	Location            *string    `json:"location,omitempty"`
	DocumentRef         *string    `json:"document_ref,omitempty"`
	CurrentStatus       string     `json:"current_status"`
	PrimaryApproverID   *int64     `json:"primary_approver_id,omitempty"`
	SecondaryApproverID *int64     `json:"secondary_approver_id,omitempty"`
	FinalApproverID     *int64     `json:"final_approver_id,omitempty"`
	ResourceAssigneeID  *int64     `json:"resource_assignee_id,omitempty"`
	RejectionReason     *string    `json:"rejection_reason,omitempty"`
	ManagerApprovedAt   *time.Time `json:"manager_approved_at,omitempty"`
	SecondaryApprovedAt *time.Time `json:"secondary_approved_at,omitempty"`
	AdminApprovedAt     *time.Time `json:"admin_approved_at,omitempty"`
	FulfilledAt         *time.Time `json:"fulfilled_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// SubmitRequestRequest represents the request body for submitting an
// asset request
type SubmitRequestRequest struct {
	CategoryID    int64   `json:"category_id" validate:"required"`
	RequestType   string  `json:"request_type" validate:"required"`
	Justification string  `json:"justification" validate:"required"`
	Urgency       string  `json:"urgency,omitempty"`
	Location      *string `json:"location,omitempty"`
	DocumentRef   *string `json:"document_ref,omitempty"`
}

// RejectRequestRequest carries the mandatory rejection reason
type RejectRequestRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ValidRequestTypes lists the accepted request types
var ValidRequestTypes = []string{
	RequestTypeNew,
	RequestTypeReplacement,
	RequestTypeUpgrade,
	RequestTypeTemporary,
}

// ValidUrgencies lists the accepted urgency levels
var ValidUrgencies = []string{
	UrgencyLow,
	UrgencyMedium,
	UrgencyHigh,
	UrgencyCritical,
}

// IsValidRequestType checks if a request type is valid
func IsValidRequestType(t string) bool {
	for _, v := range ValidRequestTypes {
		if t == v {
			return true
		}
	}
	return false
}

// IsValidUrgency checks if an urgency level is valid
func IsValidUrgency(u string) bool {
	for _, v := range ValidUrgencies {
		if u == v {
			return true
		}
	}
	return false
}

// IsPendingStatus reports whether a status is one of the pending approval
// stages
func IsPendingStatus(s string) bool {
	return s == StatusPendingManagerApproval ||
		s == StatusPendingSecondaryApproval ||
		s == StatusPendingAdminApproval
}

// IsTerminalStatus reports whether a request is immutable
func IsTerminalStatus(s string) bool {
	return s == StatusRejected || s == StatusFulfilled
}

// CanFulfill reports whether fulfillment may proceed from a status
func CanFulfill(s string) bool {
	return s == StatusApproved || s == StatusAwaitingProcurement
}
