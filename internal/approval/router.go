// Package approval computes approval-chain stage transitions for asset
// requests. It is pure: no persistence, no clock. Callers snapshot the
// chain at submission time and feed it back on every decision.
package approval

import (
	"errors"

	"opsdesk-assets-api/internal/models"
)

// Stage is a closed enumeration over the request's approval states.
type Stage string

const (
	StageManagerApproval   Stage = models.StatusPendingManagerApproval
	StageSecondaryApproval Stage = models.StatusPendingSecondaryApproval
	StageAdminApproval     Stage = models.StatusPendingAdminApproval
	StageApproved          Stage = models.StatusApproved
	StageRejected          Stage = models.StatusRejected
)

// ErrNotAuthorized is returned when the acting user is not the required
// approver for the request's current stage.
var ErrNotAuthorized = errors.New("approval: user is not the required approver for this stage")

// ErrNotPending is returned when a decision is attempted on a request
// that is not in a pending stage.
var ErrNotPending = errors.New("approval: request is not in a pending stage")

// Chain is the approver snapshot copied onto the request at submission.
// Either manager may be absent.
type Chain struct {
	PrimaryApproverID   *int64
	SecondaryApproverID *int64
}

// Actor identifies who is acting on the request. IsAdmin reflects the
// administrator capability (org_admin role), not a per-request binding.
type Actor struct {
	UserID  int64
	IsAdmin bool
}

// HasSecondaryStage reports whether the chain includes a distinct
// secondary manager stage. A secondary equal to the primary collapses
// into a single managerial stage.
func (c Chain) HasSecondaryStage() bool {
	if c.SecondaryApproverID == nil {
		return false
	}
	if c.PrimaryApproverID != nil && *c.PrimaryApproverID == *c.SecondaryApproverID {
		return false
	}
	return true
}

// InitialStage returns the stage a freshly submitted request starts in.
// With no primary manager resolved the managerial stages are skipped
// entirely and the request opens at admin approval.
func InitialStage(chain Chain) Stage {
	if chain.PrimaryApproverID == nil {
		return StageAdminApproval
	}
	return StageManagerApproval
}

// Approve advances the request one stage on behalf of actor.
//
// An administrator approving at any pending stage short-circuits the
// remaining chain straight to StageApproved. This override is a
// deliberate business rule, not a fallback.
func Approve(chain Chain, current Stage, actor Actor) (Stage, error) {
	if !isPending(current) {
		return current, ErrNotPending
	}

	// Administrator override: final regardless of remaining stages.
	if actor.IsAdmin {
		return StageApproved, nil
	}

	switch current {
	case StageManagerApproval:
		if chain.PrimaryApproverID == nil || *chain.PrimaryApproverID != actor.UserID {
			return current, ErrNotAuthorized
		}
		if chain.HasSecondaryStage() {
			return StageSecondaryApproval, nil
		}
		return StageAdminApproval, nil

	case StageSecondaryApproval:
		if chain.SecondaryApproverID == nil || *chain.SecondaryApproverID != actor.UserID {
			return current, ErrNotAuthorized
		}
		return StageAdminApproval, nil

	case StageAdminApproval:
		// Only the administrator capability clears the final stage,
		// and that case returned above.
		return current, ErrNotAuthorized
	}

	return current, ErrNotPending
}

// Reject validates that actor may reject the request at its current
// stage. The stage's required approver may reject, and an administrator
// may reject at any pending stage.
func Reject(chain Chain, current Stage, actor Actor) error {
	if !isPending(current) {
		return ErrNotPending
	}
	if actor.IsAdmin {
		return nil
	}
	switch current {
	case StageManagerApproval:
		if chain.PrimaryApproverID != nil && *chain.PrimaryApproverID == actor.UserID {
			return nil
		}
	case StageSecondaryApproval:
		if chain.SecondaryApproverID != nil && *chain.SecondaryApproverID == actor.UserID {
			return nil
		}
	}
	return ErrNotAuthorized
}

// RequiredApprover returns the specific user required at the current
// stage, and whether the administrator capability satisfies the stage.
// The user id is nil for the admin stage (any administrator).
func RequiredApprover(chain Chain, current Stage) (userID *int64, adminOK bool) {
	switch current {
	case StageManagerApproval:
		return chain.PrimaryApproverID, true
	case StageSecondaryApproval:
		return chain.SecondaryApproverID, true
	case StageAdminApproval:
		return nil, true
	}
	return nil, false
}

func isPending(s Stage) bool {
	return s == StageManagerApproval || s == StageSecondaryApproval || s == StageAdminApproval
}
