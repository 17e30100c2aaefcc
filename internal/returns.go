package internal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"opsdesk-assets-api/internal/auth"
	"opsdesk-assets-api/internal/models"
	"opsdesk-assets-api/internal/notify"

	"github.com/go-chi/chi/v5"
)

// processReturn terminates an active assignment: return metadata on the
// assignment, the condition assessment on the unit (or the counter
// increment on the pool), all in one transaction.
func (s *Server) processReturn(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())
	receiverID := auth.UserIDFromContext(r.Context())

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		sendValidationError(w, "invalid id")
		return
	}

	var in models.ProcessReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendValidationError(w, "invalid JSON")
		return
	}
	if !models.IsValidCondition(in.Condition) {
		sendValidationError(w, "invalid condition")
		return
	}
	if !models.IsValidSignoff(in.Signoff) {
		sendValidationError(w, "invalid signoff outcome")
		return
	}

	returnedAt := time.Now()
	if in.ReturnedAt != nil {
		returnedAt = *in.ReturnedAt
	}

	tx, err := s.DB.BeginTx(r.Context(), nil)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	var a models.AssetAssignment
	err = scanAssignment(tx.QueryRowContext(r.Context(), fmt.Sprintf(`
		SELECT %s
		FROM asset_assignments WHERE id = $1 AND org_id = $2 AND is_active = true
		FOR UPDATE`, assignmentColumns), id, orgID), &a)
	if err == sql.ErrNoRows {
		sendNotFound(w)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	switch {
	case a.UnitID != nil:
		// The returned unit takes the supplied status and the assessed
		// condition. Default: back to available for reissue.
		newStatus := models.UnitAvailable
		if in.NewUnitStatus != nil {
			if !models.IsValidUnitStatus(*in.NewUnitStatus) || models.IsAssigned(*in.NewUnitStatus) {
				sendValidationError(w, "invalid new_unit_status")
				return
			}
			newStatus = *in.NewUnitStatus
		}

		res, err := tx.ExecContext(r.Context(), `
			UPDATE serialized_assets SET status = $1, condition = $2, updated_at = now()
			WHERE id = $3 AND org_id = $4`, newStatus, in.Condition, *a.UnitID, orgID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		// Should not happen: the assignment owns its unit reference.
		if n, _ := res.RowsAffected(); n == 0 {
			sendError(w, "assigned unit no longer exists", codeAssociatedUnitMiss, http.StatusInternalServerError)
			return
		}

	case a.StockPoolID != nil:
		res, err := tx.ExecContext(r.Context(), `
			UPDATE stock_pools SET available_quantity = available_quantity + 1, updated_at = now()
			WHERE id = $1 AND org_id = $2 AND available_quantity < total_quantity`, *a.StockPoolID, orgID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			// Either the pool vanished or the counter is already at its
			// ceiling; both mean the books no longer balance.
			var exists bool
			if err2 := tx.QueryRowContext(r.Context(), `
				SELECT EXISTS (SELECT 1 FROM stock_pools WHERE id = $1 AND org_id = $2)`, *a.StockPoolID, orgID).Scan(&exists); err2 == nil && !exists {
				sendError(w, "assigned stock pool no longer exists", codeAssociatedUnitMiss, http.StatusInternalServerError)
				return
			}
			sendInvariantViolation(w)
			return
		}

	default:
		// The exclusivity CHECK makes this unreachable.
		sendInvariantViolation(w)
		return
	}

	err = scanAssignment(tx.QueryRowContext(r.Context(), fmt.Sprintf(`
		UPDATE asset_assignments
		SET is_active = false, returned_at = $1, returned_condition = $2, damage_notes = $3,
		    signoff = $4, received_by = $5, updated_at = now()
		WHERE id = $6 AND org_id = $7
		RETURNING %s`, assignmentColumns),
		returnedAt, in.Condition, nullIfEmpty(in.DamageNotes), in.Signoff, receiverID, id, orgID), &a)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if err := tx.Commit(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	s.Metrics.CountReturn()
	notify.Dispatch(r.Context(), s.Notifier, notify.Notification{
		OrgID:        a.OrgID,
		RecipientID:  a.AssigneeID,
		Event:        notify.EventAssignmentCleared,
		Subject:      "Your asset return has been processed",
		AssignmentID: a.ID,
	})

	sendJSON(w, http.StatusOK, a)
}

// acknowledgeReceipt lets the assignee confirm a serialized unit is in
// hand, flipping it from issued to in_use.
func (s *Server) acknowledgeReceipt(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())
	userID := auth.UserIDFromContext(r.Context())

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		sendValidationError(w, "invalid id")
		return
	}

	tx, err := s.DB.BeginTx(r.Context(), nil)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	var a models.AssetAssignment
	err = scanAssignment(tx.QueryRowContext(r.Context(), fmt.Sprintf(`
		SELECT %s
		FROM asset_assignments WHERE id = $1 AND org_id = $2 AND is_active = true
		FOR UPDATE`, assignmentColumns), id, orgID), &a)
	if err == sql.ErrNoRows {
		sendNotFound(w)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if a.AssigneeID != userID {
		sendAuthorizationError(w, "only the assignee can acknowledge receipt")
		return
	}
	if a.UnitID == nil {
		sendValidationError(w, "bulk assignments do not require acknowledgement")
		return
	}

	res, err := tx.ExecContext(r.Context(), `
		UPDATE serialized_assets SET status = $1, updated_at = now()
		WHERE id = $2 AND org_id = $3 AND status = $4`,
		models.UnitInUse, *a.UnitID, orgID, models.UnitIssued)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		sendValidationError(w, "unit is not awaiting acknowledgement")
		return
	}

	if err := tx.Commit(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusOK, map[string]string{"status": models.UnitInUse})
}
