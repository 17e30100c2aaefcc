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

const assignmentColumns = `id, org_id, request_id, assignee_id, unit_id, stock_pool_id, assigned_by,
	       assigned_at, notes, is_active, returned_at, returned_condition, damage_notes, signoff,
	       received_by, created_at, updated_at`

func scanAssignment(row interface{ Scan(...any) error }, a *models.AssetAssignment, extra ...any) error {
	dest := []any{&a.ID, &a.OrgID, &a.RequestID, &a.AssigneeID, &a.UnitID, &a.StockPoolID, &a.AssignedBy,
		&a.AssignedAt, &a.Notes, &a.IsActive, &a.ReturnedAt, &a.ReturnedCondition, &a.DamageNotes,
		&a.Signoff, &a.ReceivedBy, &a.CreatedAt, &a.UpdatedAt}
	dest = append(dest, extra...)
	return row.Scan(dest...)
}

// fulfillRequest binds an approved request to a concrete inventory unit
// or stock decrement. The availability check, the inventory mutation,
// the assignment insert, and the request transition commit or roll back
// as one unit; the unit/pool row is locked so two fulfillers cannot
// both pass the availability check.
func (s *Server) fulfillRequest(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())
	actorID := auth.UserIDFromContext(r.Context())

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		sendValidationError(w, "invalid id")
		return
	}

	var in models.FulfillRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendValidationError(w, "invalid JSON")
		return
	}
	if (in.UnitID == nil) == (in.StockPoolID == nil) {
		sendValidationError(w, "exactly one of unit_id and stock_pool_id is required")
		return
	}

	assignedAt := time.Now()
	if in.AssignedAt != nil {
		assignedAt = *in.AssignedAt
	}

	tx, err := s.DB.BeginTx(r.Context(), nil)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	var req models.AssetRequest
	err = scanRequest(tx.QueryRowContext(r.Context(), fmt.Sprintf(`
		SELECT %s
		FROM asset_requests WHERE id = $1 AND org_id = $2
		FOR UPDATE`, requestColumns), id, orgID), &req)
	if err == sql.ErrNoRows {
		sendNotFound(w)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if !models.CanFulfill(req.CurrentStatus) {
		sendValidationError(w, "request is not approved for fulfillment")
		return
	}
	// Fulfillment belongs to the bound resource handler; an unbound
	// request may be picked up by any administrator.
	if req.ResourceAssigneeID != nil && *req.ResourceAssigneeID != actorID {
		sendAuthorizationError(w, "request is assigned to another resource handler")
		return
	}

	// The target kind must match the category's inventory model.
	var trackingType string
	err = tx.QueryRowContext(r.Context(), `
		SELECT tracking_type FROM asset_categories WHERE id = $1 AND org_id = $2`,
		req.CategoryID, orgID).Scan(&trackingType)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	var assignment models.AssetAssignment
	var kind string

	switch {
	case in.UnitID != nil:
		if trackingType != models.TrackingSerialized {
			sendValidationError(w, "request category tracks bulk stock; pass stock_pool_id")
			return
		}
		kind = models.TrackingSerialized

		var unitStatus string
		err = tx.QueryRowContext(r.Context(), `
			SELECT status FROM serialized_assets
			WHERE id = $1 AND org_id = $2 AND category_id = $3
			FOR UPDATE`, *in.UnitID, orgID, req.CategoryID).Scan(&unitStatus)
		if err == sql.ErrNoRows {
			sendNotFound(w)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if unitStatus != models.UnitAvailable {
			sendInventoryUnavailable(w, fmt.Sprintf("unit is %s, not available", unitStatus))
			return
		}

		err = scanAssignment(tx.QueryRowContext(r.Context(), fmt.Sprintf(`
			INSERT INTO asset_assignments (org_id, request_id, assignee_id, unit_id, assigned_by, assigned_at, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING %s`, assignmentColumns),
			orgID, req.ID, req.RequesterID, *in.UnitID, actorID, assignedAt, nullIfEmpty(in.Notes)), &assignment)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		if _, err = tx.ExecContext(r.Context(), `
			UPDATE serialized_assets SET status = $1, updated_at = now()
			WHERE id = $2 AND org_id = $3`, models.UnitIssued, *in.UnitID, orgID); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

	case in.StockPoolID != nil:
		if trackingType != models.TrackingBulk {
			sendValidationError(w, "request category tracks serialized units; pass unit_id")
			return
		}
		kind = models.TrackingBulk

		var available int
		err = tx.QueryRowContext(r.Context(), `
			SELECT available_quantity FROM stock_pools
			WHERE id = $1 AND org_id = $2 AND category_id = $3
			FOR UPDATE`, *in.StockPoolID, orgID, req.CategoryID).Scan(&available)
		if err == sql.ErrNoRows {
			sendNotFound(w)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if available < 1 {
			sendInventoryUnavailable(w, "stock pool is empty")
			return
		}

		err = scanAssignment(tx.QueryRowContext(r.Context(), fmt.Sprintf(`
			INSERT INTO asset_assignments (org_id, request_id, assignee_id, stock_pool_id, assigned_by, assigned_at, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING %s`, assignmentColumns),
			orgID, req.ID, req.RequesterID, *in.StockPoolID, actorID, assignedAt, nullIfEmpty(in.Notes)), &assignment)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		if _, err = tx.ExecContext(r.Context(), `
			UPDATE stock_pools SET available_quantity = available_quantity - 1, updated_at = now()
			WHERE id = $1 AND org_id = $2`, *in.StockPoolID, orgID); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
	}

	if _, err = tx.ExecContext(r.Context(), `
		UPDATE asset_requests SET current_status = $1, fulfilled_at = now(), updated_at = now()
		WHERE id = $2 AND org_id = $3`, models.StatusFulfilled, req.ID, orgID); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if err := tx.Commit(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	s.Metrics.CountFulfillment(kind)
	notify.Dispatch(r.Context(), s.Notifier, notify.Notification{
		OrgID:        req.OrgID,
		RecipientID:  req.RequesterID,
		Event:        notify.EventRequestFulfilled,
		Subject:      "Your asset request has been fulfilled",
		RequestID:    req.ID,
		AssignmentID: assignment.ID,
	})

	sendJSON(w, http.StatusCreated, assignment)
}

// markAwaitingProcurement parks an approved request until stock arrives.
// Inventory is not touched; administrators are notified to procure.
func (s *Server) markAwaitingProcurement(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		sendValidationError(w, "invalid id")
		return
	}

	q := dbFrom(r.Context(), s.DB)
	var req models.AssetRequest
	err = scanRequest(q.QueryRowContext(r.Context(), fmt.Sprintf(`
		UPDATE asset_requests SET current_status = $1, updated_at = now()
		WHERE id = $2 AND org_id = $3 AND current_status = $4
		RETURNING %s`, requestColumns),
		models.StatusAwaitingProcurement, id, orgID, models.StatusApproved), &req)
	if err == sql.ErrNoRows {
		// Distinguish missing from wrong-state for a usable error.
		var exists bool
		if err2 := q.QueryRowContext(r.Context(), `
			SELECT EXISTS (SELECT 1 FROM asset_requests WHERE id = $1 AND org_id = $2)`, id, orgID).Scan(&exists); err2 == nil && exists {
			sendValidationError(w, "only approved requests can await procurement")
			return
		}
		sendNotFound(w)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	s.Metrics.CountRequestOutcome("awaiting_procurement")
	s.notifyAdmins(r.Context(), orgID, notify.Notification{
		OrgID:     orgID,
		Event:     notify.EventAwaitingStock,
		Subject:   "An approved request is waiting on procurement",
		RequestID: req.ID,
	})

	sendJSON(w, http.StatusOK, map[string]string{"status": req.CurrentStatus})
}
