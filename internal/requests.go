package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"opsdesk-assets-api/internal/approval"
	"opsdesk-assets-api/internal/auth"
	"opsdesk-assets-api/internal/models"
	"opsdesk-assets-api/internal/notify"

	"github.com/go-chi/chi/v5"
)

const requestColumns = `id, org_id, requester_id, category_id, request_type, justification, urgency,
	       location, document_ref, current_status, primary_approver_id, secondary_approver_id,
	       final_approver_id, resource_assignee_id, rejection_reason, manager_approved_at,
	       secondary_approved_at, admin_approved_at, fulfilled_at, created_at, updated_at`

func scanRequest(row interface{ Scan(...any) error }, req *models.AssetRequest, extra ...any) error {
	dest := []any{&req.ID, &req.OrgID, &req.RequesterID, &req.CategoryID, &req.RequestType, &req.Justification,
		&req.Urgency, &req.Location, &req.DocumentRef, &req.CurrentStatus, &req.PrimaryApproverID,
		&req.SecondaryApproverID, &req.FinalApproverID, &req.ResourceAssigneeID, &req.RejectionReason,
		&req.ManagerApprovedAt, &req.SecondaryApprovedAt, &req.AdminApprovedAt, &req.FulfilledAt,
		&req.CreatedAt, &req.UpdatedAt}
	dest = append(dest, extra...)
	return row.Scan(dest...)
}

// chainOf rebuilds the approval chain from the request's snapshot
func chainOf(req *models.AssetRequest) approval.Chain {
	return approval.Chain{
		PrimaryApproverID:   req.PrimaryApproverID,
		SecondaryApproverID: req.SecondaryApproverID,
	}
}

// actorFrom builds the acting approver from the request context
func actorFrom(ctx context.Context) approval.Actor {
	return approval.Actor{
		UserID:  auth.UserIDFromContext(ctx),
		IsAdmin: auth.IsAdminFromContext(ctx),
	}
}

// submitRequest handles a new asset request. The approver chain is
// resolved from the directory once, here, and snapshotted onto the row;
// later org changes do not move in-flight requests.
func (s *Server) submitRequest(w http.ResponseWriter, r *http.Request) {
	var in models.SubmitRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendValidationError(w, "invalid JSON")
		return
	}

	in.Justification = strings.TrimSpace(in.Justification)
	if in.CategoryID == 0 || in.Justification == "" {
		sendValidationError(w, "category_id and justification are required")
		return
	}
	if !models.IsValidRequestType(in.RequestType) {
		sendValidationError(w, "invalid request_type")
		return
	}
	if in.Urgency == "" {
		in.Urgency = models.UrgencyMedium
	}
	if !models.IsValidUrgency(in.Urgency) {
		sendValidationError(w, "invalid urgency")
		return
	}

	orgID := auth.OrgIDFromContext(r.Context())
	requesterID := auth.UserIDFromContext(r.Context())

	q := dbFrom(r.Context(), s.DB)

	// Requests may only target active categories.
	var exists bool
	err := q.QueryRowContext(r.Context(), `
		SELECT EXISTS (SELECT 1 FROM asset_categories WHERE id = $1 AND org_id = $2 AND is_active = true)`,
		in.CategoryID, orgID).Scan(&exists)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if !exists {
		sendValidationError(w, "category not found or inactive")
		return
	}

	approvers, err := s.Directory.ResolveApprovers(r.Context(), orgID, requesterID)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	chain := approval.Chain{
		PrimaryApproverID:   approvers.PrimaryManagerID,
		SecondaryApproverID: approvers.SecondaryManagerID,
	}
	initial := approval.InitialStage(chain)

	var out models.AssetRequest
	err = scanRequest(q.QueryRowContext(r.Context(), fmt.Sprintf(`
		INSERT INTO asset_requests (org_id, requester_id, category_id, request_type, justification, urgency,
		                            location, document_ref, current_status, primary_approver_id, secondary_approver_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING %s`, requestColumns),
		orgID, requesterID, in.CategoryID, in.RequestType, in.Justification, in.Urgency,
		nullIfEmpty(in.Location), nullIfEmpty(in.DocumentRef), string(initial),
		approvers.PrimaryManagerID, approvers.SecondaryManagerID), &out)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	s.Metrics.CountRequestOutcome("submitted")
	s.notifyStage(r.Context(), &out)

	sendJSON(w, http.StatusCreated, out)
}

// listRequests lists the caller's own requests; org_admins may pass
// all=true to see the whole organization.
func (s *Server) listRequests(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)
	orgID := auth.OrgIDFromContext(r.Context())
	userID := auth.UserIDFromContext(r.Context())

	clauses := []string{}
	args := []interface{}{}
	arg := 1

	clauses = append(clauses, fmt.Sprintf("org_id = $%d", arg))
	args = append(args, orgID)
	arg++

	if r.URL.Query().Get("all") == "true" && auth.IsAdminFromContext(r.Context()) {
		// no requester filter
	} else {
		clauses = append(clauses, fmt.Sprintf("requester_id = $%d", arg))
		args = append(args, userID)
		arg++
	}

	// optional status filter
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		clauses = append(clauses, fmt.Sprintf("current_status = $%d", arg))
		args = append(args, status)
		arg++
	}

	whereClause := " WHERE " + strings.Join(clauses, " AND ")

	sqlStr := fmt.Sprintf(`
		SELECT %s,
		       COUNT(*) OVER() as total_count
		FROM asset_requests%s`, requestColumns, whereClause)

	allowedSort := map[string]string{
		"id":         "id",
		"urgency":    "urgency",
		"status":     "current_status",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	sqlStr += buildOrderBy(params.sort, allowedSort)
	sqlStr += fmt.Sprintf(" LIMIT %d OFFSET %d", params.limit, params.offset)

	q := dbFrom(r.Context(), s.DB)
	rows, err := q.QueryContext(r.Context(), sqlStr, args...)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	requests := []interface{}{}
	var totalCount int
	for rows.Next() {
		var req models.AssetRequest
		if err := scanRequest(rows, &req, &totalCount); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		requests = append(requests, req)
	}

	sendListResponse(w, requests, totalCount, params)
}

// getRequest returns one request. Visible to the requester, anyone in
// its approval chain, and org_admins.
func (s *Server) getRequest(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgIDFromContext(r.Context())
	userID := auth.UserIDFromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		sendValidationError(w, "invalid id")
		return
	}

	var req models.AssetRequest
	q := dbFrom(r.Context(), s.DB)
	err = scanRequest(q.QueryRowContext(r.Context(), fmt.Sprintf(`
		SELECT %s
		FROM asset_requests WHERE id = $1 AND org_id = $2`, requestColumns), id, orgID), &req)
	if err == sql.ErrNoRows {
		sendNotFound(w)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if !auth.IsAdminFromContext(r.Context()) &&
		req.RequesterID != userID &&
		!idMatches(req.PrimaryApproverID, userID) &&
		!idMatches(req.SecondaryApproverID, userID) {
		// Hide its existence rather than confirm it
		sendNotFound(w)
		return
	}

	sendJSON(w, http.StatusOK, req)
}

// listPendingApprovals returns the requests waiting on the caller:
// managerial stages where the caller is the snapshotted approver, and
// for org_admins every pending request (the administrator capability
// can act at any stage).
func (s *Server) listPendingApprovals(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)
	orgID := auth.OrgIDFromContext(r.Context())
	userID := auth.UserIDFromContext(r.Context())

	var whereClause string
	args := []interface{}{orgID}
	if auth.IsAdminFromContext(r.Context()) {
		whereClause = ` WHERE org_id = $1 AND current_status IN
			('pending_manager_approval', 'pending_secondary_approval', 'pending_admin_approval')`
	} else {
		whereClause = ` WHERE org_id = $1 AND (
			(current_status = 'pending_manager_approval' AND primary_approver_id = $2) OR
			(current_status = 'pending_secondary_approval' AND secondary_approver_id = $2))`
		args = append(args, userID)
	}

	sqlStr := fmt.Sprintf(`
		SELECT %s,
		       COUNT(*) OVER() as total_count
		FROM asset_requests%s`, requestColumns, whereClause)
	sqlStr += " ORDER BY created_at ASC"
	sqlStr += fmt.Sprintf(" LIMIT %d OFFSET %d", params.limit, params.offset)

	q := dbFrom(r.Context(), s.DB)
	rows, err := q.QueryContext(r.Context(), sqlStr, args...)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	requests := []interface{}{}
	var totalCount int
	for rows.Next() {
		var req models.AssetRequest
		if err := scanRequest(rows, &req, &totalCount); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		requests = append(requests, req)
	}

	sendListResponse(w, requests, totalCount, params)
}

// approveRequest advances a pending request one stage on behalf of the
// caller. The row is locked for the whole decision so two approvers
// cannot race the same stage.
func (s *Server) approveRequest(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())
	actor := actorFrom(r.Context())

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

	prev := approval.Stage(req.CurrentStatus)
	next, err := approval.Approve(chainOf(&req), prev, actor)
	if err != nil {
		writeApprovalError(w, err)
		return
	}

	// Record the stage timestamp that was just consumed. An admin
	// override consumes the admin decision regardless of the stage it
	// fired at.
	sets := []string{"current_status = $1", "updated_at = now()"}
	args := []interface{}{string(next)}
	if next == approval.StageApproved {
		// Bind the approving administrator as the resource handler for
		// fulfillment tracking. This does not reserve inventory.
		sets = append(sets, "admin_approved_at = now()",
			fmt.Sprintf("final_approver_id = $%d", len(args)+1),
			fmt.Sprintf("resource_assignee_id = $%d", len(args)+2))
		args = append(args, actor.UserID, actor.UserID)
	} else if prev == approval.StageManagerApproval {
		sets = append(sets, "manager_approved_at = now()")
	} else if prev == approval.StageSecondaryApproval {
		sets = append(sets, "secondary_approved_at = now()")
	}

	sqlStr := fmt.Sprintf(`
		UPDATE asset_requests SET %s
		WHERE id = $%d AND org_id = $%d
		RETURNING %s`, strings.Join(sets, ", "), len(args)+1, len(args)+2, requestColumns)
	args = append(args, id, orgID)

	err = scanRequest(tx.QueryRowContext(r.Context(), sqlStr, args...), &req)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if err := tx.Commit(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if next == approval.StageApproved {
		s.Metrics.CountRequestOutcome("approved")
	}
	s.notifyStage(r.Context(), &req)

	sendJSON(w, http.StatusOK, req)
}

// rejectRequest moves a pending request to its terminal rejected state
// with a mandatory reason.
func (s *Server) rejectRequest(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())
	actor := actorFrom(r.Context())

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		sendValidationError(w, "invalid id")
		return
	}

	var in models.RejectRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendValidationError(w, "invalid JSON")
		return
	}
	in.Reason = strings.TrimSpace(in.Reason)
	if in.Reason == "" {
		sendValidationError(w, "reason is required")
		return
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

	if err := approval.Reject(chainOf(&req), approval.Stage(req.CurrentStatus), actor); err != nil {
		writeApprovalError(w, err)
		return
	}

	err = scanRequest(tx.QueryRowContext(r.Context(), fmt.Sprintf(`
		UPDATE asset_requests
		SET current_status = $1, rejection_reason = $2, final_approver_id = $3, updated_at = now()
		WHERE id = $4 AND org_id = $5
		RETURNING %s`, requestColumns),
		models.StatusRejected, in.Reason, actor.UserID, id, orgID), &req)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if err := tx.Commit(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	s.Metrics.CountRequestOutcome("rejected")
	notify.Dispatch(r.Context(), s.Notifier, notify.Notification{
		OrgID:       req.OrgID,
		RecipientID: req.RequesterID,
		Event:       notify.EventRequestRejected,
		Subject:     "Your asset request was rejected",
		Body:        in.Reason,
		RequestID:   req.ID,
	})

	sendJSON(w, http.StatusOK, req)
}

// writeApprovalError maps approval router errors onto the error surface
func writeApprovalError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, approval.ErrNotAuthorized):
		sendAuthorizationError(w, "you are not the required approver for this stage")
	case errors.Is(err, approval.ErrNotPending):
		sendValidationError(w, "request is not in a pending stage")
	default:
		http.Error(w, err.Error(), 500)
	}
}

// notifyStage emits the single notification owed for the request's new
// stage: the next required approver for pending stages, the resource
// handler on approval. Always called after commit.
func (s *Server) notifyStage(ctx context.Context, req *models.AssetRequest) {
	switch req.CurrentStatus {
	case models.StatusPendingManagerApproval:
		if req.PrimaryApproverID != nil {
			notify.Dispatch(ctx, s.Notifier, notify.Notification{
				OrgID:       req.OrgID,
				RecipientID: *req.PrimaryApproverID,
				Event:       notify.EventApprovalRequired,
				Subject:     "An asset request needs your approval",
				RequestID:   req.ID,
			})
		}
	case models.StatusPendingSecondaryApproval:
		if req.SecondaryApproverID != nil {
			notify.Dispatch(ctx, s.Notifier, notify.Notification{
				OrgID:       req.OrgID,
				RecipientID: *req.SecondaryApproverID,
				Event:       notify.EventApprovalRequired,
				Subject:     "An asset request needs your approval",
				RequestID:   req.ID,
			})
		}
	case models.StatusPendingAdminApproval:
		s.notifyAdmins(ctx, req.OrgID, notify.Notification{
			OrgID:     req.OrgID,
			Event:     notify.EventApprovalRequired,
			Subject:   "An asset request awaits final approval",
			RequestID: req.ID,
		})
	case models.StatusApproved:
		if req.ResourceAssigneeID != nil {
			notify.Dispatch(ctx, s.Notifier, notify.Notification{
				OrgID:       req.OrgID,
				RecipientID: *req.ResourceAssigneeID,
				Event:       notify.EventRequestApproved,
				Subject:     "An approved asset request is ready for fulfillment",
				RequestID:   req.ID,
			})
		}
	}
}

// notifyAdmins fans one notification out to every active administrator
// in the organization. Lookup failures are swallowed like any other
// notification failure.
func (s *Server) notifyAdmins(ctx context.Context, orgID int64, n notify.Notification) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id FROM users
		WHERE org_id = $1 AND is_active = true AND 'org_admin' = ANY(roles)`, orgID)
	if err != nil {
		notify.Dispatch(ctx, s.Notifier, n) // recipient 0: undeliverable, but logged
		return
	}
	defer rows.Close()
	for rows.Next() {
		var adminID int64
		if err := rows.Scan(&adminID); err != nil {
			continue
		}
		n.RecipientID = adminID
		notify.Dispatch(ctx, s.Notifier, n)
	}
}

func idMatches(id *int64, userID int64) bool {
	return id != nil && *id == userID
}
