package internal

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"opsdesk-assets-api/internal/auth"
	"opsdesk-assets-api/internal/models"

	"github.com/go-chi/chi/v5"
)

// listAssignments lists the caller's assignments (their currently and
// previously held equipment); org_admins may pass all=true for the
// organization-wide register.
func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
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
		// no assignee filter
	} else {
		clauses = append(clauses, fmt.Sprintf("assignee_id = $%d", arg))
		args = append(args, userID)
		arg++
	}

	// active=true narrows to equipment currently held
	if r.URL.Query().Get("active") == "true" {
		clauses = append(clauses, "is_active = true")
	}

	whereClause := " WHERE " + strings.Join(clauses, " AND ")

	sqlStr := fmt.Sprintf(`
		SELECT %s,
		       COUNT(*) OVER() as total_count
		FROM asset_assignments%s`, assignmentColumns, whereClause)

	allowedSort := map[string]string{
		"id":          "id",
		"assigned_at": "assigned_at",
		"returned_at": "returned_at",
		"created_at":  "created_at",
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

	assignments := []interface{}{}
	var totalCount int
	for rows.Next() {
		var a models.AssetAssignment
		if err := scanAssignment(rows, &a, &totalCount); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		assignments = append(assignments, a)
	}

	sendListResponse(w, assignments, totalCount, params)
}

// getAssignment returns one assignment, visible to its assignee and to
// org_admins.
func (s *Server) getAssignment(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgIDFromContext(r.Context())
	userID := auth.UserIDFromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		sendValidationError(w, "invalid id")
		return
	}

	var a models.AssetAssignment
	q := dbFrom(r.Context(), s.DB)
	err = scanAssignment(q.QueryRowContext(r.Context(), fmt.Sprintf(`
		SELECT %s
		FROM asset_assignments WHERE id = $1 AND org_id = $2`, assignmentColumns), id, orgID), &a)
	if err == sql.ErrNoRows {
		sendNotFound(w)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if a.AssigneeID != userID && !auth.IsAdminFromContext(r.Context()) {
		sendNotFound(w)
		return
	}

	sendJSON(w, http.StatusOK, a)
}
