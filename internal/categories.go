package internal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"opsdesk-assets-api/internal/auth"
	"opsdesk-assets-api/internal/models"

	"github.com/go-chi/chi/v5"
)

// listCategories handles category listing with filters and pagination
func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)
	orgID := auth.OrgIDFromContext(r.Context())

	clauses := []string{}
	args := []interface{}{}
	arg := 1

	clauses = append(clauses, fmt.Sprintf("org_id = $%d", arg))
	args = append(args, orgID)
	arg++

	// optional tracking type filter
	if tt := strings.TrimSpace(r.URL.Query().Get("tracking_type")); tt != "" {
		clauses = append(clauses, fmt.Sprintf("tracking_type = $%d", arg))
		args = append(args, tt)
		arg++
	}

	// by default only active categories are listed
	if r.URL.Query().Get("include_inactive") != "true" {
		clauses = append(clauses, "is_active = true")
	}

	// optional text search on name
	if params.q != "" {
		clauses = append(clauses, fmt.Sprintf("name ILIKE $%d", arg))
		args = append(args, "%"+params.q+"%")
		arg++
	}

	whereClause := " WHERE " + strings.Join(clauses, " AND ")

	sqlStr := fmt.Sprintf(`
		SELECT id, org_id, name, tracking_type, description, is_active, created_at, updated_at,
		       COUNT(*) OVER() as total_count
		FROM asset_categories%s`, whereClause)

	allowedSort := map[string]string{
		"id":         "id",
		"name":       "name",
		"created_at": "created_at",
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

	categories := []interface{}{}
	var totalCount int
	for rows.Next() {
		var c models.AssetCategory
		if err := rows.Scan(&c.ID, &c.OrgID, &c.Name, &c.TrackingType, &c.Description, &c.IsActive, &c.CreatedAt, &c.UpdatedAt, &totalCount); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		categories = append(categories, c)
	}

	sendListResponse(w, categories, totalCount, params)
}

// getCategory handles getting a single category by ID
func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())

	var c models.AssetCategory
	q := dbFrom(r.Context(), s.DB)
	err := q.QueryRowContext(r.Context(), `
		SELECT id, org_id, name, tracking_type, description, is_active, created_at, updated_at
		FROM asset_categories WHERE id = $1 AND org_id = $2`, id, orgID).
		Scan(&c.ID, &c.OrgID, &c.Name, &c.TrackingType, &c.Description, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		sendNotFound(w)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusOK, c)
}

// createCategory handles creating a new asset category
func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendValidationError(w, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		sendValidationError(w, "name is required")
		return
	}
	if !models.IsValidTrackingType(req.TrackingType) {
		sendValidationError(w, "tracking_type must be 'serialized' or 'bulk'")
		return
	}

	orgID := auth.OrgIDFromContext(r.Context())

	q := dbFrom(r.Context(), s.DB)
	var c models.AssetCategory
	err := q.QueryRowContext(r.Context(), `
		INSERT INTO asset_categories (org_id, name, tracking_type, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, org_id, name, tracking_type, description, is_active, created_at, updated_at
	`, orgID, req.Name, req.TrackingType, nullIfEmpty(req.Description)).
		Scan(&c.ID, &c.OrgID, &c.Name, &c.TrackingType, &c.Description, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			sendConflict(w, "category with this name already exists")
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusCreated, c)
}

// updateCategory handles updating an existing category. The tracking
// type is fixed at creation: existing units, pools, and requests depend
// on it.
func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())

	var req models.UpdateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendValidationError(w, "invalid JSON")
		return
	}

	type set struct {
		sql string
		val interface{}
	}
	sets := make([]set, 0, 3)
	arg := 1

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			sendValidationError(w, "name must not be empty")
			return
		}
		sets = append(sets, set{fmt.Sprintf("name = $%d", arg), strings.TrimSpace(*req.Name)})
		arg++
	}
	if req.Description != nil {
		sets = append(sets, set{fmt.Sprintf("description = $%d", arg), nullIfEmpty(req.Description)})
		arg++
	}
	if req.IsActive != nil {
		sets = append(sets, set{fmt.Sprintf("is_active = $%d", arg), *req.IsActive})
		arg++
	}

	if len(sets) == 0 {
		sendValidationError(w, "no fields to update")
		return
	}

	args := make([]interface{}, 0, len(sets)+2)
	sqlStr := "UPDATE asset_categories SET "
	for i, sset := range sets {
		if i > 0 {
			sqlStr += ", "
		}
		sqlStr += sset.sql
		args = append(args, sset.val)
	}
	sqlStr += fmt.Sprintf(", updated_at = now() WHERE id = $%d AND org_id = $%d RETURNING id, org_id, name, tracking_type, description, is_active, created_at, updated_at", len(args)+1, len(args)+2)
	args = append(args, id, orgID)

	q := dbFrom(r.Context(), s.DB)
	var out models.AssetCategory
	if err := q.QueryRowContext(r.Context(), sqlStr, args...).Scan(&out.ID, &out.OrgID, &out.Name, &out.TrackingType, &out.Description, &out.IsActive, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			sendNotFound(w)
			return
		}
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			sendConflict(w, "category with this name already exists")
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusOK, out)
}

// deactivateCategory soft-deletes a category. Historical requests keep
// referencing it, so rows are never removed.
func (s *Server) deactivateCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())

	q := dbFrom(r.Context(), s.DB)
	res, err := q.ExecContext(r.Context(), `
		UPDATE asset_categories SET is_active = false, updated_at = now()
		WHERE id = $1 AND org_id = $2`, id, orgID)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		sendNotFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
