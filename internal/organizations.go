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

// listOrganizations returns organizations visible to the caller. The
// main tenant sees all of them, everyone else only their own.
func (s *Server) listOrganizations(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)
	orgID := auth.OrgIDFromContext(r.Context())

	clauses := []string{}
	args := []interface{}{}
	arg := 1

	if orgID != 1 {
		clauses = append(clauses, fmt.Sprintf("id = $%d", arg))
		args = append(args, orgID)
		arg++
	}
	if params.q != "" {
		clauses = append(clauses, fmt.Sprintf("name ILIKE $%d", arg))
		args = append(args, "%"+params.q+"%")
		arg++
	}

	whereClause := ""
	if len(clauses) > 0 {
		whereClause = " WHERE " + strings.Join(clauses, " AND ")
	}

	sqlStr := fmt.Sprintf(`
		SELECT id, name, created_at, updated_at,
		       COUNT(*) OVER() as total_count
		FROM organizations%s`, whereClause)

	allowedSort := map[string]string{
		"id":         "id",
		"name":       "name",
		"created_at": "created_at",
	}
	sqlStr += buildOrderBy(params.sort, allowedSort)
	sqlStr += fmt.Sprintf(" LIMIT %d OFFSET %d", params.limit, params.offset)

	rows, err := s.DB.QueryContext(r.Context(), sqlStr, args...)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	orgs := []models.Organization{}
	var totalCount int
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt, &totalCount); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		orgs = append(orgs, o)
	}

	sendListResponse(w, orgs, totalCount, params)
}

// getOrganization returns a single organization by ID
func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())

	var o models.Organization
	err := s.DB.QueryRowContext(r.Context(), `
		SELECT id, name, created_at, updated_at
		FROM organizations WHERE id = $1`, id).Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if orgID != 1 && o.ID != orgID {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	sendJSON(w, http.StatusOK, o)
}

// createOrganization creates a new organization. Main tenant only.
func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID != 1 {
		http.Error(w, "Only the main tenant can create organizations", http.StatusForbidden)
		return
	}

	var req models.CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	var o models.Organization
	err := s.DB.QueryRowContext(r.Context(), `
		INSERT INTO organizations (name) VALUES ($1)
		RETURNING id, name, created_at, updated_at`, req.Name).
		Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			http.Error(w, "An organization with this name already exists", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusCreated, o)
}

// updateOrganization renames an organization. Main tenant only.
func (s *Server) updateOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID != 1 {
		http.Error(w, "Only the main tenant can update organizations", http.StatusForbidden)
		return
	}

	id := chi.URLParam(r, "id")

	var req models.CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	var o models.Organization
	err := s.DB.QueryRowContext(r.Context(), `
		UPDATE organizations SET name = $1, updated_at = now()
		WHERE id = $2
		RETURNING id, name, created_at, updated_at`, req.Name, id).
		Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			http.Error(w, "An organization with this name already exists", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusOK, o)
}
