package internal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"opsdesk-assets-api/internal/auth"
	"opsdesk-assets-api/internal/models"

	"github.com/go-chi/chi/v5"
)

// listStockPools handles stock pool listing with filters and pagination
func (s *Server) listStockPools(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)
	orgID := auth.OrgIDFromContext(r.Context())

	clauses := []string{}
	args := []interface{}{}
	arg := 1

	clauses = append(clauses, fmt.Sprintf("org_id = $%d", arg))
	args = append(args, orgID)
	arg++

	// optional category filter
	if catStr := strings.TrimSpace(r.URL.Query().Get("category_id")); catStr != "" {
		if catID, err := strconv.ParseInt(catStr, 10, 64); err == nil {
			clauses = append(clauses, fmt.Sprintf("category_id = $%d", arg))
			args = append(args, catID)
			arg++
		}
	}

	// optional location filter
	if loc := strings.TrimSpace(r.URL.Query().Get("location")); loc != "" {
		clauses = append(clauses, fmt.Sprintf("location = $%d", arg))
		args = append(args, loc)
		arg++
	}

	// optional text search on item name
	if params.q != "" {
		clauses = append(clauses, fmt.Sprintf("item_name ILIKE $%d", arg))
		args = append(args, "%"+params.q+"%")
		arg++
	}

	whereClause := " WHERE " + strings.Join(clauses, " AND ")

	sqlStr := fmt.Sprintf(`
		SELECT id, org_id, category_id, location, item_name, total_quantity, available_quantity, created_at, updated_at,
		       COUNT(*) OVER() as total_count
		FROM stock_pools%s`, whereClause)

	allowedSort := map[string]string{
		"id":                 "id",
		"item_name":          "item_name",
		"location":           "location",
		"available_quantity": "available_quantity",
		"created_at":         "created_at",
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

	pools := []interface{}{}
	var totalCount int
	for rows.Next() {
		var p models.StockPool
		if err := rows.Scan(&p.ID, &p.OrgID, &p.CategoryID, &p.Location, &p.ItemName, &p.TotalQuantity, &p.AvailableQuantity, &p.CreatedAt, &p.UpdatedAt, &totalCount); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		pools = append(pools, p)
	}

	sendListResponse(w, pools, totalCount, params)
}

// getStockPool handles getting a single stock pool by ID
func (s *Server) getStockPool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())

	var p models.StockPool
	q := dbFrom(r.Context(), s.DB)
	err := q.QueryRowContext(r.Context(), `
		SELECT id, org_id, category_id, location, item_name, total_quantity, available_quantity, created_at, updated_at
		FROM stock_pools WHERE id = $1 AND org_id = $2`, id, orgID).
		Scan(&p.ID, &p.OrgID, &p.CategoryID, &p.Location, &p.ItemName, &p.TotalQuantity, &p.AvailableQuantity, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		sendNotFound(w)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusOK, p)
}

// createStockPool handles creating a new stock pool. A new pool starts
// with every unit available.
func (s *Server) createStockPool(w http.ResponseWriter, r *http.Request) {
	var req models.CreateStockPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendValidationError(w, "invalid JSON")
		return
	}

	req.Location = strings.TrimSpace(req.Location)
	req.ItemName = strings.TrimSpace(req.ItemName)
	if req.CategoryID == 0 || req.Location == "" || req.ItemName == "" {
		sendValidationError(w, "category_id, location, and item_name are required")
		return
	}
	if req.TotalQuantity < 0 {
		sendValidationError(w, "total_quantity must not be negative")
		return
	}

	orgID := auth.OrgIDFromContext(r.Context())

	q := dbFrom(r.Context(), s.DB)

	// The category must exist, be active, and track bulk stock.
	var trackingType string
	err := q.QueryRowContext(r.Context(), `
		SELECT tracking_type FROM asset_categories
		WHERE id = $1 AND org_id = $2 AND is_active = true`, req.CategoryID, orgID).Scan(&trackingType)
	if err == sql.ErrNoRows {
		sendValidationError(w, "category not found or inactive")
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if trackingType != models.TrackingBulk {
		sendValidationError(w, "category does not track bulk stock")
		return
	}

	var p models.StockPool
	err = q.QueryRowContext(r.Context(), `
		INSERT INTO stock_pools (org_id, category_id, location, item_name, total_quantity, available_quantity)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, org_id, category_id, location, item_name, total_quantity, available_quantity, created_at, updated_at
	`, orgID, req.CategoryID, req.Location, req.ItemName, req.TotalQuantity).
		Scan(&p.ID, &p.OrgID, &p.CategoryID, &p.Location, &p.ItemName, &p.TotalQuantity, &p.AvailableQuantity, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			sendConflict(w, "stock pool for this category, location, and item already exists")
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusCreated, p)
}

// updateStockPool adjusts a pool. Total quantity changes move the
// available counter by the same delta under a row lock, so a restock or
// shrink can never contradict the active-assignment count.
func (s *Server) updateStockPool(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		sendValidationError(w, "invalid id")
		return
	}

	var req models.UpdateStockPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendValidationError(w, "invalid JSON")
		return
	}
	if req.Location == nil && req.ItemName == nil && req.TotalQuantity == nil {
		sendValidationError(w, "no fields to update")
		return
	}
	if req.TotalQuantity != nil && *req.TotalQuantity < 0 {
		sendValidationError(w, "total_quantity must not be negative")
		return
	}

	tx, err := s.DB.BeginTx(r.Context(), nil)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	var p models.StockPool
	err = tx.QueryRowContext(r.Context(), `
		SELECT id, org_id, category_id, location, item_name, total_quantity, available_quantity, created_at, updated_at
		FROM stock_pools WHERE id = $1 AND org_id = $2
		FOR UPDATE`, id, orgID).
		Scan(&p.ID, &p.OrgID, &p.CategoryID, &p.Location, &p.ItemName, &p.TotalQuantity, &p.AvailableQuantity, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		sendNotFound(w)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if req.Location != nil && strings.TrimSpace(*req.Location) != "" {
		p.Location = strings.TrimSpace(*req.Location)
	}
	if req.ItemName != nil && strings.TrimSpace(*req.ItemName) != "" {
		p.ItemName = strings.TrimSpace(*req.ItemName)
	}
	if req.TotalQuantity != nil {
		delta := *req.TotalQuantity - p.TotalQuantity
		newAvailable := p.AvailableQuantity + delta
		if newAvailable < 0 {
			sendConflict(w, fmt.Sprintf("cannot shrink pool below its %d outstanding assignments", p.TotalQuantity-p.AvailableQuantity))
			return
		}
		p.TotalQuantity = *req.TotalQuantity
		p.AvailableQuantity = newAvailable
	}

	err = tx.QueryRowContext(r.Context(), `
		UPDATE stock_pools
		SET location = $1, item_name = $2, total_quantity = $3, available_quantity = $4, updated_at = now()
		WHERE id = $5 AND org_id = $6
		RETURNING updated_at`, p.Location, p.ItemName, p.TotalQuantity, p.AvailableQuantity, id, orgID).
		Scan(&p.UpdatedAt)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			sendConflict(w, "stock pool for this category, location, and item already exists")
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}

	if err := tx.Commit(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusOK, p)
}
