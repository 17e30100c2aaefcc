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

const unitColumns = `id, org_id, category_id, asset_tag, serial_number, manufacturer, model,
	       purchased_at, warranty_until, status, condition, location, notes, created_at, updated_at`

func scanUnit(row interface{ Scan(...any) error }, u *models.SerializedUnit, extra ...any) error {
	dest := []any{&u.ID, &u.OrgID, &u.CategoryID, &u.AssetTag, &u.SerialNumber, &u.Manufacturer, &u.Model,
		&u.PurchasedAt, &u.WarrantyUntil, &u.Status, &u.Condition, &u.Location, &u.Notes, &u.CreatedAt, &u.UpdatedAt}
	dest = append(dest, extra...)
	return row.Scan(dest...)
}

// listUnits handles serialized unit listing with filters and pagination
func (s *Server) listUnits(w http.ResponseWriter, r *http.Request) {
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

	// optional status filter
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		clauses = append(clauses, fmt.Sprintf("status = $%d", arg))
		args = append(args, status)
		arg++
	}

	// optional text search on tag, serial, model
	if params.q != "" {
		clauses = append(clauses, fmt.Sprintf("(asset_tag ILIKE $%d OR serial_number ILIKE $%d OR model ILIKE $%d)", arg, arg, arg))
		args = append(args, "%"+params.q+"%")
		arg++
	}

	whereClause := " WHERE " + strings.Join(clauses, " AND ")

	sqlStr := fmt.Sprintf(`
		SELECT %s,
		       COUNT(*) OVER() as total_count
		FROM serialized_assets%s`, unitColumns, whereClause)

	allowedSort := map[string]string{
		"id":         "id",
		"asset_tag":  "asset_tag",
		"status":     "status",
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

	units := []interface{}{}
	var totalCount int
	for rows.Next() {
		var u models.SerializedUnit
		if err := scanUnit(rows, &u, &totalCount); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		units = append(units, u)
	}

	sendListResponse(w, units, totalCount, params)
}

// getUnit handles getting a single serialized unit by ID
func (s *Server) getUnit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())

	var u models.SerializedUnit
	q := dbFrom(r.Context(), s.DB)
	err := scanUnit(q.QueryRowContext(r.Context(), fmt.Sprintf(`
		SELECT %s
		FROM serialized_assets WHERE id = $1 AND org_id = $2`, unitColumns), id, orgID), &u)
	if err == sql.ErrNoRows {
		sendNotFound(w)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusOK, u)
}

// createUnit registers a new serialized unit. Fresh units start
// available in the condition supplied (default new).
func (s *Server) createUnit(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendValidationError(w, "invalid JSON")
		return
	}

	if req.CategoryID == 0 {
		sendValidationError(w, "category_id is required")
		return
	}
	condition := models.ConditionNew
	if req.Condition != nil {
		if !models.IsValidCondition(*req.Condition) {
			sendValidationError(w, "invalid condition")
			return
		}
		condition = *req.Condition
	}

	orgID := auth.OrgIDFromContext(r.Context())

	q := dbFrom(r.Context(), s.DB)

	// The category must exist, be active, and track serialized units.
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
	if trackingType != models.TrackingSerialized {
		sendValidationError(w, "category does not track serialized units")
		return
	}

	var u models.SerializedUnit
	err = scanUnit(q.QueryRowContext(r.Context(), fmt.Sprintf(`
		INSERT INTO serialized_assets (org_id, category_id, asset_tag, serial_number, manufacturer, model,
		                               purchased_at, warranty_until, status, condition, location, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING %s`, unitColumns),
		orgID, req.CategoryID, nullIfEmpty(req.AssetTag), nullIfEmpty(req.SerialNumber),
		nullIfEmpty(req.Manufacturer), nullIfEmpty(req.Model), req.PurchasedAt, req.WarrantyUntil,
		models.UnitAvailable, condition, nullIfEmpty(req.Location), nullIfEmpty(req.Notes)), &u)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			sendConflict(w, "unit with this asset tag or serial number already exists")
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusCreated, u)
}

// updateUnit handles updating a serialized unit. Status changes here
// are limited to maintenance states; issuing a unit goes through
// fulfillment, and clearing one goes through returns.
func (s *Server) updateUnit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())

	var req models.UpdateUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendValidationError(w, "invalid JSON")
		return
	}

	if req.Status != nil {
		if !models.IsValidUnitStatus(*req.Status) {
			sendValidationError(w, "invalid status")
			return
		}
		if models.IsAssigned(*req.Status) {
			sendValidationError(w, "issued and in_use are set through fulfillment and acknowledgement")
			return
		}
	}
	if req.Condition != nil && !models.IsValidCondition(*req.Condition) {
		sendValidationError(w, "invalid condition")
		return
	}

	type set struct {
		sql string
		val interface{}
	}
	sets := make([]set, 0, 10)
	arg := 1

	if req.AssetTag != nil {
		sets = append(sets, set{fmt.Sprintf("asset_tag = $%d", arg), nullIfEmpty(req.AssetTag)})
		arg++
	}
	if req.SerialNumber != nil {
		sets = append(sets, set{fmt.Sprintf("serial_number = $%d", arg), nullIfEmpty(req.SerialNumber)})
		arg++
	}
	if req.Manufacturer != nil {
		sets = append(sets, set{fmt.Sprintf("manufacturer = $%d", arg), nullIfEmpty(req.Manufacturer)})
		arg++
	}
	if req.Model != nil {
		sets = append(sets, set{fmt.Sprintf("model = $%d", arg), nullIfEmpty(req.Model)})
		arg++
	}
	if req.PurchasedAt != nil {
		sets = append(sets, set{fmt.Sprintf("purchased_at = $%d", arg), *req.PurchasedAt})
		arg++
	}
	if req.WarrantyUntil != nil {
		sets = append(sets, set{fmt.Sprintf("warranty_until = $%d", arg), *req.WarrantyUntil})
		arg++
	}
	if req.Status != nil {
		sets = append(sets, set{fmt.Sprintf("status = $%d", arg), *req.Status})
		arg++
	}
	if req.Condition != nil {
		sets = append(sets, set{fmt.Sprintf("condition = $%d", arg), *req.Condition})
		arg++
	}
	if req.Location != nil {
		sets = append(sets, set{fmt.Sprintf("location = $%d", arg), nullIfEmpty(req.Location)})
		arg++
	}
	if req.Notes != nil {
		sets = append(sets, set{fmt.Sprintf("notes = $%d", arg), nullIfEmpty(req.Notes)})
		arg++
	}

	if len(sets) == 0 {
		sendValidationError(w, "no fields to update")
		return
	}

	args := make([]interface{}, 0, len(sets)+2)
	sqlStr := "UPDATE serialized_assets SET "
	for i, sset := range sets {
		if i > 0 {
			sqlStr += ", "
		}
		sqlStr += sset.sql
		args = append(args, sset.val)
	}

	// A unit with an active assignment keeps its assignment status; the
	// extra predicate stops an admin edit from silently un-issuing it.
	sqlStr += fmt.Sprintf(`, updated_at = now()
		WHERE id = $%d AND org_id = $%d AND status NOT IN ('issued', 'in_use')
		RETURNING %s`, len(args)+1, len(args)+2, unitColumns)
	args = append(args, id, orgID)

	q := dbFrom(r.Context(), s.DB)
	var out models.SerializedUnit
	if err := scanUnit(q.QueryRowContext(r.Context(), sqlStr, args...), &out); err != nil {
		if err == sql.ErrNoRows {
			// Distinguish a missing unit from one that is currently held.
			var status string
			err2 := q.QueryRowContext(r.Context(), `SELECT status FROM serialized_assets WHERE id = $1 AND org_id = $2`, id, orgID).Scan(&status)
			if err2 == nil && models.IsAssigned(status) {
				sendConflict(w, "unit has an active assignment; process its return first")
				return
			}
			sendNotFound(w)
			return
		}
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			sendConflict(w, "unit with this asset tag or serial number already exists")
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusOK, out)
}
