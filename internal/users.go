package internal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"opsdesk-assets-api/internal/auth"
	"opsdesk-assets-api/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

const userColumns = `id, email, password_hash, first_name, last_name, org_id, roles,
	       manager_id, secondary_manager_id, is_active, created_at, updated_at, last_login_at`

func scanUser(row interface{ Scan(...any) error }, u *models.User, extra ...any) error {
	var roles pq.StringArray
	dest := []any{&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.OrgID, &roles,
		&u.ManagerID, &u.SecondaryManagerID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	u.Roles = roles
	return nil
}

// loginUser handles user authentication
func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	// Login is available to all users; no org scoping before the token exists
	var user models.User
	err := scanUser(s.DB.QueryRowContext(r.Context(), fmt.Sprintf(`
		SELECT %s
		FROM users WHERE email = $1 AND is_active = true`, userColumns), req.Email), &user)
	if err == sql.ErrNoRows {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	// Update last login time; failure does not fail the login
	if _, err := s.DB.ExecContext(r.Context(), "UPDATE users SET last_login_at = now() WHERE id = $1", user.ID); err != nil {
		log.Printf("Failed to update last_login_at: %v", err)
	}

	token, err := s.JWTManager.GenerateToken(user.ID, user.OrgID, user.Roles)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	sendJSON(w, http.StatusOK, models.LoginResponse{
		Token: token,
		User:  user.Redacted(),
	})
}

// validateManagerRef checks a manager reference points at an active
// user of the same organization
func (s *Server) validateManagerRef(r *http.Request, orgID int64, managerID *int64) error {
	if managerID == nil {
		return nil
	}
	q := dbFrom(r.Context(), s.DB)
	var exists bool
	err := q.QueryRowContext(r.Context(), `
		SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND org_id = $2 AND is_active = true)`,
		*managerID, orgID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("manager %d not found in organization", *managerID)
	}
	return nil
}

// createUser handles user creation with multi-tenant logic
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" || len(req.Roles) == 0 {
		http.Error(w, "Email, password, and roles are required", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		http.Error(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}
	if !models.ValidateRoles(req.Roles) {
		http.Error(w, "Invalid roles provided", http.StatusBadRequest)
		return
	}

	callerOrgID := auth.OrgIDFromContext(r.Context())

	// Only the main tenant may create users in another organization
	targetOrgID := callerOrgID
	if req.OrgID != nil && *req.OrgID != callerOrgID {
		if callerOrgID != 1 {
			http.Error(w, "Cannot create users in another organization", http.StatusForbidden)
			return
		}
		targetOrgID = *req.OrgID
	}

	if err := s.validateManagerRef(r, targetOrgID, req.ManagerID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.validateManagerRef(r, targetOrgID, req.SecondaryManagerID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	q := dbFrom(r.Context(), s.DB)
	var user models.User
	err = scanUser(q.QueryRowContext(r.Context(), fmt.Sprintf(`
		INSERT INTO users (email, password_hash, first_name, last_name, org_id, roles, manager_id, secondary_manager_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING %s`, userColumns),
		strings.ToLower(strings.TrimSpace(req.Email)), string(hash), nullIfEmpty(req.FirstName),
		nullIfEmpty(req.LastName), targetOrgID, pq.Array(req.Roles), req.ManagerID, req.SecondaryManagerID), &user)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			http.Error(w, "A user with this email already exists", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusCreated, user.Redacted())
}

// listUsers handles user listing for the caller's organization
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)
	orgID := auth.OrgIDFromContext(r.Context())

	clauses := []string{"org_id = $1"}
	args := []interface{}{orgID}
	arg := 2

	if params.q != "" {
		clauses = append(clauses, fmt.Sprintf("(email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)", arg, arg, arg))
		args = append(args, "%"+params.q+"%")
		arg++
	}

	whereClause := " WHERE " + strings.Join(clauses, " AND ")

	sqlStr := fmt.Sprintf(`
		SELECT %s,
		       COUNT(*) OVER() as total_count
		FROM users%s`, userColumns, whereClause)

	allowedSort := map[string]string{
		"id":         "id",
		"email":      "email",
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

	users := []interface{}{}
	var totalCount int
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u, &totalCount); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		users = append(users, u.Redacted())
	}

	sendListResponse(w, users, totalCount, params)
}

// getUser handles getting a single user by ID
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())

	var u models.User
	q := dbFrom(r.Context(), s.DB)
	err := scanUser(q.QueryRowContext(r.Context(), fmt.Sprintf(`
		SELECT %s
		FROM users WHERE id = $1 AND org_id = $2`, userColumns), id, orgID), &u)
	if err == sql.ErrNoRows {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusOK, u.Redacted())
}

// updateUser handles updating a user record, including the manager
// chain the directory resolver reads
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())

	var req models.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Roles != nil && !models.ValidateRoles(req.Roles) {
		http.Error(w, "Invalid roles provided", http.StatusBadRequest)
		return
	}
	if err := s.validateManagerRef(r, orgID, req.ManagerID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.validateManagerRef(r, orgID, req.SecondaryManagerID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	type set struct {
		sql string
		val interface{}
	}
	sets := make([]set, 0, 6)
	arg := 1

	if req.FirstName != nil {
		sets = append(sets, set{fmt.Sprintf("first_name = $%d", arg), nullIfEmpty(req.FirstName)})
		arg++
	}
	if req.LastName != nil {
		sets = append(sets, set{fmt.Sprintf("last_name = $%d", arg), nullIfEmpty(req.LastName)})
		arg++
	}
	if req.Roles != nil {
		sets = append(sets, set{fmt.Sprintf("roles = $%d", arg), pq.Array(req.Roles)})
		arg++
	}
	if req.ManagerID != nil {
		sets = append(sets, set{fmt.Sprintf("manager_id = $%d", arg), *req.ManagerID})
		arg++
	}
	if req.SecondaryManagerID != nil {
		sets = append(sets, set{fmt.Sprintf("secondary_manager_id = $%d", arg), *req.SecondaryManagerID})
		arg++
	}
	if req.IsActive != nil {
		sets = append(sets, set{fmt.Sprintf("is_active = $%d", arg), *req.IsActive})
		arg++
	}

	if len(sets) == 0 {
		http.Error(w, "no fields to update", http.StatusBadRequest)
		return
	}

	args := make([]interface{}, 0, len(sets)+2)
	sqlStr := "UPDATE users SET "
	for i, sset := range sets {
		if i > 0 {
			sqlStr += ", "
		}
		sqlStr += sset.sql
		args = append(args, sset.val)
	}
	sqlStr += fmt.Sprintf(", updated_at = now() WHERE id = $%d AND org_id = $%d RETURNING %s", len(args)+1, len(args)+2, userColumns)
	args = append(args, id, orgID)

	q := dbFrom(r.Context(), s.DB)
	var out models.User
	if err := scanUser(q.QueryRowContext(r.Context(), sqlStr, args...), &out); err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusOK, out.Redacted())
}

// deleteUser deactivates a user. Rows stay: requests and assignments
// reference them.
func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	orgID := auth.OrgIDFromContext(r.Context())

	q := dbFrom(r.Context(), s.DB)
	res, err := q.ExecContext(r.Context(), `
		UPDATE users SET is_active = false, updated_at = now()
		WHERE id = $1 AND org_id = $2`, id, orgID)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getUserProfile returns the caller's own record
func (s *Server) getUserProfile(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	orgID := auth.OrgIDFromContext(r.Context())

	var u models.User
	q := dbFrom(r.Context(), s.DB)
	err := scanUser(q.QueryRowContext(r.Context(), fmt.Sprintf(`
		SELECT %s
		FROM users WHERE id = $1 AND org_id = $2`, userColumns), userID, orgID), &u)
	if err == sql.ErrNoRows {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusOK, u.Redacted())
}

// updateUserProfile lets the caller update their own name fields
func (s *Server) updateUserProfile(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	orgID := auth.OrgIDFromContext(r.Context())

	var req models.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.FirstName == nil && req.LastName == nil {
		http.Error(w, "no fields to update", http.StatusBadRequest)
		return
	}

	q := dbFrom(r.Context(), s.DB)
	var u models.User
	err := scanUser(q.QueryRowContext(r.Context(), fmt.Sprintf(`
		UPDATE users
		SET first_name = COALESCE($1, first_name), last_name = COALESCE($2, last_name), updated_at = now()
		WHERE id = $3 AND org_id = $4
		RETURNING %s`, userColumns),
		nullIfEmpty(req.FirstName), nullIfEmpty(req.LastName), userID, orgID), &u)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	sendJSON(w, http.StatusOK, u.Redacted())
}

// changePassword lets the caller rotate their own password
func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	orgID := auth.OrgIDFromContext(r.Context())

	var req models.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		http.Error(w, "Current and new passwords are required", http.StatusBadRequest)
		return
	}
	if len(req.NewPassword) < 8 {
		http.Error(w, "New password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	q := dbFrom(r.Context(), s.DB)
	var currentHash string
	err := q.QueryRowContext(r.Context(), `
		SELECT password_hash FROM users WHERE id = $1 AND org_id = $2`, userID, orgID).Scan(&currentHash)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(currentHash), []byte(req.CurrentPassword)); err != nil {
		http.Error(w, "Current password is incorrect", http.StatusUnauthorized)
		return
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	if _, err := q.ExecContext(r.Context(), `
		UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2 AND org_id = $3`,
		string(newHash), userID, orgID); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
