//go:build integration

package tests

import (
	"net/http"
	"testing"
	"time"

	"opsdesk-assets-api/internal/auth"
	"opsdesk-assets-api/internal/models"
	"opsdesk-assets-api/internal/testutil"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func createTestOrg(t *testing.T, name string) int64 {
	t.Helper()

	var id int64
	err := testDB.QueryRow(`
		INSERT INTO organizations (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	require.NoError(t, err)
	return id
}

func createTestUserInOrg(t *testing.T, orgID int64, email string, roles []string) int64 {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	var id int64
	err = testDB.QueryRow(`
		INSERT INTO users (email, password_hash, org_id, roles)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, email, string(hash), orgID, pq.Array(roles)).Scan(&id)
	require.NoError(t, err)
	return id
}

func tokenForOrg(t *testing.T, userID, orgID int64, roles ...string) string {
	t.Helper()

	jwtManager := auth.NewJWTManager(testSecret, testIssuer, testAudience, 24*time.Hour)
	token, err := jwtManager.GenerateToken(userID, orgID, roles)
	require.NoError(t, err)
	return token
}

// A token from another organization never sees, approves, fulfills, or
// returns resources it does not own; the boundary answers 404.
func TestCrossOrgIsolation(t *testing.T) {
	testutil.RequireIntegration(t)

	admin := createTestUser(t, "iso-admin@example.com", []string{"org_admin"}, nil, nil)
	employee := createTestUser(t, "iso-employee@example.com", []string{"employee"}, nil, nil)
	adminTok := tokenFor(t, admin, "org_admin")
	employeeTok := tokenFor(t, employee, "employee")

	otherOrg := createTestOrg(t, "Iso Other Org")
	outsider := createTestUserInOrg(t, otherOrg, "iso-outsider@example.com", []string{"org_admin"})
	outsiderTok := tokenForOrg(t, outsider, otherOrg, "org_admin")

	keyboards := categoryID(t, "Keyboard & Mouse")

	var pool models.StockPool
	w := doJSON(t, "POST", "/stock-pools", adminTok, models.CreateStockPoolRequest{
		CategoryID:    keyboards,
		Location:      "HQ storeroom",
		ItemName:      "Wireless keyboard",
		TotalQuantity: 3,
	}, &pool)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var req models.AssetRequest
	w = doJSON(t, "POST", "/requests", employeeTok, models.SubmitRequestRequest{
		CategoryID:    keyboards,
		RequestType:   models.RequestTypeNew,
		Justification: "worn-out keyboard",
	}, &req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// The outsider cannot see or decide the pending request
	w = doJSON(t, "GET", requestPath(req.ID), outsiderTok, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	w = doJSON(t, "POST", requestPath(req.ID)+"/approve", outsiderTok, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	w = doJSON(t, "POST", requestPath(req.ID)+"/approve", adminTok, nil, &req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Nor fulfill the approved one
	w = doJSON(t, "POST", requestPath(req.ID)+"/fulfill", outsiderTok, models.FulfillRequestRequest{
		StockPoolID: &pool.ID,
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	var assignment models.AssetAssignment
	w = doJSON(t, "POST", requestPath(req.ID)+"/fulfill", adminTok, models.FulfillRequestRequest{
		StockPoolID: &pool.ID,
	}, &assignment)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// The pool and the assignment are invisible across the boundary
	w = doJSON(t, "GET", poolPath(pool.ID), outsiderTok, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	w = doJSON(t, "GET", assignmentPath(assignment.ID), outsiderTok, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	w = doJSON(t, "POST", assignmentPath(assignment.ID)+"/return", outsiderTok, models.ProcessReturnRequest{
		Condition: models.ConditionGood,
		Signoff:   models.SignoffCleared,
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	// The assignment is untouched by the rejected attempts
	w = doJSON(t, "GET", assignmentPath(assignment.ID), adminTok, nil, &assignment)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, assignment.IsActive)
}

// With session scoping enabled every request pins a connection and sets
// the org GUC through set_config; the normal read path keeps working.
func TestRLSSessionScoping(t *testing.T) {
	testutil.RequireIntegration(t)

	t.Setenv("RLS_ENABLED", "true")

	admin := createTestUser(t, "rls-admin@example.com", []string{"org_admin"}, nil, nil)
	adminTok := tokenFor(t, admin, "org_admin")

	var listed struct {
		Data []models.AssetCategory `json:"data"`
	}
	w := doJSON(t, "GET", "/categories", adminTok, nil, &listed)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, listed.Data)
}

// Malformed resource ids are rejected up front, same as on the
// decision endpoints.
func TestMalformedResourceID(t *testing.T) {
	testutil.RequireIntegration(t)

	admin := createTestUser(t, "badid-admin@example.com", []string{"org_admin"}, nil, nil)
	adminTok := tokenFor(t, admin, "org_admin")

	w := doJSON(t, "GET", "/requests/not-a-number", adminTok, nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = doJSON(t, "GET", "/assignments/not-a-number", adminTok, nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}
