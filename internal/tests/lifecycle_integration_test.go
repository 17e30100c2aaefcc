//go:build integration

package tests

import (
	"net/http"
	"testing"

	"opsdesk-assets-api/internal/models"
	"opsdesk-assets-api/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func categoryID(t *testing.T, name string) int64 {
	t.Helper()
	var id int64
	err := testDB.QueryRow(
		"SELECT id FROM asset_categories WHERE org_id = 1 AND name = $1", name).Scan(&id)
	require.NoError(t, err)
	return id
}

// Full lifecycle of a serialized asset: submit, two manager approvals,
// admin approval, fulfillment, acknowledgment, and return.
func TestSerializedLifecycle(t *testing.T) {
	testutil.RequireIntegration(t)

	admin := createTestUser(t, "lc-admin@example.com", []string{"org_admin"}, nil, nil)
	manager := createTestUser(t, "lc-manager@example.com", []string{"manager"}, nil, nil)
	secondary := createTestUser(t, "lc-secondary@example.com", []string{"manager"}, nil, nil)
	employee := createTestUser(t, "lc-employee@example.com", []string{"employee"}, &manager, &secondary)

	adminTok := tokenFor(t, admin, "org_admin")
	managerTok := tokenFor(t, manager, "manager")
	secondaryTok := tokenFor(t, secondary, "manager")
	employeeTok := tokenFor(t, employee, "employee")

	laptops := categoryID(t, "Laptop")

	// Register a unit
	var unit models.SerializedUnit
	w := doJSON(t, "POST", "/units", adminTok, models.CreateUnitRequest{
		CategoryID:   laptops,
		AssetTag:     strPtr("LT-1001"),
		SerialNumber: strPtr("SN-LC-0001"),
	}, &unit)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, models.UnitAvailable, unit.Status)

	// Submit a request; the manager chain is snapshotted
	var req models.AssetRequest
	w = doJSON(t, "POST", "/requests", employeeTok, models.SubmitRequestRequest{
		CategoryID:    laptops,
		RequestType:   models.RequestTypeNew,
		Justification: "replacement for aging hardware",
	}, &req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, models.StatusPendingManagerApproval, req.CurrentStatus)
	require.NotNil(t, req.PrimaryApproverID)
	assert.Equal(t, manager, *req.PrimaryApproverID)
	require.NotNil(t, req.SecondaryApproverID)
	assert.Equal(t, secondary, *req.SecondaryApproverID)

	reqPath := requestPath(req.ID)

	// The secondary approver cannot act at the manager stage
	w = doJSON(t, "POST", reqPath+"/approve", secondaryTok, nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Primary manager approves
	w = doJSON(t, "POST", reqPath+"/approve", managerTok, nil, &req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusPendingSecondaryApproval, req.CurrentStatus)
	assert.NotNil(t, req.ManagerApprovedAt)

	// Secondary manager approves
	w = doJSON(t, "POST", reqPath+"/approve", secondaryTok, nil, &req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusPendingAdminApproval, req.CurrentStatus)

	// The request shows up in the admin's pending queue
	var pending struct {
		Data []models.AssetRequest `json:"data"`
	}
	w = doJSON(t, "GET", "/approvals/pending", adminTok, nil, &pending)
	require.Equal(t, http.StatusOK, w.Code)
	found := false
	for _, p := range pending.Data {
		if p.ID == req.ID {
			found = true
		}
	}
	assert.True(t, found, "request should be pending admin approval")

	// Admin grants final approval and becomes the resource assignee
	w = doJSON(t, "POST", reqPath+"/approve", adminTok, nil, &req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusApproved, req.CurrentStatus)
	require.NotNil(t, req.ResourceAssigneeID)
	assert.Equal(t, admin, *req.ResourceAssigneeID)

	// Fulfill with the registered unit
	var assignment models.AssetAssignment
	w = doJSON(t, "POST", reqPath+"/fulfill", adminTok, models.FulfillRequestRequest{
		UnitID: &unit.ID,
	}, &assignment)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, assignment.IsActive)
	require.NotNil(t, assignment.UnitID)
	assert.Equal(t, unit.ID, *assignment.UnitID)
	assert.Equal(t, employee, assignment.AssigneeID)

	// Unit is now issued and the request is fulfilled
	w = doJSON(t, "GET", unitPath(unit.ID), adminTok, nil, &unit)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.UnitIssued, unit.Status)

	w = doJSON(t, "GET", reqPath, employeeTok, nil, &req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusFulfilled, req.CurrentStatus)
	assert.NotNil(t, req.FulfilledAt)

	// The same unit cannot be issued twice
	var req2 models.AssetRequest
	w = doJSON(t, "POST", "/requests", employeeTok, models.SubmitRequestRequest{
		CategoryID:    laptops,
		RequestType:   models.RequestTypeTemporary,
		Justification: "loaner for travel",
	}, &req2)
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(t, "POST", requestPath(req2.ID)+"/approve", adminTok, nil, &req2)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = doJSON(t, "POST", requestPath(req2.ID)+"/fulfill", adminTok, models.FulfillRequestRequest{
		UnitID: &unit.ID,
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	// Assignee confirms receipt
	var acked models.SerializedUnit
	w = doJSON(t, "POST", assignmentPath(assignment.ID)+"/acknowledge", employeeTok, nil, &acked)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.UnitInUse, acked.Status)

	// Return the unit in good condition
	w = doJSON(t, "POST", assignmentPath(assignment.ID)+"/return", adminTok, models.ProcessReturnRequest{
		Condition: models.ConditionGood,
		Signoff:   models.SignoffCleared,
	}, &assignment)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, assignment.IsActive)
	assert.NotNil(t, assignment.ReturnedAt)

	w = doJSON(t, "GET", unitPath(unit.ID), adminTok, nil, &unit)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.UnitAvailable, unit.Status)

	// Returning a closed assignment fails
	w = doJSON(t, "POST", assignmentPath(assignment.ID)+"/return", adminTok, models.ProcessReturnRequest{
		Condition: models.ConditionGood,
		Signoff:   models.SignoffCleared,
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// Bulk inventory: fulfillment decrements the pool, return restores it,
// and an empty pool refuses to issue.
func TestBulkLifecycle(t *testing.T) {
	testutil.RequireIntegration(t)

	admin := createTestUser(t, "bulk-admin@example.com", []string{"org_admin"}, nil, nil)
	employee := createTestUser(t, "bulk-employee@example.com", []string{"employee"}, nil, nil)

	adminTok := tokenFor(t, admin, "org_admin")
	employeeTok := tokenFor(t, employee, "employee")

	headsets := categoryID(t, "Headset")

	var pool models.StockPool
	w := doJSON(t, "POST", "/stock-pools", adminTok, models.CreateStockPoolRequest{
		CategoryID:    headsets,
		Location:      "HQ storeroom",
		ItemName:      "USB headset",
		TotalQuantity: 1,
	}, &pool)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 1, pool.AvailableQuantity)

	// No managers on file: the request starts at the admin stage
	var req models.AssetRequest
	w = doJSON(t, "POST", "/requests", employeeTok, models.SubmitRequestRequest{
		CategoryID:    headsets,
		RequestType:   models.RequestTypeNew,
		Justification: "daily standup calls",
	}, &req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, models.StatusPendingAdminApproval, req.CurrentStatus)

	w = doJSON(t, "POST", requestPath(req.ID)+"/approve", adminTok, nil, &req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var assignment models.AssetAssignment
	w = doJSON(t, "POST", requestPath(req.ID)+"/fulfill", adminTok, models.FulfillRequestRequest{
		StockPoolID: &pool.ID,
	}, &assignment)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, "GET", poolPath(pool.ID), adminTok, nil, &pool)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, pool.AvailableQuantity)

	// The drained pool cannot fulfill another request
	var req2 models.AssetRequest
	w = doJSON(t, "POST", "/requests", employeeTok, models.SubmitRequestRequest{
		CategoryID:    headsets,
		RequestType:   models.RequestTypeNew,
		Justification: "spare headset",
	}, &req2)
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(t, "POST", requestPath(req2.ID)+"/approve", adminTok, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, "POST", requestPath(req2.ID)+"/fulfill", adminTok, models.FulfillRequestRequest{
		StockPoolID: &pool.ID,
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	// Return restores availability
	w = doJSON(t, "POST", assignmentPath(assignment.ID)+"/return", adminTok, models.ProcessReturnRequest{
		Condition: models.ConditionGood,
		Signoff:   models.SignoffCleared,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, "GET", poolPath(pool.ID), adminTok, nil, &pool)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, pool.AvailableQuantity)
}

// An approved request can be parked for procurement and fulfilled once
// stock arrives. Parking is only valid from the approved state.
func TestProcurementFlow(t *testing.T) {
	testutil.RequireIntegration(t)

	admin := createTestUser(t, "proc-admin@example.com", []string{"org_admin"}, nil, nil)
	employee := createTestUser(t, "proc-employee@example.com", []string{"employee"}, nil, nil)

	adminTok := tokenFor(t, admin, "org_admin")
	employeeTok := tokenFor(t, employee, "employee")

	cables := categoryID(t, "Cables & Adapters")

	var req models.AssetRequest
	w := doJSON(t, "POST", "/requests", employeeTok, models.SubmitRequestRequest{
		CategoryID:    cables,
		RequestType:   models.RequestTypeNew,
		Justification: "USB-C adapters for the new dock",
	}, &req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, models.StatusPendingAdminApproval, req.CurrentStatus)

	// A still-pending request cannot be parked
	w = doJSON(t, "POST", requestPath(req.ID)+"/procurement", adminTok, nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = doJSON(t, "POST", requestPath(req.ID)+"/approve", adminTok, nil, &req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusApproved, req.CurrentStatus)

	var parked struct {
		Status string `json:"status"`
	}
	w = doJSON(t, "POST", requestPath(req.ID)+"/procurement", adminTok, nil, &parked)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusAwaitingProcurement, parked.Status)

	// Parking is not idempotent: the request is no longer approved
	w = doJSON(t, "POST", requestPath(req.ID)+"/procurement", adminTok, nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	// Stock arrives; the parked request fulfills directly
	var pool models.StockPool
	w = doJSON(t, "POST", "/stock-pools", adminTok, models.CreateStockPoolRequest{
		CategoryID:    cables,
		Location:      "HQ storeroom",
		ItemName:      "USB-C adapter",
		TotalQuantity: 5,
	}, &pool)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var assignment models.AssetAssignment
	w = doJSON(t, "POST", requestPath(req.ID)+"/fulfill", adminTok, models.FulfillRequestRequest{
		StockPoolID: &pool.ID,
	}, &assignment)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, assignment.IsActive)

	w = doJSON(t, "GET", requestPath(req.ID), employeeTok, nil, &req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusFulfilled, req.CurrentStatus)
}

// Tag and serial number are both optional on a unit; uniqueness only
// applies when a value is present.
func TestUntaggedUnits(t *testing.T) {
	testutil.RequireIntegration(t)

	admin := createTestUser(t, "tag-admin@example.com", []string{"org_admin"}, nil, nil)
	adminTok := tokenFor(t, admin, "org_admin")

	monitors := categoryID(t, "Monitor")

	var first models.SerializedUnit
	w := doJSON(t, "POST", "/units", adminTok, models.CreateUnitRequest{
		CategoryID: monitors,
	}, &first)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Nil(t, first.AssetTag)
	assert.Nil(t, first.SerialNumber)

	// A second untagged unit does not collide
	var second models.SerializedUnit
	w = doJSON(t, "POST", "/units", adminTok, models.CreateUnitRequest{
		CategoryID: monitors,
	}, &second)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Present tags still collide
	w = doJSON(t, "PUT", unitPath(first.ID), adminTok, models.UpdateUnitRequest{
		AssetTag: strPtr("MON-9001"),
	}, &first)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = doJSON(t, "PUT", unitPath(second.ID), adminTok, models.UpdateUnitRequest{
		AssetTag: strPtr("MON-9001"),
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	// Clearing the tag brings the unit back to untagged
	w = doJSON(t, "PUT", unitPath(first.ID), adminTok, models.UpdateUnitRequest{
		AssetTag: strPtr(""),
	}, &first)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, first.AssetTag)
}

// Rejection at the manager stage terminates the request.
func TestRejectionFlow(t *testing.T) {
	testutil.RequireIntegration(t)

	manager := createTestUser(t, "rej-manager@example.com", []string{"manager"}, nil, nil)
	employee := createTestUser(t, "rej-employee@example.com", []string{"employee"}, &manager, nil)

	managerTok := tokenFor(t, manager, "manager")
	employeeTok := tokenFor(t, employee, "employee")

	laptops := categoryID(t, "Laptop")

	var req models.AssetRequest
	w := doJSON(t, "POST", "/requests", employeeTok, models.SubmitRequestRequest{
		CategoryID:    laptops,
		RequestType:   models.RequestTypeUpgrade,
		Justification: "want a bigger screen",
	}, &req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, "POST", requestPath(req.ID)+"/reject", managerTok,
		models.RejectRequestRequest{Reason: "current hardware is adequate"}, &req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusRejected, req.CurrentStatus)
	require.NotNil(t, req.RejectionReason)
	assert.Equal(t, "current hardware is adequate", *req.RejectionReason)

	// Terminal: further approvals fail
	w = doJSON(t, "POST", requestPath(req.ID)+"/approve", managerTok, nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
