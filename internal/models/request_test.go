package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusPredicates(t *testing.T) {
	pending := []string{
		StatusPendingManagerApproval,
		StatusPendingSecondaryApproval,
		StatusPendingAdminApproval,
	}
	for _, s := range pending {
		assert.True(t, IsPendingStatus(s), s)
		assert.False(t, IsTerminalStatus(s), s)
		assert.False(t, CanFulfill(s), s)
	}

	assert.True(t, CanFulfill(StatusApproved))
	assert.True(t, CanFulfill(StatusAwaitingProcurement))
	assert.False(t, CanFulfill(StatusFulfilled))
	assert.False(t, CanFulfill(StatusRejected))

	assert.True(t, IsTerminalStatus(StatusFulfilled))
	assert.True(t, IsTerminalStatus(StatusRejected))
	assert.False(t, IsTerminalStatus(StatusApproved))
}

func TestRequestTypeAndUrgencyValidation(t *testing.T) {
	for _, v := range ValidRequestTypes {
		assert.True(t, IsValidRequestType(v), v)
	}
	assert.False(t, IsValidRequestType("emergency"))
	assert.False(t, IsValidRequestType(""))

	for _, v := range ValidUrgencies {
		assert.True(t, IsValidUrgency(v), v)
	}
	assert.False(t, IsValidUrgency("urgent"))
}

func TestRoleValidation(t *testing.T) {
	assert.True(t, ValidateRoles([]string{RoleEmployee}))
	assert.True(t, ValidateRoles([]string{RoleManager, RoleOrgAdmin}))
	assert.False(t, ValidateRoles(nil))
	assert.False(t, ValidateRoles([]string{}))
	assert.False(t, ValidateRoles([]string{"superuser"}))
	assert.False(t, ValidateRoles([]string{RoleEmployee, "root"}))
}

func TestUnitStatusHelpers(t *testing.T) {
	assert.True(t, IsAssigned(UnitIssued))
	assert.True(t, IsAssigned(UnitInUse))
	assert.False(t, IsAssigned(UnitAvailable))
	assert.False(t, IsAssigned(UnitRetired))

	for _, s := range ValidUnitStatuses {
		assert.True(t, IsValidUnitStatus(s), s)
	}
	assert.False(t, IsValidUnitStatus("broken"))

	for _, c := range ValidConditions {
		assert.True(t, IsValidCondition(c), c)
	}
	assert.False(t, IsValidCondition("mint"))
}

func TestUserRedacted(t *testing.T) {
	first := "Ada"
	u := User{
		ID:           1,
		Email:        "ada@example.com",
		PasswordHash: "$2a$10$secret",
		FirstName:    &first,
		Roles:        []string{RoleEmployee},
	}

	red := u.Redacted()
	assert.Empty(t, red.PasswordHash)
	assert.Equal(t, u.Email, red.Email)
	assert.Equal(t, u.FirstName, red.FirstName)
}

func TestUserDisplayName(t *testing.T) {
	first, last := "Ada", "Lovelace"

	u := User{Email: "ada@example.com"}
	assert.Equal(t, "ada@example.com", u.GetDisplayName())

	u.FirstName = &first
	assert.Equal(t, "Ada", u.GetDisplayName())

	u.LastName = &last
	assert.Equal(t, "Ada Lovelace", u.GetDisplayName())
}
