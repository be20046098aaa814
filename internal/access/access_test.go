package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wanfrev/machinehub-agent/internal/access"
	"github.com/wanfrev/machinehub-agent/internal/domain"
)

func TestCanAccessMachine_AdminSeesEverything(t *testing.T) {
	assignments := [][]string{nil, {}, {"1"}, {"1", "2", "3"}}
	for _, a := range assignments {
		assert.True(t, access.CanAccessMachine(domain.RoleAdmin, a, "7"))
		assert.True(t, access.CanAccessMachine(domain.RoleAdmin, a, "99"))
	}
}

func TestCanAccessMachine_EmptyAssignmentSeesNothing(t *testing.T) {
	for _, role := range []string{domain.RoleSupervisor, domain.RoleOperator, "cashier"} {
		assert.False(t, access.CanAccessMachine(role, nil, "7"), "role %s", role)
		assert.False(t, access.CanAccessMachine(role, []string{}, "7"), "role %s", role)
	}
}

func TestCanAccessMachine_AssignedMachineIsVisible(t *testing.T) {
	for _, role := range []string{domain.RoleSupervisor, domain.RoleOperator} {
		assert.True(t, access.CanAccessMachine(role, []string{"3", "7"}, "7"))
		assert.False(t, access.CanAccessMachine(role, []string{"3", "7"}, "8"))
	}
}

func TestCanAccessMachine_MissingMachineID(t *testing.T) {
	assert.False(t, access.CanAccessMachine(domain.RoleAdmin, []string{"1"}, ""))
	assert.False(t, access.CanAccessMachine(domain.RoleOperator, []string{"1"}, ""))
}

func TestFilterMachines(t *testing.T) {
	machines := []domain.Machine{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	admin := domain.Identity{Role: domain.RoleAdmin}
	assert.Len(t, access.FilterMachines(machines, admin), 3)

	operator := domain.Identity{Role: domain.RoleOperator, AssignedMachineIDs: []string{"2"}}
	filtered := access.FilterMachines(machines, operator)
	if assert.Len(t, filtered, 1) {
		assert.Equal(t, "2", filtered[0].ID)
	}

	unassigned := domain.Identity{Role: domain.RoleSupervisor}
	assert.Empty(t, access.FilterMachines(machines, unassigned))
}

func TestRoleCapabilities(t *testing.T) {
	admin := access.RoleCapabilities(domain.RoleAdmin)
	assert.True(t, admin.CanEditCoinValues)
	assert.True(t, admin.CanSeeFinance)

	supervisor := access.RoleCapabilities(domain.RoleSupervisor)
	assert.True(t, supervisor.CanViewReports)
	assert.False(t, supervisor.CanEditCoinValues)

	operator := access.RoleCapabilities(domain.RoleOperator)
	assert.False(t, operator.CanViewReports)

	unknown := access.RoleCapabilities("ghost")
	assert.Equal(t, access.Capabilities{}, unknown)
}
