// Package access holds the pure visibility rules shared by the push worker,
// the live-socket path and the server-list loader. No I/O happens here.
package access

import "github.com/wanfrev/machinehub-agent/internal/domain"

// CanAccessMachine decides whether a user with the given role and assignment
// list may see events for machineID. Admin bypasses scoping; every other role
// only sees assigned machines, and an empty assignment list sees nothing.
func CanAccessMachine(role string, assignedMachineIDs []string, machineID string) bool {
	if machineID == "" {
		return false
	}
	if role == domain.RoleAdmin {
		return true
	}
	for _, id := range assignedMachineIDs {
		if id == machineID {
			return true
		}
	}
	return false
}

// FilterMachines keeps only the machines the identity may see, preserving
// order.
func FilterMachines(machines []domain.Machine, identity domain.Identity) []domain.Machine {
	if identity.Role == domain.RoleAdmin {
		return machines
	}

	assigned := make(map[string]struct{}, len(identity.AssignedMachineIDs))
	for _, id := range identity.AssignedMachineIDs {
		assigned[id] = struct{}{}
	}

	filtered := make([]domain.Machine, 0, len(machines))
	for _, m := range machines {
		if _, ok := assigned[m.ID]; ok {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// Capabilities gates what a role can do beyond plain visibility.
type Capabilities struct {
	CanViewReports    bool `json:"can_view_reports"`
	CanManageArea     bool `json:"can_manage_area"`
	CanEditMachines   bool `json:"can_edit_machines"`
	CanEditCoinValues bool `json:"can_edit_coin_values"`
	CanSeeFinance     bool `json:"can_see_finance"`
}

var roleCapabilities = map[string]Capabilities{
	domain.RoleAdmin: {
		CanViewReports:    true,
		CanManageArea:     true,
		CanEditMachines:   true,
		CanEditCoinValues: true,
		CanSeeFinance:     true,
	},
	domain.RoleSupervisor: {
		CanViewReports: true,
		CanManageArea:  true,
		CanSeeFinance:  true,
	},
	domain.RoleOperator: {},
}

// RoleCapabilities returns the capability set for a role. Unknown roles get
// the zero set.
func RoleCapabilities(role string) Capabilities {
	return roleCapabilities[role]
}
