package domain

import "github.com/google/uuid"

const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleOperator   = "operator"
)

// Identity is what the agent knows about a staff user: everything comes from
// the backend-issued token, nothing is stored locally.
type Identity struct {
	UserID             uuid.UUID `json:"user_id"`
	Name               string    `json:"name,omitempty"`
	Role               string    `json:"role"`
	AssignedMachineIDs []string  `json:"assigned_machine_ids"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
