package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wanfrev/machinehub-agent/internal/access"
	"github.com/wanfrev/machinehub-agent/internal/domain"
)

func RequireRole(requiredRole string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := GetIdentity(c)
		if identity == nil {
			return Unauthorized("Identity not found")
		}

		if identity.Role != requiredRole && identity.Role != domain.RoleAdmin {
			return Forbidden("Insufficient permissions for this operation")
		}

		return c.Next()
	}
}

// RequireCapability gates a route on one flag of the role capability set.
func RequireCapability(check func(access.Capabilities) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := GetIdentity(c)
		if identity == nil {
			return Unauthorized("Identity not found")
		}

		if !check(access.RoleCapabilities(identity.Role)) {
			return Forbidden("Insufficient permissions for this operation")
		}

		return c.Next()
	}
}

// RequireMachineAccess gates a machine-scoped route on the identity's
// assignment list. The machine id comes from the named route param.
func RequireMachineAccess(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := GetIdentity(c)
		if identity == nil {
			return Unauthorized("Identity not found")
		}

		machineID := c.Params(param)
		if !access.CanAccessMachine(identity.Role, identity.AssignedMachineIDs, machineID) {
			return Forbidden("Machine outside your assignment")
		}

		return c.Next()
	}
}
