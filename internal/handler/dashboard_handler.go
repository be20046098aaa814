package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wanfrev/machinehub-agent/internal/access"
	"github.com/wanfrev/machinehub-agent/internal/middleware"
	"github.com/wanfrev/machinehub-agent/internal/service/dashboard"
)

type DashboardHandler struct {
	dashboard dashboard.Service
}

func NewDashboardHandler(dashboardSvc dashboard.Service) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboardSvc}
}

func (h *DashboardHandler) Summary(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return middleware.Unauthorized("Identity not found")
	}

	summary := h.dashboard.Summary(*identity)

	// Finance figures stay off the wire for roles without the capability.
	if !access.RoleCapabilities(identity.Role).CanSeeFinance {
		summary.RevenueToday = 0
	}

	return c.Status(fiber.StatusOK).JSON(summary)
}

// Me returns the caller's identity and what their role lets them do, so the
// dashboard can shape itself without hard-coding the role matrix.
func (h *DashboardHandler) Me(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return middleware.Unauthorized("Identity not found")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"identity":     identity,
		"capabilities": access.RoleCapabilities(identity.Role),
	})
}
