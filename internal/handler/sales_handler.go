package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wanfrev/machinehub-agent/internal/service/sales"
)

type SalesHandler struct {
	sales sales.Service
}

func NewSalesHandler(salesSvc sales.Service) *SalesHandler {
	return &SalesHandler{sales: salesSvc}
}

// Daily serves the archived revenue report. Day bounds are fleet-local
// YYYY-MM-DD, defaulting to today.
func (h *SalesHandler) Daily(c *fiber.Ctx) error {
	rows, err := h.sales.DailyReport(c.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(rows)
}
