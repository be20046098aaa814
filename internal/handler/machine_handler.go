package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/wanfrev/machinehub-agent/internal/backend"
	"github.com/wanfrev/machinehub-agent/internal/middleware"
	"github.com/wanfrev/machinehub-agent/internal/service/machine"
)

type MachineHandler struct {
	machines machine.Service
}

func NewMachineHandler(machines machine.Service) *MachineHandler {
	return &MachineHandler{machines: machines}
}

// List returns the machines visible to the caller's identity.
func (h *MachineHandler) List(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return middleware.Unauthorized("Identity not found")
	}

	return c.Status(fiber.StatusOK).JSON(h.machines.List(*identity))
}

func (h *MachineHandler) Get(c *fiber.Ctx) error {
	m, ok := h.machines.Lookup(c.Params("id"))
	if !ok {
		return middleware.NotFound("Machine not found")
	}
	return c.Status(fiber.StatusOK).JSON(m)
}

func (h *MachineHandler) Usage(c *fiber.Ctx) error {
	usage, err := h.machines.UsageToday(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, backend.ErrUnavailable) {
			return middleware.BadGateway("Fleet backend unavailable")
		}
		return err
	}
	return c.Status(fiber.StatusOK).JSON(usage)
}
