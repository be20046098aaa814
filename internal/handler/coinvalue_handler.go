package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/wanfrev/machinehub-agent/internal/backend"
	"github.com/wanfrev/machinehub-agent/internal/middleware"
	"github.com/wanfrev/machinehub-agent/internal/service/coinvalue"
)

type CoinValueHandler struct {
	coinValues coinvalue.Service
}

func NewCoinValueHandler(coinValues coinvalue.Service) *CoinValueHandler {
	return &CoinValueHandler{coinValues: coinValues}
}

func (h *CoinValueHandler) List(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.coinValues.Values())
}

func (h *CoinValueHandler) Set(c *fiber.Ctx) error {
	var body struct {
		Value float64 `json:"value"`
	}
	if err := c.BodyParser(&body); err != nil {
		return middleware.BadRequest("Invalid coin value body")
	}

	err := h.coinValues.Set(c.Context(), c.Params("type"), body.Value)
	switch {
	case errors.Is(err, coinvalue.ErrInvalidValue):
		return middleware.BadRequest(err.Error())
	case errors.Is(err, backend.ErrUnavailable):
		return middleware.BadGateway("Fleet backend unavailable")
	case err != nil:
		return err
	}

	return c.Status(fiber.StatusOK).JSON(h.coinValues.Values())
}
