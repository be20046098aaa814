package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/middleware"
	"github.com/wanfrev/machinehub-agent/internal/realtime"
	"github.com/wanfrev/machinehub-agent/internal/service/auth"
)

type WSHandler struct {
	hub  *realtime.Hub
	auth auth.Service
}

func NewWSHandler(hub *realtime.Hub, authSvc auth.Service) *WSHandler {
	return &WSHandler{hub: hub, auth: authSvc}
}

// Upgrade gates the websocket route. Browsers cannot set headers on a socket
// request, so the token travels as a query parameter. The validated identity
// is stashed for Serve, which registers the connection under it.
func (h *WSHandler) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := c.Query("token")
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    "UNAUTHORIZED",
				"message": "Missing token",
			})
		}
		identity, err := h.auth.ValidateAccessToken(c.Context(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    "UNAUTHORIZED",
				"message": "Invalid or expired token",
			})
		}
		c.Locals(middleware.IdentityContextKey, identity)

		return c.Next()
	}
}

// Serve attaches the connection to the relay hub until it closes. The hub
// withholds machine-bound messages from identities outside their scope.
func (h *WSHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		identity, ok := conn.Locals(middleware.IdentityContextKey).(*domain.Identity)
		if !ok {
			_ = conn.Close()
			return
		}
		h.hub.Attach(conn, *identity)
	})
}
