package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/service/auth"
)

const IdentityContextKey = "identity"

func AuthRequired(authService auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    "UNAUTHORIZED",
				"message": "Missing authorization header",
			})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    "UNAUTHORIZED",
				"message": "Invalid authorization header format",
			})
		}

		identity, err := authService.ValidateAccessToken(c.Context(), parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    "UNAUTHORIZED",
				"message": "Invalid or expired token",
			})
		}

		c.Locals(IdentityContextKey, identity)

		return c.Next()
	}
}

func GetIdentity(c *fiber.Ctx) *domain.Identity {
	identity, ok := c.Locals(IdentityContextKey).(*domain.Identity)
	if !ok {
		return nil
	}
	return identity
}
