package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanfrev/machinehub-agent/internal/access"
	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/service/auth"
)

const testSecret = "middleware-secret"

type fakeSessions struct{}

func (fakeSessions) Touch(_ context.Context, _ string, _ domain.Identity, _ time.Duration) error {
	return nil
}

func (fakeSessions) ActiveCount(_ context.Context) (int64, error) { return 0, nil }

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	authSvc := auth.NewService(testSecret, fakeSessions{})

	api := app.Group("/api", AuthRequired(authSvc))
	api.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(GetIdentity(c))
	})
	api.Get("/reports",
		RequireCapability(func(caps access.Capabilities) bool { return caps.CanViewReports }),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	api.Get("/machines/:id",
		RequireMachineAccess("id"),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	return app
}

func tokenFor(t *testing.T, role string, machines []string) string {
	t.Helper()
	claims := &auth.Claims{
		UserID:             uuid.New(),
		Role:               role,
		AssignedMachineIDs: machines,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, app *fiber.App, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestAuthRequiredRejectsMissingAndBadTokens(t *testing.T) {
	app := newApp()

	resp := doRequest(t, app, "/api/whoami", "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, app, "/api/whoami", "garbage")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRequiredAcceptsValidToken(t *testing.T) {
	app := newApp()

	resp := doRequest(t, app, "/api/whoami", tokenFor(t, domain.RoleOperator, []string{"5"}))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireCapabilityByRole(t *testing.T) {
	app := newApp()

	resp := doRequest(t, app, "/api/reports", tokenFor(t, domain.RoleOperator, nil))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, "/api/reports", tokenFor(t, domain.RoleSupervisor, nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doRequest(t, app, "/api/reports", tokenFor(t, domain.RoleAdmin, nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireMachineAccessScopesByAssignment(t *testing.T) {
	app := newApp()
	operator := tokenFor(t, domain.RoleOperator, []string{"5"})

	resp := doRequest(t, app, "/api/machines/5", operator)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doRequest(t, app, "/api/machines/9", operator)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, "/api/machines/9", tokenFor(t, domain.RoleAdmin, nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
