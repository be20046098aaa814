package handler

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/middleware"
	"github.com/wanfrev/machinehub-agent/internal/service/notification"
)

type NotificationHandler struct {
	store notification.Service
}

func NewNotificationHandler(store notification.Service) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// List serves one page of the notification view, narrowed to the machines the
// caller may see. The server page is refreshed on each call; when the backend
// is unreachable the in-memory page still serves.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return middleware.Unauthorized("Identity not found")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}

	if err := h.store.LoadFromServer(c.Context(), page); err != nil {
		log.Printf("notifications: refresh for page %d failed, serving cached: %v", page, err)
	}

	return c.Status(fiber.StatusOK).JSON(h.store.List(*identity, page))
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return middleware.Unauthorized("Identity not found")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"count": h.store.UnreadCount(*identity),
	})
}

func (h *NotificationHandler) MarkSeen(c *fiber.Ctx) error {
	if err := h.store.MarkSeen(c.Context()); err != nil {
		return err
	}
	return c.Status(fiber.StatusNoContent).SendString("")
}

func (h *NotificationHandler) GetPreferences(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.store.Preferences())
}

func (h *NotificationHandler) UpdatePreferences(c *fiber.Ctx) error {
	var prefs domain.NotificationPreferences
	if err := c.BodyParser(&prefs); err != nil {
		return middleware.BadRequest("Invalid preferences body")
	}

	if err := h.store.SetPreferences(c.Context(), prefs); err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(prefs)
}

// SetViewing marks the notification panel open or closed; open panels
// suppress unread accumulation.
func (h *NotificationHandler) SetViewing(c *fiber.Ctx) error {
	var body struct {
		Viewing bool `json:"viewing"`
	}
	if err := c.BodyParser(&body); err != nil {
		return middleware.BadRequest("Invalid viewing body")
	}

	h.store.SetViewing(body.Viewing)
	return c.Status(fiber.StatusNoContent).SendString("")
}
