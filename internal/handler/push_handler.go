package handler

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wanfrev/machinehub-agent/internal/worker"
)

// handlePushTimeout bounds one webhook delivery end to end, including the
// worker's fallback fetch.
const handlePushTimeout = 30 * time.Second

type PushHandler struct {
	worker       *worker.Worker
	webhookToken string
}

func NewPushHandler(pushWorker *worker.Worker, webhookToken string) *PushHandler {
	return &PushHandler{worker: pushWorker, webhookToken: webhookToken}
}

// Events is the webhook the backend pushes events to. The delivery is
// acknowledged immediately and processed in the background; the backend gets
// no signal about rendering outcomes.
func (h *PushHandler) Events(c *fiber.Ctx) error {
	if h.webhookToken != "" {
		presented := c.Get("X-Push-Token")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(h.webhookToken)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    "UNAUTHORIZED",
				"message": "Invalid push token",
			})
		}
	}

	// The fasthttp buffer is reused after the handler returns.
	body := append([]byte(nil), c.Body()...)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handlePushTimeout)
		defer cancel()
		h.worker.HandlePush(ctx, body)
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}
