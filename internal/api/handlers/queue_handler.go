package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/transfer"
	"github.com/gofiber/fiber/v2"
)

const maxProcessLimit = 50

type QueueProcessor interface {
	Process(ctx context.Context, now time.Time, limit int) (*transfer.ProcessSummary, error)
}

type QueueHandler struct {
	p   QueueProcessor
	now func() time.Time
}

func NewQueueHandler(p QueueProcessor, now func() time.Time) *QueueHandler {
	if now == nil {
		now = time.Now
	}
	return &QueueHandler{p: p, now: now}
}

// ProcessQueue runs one dispatcher invocation and reports what happened to
// each entry it picked.
func (h *QueueHandler) ProcessQueue(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be positive",
		})
	}
	if limit > maxProcessLimit {
		limit = maxProcessLimit
	}

	summary, err := h.p.Process(c.UserContext(), h.now().UTC(), limit)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to process queue",
		})
	}

	return c.Status(fiber.StatusOK).JSON(summary)
}
