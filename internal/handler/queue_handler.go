package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type QueueHandler struct {
	queue Queue
}

func NewQueueHandler(queue Queue) (*QueueHandler, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	return &QueueHandler{queue: queue}, nil
}

func RegisterQueueRoutes(router fiber.Router, queue Queue) error {
	h, err := NewQueueHandler(queue)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1/queue")
	v1.Get("/status", h.GetStatus)
	v1.Post("/pause", h.Pause)
	v1.Post("/resume", h.Resume)
	v1.Post("/clear", h.Clear)

	return nil
}

func (h *QueueHandler) GetStatus(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.queue.Status())
}

func (h *QueueHandler) Pause(c *fiber.Ctx) error {
	h.queue.Pause()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "paused",
	})
}

func (h *QueueHandler) Resume(c *fiber.Ctx) error {
	h.queue.Resume()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "running",
	})
}

func (h *QueueHandler) Clear(c *fiber.Ctx) error {
	dropped := h.queue.Clear()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "cleared",
		"dropped": dropped,
	})
}
