package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gatherly/notify/internal/domain"
	"github.com/gatherly/notify/internal/scheduler"
)

const maxBatchSize = 100

// Queue is the scheduler surface the HTTP API depends on.
type Queue interface {
	Enqueue(msg domain.Message, priority domain.Priority) (string, error)
	EnqueueBatch(msgs []domain.Message, priority domain.Priority) ([]string, error)
	Status() scheduler.Status
	Pause()
	Resume()
	Clear() int
}

// TemplateRenderer produces a channel-formatted message from a template id.
type TemplateRenderer interface {
	Render(templateID string, variables map[string]string, channel domain.Channel) (domain.Message, error)
}

// TemplateLister exposes the template catalog for discovery.
type TemplateLister interface {
	IDs() []string
}

type MessageHandler struct {
	queue    Queue
	renderer TemplateRenderer
	catalog  TemplateLister
}

func NewMessageHandler(queue Queue, renderer TemplateRenderer, catalog TemplateLister) (*MessageHandler, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("template renderer is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("template catalog is required")
	}
	return &MessageHandler{queue: queue, renderer: renderer, catalog: catalog}, nil
}

func RegisterMessageRoutes(router fiber.Router, queue Queue, renderer TemplateRenderer, catalog TemplateLister) error {
	h, err := NewMessageHandler(queue, renderer, catalog)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/messages", h.EnqueueMessage)
	v1.Post("/messages/batch", h.EnqueueBatch)
	v1.Post("/messages/render", h.RenderAndEnqueue)
	v1.Get("/templates", h.ListTemplates)

	return nil
}

type enqueueMessageRequest struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Content  string            `json:"content"`
	Channel  string            `json:"channel"`
	Priority string            `json:"priority"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type enqueueBatchRequest struct {
	Messages []enqueueMessageRequest `json:"messages"`
	Priority string                  `json:"priority,omitempty"`
}

type renderRequest struct {
	TemplateID string            `json:"templateId"`
	To         string            `json:"to"`
	Channel    string            `json:"channel"`
	Priority   string            `json:"priority,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
}

type enqueueMessageResponse struct {
	MessageID string `json:"messageId"`
	Channel   string `json:"channel"`
	Priority  string `json:"priority"`
	Status    string `json:"status"`
}

type enqueueBatchResponse struct {
	MessageIDs []string `json:"messageIds"`
	Count      int      `json:"count"`
	Status     string   `json:"status"`
}

type listTemplatesResponse struct {
	Templates []string `json:"templates"`
}

func (h *MessageHandler) EnqueueMessage(c *fiber.Ctx) error {
	var req enqueueMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	msg, priority, err := requestToMessage(req)
	if err != nil {
		return toHTTPError(err)
	}

	id, err := h.queue.Enqueue(msg, priority)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(enqueueMessageResponse{
		MessageID: id,
		Channel:   msg.Channel.String(),
		Priority:  pickPriority(priority, msg.Priority).String(),
		Status:    domain.StateQueued.String(),
	})
}

func (h *MessageHandler) EnqueueBatch(c *fiber.Ctx) error {
	var req enqueueBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if len(req.Messages) == 0 {
		return toHTTPError(fmt.Errorf("%w: messages is required", domain.ErrValidation))
	}
	if len(req.Messages) > maxBatchSize {
		return toHTTPError(fmt.Errorf("%w: batch size %d exceeds limit %d", domain.ErrValidation, len(req.Messages), maxBatchSize))
	}

	batchPriority, err := parseOptionalPriority(req.Priority)
	if err != nil {
		return toHTTPError(err)
	}

	msgs := make([]domain.Message, 0, len(req.Messages))
	for i, item := range req.Messages {
		msg, _, err := requestToMessage(item)
		if err != nil {
			return toHTTPError(fmt.Errorf("message %d: %w", i, err))
		}
		msgs = append(msgs, msg)
	}

	ids, err := h.queue.EnqueueBatch(msgs, batchPriority)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(enqueueBatchResponse{
		MessageIDs: ids,
		Count:      len(ids),
		Status:     domain.StateQueued.String(),
	})
}

// RenderAndEnqueue renders a catalog template for one recipient and admits
// the result into the queue in a single call.
func (h *MessageHandler) RenderAndEnqueue(c *fiber.Ctx) error {
	var req renderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.TemplateID) == "" {
		return toHTTPError(fmt.Errorf("%w: templateId is required", domain.ErrValidation))
	}
	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return toHTTPError(err)
	}
	priority, err := parseOptionalPriority(req.Priority)
	if err != nil {
		return toHTTPError(err)
	}

	msg, err := h.renderer.Render(strings.TrimSpace(req.TemplateID), req.Variables, channel)
	if err != nil {
		return toHTTPError(err)
	}
	msg.To = strings.TrimSpace(req.To)

	id, err := h.queue.Enqueue(msg, priority)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(enqueueMessageResponse{
		MessageID: id,
		Channel:   msg.Channel.String(),
		Priority:  pickPriority(priority, msg.Priority).String(),
		Status:    domain.StateQueued.String(),
	})
}

func (h *MessageHandler) ListTemplates(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(listTemplatesResponse{
		Templates: h.catalog.IDs(),
	})
}

func requestToMessage(req enqueueMessageRequest) (domain.Message, domain.Priority, error) {
	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return domain.Message{}, "", err
	}

	priority, err := parseOptionalPriority(req.Priority)
	if err != nil {
		return domain.Message{}, "", err
	}

	msg := domain.Message{
		To:       strings.TrimSpace(req.To),
		Subject:  strings.TrimSpace(req.Subject),
		Content:  req.Content,
		Channel:  channel,
		Priority: pickPriority(priority, domain.PriorityNormal),
		Metadata: req.Metadata,
	}
	return msg, priority, nil
}

func parseOptionalPriority(raw string) (domain.Priority, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return domain.ParsePriorityFromString(raw)
}

func pickPriority(explicit, fallback domain.Priority) domain.Priority {
	if explicit != "" {
		return explicit
	}
	return fallback
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrMissingVariables):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrTemplateNotFound), errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrChannelNotSupported):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return err
	}
}
