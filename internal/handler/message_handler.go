package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/service"
	"github.com/noah-isme/teamchat-api/internal/utils"
)

// MessageHandler wires message history, posting and reaction routes.
type MessageHandler struct {
	messages  service.MessageService
	reactions service.ReactionService
	logger    zerolog.Logger
}

// pageMeta carries the continuation of a message page.
type pageMeta struct {
	NextCursor string `json:"next_cursor,omitempty"`
	IsDone     bool   `json:"is_done"`
}

// NewMessageHandler constructs the message handler.
func NewMessageHandler(messages service.MessageService, reactions service.ReactionService, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		messages:  messages,
		reactions: reactions,
		logger:    logger.With().Str("component", "message_handler").Logger(),
	}
}

// Register attaches message endpoints to the router group. postGuard, when
// set, runs before message creation.
func (h *MessageHandler) Register(router fiber.Router, postGuard fiber.Handler) {
	router.Get("", h.page)
	if postGuard != nil {
		router.Post("", postGuard, h.create)
	} else {
		router.Post("", h.create)
	}
	router.Get("/:id", h.get)
	router.Get("/:id/thread", h.thread)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.remove)
	router.Post("/:id/reactions", h.toggleReaction)
}

func (h *MessageHandler) page(c *fiber.Ctx) error {
	var query dto.MessageListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	page, err := h.messages.GetPage(requestContext(c), userIDFromContext(c), query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load messages")
	}

	return utils.OK(c, page.Items, "messages retrieved", pageMeta{NextCursor: page.NextCursor, IsDone: page.IsDone})
}

func (h *MessageHandler) create(c *fiber.Ctx) error {
	var payload dto.MessageCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	message, err := h.messages.Create(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to post message")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message posted", message)
}

func (h *MessageHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	message, err := h.messages.Get(requestContext(c), userIDFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load message")
	}
	if message == nil {
		return notFound(c, "message")
	}
	return utils.SendSuccess(c, "message retrieved", message)
}

func (h *MessageHandler) thread(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.messages.SummarizeThread(requestContext(c), userIDFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to summarize thread")
	}
	if summary == nil {
		summary = &dto.ThreadSummary{}
	}
	return utils.SendSuccess(c, "thread summary retrieved", summary)
}

func (h *MessageHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.MessageUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	message, err := h.messages.Update(requestContext(c), userIDFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update message")
	}
	return utils.SendSuccess(c, "message updated", message)
}

func (h *MessageHandler) remove(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.messages.Remove(requestContext(c), userIDFromContext(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to remove message")
	}
	return utils.SendSuccess(c, "message removed", fiber.Map{"id": id})
}

func (h *MessageHandler) toggleReaction(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ReactionToggleRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	result, err := h.reactions.Toggle(requestContext(c), userIDFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to toggle reaction")
	}
	return utils.SendSuccess(c, "reaction toggled", result)
}
