package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/service"
	"github.com/noah-isme/teamchat-api/internal/utils"
)

// ChannelHandler wires channel routes.
type ChannelHandler struct {
	service service.ChannelService
	logger  zerolog.Logger
}

// NewChannelHandler constructs the channel handler.
func NewChannelHandler(service service.ChannelService, logger zerolog.Logger) *ChannelHandler {
	return &ChannelHandler{
		service: service,
		logger:  logger.With().Str("component", "channel_handler").Logger(),
	}
}

// Register attaches channel endpoints to the protected API group.
func (h *ChannelHandler) Register(router fiber.Router) {
	router.Get("/workspaces/:id/channels", h.list)
	router.Post("/workspaces/:id/channels", h.create)
	router.Get("/channels/:id", h.get)
	router.Patch("/channels/:id", h.update)
	router.Delete("/channels/:id", h.remove)
}

func (h *ChannelHandler) list(c *fiber.Ctx) error {
	workspaceID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	channels, err := h.service.List(requestContext(c), userIDFromContext(c), workspaceID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list channels")
	}
	return utils.SendSuccess(c, "channels retrieved", channels)
}

func (h *ChannelHandler) create(c *fiber.Ctx) error {
	workspaceID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ChannelCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	channel, err := h.service.Create(requestContext(c), userIDFromContext(c), workspaceID, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create channel")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "channel created", channel)
}

func (h *ChannelHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	channel, err := h.service.Get(requestContext(c), userIDFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load channel")
	}
	if channel == nil {
		return notFound(c, "channel")
	}
	return utils.SendSuccess(c, "channel retrieved", channel)
}

func (h *ChannelHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ChannelUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	channel, err := h.service.Update(requestContext(c), userIDFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update channel")
	}
	return utils.SendSuccess(c, "channel updated", channel)
}

func (h *ChannelHandler) remove(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Remove(requestContext(c), userIDFromContext(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to remove channel")
	}
	return utils.SendSuccess(c, "channel removed", fiber.Map{"id": id})
}
