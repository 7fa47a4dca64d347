package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/service"
	"github.com/noah-isme/teamchat-api/internal/utils"
)

// ConversationHandler opens direct conversations.
type ConversationHandler struct {
	service service.ConversationService
	logger  zerolog.Logger
}

// NewConversationHandler constructs the conversation handler.
func NewConversationHandler(service service.ConversationService, logger zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: service,
		logger:  logger.With().Str("component", "conversation_handler").Logger(),
	}
}

// Register attaches conversation endpoints to the protected API group.
func (h *ConversationHandler) Register(router fiber.Router) {
	router.Post("/workspaces/:id/conversations", h.createOrGet)
}

func (h *ConversationHandler) createOrGet(c *fiber.Ctx) error {
	workspaceID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ConversationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	conversation, err := h.service.CreateOrGet(requestContext(c), userIDFromContext(c), workspaceID, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to open conversation")
	}
	return utils.SendSuccess(c, "conversation ready", conversation)
}
