package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/service"
	"github.com/noah-isme/teamchat-api/internal/utils"
)

// MemberHandler wires workspace membership routes.
type MemberHandler struct {
	service service.MemberService
	logger  zerolog.Logger
}

// NewMemberHandler constructs the member handler.
func NewMemberHandler(service service.MemberService, logger zerolog.Logger) *MemberHandler {
	return &MemberHandler{
		service: service,
		logger:  logger.With().Str("component", "member_handler").Logger(),
	}
}

// Register attaches member endpoints to the protected API group.
func (h *MemberHandler) Register(router fiber.Router) {
	router.Get("/workspaces/:id/members", h.list)
	router.Get("/workspaces/:id/members/me", h.current)
	router.Get("/members/:id", h.get)
	router.Patch("/members/:id", h.updateRole)
	router.Delete("/members/:id", h.remove)
}

func (h *MemberHandler) list(c *fiber.Ctx) error {
	workspaceID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	members, err := h.service.List(requestContext(c), userIDFromContext(c), workspaceID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list members")
	}
	return utils.SendSuccess(c, "members retrieved", members)
}

func (h *MemberHandler) current(c *fiber.Ctx) error {
	workspaceID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	member, err := h.service.Current(requestContext(c), userIDFromContext(c), workspaceID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load member")
	}
	if member == nil {
		return notFound(c, "member")
	}
	return utils.SendSuccess(c, "member retrieved", member)
}

func (h *MemberHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	member, err := h.service.Get(requestContext(c), userIDFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load member")
	}
	if member == nil {
		return notFound(c, "member")
	}
	return utils.SendSuccess(c, "member retrieved", member)
}

func (h *MemberHandler) updateRole(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.MemberRoleUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	member, err := h.service.UpdateRole(requestContext(c), userIDFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update member")
	}
	return utils.SendSuccess(c, "member updated", member)
}

func (h *MemberHandler) remove(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Remove(requestContext(c), userIDFromContext(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to remove member")
	}
	return utils.SendSuccess(c, "member removed", fiber.Map{"id": id})
}
