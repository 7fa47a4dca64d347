package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/service"
	"github.com/noah-isme/teamchat-api/internal/utils"
)

// WorkspaceHandler wires workspace lifecycle and join routes.
type WorkspaceHandler struct {
	service service.WorkspaceService
	logger  zerolog.Logger
}

// NewWorkspaceHandler constructs the workspace handler.
func NewWorkspaceHandler(service service.WorkspaceService, logger zerolog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		service: service,
		logger:  logger.With().Str("component", "workspace_handler").Logger(),
	}
}

// Register attaches workspace endpoints to the router group.
func (h *WorkspaceHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.remove)
	router.Get("/:id/info", h.info)
	router.Post("/:id/join-code", h.newJoinCode)
	router.Post("/:id/join", h.join)
}

func (h *WorkspaceHandler) list(c *fiber.Ctx) error {
	workspaces, err := h.service.List(requestContext(c), userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to list workspaces")
	}
	return utils.SendSuccess(c, "workspaces retrieved", workspaces)
}

func (h *WorkspaceHandler) create(c *fiber.Ctx) error {
	var payload dto.WorkspaceCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	workspace, err := h.service.Create(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create workspace")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "workspace created", workspace)
}

func (h *WorkspaceHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	workspace, err := h.service.Get(requestContext(c), userIDFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load workspace")
	}
	if workspace == nil {
		return notFound(c, "workspace")
	}
	return utils.SendSuccess(c, "workspace retrieved", workspace)
}

func (h *WorkspaceHandler) info(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	info, err := h.service.Info(requestContext(c), userIDFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load workspace info")
	}
	if info == nil {
		return notFound(c, "workspace")
	}
	return utils.SendSuccess(c, "workspace info retrieved", info)
}

func (h *WorkspaceHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.WorkspaceUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	workspace, err := h.service.Update(requestContext(c), userIDFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update workspace")
	}
	return utils.SendSuccess(c, "workspace updated", workspace)
}

func (h *WorkspaceHandler) remove(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Remove(requestContext(c), userIDFromContext(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to remove workspace")
	}
	return utils.SendSuccess(c, "workspace removed", fiber.Map{"id": id})
}

func (h *WorkspaceHandler) newJoinCode(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	workspace, err := h.service.NewJoinCode(requestContext(c), userIDFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to regenerate join code")
	}
	return utils.SendSuccess(c, "join code regenerated", workspace)
}

func (h *WorkspaceHandler) join(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.WorkspaceJoinRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	workspace, err := h.service.Join(requestContext(c), userIDFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to join workspace")
	}
	return utils.SendSuccess(c, "joined workspace", workspace)
}
