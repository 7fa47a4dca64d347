package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/teamchat-api/internal/middleware"
	"github.com/noah-isme/teamchat-api/internal/service"
	"github.com/noah-isme/teamchat-api/internal/utils"
)

const (
	workspaceIDLocal = "workspace_id"
	memberIDLocal    = "member_id"
	requestCtxLocal  = "request_ctx"
)

// RealtimeHandler upgrades authorised members to a workspace change feed.
type RealtimeHandler struct {
	service service.RealtimeService
	guard   service.AccessGuard
	logger  zerolog.Logger
}

// NewRealtimeHandler creates a realtime handler instance.
func NewRealtimeHandler(service service.RealtimeService, guard service.AccessGuard, logger zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		service: service,
		guard:   guard,
		logger:  logger.With().Str("component", "realtime_handler").Logger(),
	}
}

// Register binds the websocket route under the protected API group.
func (h *RealtimeHandler) Register(router fiber.Router) {
	router.Get("/workspaces/:id/ws", h.authorize, websocket.New(h.handleConnection))
}

// authorize resolves membership before the upgrade so outsiders get a plain
// HTTP error instead of a socket.
func (h *RealtimeHandler) authorize(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return utils.SendError(c, fiber.StatusUpgradeRequired, "websocket upgrade required")
	}

	workspaceID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := requestContext(c)
	member, err := h.guard.Authorize(ctx, workspaceID, userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to authorize realtime subscription")
	}

	c.Locals(workspaceIDLocal, workspaceID)
	c.Locals(memberIDLocal, member.ID)
	c.Locals(requestCtxLocal, ctx)
	return c.Next()
}

func (h *RealtimeHandler) handleConnection(conn *websocket.Conn) {
	userID, _ := conn.Locals(middleware.UserIDLocal).(uint)
	workspaceID, _ := conn.Locals(workspaceIDLocal).(uint)
	memberID, _ := conn.Locals(memberIDLocal).(uint)
	baseCtx, _ := conn.Locals(requestCtxLocal).(context.Context)
	if userID == 0 || workspaceID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "subscription not authorised"))
		_ = conn.Close()
		return
	}

	opts := service.RealtimeConnectionOptions{
		UserID:        userID,
		MemberID:      memberID,
		WorkspaceID:   workspaceID,
		CorrelationID: middleware.CorrelationIDFromContext(baseCtx),
		Context:       baseCtx,
	}

	h.logger.Info().Uint("user_id", userID).Uint("workspace_id", workspaceID).Msg("realtime websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Uint("user_id", userID).Uint("workspace_id", workspaceID).Msg("realtime websocket disconnected")
}
