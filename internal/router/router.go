package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/teamchat-api/internal/config"
	"github.com/noah-isme/teamchat-api/internal/handler"
	"github.com/noah-isme/teamchat-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	WorkspaceHandler    *handler.WorkspaceHandler
	MemberHandler       *handler.MemberHandler
	ChannelHandler      *handler.ChannelHandler
	ConversationHandler *handler.ConversationHandler
	MessageHandler      *handler.MessageHandler
	UploadHandler       *handler.UploadHandler
	RealtimeHandler     *handler.RealtimeHandler
	JWTMiddleware       fiber.Handler
	SignInLimiter       fiber.Handler
	MessageLimiter      fiber.Handler
	HealthProbes        []handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))
	api.Get("/metrics", observability.MetricsHandler())

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api.Group("/auth"), deps.SignInLimiter)
	}

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	protected := api.Group("", jwtMiddleware)

	if deps.AuthHandler != nil {
		protected.Get("/users/me", deps.AuthHandler.Me)
	}

	if deps.WorkspaceHandler != nil {
		deps.WorkspaceHandler.Register(protected.Group("/workspaces"))
	}
	if deps.MemberHandler != nil {
		deps.MemberHandler.Register(protected)
	}
	if deps.ChannelHandler != nil {
		deps.ChannelHandler.Register(protected)
	}
	if deps.ConversationHandler != nil {
		deps.ConversationHandler.Register(protected)
	}
	if deps.MessageHandler != nil {
		deps.MessageHandler.Register(protected.Group("/messages"), deps.MessageLimiter)
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.Register(protected.Group("/uploads"))
	}
	if deps.RealtimeHandler != nil {
		deps.RealtimeHandler.Register(protected)
	}
}
