package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/service"
	"github.com/noah-isme/teamchat-api/internal/utils"
)

// AuthHandler exposes password sign-up, sign-in and the current user.
type AuthHandler struct {
	service service.AuthService
	logger  zerolog.Logger
}

// NewAuthHandler constructs the auth handler.
func NewAuthHandler(service service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register wires the public auth routes. signInGuard, when set, runs before sign-in.
func (h *AuthHandler) Register(router fiber.Router, signInGuard fiber.Handler) {
	router.Post("/sign-up", h.signUp)
	if signInGuard != nil {
		router.Post("/sign-in", signInGuard, h.signIn)
		return
	}
	router.Post("/sign-in", h.signIn)
}

func (h *AuthHandler) signUp(c *fiber.Ctx) error {
	var payload dto.SignUpRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	result, err := h.service.SignUp(requestContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to sign up")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "account created", result)
}

func (h *AuthHandler) signIn(c *fiber.Ctx) error {
	var payload dto.SignInRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	result, err := h.service.SignIn(requestContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to sign in")
	}

	return utils.SendSuccess(c, "signed in", result)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.service.CurrentUser(requestContext(c), userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load user")
	}
	if user == nil {
		return notFound(c, "user")
	}

	return utils.SendSuccess(c, "user retrieved", user)
}
