package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/models"
	"github.com/noah-isme/teamchat-api/internal/observability"
	"github.com/noah-isme/teamchat-api/internal/repository"
)

// ReactionService toggles per-member reactions on messages.
type ReactionService interface {
	Toggle(ctx context.Context, userID, messageID uint, payload dto.ReactionToggleRequest) (dto.ReactionToggleResponse, error)
}

type reactionService struct {
	reactions     repository.ReactionRepository
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	guard         AccessGuard
	events        *EventEmitter
	validator     *validator.Validate
	logger        zerolog.Logger
}

// NewReactionService constructs the reaction service.
func NewReactionService(reactions repository.ReactionRepository, messages repository.MessageRepository, conversations repository.ConversationRepository, guard AccessGuard, events *EventEmitter, validate *validator.Validate, logger zerolog.Logger) ReactionService {
	return &reactionService{
		reactions:     reactions,
		messages:      messages,
		conversations: conversations,
		guard:         guard,
		events:        events,
		validator:     validate,
		logger:        logger.With().Str("component", "reaction_service").Logger(),
	}
}

// Toggle removes the caller's reaction with the given value when present and
// adds it otherwise. Messages of a direct conversation only accept reactions
// from its two participants.
func (s *reactionService) Toggle(ctx context.Context, userID, messageID uint, payload dto.ReactionToggleRequest) (dto.ReactionToggleResponse, error) {
	payload.Value = strings.TrimSpace(payload.Value)
	if err := s.validator.Struct(payload); err != nil {
		return dto.ReactionToggleResponse{}, err
	}

	message, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return dto.ReactionToggleResponse{}, normalizeRepoError(err)
	}

	member, err := s.guard.Authorize(ctx, message.WorkspaceID, userID)
	if err != nil {
		return dto.ReactionToggleResponse{}, err
	}
	audience, err := conversationParticipants(ctx, s.conversations, member.ID, message.ConversationID)
	if err != nil {
		return dto.ReactionToggleResponse{}, err
	}

	reaction, added, err := s.reactions.Toggle(ctx, models.Reaction{
		WorkspaceID: message.WorkspaceID,
		MessageID:   message.ID,
		MemberID:    member.ID,
		Value:       payload.Value,
	})
	if err != nil {
		return dto.ReactionToggleResponse{}, err
	}

	action := "removed"
	if added {
		action = "added"
	}
	observability.ReactionsToggled().WithLabelValues(action).Inc()

	event := messageEvent(dto.EventReactionToggled, message)
	event.MemberID = uintRef(member.ID)
	event.Audience = audience
	s.events.Emit(ctx, userID, reaction.ID, event)

	return dto.ReactionToggleResponse{ReactionID: reaction.ID, Added: added}, nil
}
