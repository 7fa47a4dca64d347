package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/repository"
)

// ConversationService opens direct conversations between members.
type ConversationService interface {
	CreateOrGet(ctx context.Context, userID, workspaceID uint, payload dto.ConversationCreateRequest) (dto.ConversationResponse, error)
}

type conversationService struct {
	conversations repository.ConversationRepository
	members       repository.MemberRepository
	guard         AccessGuard
	events        *EventEmitter
	validator     *validator.Validate
	logger        zerolog.Logger
}

// NewConversationService constructs the conversation service.
func NewConversationService(conversations repository.ConversationRepository, members repository.MemberRepository, guard AccessGuard, events *EventEmitter, validate *validator.Validate, logger zerolog.Logger) ConversationService {
	return &conversationService{
		conversations: conversations,
		members:       members,
		guard:         guard,
		events:        events,
		validator:     validate,
		logger:        logger.With().Str("component", "conversation_service").Logger(),
	}
}

// CreateOrGet returns the conversation between the caller and another member
// of the same workspace, creating it on first use. Either member may have
// opened it.
func (s *conversationService) CreateOrGet(ctx context.Context, userID, workspaceID uint, payload dto.ConversationCreateRequest) (dto.ConversationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ConversationResponse{}, err
	}

	caller, err := s.guard.Authorize(ctx, workspaceID, userID)
	if err != nil {
		return dto.ConversationResponse{}, err
	}

	other, err := s.members.Get(ctx, payload.MemberID)
	if err != nil {
		return dto.ConversationResponse{}, normalizeRepoError(err)
	}
	if other.WorkspaceID != workspaceID {
		return dto.ConversationResponse{}, ErrNotFound
	}

	conversation, created, err := s.conversations.FindOrCreate(ctx, workspaceID, caller.ID, other.ID)
	if err != nil {
		return dto.ConversationResponse{}, err
	}

	if created {
		s.events.Emit(ctx, userID, conversation.ID, dto.ChangeEvent{
			Type:           dto.EventConversationCreated,
			WorkspaceID:    workspaceID,
			ConversationID: uintRef(conversation.ID),
			Audience:       []uint{conversation.MemberOneID, conversation.MemberTwoID},
		})
	}

	return dto.NewConversationResponse(conversation), nil
}

// conversationParticipants returns both members of the conversation when
// memberID is one of them. Messages outside conversations have no audience.
func conversationParticipants(ctx context.Context, conversations repository.ConversationRepository, memberID uint, conversationID *uint) ([]uint, error) {
	if conversationID == nil {
		return nil, nil
	}
	conversation, err := conversations.Get(ctx, *conversationID)
	if err != nil {
		return nil, normalizeRepoError(err)
	}
	if !conversation.Involves(memberID) {
		return nil, ErrUnauthorized
	}
	return []uint{conversation.MemberOneID, conversation.MemberTwoID}, nil
}

// conversationAudience is conversationParticipants without the membership
// check. A failed lookup yields no audience, so nothing is delivered.
func conversationAudience(ctx context.Context, conversations repository.ConversationRepository, conversationID *uint) []uint {
	if conversationID == nil {
		return nil
	}
	conversation, err := conversations.Get(ctx, *conversationID)
	if err != nil {
		return nil
	}
	return []uint{conversation.MemberOneID, conversation.MemberTwoID}
}
