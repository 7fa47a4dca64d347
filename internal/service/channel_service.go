package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/models"
	"github.com/noah-isme/teamchat-api/internal/repository"
)

// ChannelService exposes channel management inside a workspace.
type ChannelService interface {
	Create(ctx context.Context, userID, workspaceID uint, payload dto.ChannelCreateRequest) (dto.ChannelResponse, error)
	List(ctx context.Context, userID, workspaceID uint) ([]dto.ChannelResponse, error)
	Get(ctx context.Context, userID, channelID uint) (*dto.ChannelResponse, error)
	Update(ctx context.Context, userID, channelID uint, payload dto.ChannelUpdateRequest) (dto.ChannelResponse, error)
	Remove(ctx context.Context, userID, channelID uint) error
}

type channelService struct {
	channels  repository.ChannelRepository
	cascade   repository.CascadeRepository
	guard     AccessGuard
	events    *EventEmitter
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChannelService constructs the channel service.
func NewChannelService(channels repository.ChannelRepository, cascade repository.CascadeRepository, guard AccessGuard, events *EventEmitter, validate *validator.Validate, logger zerolog.Logger) ChannelService {
	return &channelService{
		channels:  channels,
		cascade:   cascade,
		guard:     guard,
		events:    events,
		validator: validate,
		logger:    logger.With().Str("component", "channel_service").Logger(),
	}
}

func (s *channelService) Create(ctx context.Context, userID, workspaceID uint, payload dto.ChannelCreateRequest) (dto.ChannelResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChannelResponse{}, err
	}

	if _, err := s.guard.AuthorizeAdmin(ctx, workspaceID, userID); err != nil {
		return dto.ChannelResponse{}, err
	}

	name, err := channelName(payload.Name)
	if err != nil {
		return dto.ChannelResponse{}, err
	}

	channel := models.Channel{WorkspaceID: workspaceID, Name: name}
	if err := s.channels.Create(ctx, &channel); err != nil {
		return dto.ChannelResponse{}, err
	}

	s.events.Emit(ctx, userID, channel.ID, channelEvent(dto.EventChannelCreated, channel))
	return dto.NewChannelResponse(channel), nil
}

func (s *channelService) List(ctx context.Context, userID, workspaceID uint) ([]dto.ChannelResponse, error) {
	if _, err := s.guard.Authorize(ctx, workspaceID, userID); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return []dto.ChannelResponse{}, nil
		}
		return nil, err
	}

	channels, err := s.channels.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return dto.NewChannelResponseSlice(channels), nil
}

func (s *channelService) Get(ctx context.Context, userID, channelID uint) (*dto.ChannelResponse, error) {
	channel, err := s.channels.Get(ctx, channelID)
	if err != nil {
		if errors.Is(normalizeRepoError(err), ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if _, err := s.guard.Authorize(ctx, channel.WorkspaceID, userID); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, nil
		}
		return nil, err
	}

	response := dto.NewChannelResponse(channel)
	return &response, nil
}

func (s *channelService) Update(ctx context.Context, userID, channelID uint, payload dto.ChannelUpdateRequest) (dto.ChannelResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChannelResponse{}, err
	}

	channel, err := s.channels.Get(ctx, channelID)
	if err != nil {
		return dto.ChannelResponse{}, normalizeRepoError(err)
	}

	if _, err := s.guard.AuthorizeAdmin(ctx, channel.WorkspaceID, userID); err != nil {
		return dto.ChannelResponse{}, err
	}

	name, err := channelName(payload.Name)
	if err != nil {
		return dto.ChannelResponse{}, err
	}
	if err := s.channels.UpdateName(ctx, channel.ID, name); err != nil {
		return dto.ChannelResponse{}, normalizeRepoError(err)
	}
	channel.Name = name

	s.events.Emit(ctx, userID, channel.ID, channelEvent(dto.EventChannelUpdated, channel))
	return dto.NewChannelResponse(channel), nil
}

// Remove deletes the channel and all of its messages.
func (s *channelService) Remove(ctx context.Context, userID, channelID uint) error {
	channel, err := s.channels.Get(ctx, channelID)
	if err != nil {
		return normalizeRepoError(err)
	}

	if _, err := s.guard.AuthorizeAdmin(ctx, channel.WorkspaceID, userID); err != nil {
		return err
	}

	report, err := s.cascade.Delete(ctx, repository.EntityChannel, channel.ID)
	if err != nil {
		return err
	}
	recordCascade(report)

	s.events.Emit(ctx, userID, channel.ID, channelEvent(dto.EventChannelDeleted, channel))
	return nil
}

func channelName(raw string) (string, error) {
	name := normalizeChannelName(raw)
	if len(name) < 3 || len(name) > 80 {
		return "", fmt.Errorf("%w: channel name must be between 3 and 80 characters", ErrInvalidInput)
	}
	return name, nil
}

func channelEvent(eventType string, channel models.Channel) dto.ChangeEvent {
	return dto.ChangeEvent{
		Type:        eventType,
		WorkspaceID: channel.WorkspaceID,
		ChannelID:   uintRef(channel.ID),
	}
}
