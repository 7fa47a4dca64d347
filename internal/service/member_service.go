package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/models"
	"github.com/noah-isme/teamchat-api/internal/repository"
)

// MemberService exposes workspace membership management.
type MemberService interface {
	Current(ctx context.Context, userID, workspaceID uint) (*dto.MemberResponse, error)
	List(ctx context.Context, userID, workspaceID uint) ([]dto.MemberResponse, error)
	Get(ctx context.Context, userID, memberID uint) (*dto.MemberResponse, error)
	UpdateRole(ctx context.Context, userID, memberID uint, payload dto.MemberRoleUpdateRequest) (dto.MemberResponse, error)
	Remove(ctx context.Context, userID, memberID uint) error
}

type memberService struct {
	members   repository.MemberRepository
	users     repository.UserRepository
	cascade   repository.CascadeRepository
	guard     AccessGuard
	events    *EventEmitter
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewMemberService constructs the member service.
func NewMemberService(members repository.MemberRepository, users repository.UserRepository, cascade repository.CascadeRepository, guard AccessGuard, events *EventEmitter, validate *validator.Validate, logger zerolog.Logger) MemberService {
	return &memberService{
		members:   members,
		users:     users,
		cascade:   cascade,
		guard:     guard,
		events:    events,
		validator: validate,
		logger:    logger.With().Str("component", "member_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/teamchat-api/internal/service/member"),
	}
}

func (s *memberService) Current(ctx context.Context, userID, workspaceID uint) (*dto.MemberResponse, error) {
	member, err := s.guard.Authorize(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, nil
		}
		return nil, err
	}

	responses, err := s.withUsers(ctx, []models.Member{member})
	if err != nil {
		return nil, err
	}
	return &responses[0], nil
}

func (s *memberService) List(ctx context.Context, userID, workspaceID uint) ([]dto.MemberResponse, error) {
	if _, err := s.guard.Authorize(ctx, workspaceID, userID); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return []dto.MemberResponse{}, nil
		}
		return nil, err
	}

	members, err := s.members.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return s.withUsers(ctx, members)
}

// Get returns a member of a workspace the caller also belongs to.
func (s *memberService) Get(ctx context.Context, userID, memberID uint) (*dto.MemberResponse, error) {
	member, err := s.members.Get(ctx, memberID)
	if err != nil {
		if errors.Is(normalizeRepoError(err), ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if _, err := s.guard.Authorize(ctx, member.WorkspaceID, userID); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, nil
		}
		return nil, err
	}

	responses, err := s.withUsers(ctx, []models.Member{member})
	if err != nil {
		return nil, err
	}
	return &responses[0], nil
}

// UpdateRole changes a member's role. Admins only; the last admin cannot be
// demoted, which the repository checks under lock.
func (s *memberService) UpdateRole(ctx context.Context, userID, memberID uint, payload dto.MemberRoleUpdateRequest) (dto.MemberResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MemberResponse{}, err
	}

	target, err := s.members.Get(ctx, memberID)
	if err != nil {
		return dto.MemberResponse{}, normalizeRepoError(err)
	}

	if _, err := s.guard.AuthorizeAdmin(ctx, target.WorkspaceID, userID); err != nil {
		return dto.MemberResponse{}, err
	}

	if target.Role != payload.Role {
		if err := s.members.UpdateRole(ctx, target.ID, payload.Role); err != nil {
			return dto.MemberResponse{}, normalizeMemberError(err)
		}
		target.Role = payload.Role

		s.events.Emit(ctx, userID, target.ID, dto.ChangeEvent{
			Type:        dto.EventMemberUpdated,
			WorkspaceID: target.WorkspaceID,
			MemberID:    uintRef(target.ID),
		})
	}

	responses, err := s.withUsers(ctx, []models.Member{target})
	if err != nil {
		return dto.MemberResponse{}, err
	}
	return responses[0], nil
}

// Remove deletes a member with the messages, reactions and conversations
// they own. Members may leave on their own; admins may remove anyone as long
// as an admin remains.
func (s *memberService) Remove(ctx context.Context, userID, memberID uint) error {
	target, err := s.members.Get(ctx, memberID)
	if err != nil {
		return normalizeRepoError(err)
	}

	caller, err := s.guard.Authorize(ctx, target.WorkspaceID, userID)
	if err != nil {
		return err
	}
	if caller.ID != target.ID && !caller.IsAdmin() {
		return ErrUnauthorized
	}

	ctx, span := s.tracer.Start(ctx, "member.remove")
	defer span.End()

	report, err := s.cascade.DeleteGuarded(ctx, repository.KeepAnotherAdmin(target.WorkspaceID, target.ID), repository.EntityMember, target.ID)
	if err != nil {
		span.RecordError(err)
		return normalizeMemberError(err)
	}
	recordCascade(report)

	s.events.Emit(ctx, userID, target.ID, dto.ChangeEvent{
		Type:        dto.EventMemberRemoved,
		WorkspaceID: target.WorkspaceID,
		MemberID:    uintRef(target.ID),
	})
	s.logger.Info().Uint("member_id", target.ID).Int64("rows", report.Total()).Msg("member removed")
	return nil
}

func normalizeMemberError(err error) error {
	if errors.Is(err, repository.ErrLastAdmin) {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return normalizeRepoError(err)
}

func (s *memberService) withUsers(ctx context.Context, members []models.Member) ([]dto.MemberResponse, error) {
	userIDs := make([]uint, 0, len(members))
	for _, member := range members {
		userIDs = append(userIDs, member.UserID)
	}

	users, err := s.users.ListByIDs(ctx, uniqueIDs(userIDs))
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}

	responses := make([]dto.MemberResponse, 0, len(members))
	for _, member := range members {
		var user *models.User
		if found, ok := byID[member.UserID]; ok {
			user = &found
		}
		responses = append(responses, dto.NewMemberResponse(member, user))
	}
	return responses, nil
}
