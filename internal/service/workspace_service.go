package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/models"
	"github.com/noah-isme/teamchat-api/internal/repository"
)

const (
	joinCodeAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
	joinCodeLength       = 6
	defaultChannelName   = "general"
	workspaceInfoCacheNS = "teamchat:workspace:info"
)

// WorkspaceService exposes workspace lifecycle and join flows.
type WorkspaceService interface {
	Create(ctx context.Context, userID uint, payload dto.WorkspaceCreateRequest) (dto.WorkspaceResponse, error)
	List(ctx context.Context, userID uint) ([]dto.WorkspaceResponse, error)
	Get(ctx context.Context, userID, workspaceID uint) (*dto.WorkspaceResponse, error)
	Info(ctx context.Context, userID, workspaceID uint) (*dto.WorkspaceInfoResponse, error)
	Update(ctx context.Context, userID, workspaceID uint, payload dto.WorkspaceUpdateRequest) (dto.WorkspaceResponse, error)
	Remove(ctx context.Context, userID, workspaceID uint) error
	NewJoinCode(ctx context.Context, userID, workspaceID uint) (dto.WorkspaceResponse, error)
	Join(ctx context.Context, userID, workspaceID uint, payload dto.WorkspaceJoinRequest) (dto.WorkspaceResponse, error)
}

type workspaceService struct {
	workspaces repository.WorkspaceRepository
	members    repository.MemberRepository
	cascade    repository.CascadeRepository
	guard      AccessGuard
	events     *EventEmitter
	cache      *redis.Client
	cacheTTL   time.Duration
	validator  *validator.Validate
	logger     zerolog.Logger
	tracer     trace.Tracer
	joinCode   func() (string, error)
}

// cachedWorkspaceInfo is the caller-independent part of the join page.
type cachedWorkspaceInfo struct {
	Name string `json:"name"`
}

// NewWorkspaceService constructs the workspace service. The redis client is optional.
func NewWorkspaceService(workspaces repository.WorkspaceRepository, members repository.MemberRepository, cascade repository.CascadeRepository, guard AccessGuard, events *EventEmitter, cache *redis.Client, cacheTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) WorkspaceService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &workspaceService{
		workspaces: workspaces,
		members:    members,
		cascade:    cascade,
		guard:      guard,
		events:     events,
		cache:      cache,
		cacheTTL:   cacheTTL,
		validator:  validate,
		logger:     logger.With().Str("component", "workspace_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/teamchat-api/internal/service/workspace"),
		joinCode:   generateJoinCode,
	}
}

// Create inserts the workspace with the caller as its first admin and a
// default channel.
func (s *workspaceService) Create(ctx context.Context, userID uint, payload dto.WorkspaceCreateRequest) (dto.WorkspaceResponse, error) {
	if userID == 0 {
		return dto.WorkspaceResponse{}, ErrUnauthorized
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.WorkspaceResponse{}, err
	}

	name := sanitizeName(payload.Name)
	if len(name) < 3 {
		return dto.WorkspaceResponse{}, fmt.Errorf("%w: workspace name too short", ErrInvalidInput)
	}

	code, err := s.joinCode()
	if err != nil {
		return dto.WorkspaceResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "workspace.create")
	defer span.End()

	workspace := models.Workspace{Name: name, UserID: userID, JoinCode: code}
	member, _, err := s.workspaces.CreateWithDefaults(ctx, &workspace, defaultChannelName)
	if err != nil {
		span.RecordError(err)
		return dto.WorkspaceResponse{}, err
	}

	s.events.Emit(ctx, userID, member.ID, dto.ChangeEvent{
		Type:        dto.EventMemberJoined,
		WorkspaceID: workspace.ID,
		MemberID:    uintRef(member.ID),
	})
	s.logger.Info().Uint("workspace_id", workspace.ID).Uint("user_id", userID).Msg("workspace created")

	return dto.NewWorkspaceResponse(workspace), nil
}

func (s *workspaceService) List(ctx context.Context, userID uint) ([]dto.WorkspaceResponse, error) {
	if userID == 0 {
		return []dto.WorkspaceResponse{}, nil
	}

	workspaces, err := s.workspaces.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewWorkspaceResponseSlice(workspaces), nil
}

func (s *workspaceService) Get(ctx context.Context, userID, workspaceID uint) (*dto.WorkspaceResponse, error) {
	if _, err := s.guard.Authorize(ctx, workspaceID, userID); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, nil
		}
		return nil, err
	}

	workspace, err := s.workspaces.Get(ctx, workspaceID)
	if err != nil {
		if errors.Is(normalizeRepoError(err), ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	response := dto.NewWorkspaceResponse(workspace)
	return &response, nil
}

// Info returns the public join-page view. The name is cached in redis;
// membership is always read live.
func (s *workspaceService) Info(ctx context.Context, userID, workspaceID uint) (*dto.WorkspaceInfoResponse, error) {
	if userID == 0 {
		return nil, nil
	}

	name, ok, err := s.workspaceName(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	_, err = s.guard.Authorize(ctx, workspaceID, userID)
	if err != nil && !errors.Is(err, ErrUnauthorized) {
		return nil, err
	}

	return &dto.WorkspaceInfoResponse{Name: name, IsMember: err == nil}, nil
}

func (s *workspaceService) Update(ctx context.Context, userID, workspaceID uint, payload dto.WorkspaceUpdateRequest) (dto.WorkspaceResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.WorkspaceResponse{}, err
	}

	if _, err := s.guard.AuthorizeAdmin(ctx, workspaceID, userID); err != nil {
		return dto.WorkspaceResponse{}, err
	}

	name := sanitizeName(payload.Name)
	if len(name) < 3 {
		return dto.WorkspaceResponse{}, fmt.Errorf("%w: workspace name too short", ErrInvalidInput)
	}

	if err := s.workspaces.UpdateName(ctx, workspaceID, name); err != nil {
		return dto.WorkspaceResponse{}, normalizeRepoError(err)
	}
	s.invalidateInfo(ctx, workspaceID)

	workspace, err := s.workspaces.Get(ctx, workspaceID)
	if err != nil {
		return dto.WorkspaceResponse{}, normalizeRepoError(err)
	}

	s.events.Emit(ctx, userID, workspaceID, dto.ChangeEvent{Type: dto.EventWorkspaceUpdated, WorkspaceID: workspaceID})
	return dto.NewWorkspaceResponse(workspace), nil
}

// Remove deletes the workspace and everything it owns.
func (s *workspaceService) Remove(ctx context.Context, userID, workspaceID uint) error {
	if _, err := s.guard.AuthorizeAdmin(ctx, workspaceID, userID); err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "workspace.remove")
	defer span.End()

	report, err := s.cascade.Delete(ctx, repository.EntityWorkspace, workspaceID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if report[repository.EntityWorkspace] == 0 {
		return ErrNotFound
	}
	recordCascade(report)
	s.invalidateInfo(ctx, workspaceID)

	s.events.Emit(ctx, userID, workspaceID, dto.ChangeEvent{Type: dto.EventWorkspaceDeleted, WorkspaceID: workspaceID})
	s.logger.Info().Uint("workspace_id", workspaceID).Int64("rows", report.Total()).Msg("workspace removed")
	return nil
}

func (s *workspaceService) NewJoinCode(ctx context.Context, userID, workspaceID uint) (dto.WorkspaceResponse, error) {
	if _, err := s.guard.AuthorizeAdmin(ctx, workspaceID, userID); err != nil {
		return dto.WorkspaceResponse{}, err
	}

	code, err := s.joinCode()
	if err != nil {
		return dto.WorkspaceResponse{}, err
	}
	if err := s.workspaces.UpdateJoinCode(ctx, workspaceID, code); err != nil {
		return dto.WorkspaceResponse{}, normalizeRepoError(err)
	}

	workspace, err := s.workspaces.Get(ctx, workspaceID)
	if err != nil {
		return dto.WorkspaceResponse{}, normalizeRepoError(err)
	}

	s.events.Emit(ctx, userID, workspaceID, dto.ChangeEvent{Type: dto.EventWorkspaceUpdated, WorkspaceID: workspaceID})
	return dto.NewWorkspaceResponse(workspace), nil
}

// Join adds the caller as a plain member when the join code matches,
// ignoring case.
func (s *workspaceService) Join(ctx context.Context, userID, workspaceID uint, payload dto.WorkspaceJoinRequest) (dto.WorkspaceResponse, error) {
	if userID == 0 {
		return dto.WorkspaceResponse{}, ErrUnauthorized
	}
	payload.JoinCode = strings.TrimSpace(payload.JoinCode)
	if err := s.validator.Struct(payload); err != nil {
		return dto.WorkspaceResponse{}, err
	}

	workspace, err := s.workspaces.Get(ctx, workspaceID)
	if err != nil {
		return dto.WorkspaceResponse{}, normalizeRepoError(err)
	}

	if _, err := s.guard.Authorize(ctx, workspaceID, userID); err == nil {
		return dto.WorkspaceResponse{}, fmt.Errorf("%w: already a member of this workspace", ErrInvalidState)
	} else if !errors.Is(err, ErrUnauthorized) {
		return dto.WorkspaceResponse{}, err
	}

	if !strings.EqualFold(workspace.JoinCode, payload.JoinCode) {
		return dto.WorkspaceResponse{}, fmt.Errorf("%w: invalid join code", ErrInvalidState)
	}

	member := models.Member{WorkspaceID: workspace.ID, UserID: userID, Role: models.MemberRoleMember}
	if err := s.members.Create(ctx, &member); err != nil {
		return dto.WorkspaceResponse{}, err
	}

	s.events.Emit(ctx, userID, member.ID, dto.ChangeEvent{
		Type:        dto.EventMemberJoined,
		WorkspaceID: workspace.ID,
		MemberID:    uintRef(member.ID),
	})

	return dto.NewWorkspaceResponse(workspace), nil
}

func (s *workspaceService) workspaceName(ctx context.Context, workspaceID uint) (string, bool, error) {
	key := workspaceInfoKey(workspaceID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Result(); err == nil {
			var cached cachedWorkspaceInfo
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached.Name, true, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read workspace info cache")
		}
	}

	workspace, err := s.workspaces.Get(ctx, workspaceID)
	if err != nil {
		if errors.Is(normalizeRepoError(err), ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	if s.cache != nil {
		payload, _ := json.Marshal(cachedWorkspaceInfo{Name: workspace.Name})
		if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache workspace info")
		}
	}

	return workspace.Name, true, nil
}

func (s *workspaceService) invalidateInfo(ctx context.Context, workspaceID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, workspaceInfoKey(workspaceID)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate workspace info cache")
	}
}

func workspaceInfoKey(workspaceID uint) string {
	return fmt.Sprintf("%s:%d", workspaceInfoCacheNS, workspaceID)
}

// generateJoinCode draws a lower-case alphanumeric code from crypto/rand.
func generateJoinCode() (string, error) {
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	code := make([]byte, joinCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		code[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
