package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/models"
	"github.com/noah-isme/teamchat-api/internal/observability"
	"github.com/noah-isme/teamchat-api/internal/repository"
)

const defaultMessagePageSize = 20

// MessageService exposes message posting and scoped history reads.
type MessageService interface {
	Create(ctx context.Context, userID uint, payload dto.MessageCreateRequest) (dto.MessageResponse, error)
	GetPage(ctx context.Context, userID uint, query dto.MessageListQuery) (dto.MessagePage, error)
	Get(ctx context.Context, userID, messageID uint) (*dto.MessageResponse, error)
	SummarizeThread(ctx context.Context, userID, parentID uint) (*dto.ThreadSummary, error)
	Update(ctx context.Context, userID, messageID uint, payload dto.MessageUpdateRequest) (dto.MessageResponse, error)
	Remove(ctx context.Context, userID, messageID uint) error
}

// MessageDependencies groups the collaborators of the message service.
type MessageDependencies struct {
	Messages      repository.MessageRepository
	Reactions     repository.ReactionRepository
	Members       repository.MemberRepository
	Users         repository.UserRepository
	Channels      repository.ChannelRepository
	Conversations repository.ConversationRepository
	Cascade       repository.CascadeRepository
	Guard         AccessGuard
	Resolver      ObjectURLResolver
	Events        *EventEmitter
	Validator     *validator.Validate
	PageSize      int
}

type messageService struct {
	messages      repository.MessageRepository
	channels      repository.ChannelRepository
	conversations repository.ConversationRepository
	cascade       repository.CascadeRepository
	guard         AccessGuard
	hydrator      *messageHydrator
	events        *EventEmitter
	validator     *validator.Validate
	pageSize      int
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// pageScope is a resolved page request: the scan scope plus the workspace
// that owns it.
type pageScope struct {
	scope          repository.MessageScope
	workspaceID    uint
	conversationID *uint
}

// NewMessageService constructs the message service.
func NewMessageService(deps MessageDependencies, logger zerolog.Logger) MessageService {
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = defaultMessagePageSize
	}

	log := logger.With().Str("component", "message_service").Logger()
	return &messageService{
		messages:      deps.Messages,
		channels:      deps.Channels,
		conversations: deps.Conversations,
		cascade:       deps.Cascade,
		guard:         deps.Guard,
		hydrator: &messageHydrator{
			messages:  deps.Messages,
			reactions: deps.Reactions,
			members:   deps.Members,
			users:     deps.Users,
			resolver:  deps.Resolver,
			logger:    log,
		},
		events:    deps.Events,
		validator: deps.Validator,
		pageSize:  pageSize,
		logger:    log,
		tracer:    otel.Tracer("github.com/noah-isme/teamchat-api/internal/service/message"),
		now:       time.Now,
	}
}

// GetPage returns one newest-first page of a channel, conversation or
// thread. Callers outside the owning workspace get an empty, finished page.
func (s *messageService) GetPage(ctx context.Context, userID uint, query dto.MessageListQuery) (dto.MessagePage, error) {
	empty := dto.MessagePage{Items: []dto.MessageResponse{}, IsDone: true}

	if err := s.validator.Struct(query); err != nil {
		return dto.MessagePage{}, err
	}

	scope, err := scopeFromQuery(query)
	if err != nil {
		return dto.MessagePage{}, err
	}

	cursor, err := decodeCursor(query.Cursor)
	if err != nil {
		return dto.MessagePage{}, err
	}

	ctx, span := s.tracer.Start(ctx, "message.page", trace.WithAttributes(
		attribute.String("message.scope", scope.Kind.String()),
		attribute.Int64("message.scope_id", int64(scope.ID)),
	))
	defer span.End()

	resolved, err := s.resolveScope(ctx, scope)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return empty, nil
		}
		span.RecordError(err)
		return dto.MessagePage{}, err
	}

	member, err := s.guard.Authorize(ctx, resolved.workspaceID, userID)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return empty, nil
		}
		span.RecordError(err)
		return dto.MessagePage{}, err
	}
	if !s.canRead(ctx, member, resolved.conversationID) {
		return empty, nil
	}

	limit := query.Limit
	if limit <= 0 {
		limit = s.pageSize
	}

	rows, err := s.messages.ListPage(ctx, resolved.scope, cursor, limit+1)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return dto.MessagePage{}, err
	}

	isDone := len(rows) <= limit
	if !isDone {
		rows = rows[:limit]
	}

	items, err := s.hydrator.hydrate(ctx, rows, resolved.scope.Kind != repository.ScopeThread)
	if err != nil {
		span.RecordError(err)
		return dto.MessagePage{}, err
	}

	page := dto.MessagePage{Items: items, IsDone: isDone}
	if !isDone && len(rows) > 0 {
		last := rows[len(rows)-1]
		page.NextCursor = encodeCursor(repository.MessageCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	span.SetAttributes(attribute.Int("message.page_size", len(items)), attribute.Bool("message.is_done", isDone))
	return page, nil
}

func (s *messageService) Get(ctx context.Context, userID, messageID uint) (*dto.MessageResponse, error) {
	message, err := s.messages.Get(ctx, messageID)
	if err != nil {
		if errors.Is(normalizeRepoError(err), ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	member, err := s.guard.Authorize(ctx, message.WorkspaceID, userID)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, nil
		}
		return nil, err
	}
	if !s.canRead(ctx, member, message.ConversationID) {
		return nil, nil
	}

	items, err := s.hydrator.hydrate(ctx, []models.Message{message}, true)
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (s *messageService) SummarizeThread(ctx context.Context, userID, parentID uint) (*dto.ThreadSummary, error) {
	parent, err := s.messages.Get(ctx, parentID)
	if err != nil {
		if errors.Is(normalizeRepoError(err), ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	member, err := s.guard.Authorize(ctx, parent.WorkspaceID, userID)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, nil
		}
		return nil, err
	}
	if !s.canRead(ctx, member, parent.ConversationID) {
		return nil, nil
	}

	return s.hydrator.summarize(ctx, parent.ID)
}

func (s *messageService) Create(ctx context.Context, userID uint, payload dto.MessageCreateRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "message.create", trace.WithAttributes(
		attribute.Int64("message.workspace_id", int64(payload.WorkspaceID)),
	))
	defer span.End()

	member, err := s.guard.Authorize(ctx, payload.WorkspaceID, userID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	var image *string
	if payload.Image != nil && strings.TrimSpace(*payload.Image) != "" {
		trimmed := strings.TrimSpace(*payload.Image)
		image = &trimmed
	}

	body, err := normalizeBody(payload.Body, image != nil)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	message := models.Message{
		WorkspaceID: payload.WorkspaceID,
		MemberID:    member.ID,
		Body:        body,
		Image:       image,
	}

	if payload.ParentMessageID != nil {
		if err := s.attachToThread(ctx, &message, *payload.ParentMessageID); err != nil {
			return dto.MessageResponse{}, err
		}
	} else if err := s.attachToScope(ctx, &message, payload); err != nil {
		return dto.MessageResponse{}, err
	}

	audience, err := conversationParticipants(ctx, s.conversations, member.ID, message.ConversationID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	if err := s.messages.Create(ctx, &message); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.MessageResponse{}, err
	}

	scope := scopeOfMessage(message)
	observability.MessagesCreated().WithLabelValues(scope.Kind.String()).Inc()
	event := messageEvent(dto.EventMessageCreated, message)
	event.Audience = audience
	s.events.Emit(ctx, userID, message.ID, event)

	items, err := s.hydrator.hydrate(ctx, []models.Message{message}, true)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	return items[0], nil
}

func (s *messageService) Update(ctx context.Context, userID, messageID uint, payload dto.MessageUpdateRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	message, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return dto.MessageResponse{}, normalizeRepoError(err)
	}

	member, err := s.guard.Authorize(ctx, message.WorkspaceID, userID)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	if message.MemberID != member.ID {
		return dto.MessageResponse{}, ErrUnauthorized
	}
	audience, err := conversationParticipants(ctx, s.conversations, member.ID, message.ConversationID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	body, err := normalizeBody(payload.Body, message.Image != nil)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	editedAt := s.now().UTC()
	if err := s.messages.UpdateBody(ctx, message.ID, body, editedAt); err != nil {
		return dto.MessageResponse{}, normalizeRepoError(err)
	}
	message.Body = body
	message.UpdatedAt = &editedAt

	event := messageEvent(dto.EventMessageUpdated, message)
	event.Audience = audience
	s.events.Emit(ctx, userID, message.ID, event)

	items, err := s.hydrator.hydrate(ctx, []models.Message{message}, true)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	return items[0], nil
}

// Remove deletes a message together with its reactions and thread replies.
// Authors may remove their own messages; admins may remove any.
func (s *messageService) Remove(ctx context.Context, userID, messageID uint) error {
	message, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return normalizeRepoError(err)
	}

	member, err := s.guard.Authorize(ctx, message.WorkspaceID, userID)
	if err != nil {
		return err
	}
	if message.MemberID != member.ID && !member.IsAdmin() {
		return ErrUnauthorized
	}

	ctx, span := s.tracer.Start(ctx, "message.remove")
	defer span.End()

	audience := conversationAudience(ctx, s.conversations, message.ConversationID)
	report, err := s.cascade.Delete(ctx, repository.EntityMessage, message.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cascade failed")
		return err
	}
	recordCascade(report)

	event := messageEvent(dto.EventMessageDeleted, message)
	event.Audience = audience
	s.events.Emit(ctx, userID, message.ID, event)
	return nil
}

// attachToThread inherits the parent's channel or conversation; replies to
// direct messages are then held to the same participant rule.
func (s *messageService) attachToThread(ctx context.Context, message *models.Message, parentID uint) error {
	parent, err := s.messages.Get(ctx, parentID)
	if err != nil {
		return normalizeRepoError(err)
	}
	if parent.WorkspaceID != message.WorkspaceID {
		return ErrNotFound
	}
	if parent.IsReply() {
		return fmt.Errorf("%w: replies cannot be threaded", ErrInvalidState)
	}

	message.ParentMessageID = &parent.ID
	message.ChannelID = parent.ChannelID
	message.ConversationID = parent.ConversationID
	return nil
}

// attachToScope places a top-level message in a channel or conversation of
// its workspace. Conversation membership is checked by the caller.
func (s *messageService) attachToScope(ctx context.Context, message *models.Message, payload dto.MessageCreateRequest) error {
	switch {
	case payload.ChannelID != nil && payload.ConversationID != nil, payload.ChannelID == nil && payload.ConversationID == nil:
		return fmt.Errorf("%w: exactly one of channel_id or conversation_id is required", ErrInvalidInput)
	case payload.ChannelID != nil:
		channel, err := s.channels.Get(ctx, *payload.ChannelID)
		if err != nil {
			return normalizeRepoError(err)
		}
		if channel.WorkspaceID != message.WorkspaceID {
			return ErrNotFound
		}
		message.ChannelID = &channel.ID
	default:
		conversation, err := s.conversations.Get(ctx, *payload.ConversationID)
		if err != nil {
			return normalizeRepoError(err)
		}
		if conversation.WorkspaceID != message.WorkspaceID {
			return ErrNotFound
		}
		message.ConversationID = &conversation.ID
	}
	return nil
}

// resolveScope derives the owning workspace from the scope's parent entity.
func (s *messageService) resolveScope(ctx context.Context, scope repository.MessageScope) (pageScope, error) {
	switch scope.Kind {
	case repository.ScopeChannel:
		channel, err := s.channels.Get(ctx, scope.ID)
		if err != nil {
			return pageScope{}, normalizeRepoError(err)
		}
		return pageScope{scope: scope, workspaceID: channel.WorkspaceID}, nil
	case repository.ScopeConversation:
		conversation, err := s.conversations.Get(ctx, scope.ID)
		if err != nil {
			return pageScope{}, normalizeRepoError(err)
		}
		return pageScope{scope: scope, workspaceID: conversation.WorkspaceID, conversationID: &conversation.ID}, nil
	case repository.ScopeThread:
		parent, err := s.messages.Get(ctx, scope.ID)
		if err != nil {
			return pageScope{}, normalizeRepoError(err)
		}
		return pageScope{scope: scope, workspaceID: parent.WorkspaceID, conversationID: parent.ConversationID}, nil
	default:
		return pageScope{}, repository.ErrUnknownScope
	}
}

// canRead hides direct conversations, and threads inside them, from members
// who are not one of the two participants.
func (s *messageService) canRead(ctx context.Context, member models.Member, conversationID *uint) bool {
	if conversationID == nil {
		return true
	}
	conversation, err := s.conversations.Get(ctx, *conversationID)
	if err != nil {
		return false
	}
	return conversation.Involves(member.ID)
}

func scopeFromQuery(query dto.MessageListQuery) (repository.MessageScope, error) {
	var scopes []repository.MessageScope
	if query.ChannelID != nil {
		scopes = append(scopes, repository.MessageScope{Kind: repository.ScopeChannel, ID: *query.ChannelID})
	}
	if query.ConversationID != nil {
		scopes = append(scopes, repository.MessageScope{Kind: repository.ScopeConversation, ID: *query.ConversationID})
	}
	if query.ParentMessageID != nil {
		scopes = append(scopes, repository.MessageScope{Kind: repository.ScopeThread, ID: *query.ParentMessageID})
	}

	if len(scopes) != 1 {
		return repository.MessageScope{}, fmt.Errorf("%w: exactly one of channel_id, conversation_id or parent_message_id is required", ErrInvalidInput)
	}
	if scopes[0].ID == 0 {
		return repository.MessageScope{}, fmt.Errorf("%w: scope id must be positive", ErrInvalidInput)
	}
	return scopes[0], nil
}

func scopeOfMessage(message models.Message) repository.MessageScope {
	switch {
	case message.ParentMessageID != nil:
		return repository.MessageScope{Kind: repository.ScopeThread, ID: *message.ParentMessageID}
	case message.ConversationID != nil:
		return repository.MessageScope{Kind: repository.ScopeConversation, ID: *message.ConversationID}
	case message.ChannelID != nil:
		return repository.MessageScope{Kind: repository.ScopeChannel, ID: *message.ChannelID}
	default:
		return repository.MessageScope{}
	}
}

func messageEvent(eventType string, message models.Message) dto.ChangeEvent {
	return dto.ChangeEvent{
		Type:            eventType,
		WorkspaceID:     message.WorkspaceID,
		ChannelID:       message.ChannelID,
		ConversationID:  message.ConversationID,
		ParentMessageID: message.ParentMessageID,
		MessageID:       uintRef(message.ID),
	}
}

func recordCascade(report repository.CascadeReport) {
	for entity, count := range report {
		observability.CascadeDeletes().WithLabelValues(entity).Add(float64(count))
	}
}
