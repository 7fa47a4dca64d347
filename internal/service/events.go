package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/middleware"
	"github.com/noah-isme/teamchat-api/pkg/audit"
)

// ChangeNotifier pushes change events to live subscribers.
type ChangeNotifier interface {
	Notify(ctx context.Context, event dto.ChangeEvent)
}

// EventEmitter fans a committed mutation out to live subscribers and the
// audit log. A nil emitter drops events.
type EventEmitter struct {
	notifier ChangeNotifier
	audit    audit.Publisher
	now      func() time.Time
	logger   zerolog.Logger
}

// NewEventEmitter constructs an emitter. Either sink may be nil.
func NewEventEmitter(notifier ChangeNotifier, publisher audit.Publisher, logger zerolog.Logger) *EventEmitter {
	return &EventEmitter{
		notifier: notifier,
		audit:    publisher,
		now:      time.Now,
		logger:   logger.With().Str("component", "event_emitter").Logger(),
	}
}

// Emit delivers event and records actorUserID acting on subjectID. Delivery
// failures are logged and never fail the mutation.
func (e *EventEmitter) Emit(ctx context.Context, actorUserID, subjectID uint, event dto.ChangeEvent) {
	if e == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now().UTC()
	}

	if e.notifier != nil {
		e.notifier.Notify(ctx, event)
	}

	if e.audit == nil {
		return
	}
	envelope := audit.Envelope{
		EventType:     event.Type,
		WorkspaceID:   event.WorkspaceID,
		ActorUserID:   actorUserID,
		SubjectID:     subjectID,
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
		OccurredAt:    event.OccurredAt,
	}
	if err := e.audit.Publish(ctx, envelope); err != nil {
		e.logger.Warn().Err(err).Str("event_type", event.Type).Msg("failed to publish audit event")
	}
}

func uintRef(v uint) *uint {
	return &v
}
