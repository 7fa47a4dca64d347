package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/observability"
)

const (
	realtimeSendBufferSize = 32
	realtimePingInterval   = 30 * time.Second
	realtimePongWait       = 60 * time.Second
	realtimeWriteWait      = 10 * time.Second
	realtimeMaxFrameSize   = 4096
)

// RealtimeConnectionOptions wraps metadata resolved before the websocket upgrade.
type RealtimeConnectionOptions struct {
	UserID        uint
	MemberID      uint
	WorkspaceID   uint
	CorrelationID string
	Context       context.Context
}

// RealtimeService keeps live subscribers of each workspace informed about
// committed changes, across every API node.
type RealtimeService interface {
	ChangeNotifier
	ServeConnection(conn *websocket.Conn, opts RealtimeConnectionOptions)
	Start(ctx context.Context)
}

type realtimeService struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	tracer       trace.Tracer
	hub          *realtimeHub
	nodeID       string
}

// realtimeHub tracks connected clients per workspace.
type realtimeHub struct {
	mu    sync.RWMutex
	rooms map[uint]map[*realtimeClient]struct{}
	log   zerolog.Logger
}

type realtimeClient struct {
	conn    *websocket.Conn
	send    chan dto.ChangeEvent
	options RealtimeConnectionOptions
	service *realtimeService
	closed  chan struct{}
	once    sync.Once
}

type realtimeEnvelope struct {
	Source   string          `json:"source"`
	Event    dto.ChangeEvent `json:"event"`
	Audience []uint          `json:"audience,omitempty"`
	SentAt   time.Time       `json:"sent_at"`
}

// NewRealtimeService creates the realtime hub. Redis and NATS are optional
// and only needed when more than one API node runs.
func NewRealtimeService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) RealtimeService {
	hub := &realtimeHub{
		rooms: make(map[uint]map[*realtimeClient]struct{}),
		log:   logger.With().Str("component", "realtime_hub").Logger(),
	}

	redisChannel := ""
	natsSubject := ""
	if channelBase != "" {
		redisChannel = channelBase + ":changes"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".changes"
	}

	return &realtimeService{
		redis:        redisClient,
		redisChannel: redisChannel,
		nats:         natsConn,
		natsSubject:  natsSubject,
		logger:       logger.With().Str("component", "realtime_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/teamchat-api/internal/service/realtime"),
		hub:          hub,
		nodeID:       uuid.NewString(),
	}
}

// Start subscribes to the cross-node channels. It returns once the
// subscriptions are established; consumption stops when ctx is cancelled.
func (s *realtimeService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		pubsub := s.redis.Subscribe(ctx, s.redisChannel)
		if _, err := pubsub.Receive(ctx); err != nil {
			s.logger.Error().Err(err).Msg("failed to subscribe to realtime redis channel")
			_ = pubsub.Close()
		} else {
			go s.consumeRedis(ctx, pubsub)
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		s.consumeNATS(ctx)
	}
}

func (s *realtimeService) ServeConnection(conn *websocket.Conn, opts RealtimeConnectionOptions) {
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	client := &realtimeClient{
		conn:    conn,
		send:    make(chan dto.ChangeEvent, realtimeSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
	}

	s.hub.register(client)
	observability.RealtimeConnections().Inc()

	go client.writer()
	client.reader()
}

// Notify delivers the event to local subscribers and forwards it to the
// other nodes.
func (s *realtimeService) Notify(ctx context.Context, event dto.ChangeEvent) {
	ctx, span := s.tracer.Start(ctx, "realtime.notify", trace.WithAttributes(
		attribute.String("realtime.event_type", event.Type),
		attribute.Int64("realtime.workspace_id", int64(event.WorkspaceID)),
	))
	defer span.End()

	s.deliver(event)
	if err := s.publish(ctx, event); err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Str("event_type", event.Type).Msg("failed to publish realtime event")
	}
}

func (s *realtimeService) deliver(event dto.ChangeEvent) {
	observability.RealtimeEvents().WithLabelValues(event.Type).Inc()
	s.hub.broadcast(event)
}

func (s *realtimeService) publish(ctx context.Context, event dto.ChangeEvent) error {
	if (s.redis == nil || s.redisChannel == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(realtimeEnvelope{
		Source:   s.nodeID,
		Event:    event,
		Audience: event.Audience,
		SentAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *realtimeService) consumeRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			s.logger.Error().Err(err).Msg("realtime redis subscription closed")
			return
		}
		s.handleEnvelope([]byte(msg.Payload))
	}
}

// consumeNATS subscribes without a queue group: every node must see every event.
func (s *realtimeService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats realtime subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain realtime nats subscription")
		}
	}()
}

func (s *realtimeService) handleEnvelope(data []byte) {
	var envelope realtimeEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid realtime event")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}

	envelope.Event.Audience = envelope.Audience
	s.deliver(envelope.Event)
}

func (h *realtimeHub) register(client *realtimeClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.WorkspaceID
	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*realtimeClient]struct{})
	}
	h.rooms[room][client] = struct{}{}
	h.log.Debug().Uint("workspace_id", room).Uint("user_id", client.options.UserID).Msg("realtime client connected")
}

func (h *realtimeHub) unregister(client *realtimeClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.WorkspaceID
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	h.log.Debug().Uint("workspace_id", room).Uint("user_id", client.options.UserID).Msg("realtime client disconnected")
}

func (h *realtimeHub) broadcast(event dto.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[event.WorkspaceID] {
		if !reaches(event, client.options.MemberID) {
			continue
		}
		select {
		case client.send <- event:
		default:
			h.log.Warn().Uint("workspace_id", event.WorkspaceID).Uint("user_id", client.options.UserID).Msg("dropping realtime event for slow client")
		}
	}
}

func (h *realtimeHub) size(workspaceID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[workspaceID])
}

// reaches reports whether the member may see the event. Events scoped to a
// direct conversation only go to its listed audience; without one they go
// nowhere.
func reaches(event dto.ChangeEvent, memberID uint) bool {
	if event.ConversationID == nil && len(event.Audience) == 0 {
		return true
	}
	for _, id := range event.Audience {
		if id == memberID {
			return true
		}
	}
	return false
}

// revokes reports whether event ends the subscription of the given member.
func revokes(event dto.ChangeEvent, memberID uint) bool {
	switch event.Type {
	case dto.EventWorkspaceDeleted:
		return true
	case dto.EventMemberRemoved:
		return event.MemberID != nil && *event.MemberID == memberID
	default:
		return false
	}
}

// reader drains client frames; subscribers only listen, so payloads are ignored.
// The read deadline is pushed forward by every pong.
func (c *realtimeClient) reader() {
	defer c.close()

	c.conn.SetReadLimit(realtimeMaxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(realtimePongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(realtimePongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.service.logger.Debug().Err(err).Msg("realtime read loop ended")
			return
		}
	}
}

func (c *realtimeClient) writer() {
	defer c.close()

	ticker := time.NewTicker(realtimePingInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait))
			if err := c.conn.WriteJSON(event); err != nil {
				c.service.logger.Debug().Err(err).Msg("realtime write loop terminated")
				return
			}
			if revokes(event, c.options.MemberID) {
				c.revoke()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(realtimeWriteWait)); err != nil {
				c.service.logger.Debug().Err(err).Msg("realtime ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

// revoke tells the peer why the stream ends. The close itself happens in
// close, which also unblocks the reader.
func (c *realtimeClient) revoke() {
	observability.RealtimeRevocations().Inc()
	if c.conn == nil {
		return
	}
	frame := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "access revoked")
	if err := c.conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(realtimeWriteWait)); err != nil {
		c.service.logger.Debug().Err(err).Msg("realtime close frame failed")
	}
}

// close stops both loops. The underlying connection is owned by the upgrade
// handler and is only released once ServeConnection returns, so the reader is
// woken by an expired deadline rather than by closing the socket.
func (c *realtimeClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		if c.conn != nil {
			_ = c.conn.SetReadDeadline(time.Now())
			_ = c.conn.Close()
		}
	})
}
