package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/teamchat-api/internal/config"
	"github.com/noah-isme/teamchat-api/internal/handler"
	"github.com/noah-isme/teamchat-api/internal/middleware"
	"github.com/noah-isme/teamchat-api/internal/models"
	"github.com/noah-isme/teamchat-api/internal/repository"
	"github.com/noah-isme/teamchat-api/internal/router"
	"github.com/noah-isme/teamchat-api/internal/service"
	"github.com/noah-isme/teamchat-api/pkg/objectstore"
)

const testUserHeader = "X-Test-User"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

type testObjectStore struct{}

func (testObjectStore) NewKey() string { return "messages/fixed" }

func (testObjectStore) PresignUpload(_ context.Context, key string, _ time.Duration) (objectstore.PresignedUpload, error) {
	return objectstore.PresignedUpload{URL: "https://bucket.example.com/" + key, Method: http.MethodPut}, nil
}

func (testObjectStore) Put(context.Context, string, io.Reader, int64, string) error { return nil }

func (testObjectStore) URL(_ context.Context, key string) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

type testApp struct {
	app   *fiber.App
	db    *gorm.DB
	users repository.UserRepository
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	users := repository.NewUserRepository(db)
	workspaces := repository.NewWorkspaceRepository(db)
	members := repository.NewMemberRepository(db)
	channels := repository.NewChannelRepository(db)
	conversations := repository.NewConversationRepository(db)
	messages := repository.NewMessageRepository(db)
	reactions := repository.NewReactionRepository(db)
	uploads := repository.NewUploadRepository(db)
	cascade := repository.NewCascadeRepository(db)

	guard := service.NewAccessGuard(members)
	realtime := service.NewRealtimeService(nil, "", nil, logger)
	events := service.NewEventEmitter(realtime, nil, logger)
	store := testObjectStore{}

	authService := service.NewAuthService(users, "secret", time.Hour, validate, logger)
	workspaceService := service.NewWorkspaceService(workspaces, members, cascade, guard, events, nil, time.Minute, validate, logger)
	memberService := service.NewMemberService(members, users, cascade, guard, events, validate, logger)
	channelService := service.NewChannelService(channels, cascade, guard, events, validate, logger)
	conversationService := service.NewConversationService(conversations, members, guard, events, validate, logger)
	messageService := service.NewMessageService(service.MessageDependencies{
		Messages:      messages,
		Reactions:     reactions,
		Members:       members,
		Users:         users,
		Channels:      channels,
		Conversations: conversations,
		Cascade:       cascade,
		Guard:         guard,
		Resolver:      store,
		Events:        events,
		Validator:     validate,
	}, logger)
	reactionService := service.NewReactionService(reactions, messages, conversations, guard, events, validate, logger)
	uploadService := service.NewUploadService(store, uploads, 5, time.Minute, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", AppEnv: "test"}, router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(authService, logger),
		WorkspaceHandler:    handler.NewWorkspaceHandler(workspaceService, logger),
		MemberHandler:       handler.NewMemberHandler(memberService, logger),
		ChannelHandler:      handler.NewChannelHandler(channelService, logger),
		ConversationHandler: handler.NewConversationHandler(conversationService, logger),
		MessageHandler:      handler.NewMessageHandler(messageService, reactionService, logger),
		UploadHandler:       handler.NewUploadHandler(uploadService, logger),
		RealtimeHandler:     handler.NewRealtimeHandler(realtime, guard, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			if raw := c.Get(testUserHeader); raw != "" {
				id, err := strconv.ParseUint(raw, 10, 64)
				require.NoError(t, err)
				c.Locals(middleware.UserIDLocal, uint(id))
			}
			return c.Next()
		},
	})

	return &testApp{app: app, db: db, users: users}
}

func (a *testApp) user(t *testing.T, name string) uint {
	t.Helper()
	user := models.User{Name: name, Email: name + "@example.com"}
	require.NoError(t, a.users.Create(context.Background(), &user))
	return user.ID
}

// do sends a JSON request as userID (0 for anonymous) and decodes the envelope.
func (a *testApp) do(t *testing.T, method, path string, userID uint, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set(testUserHeader, strconv.FormatUint(uint64(userID), 10))
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}
