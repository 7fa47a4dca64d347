package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/models"
	"github.com/noah-isme/teamchat-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// recordingNotifier captures change events in emission order.
type recordingNotifier struct {
	mu     sync.Mutex
	events []dto.ChangeEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event dto.ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, event := range n.events {
		out = append(out, event.Type)
	}
	return out
}

// testEnv wires every repository against one in-memory database.
type testEnv struct {
	db            *gorm.DB
	users         repository.UserRepository
	workspaces    repository.WorkspaceRepository
	members       repository.MemberRepository
	channels      repository.ChannelRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	reactions     repository.ReactionRepository
	uploads       repository.UploadRepository
	cascade       repository.CascadeRepository
	guard         AccessGuard
	notifier      *recordingNotifier
	events        *EventEmitter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	members := repository.NewMemberRepository(db)
	notifier := &recordingNotifier{}
	return &testEnv{
		db:            db,
		users:         repository.NewUserRepository(db),
		workspaces:    repository.NewWorkspaceRepository(db),
		members:       members,
		channels:      repository.NewChannelRepository(db),
		conversations: repository.NewConversationRepository(db),
		messages:      repository.NewMessageRepository(db),
		reactions:     repository.NewReactionRepository(db),
		uploads:       repository.NewUploadRepository(db),
		cascade:       repository.NewCascadeRepository(db),
		guard:         NewAccessGuard(members),
		notifier:      notifier,
		events:        NewEventEmitter(notifier, nil, testLogger()),
	}
}

func (e *testEnv) user(t *testing.T, name string) models.User {
	t.Helper()
	user := models.User{Name: name, Email: fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8])}
	require.NoError(t, e.users.Create(context.Background(), &user))
	return user
}

// workspace creates a workspace owned by owner and returns it with the
// owner's member and the default channel.
func (e *testEnv) workspace(t *testing.T, owner models.User) (models.Workspace, models.Member, models.Channel) {
	t.Helper()
	workspace := models.Workspace{Name: "Acme", UserID: owner.ID, JoinCode: "abc123"}
	member, channel, err := e.workspaces.CreateWithDefaults(context.Background(), &workspace, defaultChannelName)
	require.NoError(t, err)
	return workspace, member, channel
}

func (e *testEnv) join(t *testing.T, workspace models.Workspace, user models.User, role string) models.Member {
	t.Helper()
	member := models.Member{WorkspaceID: workspace.ID, UserID: user.ID, Role: role}
	require.NoError(t, e.members.Create(context.Background(), &member))
	return member
}

func (e *testEnv) post(t *testing.T, message models.Message) models.Message {
	t.Helper()
	if message.Body == nil {
		message.Body = datatypes.JSON(`{"ops":[{"insert":"hello\n"}]}`)
	}
	require.NoError(t, e.db.Create(&message).Error)
	return message
}

func (e *testEnv) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func textBody(text string) []byte {
	return []byte(fmt.Sprintf(`{"ops":[{"insert":%q}]}`, text))
}

func uintPtr(v uint) *uint { return &v }
