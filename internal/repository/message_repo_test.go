package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/teamchat-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedMessage(t *testing.T, db *gorm.DB, message models.Message) models.Message {
	t.Helper()
	if message.Body == nil {
		message.Body = datatypes.JSON(`{"ops":[{"insert":"hello\n"}]}`)
	}
	require.NoError(t, db.Create(&message).Error)
	return message
}

func uintPtr(v uint) *uint { return &v }

func TestMessageRepositoryListPageWalksWithoutGapsOrDuplicates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	channelID := uintPtr(1)
	var want []uint
	for i := 0; i < 7; i++ {
		// Two messages share each timestamp to exercise the id tie-break.
		created := base.Add(time.Duration(i/2) * time.Minute)
		msg := seedMessage(t, db, models.Message{WorkspaceID: 1, MemberID: 1, ChannelID: channelID, CreatedAt: created})
		want = append([]uint{msg.ID}, want...)
	}
	seedMessage(t, db, models.Message{WorkspaceID: 1, MemberID: 1, ChannelID: uintPtr(2), CreatedAt: base})

	var (
		got    []uint
		cursor *MessageCursor
	)
	for page := 0; page < 10; page++ {
		items, err := repo.ListPage(ctx, MessageScope{Kind: ScopeChannel, ID: 1}, cursor, 3)
		require.NoError(t, err)
		for _, item := range items {
			got = append(got, item.ID)
		}
		if len(items) < 3 {
			break
		}
		last := items[len(items)-1]
		cursor = &MessageCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	require.Equal(t, want, got)
}

func TestMessageRepositoryListPageSeparatesThreadsFromChannel(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	parent := seedMessage(t, db, models.Message{WorkspaceID: 1, MemberID: 1, ChannelID: uintPtr(1), CreatedAt: base})
	reply := seedMessage(t, db, models.Message{WorkspaceID: 1, MemberID: 2, ChannelID: uintPtr(1), ParentMessageID: &parent.ID, CreatedAt: base.Add(time.Minute)})

	top, err := repo.ListPage(ctx, MessageScope{Kind: ScopeChannel, ID: 1}, nil, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, parent.ID, top[0].ID)

	thread, err := repo.ListPage(ctx, MessageScope{Kind: ScopeThread, ID: parent.ID}, nil, 10)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	require.Equal(t, reply.ID, thread[0].ID)

	_, err = repo.ListPage(ctx, MessageScope{ID: 1}, nil, 10)
	require.ErrorIs(t, err, ErrUnknownScope)
}

func TestMessageRepositoryThreadStats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	busy := seedMessage(t, db, models.Message{WorkspaceID: 1, MemberID: 1, ChannelID: uintPtr(1), CreatedAt: base})
	quiet := seedMessage(t, db, models.Message{WorkspaceID: 1, MemberID: 1, ChannelID: uintPtr(1), CreatedAt: base.Add(time.Second)})

	seedMessage(t, db, models.Message{WorkspaceID: 1, MemberID: 2, ParentMessageID: &busy.ID, ChannelID: uintPtr(1), CreatedAt: base.Add(time.Minute)})
	latest := seedMessage(t, db, models.Message{WorkspaceID: 1, MemberID: 3, ParentMessageID: &busy.ID, ChannelID: uintPtr(1), CreatedAt: base.Add(2 * time.Minute)})

	stats, err := repo.ThreadStats(ctx, []uint{busy.ID, quiet.ID})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.Equal(t, int64(2), stats[busy.ID].Count)
	require.Equal(t, latest.ID, stats[busy.ID].Latest.ID)
	require.Equal(t, uint(3), stats[busy.ID].Latest.MemberID)

	empty, err := repo.ThreadStats(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestMessageRepositoryUpdateBody(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	msg := seedMessage(t, db, models.Message{WorkspaceID: 1, MemberID: 1, ChannelID: uintPtr(1)})
	require.Nil(t, msg.UpdatedAt)

	edited := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateBody(ctx, msg.ID, datatypes.JSON(`{"ops":[{"insert":"edited\n"}]}`), edited))

	stored, err := repo.Get(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.UpdatedAt)
	require.True(t, edited.Equal(*stored.UpdatedAt))
	require.JSONEq(t, `{"ops":[{"insert":"edited\n"}]}`, string(stored.Body))

	err = repo.UpdateBody(ctx, 999, datatypes.JSON(`{}`), edited)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
