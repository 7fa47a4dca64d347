package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/teamchat-api/internal/models"
)

func TestConversationRepositoryFindOrCreateIsSymmetric(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	first, created, err := repo.FindOrCreate(ctx, 1, 10, 20)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := repo.FindOrCreate(ctx, 1, 20, 10)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)

	found, err := repo.FindBetween(ctx, 1, 20, 10)
	require.NoError(t, err)
	require.Equal(t, first.ID, found.ID)

	_, err = repo.FindBetween(ctx, 2, 10, 20)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestConversationRepositoryStoresOnePairRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	conversation, created, err := repo.FindOrCreate(ctx, 1, 20, 10)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, uint(10), conversation.MemberOneID)
	require.Equal(t, uint(20), conversation.MemberTwoID)

	duplicate := models.Conversation{WorkspaceID: 1, MemberOneID: 10, MemberTwoID: 20}
	require.ErrorIs(t, db.Create(&duplicate).Error, gorm.ErrDuplicatedKey)
}

func TestConversationRepositoryFindOrCreateReturnsConcurrentWinner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	// Another request inserts the same pair between our lookup and insert.
	var raced bool
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:concurrent_insert", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "conversations" {
			return
		}
		raced = true
		require.NoError(t, db.Exec("INSERT INTO conversations (workspace_id, member_one_id, member_two_id, created_at) VALUES (?, ?, ?, ?)", 1, 10, 20, time.Now().UTC()).Error)
	}))

	conversation, created, err := repo.FindOrCreate(ctx, 1, 20, 10)
	require.NoError(t, err)
	require.True(t, raced)
	require.False(t, created)
	require.NotZero(t, conversation.ID)

	var rows int64
	require.NoError(t, db.Model(&models.Conversation{}).Count(&rows).Error)
	require.EqualValues(t, 1, rows)
}
