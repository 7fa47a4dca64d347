package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamchat-api/internal/models"
)

func TestReactionRepositoryToggleAddsThenRemoves(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReactionRepository(db)
	ctx := context.Background()

	reaction := models.Reaction{WorkspaceID: 1, MessageID: 10, MemberID: 2, Value: "👍"}

	added, ok, err := repo.Toggle(ctx, reaction)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotZero(t, added.ID)

	removed, ok, err := repo.Toggle(ctx, reaction)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, added.ID, removed.ID)

	var count int64
	require.NoError(t, db.Model(&models.Reaction{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestReactionRepositoryListByMessageIDsKeepsInsertOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReactionRepository(db)
	ctx := context.Background()

	rows := []models.Reaction{
		{WorkspaceID: 1, MessageID: 1, MemberID: 1, Value: "🎉"},
		{WorkspaceID: 1, MessageID: 2, MemberID: 1, Value: "👍"},
		{WorkspaceID: 1, MessageID: 1, MemberID: 2, Value: "👍"},
		{WorkspaceID: 1, MessageID: 3, MemberID: 2, Value: "👀"},
	}
	for i := range rows {
		_, _, err := repo.Toggle(ctx, rows[i])
		require.NoError(t, err)
	}

	items, err := repo.ListByMessageIDs(ctx, []uint{1, 2})
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "🎉", items[0].Value)
	require.Equal(t, uint(2), items[1].MessageID)
	require.Equal(t, uint(2), items[2].MemberID)

	none, err := repo.ListByMessageIDs(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, none)
}
