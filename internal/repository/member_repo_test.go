package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamchat-api/internal/models"
)

func TestMemberRepositoryUpdateRoleKeepsAnAdmin(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMemberRepository(db)
	ctx := context.Background()

	alice := models.Member{WorkspaceID: 1, UserID: 1, Role: models.MemberRoleAdmin}
	bob := models.Member{WorkspaceID: 1, UserID: 2, Role: models.MemberRoleAdmin}
	require.NoError(t, repo.Create(ctx, &alice))
	require.NoError(t, repo.Create(ctx, &bob))

	require.NoError(t, repo.UpdateRole(ctx, bob.ID, models.MemberRoleMember))
	require.ErrorIs(t, repo.UpdateRole(ctx, alice.ID, models.MemberRoleMember), ErrLastAdmin)
	require.NoError(t, repo.UpdateRole(ctx, alice.ID, models.MemberRoleAdmin))

	admins, err := repo.CountAdmins(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, admins)
}

func TestCascadeDeleteGuardedAbortsWithoutChanges(t *testing.T) {
	db := setupTestDB(t)
	cascade := NewCascadeRepository(db)
	f := seedCascadeFixture(t, db)

	_, err := cascade.DeleteGuarded(context.Background(), KeepAnotherAdmin(f.workspace.ID, f.alice.ID), EntityMember, f.alice.ID)
	require.ErrorIs(t, err, ErrLastAdmin)
	require.Equal(t, int64(2), countRows(t, db, &models.Member{}))
	require.Equal(t, int64(4), countRows(t, db, &models.Message{}))

	report, err := cascade.DeleteGuarded(context.Background(), KeepAnotherAdmin(f.workspace.ID, f.bob.ID), EntityMember, f.bob.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), report[EntityMember])
}
