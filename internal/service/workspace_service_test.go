package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/models"
)

func newTestWorkspaceService(env *testEnv, cache *redis.Client) *workspaceService {
	svc := NewWorkspaceService(env.workspaces, env.members, env.cascade, env.guard, env.events, cache, time.Minute, testValidator(), testLogger()).(*workspaceService)
	svc.joinCode = func() (string, error) { return "k3y9ab", nil }
	return svc
}

func TestWorkspaceServiceCreateSeedsAdminAndChannel(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	svc := newTestWorkspaceService(env, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, alice.ID, dto.WorkspaceCreateRequest{Name: "  <b>Design</b>   Team "})
	require.NoError(t, err)
	require.Equal(t, "Design Team", created.Name)
	require.Equal(t, "k3y9ab", created.JoinCode)
	require.Equal(t, alice.ID, created.UserID)

	member, err := env.members.FindByWorkspaceAndUser(ctx, created.ID, alice.ID)
	require.NoError(t, err)
	require.True(t, member.IsAdmin())

	channels, err := env.channels.ListByWorkspace(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	require.Equal(t, defaultChannelName, channels[0].Name)

	listed, err := svc.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = svc.Create(ctx, 0, dto.WorkspaceCreateRequest{Name: "Nope"})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestWorkspaceServiceJoin(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	workspace, _, _ := env.workspace(t, alice)
	svc := newTestWorkspaceService(env, nil)
	ctx := context.Background()

	_, err := svc.Join(ctx, bob.ID, workspace.ID, dto.WorkspaceJoinRequest{JoinCode: "zzz999"})
	require.ErrorIs(t, err, ErrInvalidState)

	joined, err := svc.Join(ctx, bob.ID, workspace.ID, dto.WorkspaceJoinRequest{JoinCode: "ABC123"})
	require.NoError(t, err)
	require.Equal(t, workspace.ID, joined.ID)

	member, err := env.members.FindByWorkspaceAndUser(ctx, workspace.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, models.MemberRoleMember, member.Role)

	_, err = svc.Join(ctx, bob.ID, workspace.ID, dto.WorkspaceJoinRequest{JoinCode: "abc123"})
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.Join(ctx, bob.ID, 9999, dto.WorkspaceJoinRequest{JoinCode: "abc123"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWorkspaceServiceNewJoinCodeRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	workspace, _, _ := env.workspace(t, alice)
	env.join(t, workspace, bob, models.MemberRoleMember)
	svc := newTestWorkspaceService(env, nil)
	ctx := context.Background()

	_, err := svc.NewJoinCode(ctx, bob.ID, workspace.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	rotated, err := svc.NewJoinCode(ctx, alice.ID, workspace.ID)
	require.NoError(t, err)
	require.Equal(t, "k3y9ab", rotated.JoinCode)
}

func TestWorkspaceServiceInfoCachesNameOnly(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	workspace, _, _ := env.workspace(t, alice)
	svc := newTestWorkspaceService(env, cache)
	ctx := context.Background()

	info, err := svc.Info(ctx, bob.ID, workspace.ID)
	require.NoError(t, err)
	require.Equal(t, &dto.WorkspaceInfoResponse{Name: "Acme", IsMember: false}, info)
	require.True(t, mr.Exists(workspaceInfoKey(workspace.ID)))

	env.join(t, workspace, bob, models.MemberRoleMember)
	info, err = svc.Info(ctx, bob.ID, workspace.ID)
	require.NoError(t, err)
	require.True(t, info.IsMember)

	_, err = svc.Update(ctx, alice.ID, workspace.ID, dto.WorkspaceUpdateRequest{Name: "Acme Labs"})
	require.NoError(t, err)
	require.False(t, mr.Exists(workspaceInfoKey(workspace.ID)))

	info, err = svc.Info(ctx, bob.ID, workspace.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme Labs", info.Name)

	missing, err := svc.Info(ctx, bob.ID, 9999)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestWorkspaceServiceRemoveCascades(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	workspace, member, channel := env.workspace(t, alice)
	bobMember := env.join(t, workspace, bob, models.MemberRoleMember)
	msg := env.post(t, models.Message{WorkspaceID: workspace.ID, MemberID: member.ID, ChannelID: &channel.ID})
	require.NoError(t, env.db.Create(&models.Reaction{WorkspaceID: workspace.ID, MessageID: msg.ID, MemberID: bobMember.ID, Value: "👍"}).Error)

	svc := newTestWorkspaceService(env, nil)
	ctx := context.Background()

	require.ErrorIs(t, svc.Remove(ctx, bob.ID, workspace.ID), ErrUnauthorized)
	require.NoError(t, svc.Remove(ctx, alice.ID, workspace.ID))

	for _, model := range []interface{}{&models.Workspace{}, &models.Member{}, &models.Channel{}, &models.Message{}, &models.Reaction{}} {
		require.Zero(t, env.count(t, model))
	}
	require.EqualValues(t, 2, env.count(t, &models.User{}))

	got, err := svc.Get(ctx, alice.ID, workspace.ID)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Contains(t, env.notifier.types(), dto.EventWorkspaceDeleted)
}

func TestGenerateJoinCode(t *testing.T) {
	code, err := generateJoinCode()
	require.NoError(t, err)
	require.Len(t, code, joinCodeLength)
	for _, r := range code {
		require.Contains(t, joinCodeAlphabet, string(r))
	}
}
