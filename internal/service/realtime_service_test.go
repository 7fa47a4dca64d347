package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamchat-api/internal/dto"
)

// attachClient registers a connection-less subscriber so tests can read its queue.
func attachClient(svc *realtimeService, workspaceID, memberID uint) *realtimeClient {
	client := &realtimeClient{
		send:    make(chan dto.ChangeEvent, realtimeSendBufferSize),
		options: RealtimeConnectionOptions{WorkspaceID: workspaceID, MemberID: memberID, Context: context.Background()},
		service: svc,
		closed:  make(chan struct{}),
	}
	svc.hub.register(client)
	return client
}

func TestRealtimeServiceNotifyTargetsWorkspaceRoom(t *testing.T) {
	svc := NewRealtimeService(nil, "", nil, testLogger()).(*realtimeService)
	inRoom := attachClient(svc, 1, 10)
	elsewhere := attachClient(svc, 2, 20)

	svc.Notify(context.Background(), dto.ChangeEvent{Type: dto.EventMessageCreated, WorkspaceID: 1, MessageID: uintPtr(5)})

	select {
	case event := <-inRoom.send:
		require.Equal(t, dto.EventMessageCreated, event.Type)
		require.Equal(t, uint(5), *event.MessageID)
	default:
		t.Fatal("expected event for workspace 1 subscriber")
	}
	require.Empty(t, elsewhere.send)
}

func TestRealtimeServiceCloseUnregisters(t *testing.T) {
	svc := NewRealtimeService(nil, "", nil, testLogger()).(*realtimeService)
	first := attachClient(svc, 1, 10)
	attachClient(svc, 1, 11)
	require.Equal(t, 2, svc.hub.size(1))

	first.close()
	first.close()
	require.Equal(t, 1, svc.hub.size(1))

	svc.Notify(context.Background(), dto.ChangeEvent{Type: dto.EventChannelCreated, WorkspaceID: 1})
	require.Empty(t, first.send)
}

func TestRevokes(t *testing.T) {
	member := uint(10)
	other := uint(11)

	require.True(t, revokes(dto.ChangeEvent{Type: dto.EventWorkspaceDeleted}, member))
	require.True(t, revokes(dto.ChangeEvent{Type: dto.EventMemberRemoved, MemberID: &member}, member))
	require.False(t, revokes(dto.ChangeEvent{Type: dto.EventMemberRemoved, MemberID: &other}, member))
	require.False(t, revokes(dto.ChangeEvent{Type: dto.EventMemberRemoved}, member))
	require.False(t, revokes(dto.ChangeEvent{Type: dto.EventMessageCreated}, member))
}

func TestRealtimeServiceFansOutAcrossNodesViaRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return client
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	nodeA := NewRealtimeService(newClient(), "teamchat-test", nil, testLogger()).(*realtimeService)
	nodeB := NewRealtimeService(newClient(), "teamchat-test", nil, testLogger()).(*realtimeService)
	nodeA.Start(ctx)
	nodeB.Start(ctx)

	local := attachClient(nodeA, 3, 30)
	remote := attachClient(nodeB, 3, 31)

	nodeA.Notify(ctx, dto.ChangeEvent{Type: dto.EventReactionToggled, WorkspaceID: 3})

	require.Len(t, local.send, 1)

	var received dto.ChangeEvent
	require.Eventually(t, func() bool {
		select {
		case received = <-remote.send:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, dto.EventReactionToggled, received.Type)

	<-local.send
	require.Never(t, func() bool { return len(local.send) > 0 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestRealtimeServiceConversationEventsReachOnlyParticipants(t *testing.T) {
	svc := NewRealtimeService(nil, "", nil, testLogger()).(*realtimeService)
	alice := attachClient(svc, 1, 10)
	bob := attachClient(svc, 1, 11)
	carol := attachClient(svc, 1, 12)

	svc.Notify(context.Background(), dto.ChangeEvent{
		Type:           dto.EventMessageCreated,
		WorkspaceID:    1,
		ConversationID: uintPtr(7),
		Audience:       []uint{10, 11},
	})

	require.Len(t, alice.send, 1)
	require.Len(t, bob.send, 1)
	require.Empty(t, carol.send)

	svc.Notify(context.Background(), dto.ChangeEvent{
		Type:           dto.EventMessageUpdated,
		WorkspaceID:    1,
		ConversationID: uintPtr(7),
	})
	require.Len(t, alice.send, 1)
	require.Len(t, bob.send, 1)
	require.Empty(t, carol.send)
}

func TestRealtimeServiceKeepsAudienceAcrossNodes(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return client
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	nodeA := NewRealtimeService(newClient(), "teamchat-audience", nil, testLogger()).(*realtimeService)
	nodeB := NewRealtimeService(newClient(), "teamchat-audience", nil, testLogger()).(*realtimeService)
	nodeA.Start(ctx)
	nodeB.Start(ctx)

	participant := attachClient(nodeB, 4, 40)
	outsider := attachClient(nodeB, 4, 41)

	nodeA.Notify(ctx, dto.ChangeEvent{
		Type:           dto.EventReactionToggled,
		WorkspaceID:    4,
		ConversationID: uintPtr(9),
		Audience:       []uint{40, 42},
	})

	require.Eventually(t, func() bool { return len(participant.send) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Empty(t, outsider.send)
}

func TestReaches(t *testing.T) {
	require.True(t, reaches(dto.ChangeEvent{Type: dto.EventChannelCreated}, 1))
	require.True(t, reaches(dto.ChangeEvent{ConversationID: uintPtr(3), Audience: []uint{1, 2}}, 2))
	require.False(t, reaches(dto.ChangeEvent{ConversationID: uintPtr(3), Audience: []uint{1, 2}}, 5))
	require.False(t, reaches(dto.ChangeEvent{ConversationID: uintPtr(3)}, 1))
}
