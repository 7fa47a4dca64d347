package handler_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamchat-api/internal/dto"
)

func TestRealtimeHandlerAuthorizesBeforeUpgrade(t *testing.T) {
	app := setupApp(t)
	alice := app.user(t, "alice")
	mallory := app.user(t, "mallory")

	_, body := app.do(t, http.MethodPost, "/api/v1/workspaces", alice, dto.WorkspaceCreateRequest{Name: "Orbit"})
	workspace := decode[dto.WorkspaceResponse](t, body.Data)
	path := fmt.Sprintf("/api/v1/workspaces/%d/ws", workspace.ID)

	status, _ := app.do(t, http.MethodGet, path, alice, nil)
	require.Equal(t, http.StatusUpgradeRequired, status)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req.Header.Set(testUserHeader, strconv.FormatUint(uint64(mallory), 10))

	resp, err := app.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// subscription reads change events off a websocket until the server closes it.
type subscription struct {
	conn     *websocket.Conn
	events   chan dto.ChangeEvent
	closeErr error
}

func subscribe(t *testing.T, baseURL string, workspaceID, userID uint) *subscription {
	t.Helper()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + fmt.Sprintf("/api/v1/workspaces/%d/ws", workspaceID)
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	conn, resp, err := dialer.Dial(url, http.Header{testUserHeader: {strconv.FormatUint(uint64(userID), 10)}})
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	sub := &subscription{conn: conn, events: make(chan dto.ChangeEvent, 64)}
	go func() {
		defer close(sub.events)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				sub.closeErr = err
				return
			}
			var event dto.ChangeEvent
			if json.Unmarshal(payload, &event) == nil {
				sub.events <- event
			}
		}
	}()
	return sub
}

// await keeps producing changes until the subscription sees one, since the
// subscriber is registered only after the handshake completes.
func (s *subscription) await(t *testing.T, produce func()) dto.ChangeEvent {
	t.Helper()
	for attempt := 0; attempt < 100; attempt++ {
		produce()
		select {
		case event := <-s.events:
			return event
		case <-time.After(30 * time.Millisecond):
		}
	}
	t.Fatal("no change event received")
	return dto.ChangeEvent{}
}

// requireRevoked drains the subscription and checks that the server sent a
// policy-violation close and then dropped the connection.
func (s *subscription) requireRevoked(t *testing.T, lastType string) {
	t.Helper()

	var last dto.ChangeEvent
	timeout := time.After(3 * time.Second)
	for open := true; open; {
		select {
		case next, ok := <-s.events:
			if !ok {
				open = false
				continue
			}
			last = next
		case <-timeout:
			t.Fatal("subscription was not closed after access was revoked")
		}
	}
	require.Equal(t, lastType, last.Type)

	var closeErr *websocket.CloseError
	require.ErrorAs(t, s.closeErr, &closeErr)
	require.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)

	raw := s.conn.UnderlyingConn()
	require.NoError(t, raw.SetReadDeadline(time.Now().Add(3*time.Second)))
	buf := make([]byte, 64)
	for {
		_, err := raw.Read(buf)
		if err == nil {
			continue
		}
		var netErr net.Error
		require.False(t, errors.As(err, &netErr) && netErr.Timeout(), "server kept the connection open")
		return
	}
}

func TestRealtimeHandlerStreamsWorkspaceChanges(t *testing.T) {
	app := setupApp(t)
	alice := app.user(t, "alice")

	_, body := app.do(t, http.MethodPost, "/api/v1/workspaces", alice, dto.WorkspaceCreateRequest{Name: "Orbit"})
	workspace := decode[dto.WorkspaceResponse](t, body.Data)

	sub := subscribe(t, startServer(t, app.app), workspace.ID, alice)

	event := sub.await(t, func() {
		status, _ := app.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/workspaces/%d", workspace.ID), alice, dto.WorkspaceUpdateRequest{Name: "Orbit HQ"})
		require.Equal(t, http.StatusOK, status)
	})
	require.Equal(t, dto.EventWorkspaceUpdated, event.Type)
	require.Equal(t, workspace.ID, event.WorkspaceID)

	status, _ := app.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/workspaces/%d", workspace.ID), alice, nil)
	require.Equal(t, http.StatusOK, status)

	sub.requireRevoked(t, dto.EventWorkspaceDeleted)
}

func TestRealtimeHandlerClosesRemovedMembers(t *testing.T) {
	app := setupApp(t)
	alice := app.user(t, "alice")
	bob := app.user(t, "bob")

	_, body := app.do(t, http.MethodPost, "/api/v1/workspaces", alice, dto.WorkspaceCreateRequest{Name: "Orbit"})
	workspace := decode[dto.WorkspaceResponse](t, body.Data)
	base := fmt.Sprintf("/api/v1/workspaces/%d", workspace.ID)
	status, _ := app.do(t, http.MethodPost, base+"/join", bob, dto.WorkspaceJoinRequest{JoinCode: workspace.JoinCode})
	require.Equal(t, http.StatusOK, status)
	_, body = app.do(t, http.MethodGet, base+"/members/me", bob, nil)
	bobMember := decode[dto.MemberResponse](t, body.Data)

	baseURL := startServer(t, app.app)
	bobSub := subscribe(t, baseURL, workspace.ID, bob)
	aliceSub := subscribe(t, baseURL, workspace.ID, alice)

	bobSub.await(t, func() {
		status, _ := app.do(t, http.MethodPatch, base, alice, dto.WorkspaceUpdateRequest{Name: "Orbit HQ"})
		require.Equal(t, http.StatusOK, status)
	})
	aliceSub.await(t, func() {
		status, _ := app.do(t, http.MethodPatch, base, alice, dto.WorkspaceUpdateRequest{Name: "Orbit Base"})
		require.Equal(t, http.StatusOK, status)
	})

	status, _ = app.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/members/%d", bobMember.ID), alice, nil)
	require.Equal(t, http.StatusOK, status)

	bobSub.requireRevoked(t, dto.EventMemberRemoved)

	// Alice stays subscribed and keeps receiving changes.
	for {
		select {
		case event, ok := <-aliceSub.events:
			require.True(t, ok, "remaining member was disconnected")
			if event.Type == dto.EventMemberRemoved {
				return
			}
		case <-time.After(3 * time.Second):
			t.Fatal("remaining member did not see the removal")
		}
	}
}

func startServer(t *testing.T, app *fiber.App) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	t.Cleanup(func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	})

	return "http://" + listener.Addr().String()
}
