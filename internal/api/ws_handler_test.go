package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vdavid/vmail/webclient/internal/auth"
	"github.com/vdavid/vmail/webclient/internal/controller"
	"github.com/vdavid/vmail/webclient/internal/gateway"
	"github.com/vdavid/vmail/webclient/internal/imap"
	"github.com/vdavid/vmail/webclient/internal/models"
	"github.com/vdavid/vmail/webclient/internal/route"
	"github.com/vdavid/vmail/webclient/internal/testutil/mocks"
	"github.com/vdavid/vmail/webclient/internal/view"
	ws "github.com/vdavid/vmail/webclient/internal/websocket"
)

// blockingIdle records listener starts and stops instead of talking IMAP.
type blockingIdle struct {
	started chan string
	stopped chan string
}

func newBlockingIdle() *blockingIdle {
	return &blockingIdle{started: make(chan string, 10), stopped: make(chan string, 10)}
}

func (b *blockingIdle) StartIdleListener(ctx context.Context, userID string, _ imap.Notifier) {
	b.started <- userID
	<-ctx.Done()
	b.stopped <- userID
}

var testValidator = auth.TokenValidatorFunc(func(_ context.Context, token string) (auth.Identity, error) {
	if token != "token" {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return auth.Identity{UserID: testUserID, Email: "me@example.com"}, nil
})

type wsFixture struct {
	url  string
	hub  *ws.Hub
	gw   *mocks.Gateway
	idle *blockingIdle
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	f := &wsFixture{hub: ws.NewHub(10), gw: mocks.NewGateway(t), idle: newBlockingIdle()}
	handler := NewWebSocketHandler(testValidator, func(string) gateway.Gateway { return f.gw }, f.idle, f.hub, 10)

	server := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(server.Close)
	f.url = "ws" + strings.TrimPrefix(server.URL, "http")
	return f
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(f.url+"?token=token", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type rawFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readUntil reads frames until one of frameType arrives.
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) rawFrame {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var frame rawFrame
		require.NoError(t, conn.ReadJSON(&frame), "waiting for %s frame", frameType)
		if frame.Type == frameType {
			return frame
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, cmd controller.Command) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(cmd))
}

func testSnapshot() models.Snapshot {
	return models.Snapshot{
		"inbox": {"1": {ID: "1", Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Subject: "Welcome"}},
	}
}

func TestWebSocketHandler_RejectsBadTokens(t *testing.T) {
	f := newWSFixture(t)

	for _, url := range []string{f.url, f.url + "?token=wrong"} {
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestWebSocketHandler_NavigateRendersFrames(t *testing.T) {
	f := newWSFixture(t)
	f.gw.On("FetchAll", mock.Anything).Return(testSnapshot(), nil)

	conn := f.dial(t)
	send(t, conn, controller.Command{Type: controller.CommandNavigate, Fragment: ""})

	redirect := readUntil(t, conn, view.FrameRedirect)
	var target view.RedirectData
	require.NoError(t, json.Unmarshal(redirect.Data, &target))
	assert.Equal(t, route.InFolder(models.FolderInbox).String(), target.Fragment)

	list := readUntil(t, conn, view.FrameMessageList)
	var page controller.ListPage
	require.NoError(t, json.Unmarshal(list.Data, &page))
	assert.Equal(t, "inbox", page.Folder)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "Welcome", page.Messages[0].Subject)

	select {
	case userID := <-f.idle.started:
		assert.Equal(t, testUserID, userID)
	case <-time.After(2 * time.Second):
		t.Fatal("IDLE listener was not started")
	}
}

func TestWebSocketHandler_BadCommands(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	frame := readUntil(t, conn, view.FrameError)
	var data view.ErrorData
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	assert.Contains(t, data.Message, "invalid command")

	send(t, conn, controller.Command{Type: "explode"})
	frame = readUntil(t, conn, view.FrameError)
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	assert.Contains(t, data.Message, "unknown command")

	// The connection survives bad input.
	send(t, conn, controller.Command{Type: controller.CommandValidateFolderName, Name: "Receipts"})
	frame = readUntil(t, conn, view.FrameFolderNameFeedback)
	var feedback view.FeedbackData
	require.NoError(t, json.Unmarshal(frame.Data, &feedback))
	assert.Equal(t, "Receipts", feedback.Name)
}

func TestWebSocketHandler_NotificationsResync(t *testing.T) {
	f := newWSFixture(t)
	f.gw.On("FetchAll", mock.Anything).Return(testSnapshot(), nil).Once()

	conn := f.dial(t)
	send(t, conn, controller.Command{Type: controller.CommandNavigate, Fragment: route.InFolder(models.FolderInbox).String()})
	readUntil(t, conn, view.FrameMessageList)

	refreshed := testSnapshot()
	refreshed["inbox"]["2"] = models.Message{ID: "2", Timestamp: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Subject: "New"}
	f.gw.On("FetchAll", mock.Anything).Return(refreshed, nil).Once()

	f.hub.Notify(testUserID)

	list := readUntil(t, conn, view.FrameMessageList)
	var page controller.ListPage
	require.NoError(t, json.Unmarshal(list.Data, &page))
	assert.Equal(t, 2, page.Total)
}

func TestWebSocketHandler_StopsIdleAfterLastConnection(t *testing.T) {
	f := newWSFixture(t)

	first := f.dial(t)
	second := f.dial(t)

	select {
	case <-f.idle.started:
	case <-time.After(2 * time.Second):
		t.Fatal("IDLE listener was not started")
	}

	require.Eventually(t, func() bool { return f.hub.ActiveConnections(testUserID) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, f.idle.started, 0, "one listener per user")

	_ = first.Close()
	require.Eventually(t, func() bool { return f.hub.ActiveConnections(testUserID) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, f.idle.stopped, 0)

	_ = second.Close()
	select {
	case userID := <-f.idle.stopped:
		assert.Equal(t, testUserID, userID)
	case <-time.After(2 * time.Second):
		t.Fatal("IDLE listener was not stopped")
	}
}
