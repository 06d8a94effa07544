package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"sketchbook/internal/game"
)

func TestWebsocketUnknownRoom(t *testing.T) {
	_, ts := newTestApp(t, testConfig(), testCatalog(4, nil), 1)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/rooms/missing"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail for unknown room")
	}
	if resp == nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestWebsocketReceivesRoomNotices(t *testing.T) {
	cfg := testConfig()
	cfg.PromptSelection = false
	srv, ts := newTestApp(t, cfg, testCatalog(4, nil), 1)
	roomID := createRoom(t, ts, 2, 1)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/rooms/" + roomID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	defer conn.Close()
	waitForSubscribers(t, srv.hub, game.RoomChannel(roomID))

	joinPlayer(t, ts, roomID, "Ada")
	if notice := readNotice(t, conn, 5*time.Second); notice.Type != game.NoticeReload {
		t.Fatalf("expected reload notice, got %s", notice.Type)
	}

	joinPlayer(t, ts, roomID, "Bea")
	notice := waitForNotice(t, conn, 5*time.Second, game.NoticeRedirect)
	if notice.URL != "/api/rooms/"+roomID+"/next" {
		t.Fatalf("expected redirect to next, got %q", notice.URL)
	}
}

func TestWebsocketClosedConnectionIsDropped(t *testing.T) {
	srv, ts := newTestApp(t, testConfig(), testCatalog(4, nil), 1)
	roomID := createRoom(t, ts, 2, 1)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/rooms/" + roomID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	waitForSubscribers(t, srv.hub, game.GameChannel(roomID))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for srv.hub.Subscribers(game.GameChannel(roomID)) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected subscriber to be removed after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitForSubscribers(t *testing.T, hub *Hub, channel string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.Subscribers(channel) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no subscriber on %s", channel)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readNotice(t *testing.T, conn *websocket.Conn, timeout time.Duration) game.Notice {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	var notice game.Notice
	if err := json.Unmarshal(payload, &notice); err != nil {
		t.Fatalf("decode notice: %v", err)
	}
	return notice
}

func waitForNotice(t *testing.T, conn *websocket.Conn, timeout time.Duration, noticeType string) game.Notice {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		notice := readNotice(t, conn, time.Until(deadline))
		if notice.Type == noticeType {
			return notice
		}
	}
	t.Fatalf("timed out waiting for %s notice", noticeType)
	return game.Notice{}
}
