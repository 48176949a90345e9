package live

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/use-agent/cortex/acquisition"
)

func TestRecordLockedTrimsHistory(t *testing.T) {
	s := &WsSession{connected: true}
	for i := 0; i < wsMaxHistory+10; i++ {
		s.recordLocked(WsMessage{Direction: WsSent, Payload: "x"})
	}
	if len(s.messages) != wsMaxHistory {
		t.Fatalf("expected history capped at %d, got %d", wsMaxHistory, len(s.messages))
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := &WsSession{connected: true}
	s.recordLocked(WsMessage{Direction: WsSent, Payload: "hello"})

	h := s.History()
	h[0].Payload = "mutated"

	if s.messages[0].Payload != "hello" {
		t.Fatal("History() should return a copy, not the live slice")
	}
}

func TestSortedCookieHeaderIsDeterministic(t *testing.T) {
	want := "a=1; b=2; c=3"
	for i := 0; i < 5; i++ {
		got := sortedCookieHeader(map[string]string{"c": "3", "a": "1", "b": "2"})
		if got != want {
			t.Fatalf("expected deterministic sorted header %q, got %q", want, got)
		}
	}
}

func TestIsConnected(t *testing.T) {
	s := &WsSession{connected: true}
	if !s.IsConnected() {
		t.Fatal("expected connected session")
	}
	s.connected = false
	if s.IsConnected() {
		t.Fatal("expected disconnected session")
	}
}

// echoUpgrader runs a minimal echo server so ConnectWs/SendJSON/Receive can
// be exercised end to end over a real (loopback) WebSocket connection.
var echoUpgrader = websocket.Upgrader{}

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := echoUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msgType, data); err != nil {
				return
			}
		}
	}))
}

func wsURL(httpURL string) string {
	return "ws" + httpURL[len("http"):]
}

func TestConnectWsSendReceiveRoundTrip(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	endpoint := acquisition.WsEndpoint{URL: wsURL(srv.URL), Protocol: acquisition.WsProtocolRaw}
	session, err := ConnectWs(endpoint, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()

	if err := session.SendJSON(`{"hello":"world"}`); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	payload, ok, err := session.Receive()
	if err != nil || !ok {
		t.Fatalf("expected a message back, ok=%v err=%v", ok, err)
	}
	if payload != `{"hello":"world"}` {
		t.Fatalf("unexpected echoed payload: %s", payload)
	}

	history := session.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries (sent+received), got %d", len(history))
	}
}

func TestConnectWsSocketIOFraming(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	endpoint := acquisition.WsEndpoint{URL: wsURL(srv.URL), Protocol: acquisition.WsProtocolSocketIO}
	session, err := ConnectWs(endpoint, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()

	if err := session.SendJSON(`{"a":1}`); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	payload, ok, err := session.Receive()
	if err != nil || !ok {
		t.Fatalf("expected a message back, ok=%v err=%v", ok, err)
	}
	if payload != `{"a":1}` {
		t.Fatalf("expected Socket.IO prefix stripped, got %q", payload)
	}
}

func TestWatchCollectsWithinDuration(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	endpoint := acquisition.WsEndpoint{URL: wsURL(srv.URL), Protocol: acquisition.WsProtocolRaw}
	session, err := ConnectWs(endpoint, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()

	if err := session.SendJSON("ping"); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	msgs := session.Watch(200 * time.Millisecond)
	if len(msgs) != 1 || msgs[0].Payload != "ping" {
		t.Fatalf("expected one echoed message, got %+v", msgs)
	}
}
