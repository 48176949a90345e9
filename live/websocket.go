package live

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/use-agent/cortex/acquisition"
)

// WsDirection is which way a WsMessage travelled.
type WsDirection int

const (
	WsSent WsDirection = iota
	WsReceived
)

// WsMessage is one message sent or received over a WsSession.
type WsMessage struct {
	Direction   WsDirection
	Payload     string
	TimestampMs uint64
}

const wsMaxHistory = 1000

// WsSession is a native WebSocket connection to an endpoint discovered
// by acquisition.DiscoverWsEndpoints (§4.11), used so an agent can talk
// to a site's real-time transport (Slack, Discord, live dashboards)
// without paying for a browser context.
type WsSession struct {
	URL      string
	Protocol acquisition.WsProtocol
	Domain   string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	messages  []WsMessage
}

// ConnectWs opens a WebSocket connection to endpoint, attaching cookies
// as a Cookie header (sorted by name, same as acquisition.HttpSession.
// CookieHeader, so the handshake header is deterministic regardless of map
// iteration order) and deriving an Origin header from the endpoint's
// scheme (wss→https, ws→http), matching the handshake every WS server
// that checks Origin expects.
func ConnectWs(endpoint acquisition.WsEndpoint, cookies map[string]string) (*WsSession, error) {
	header := http.Header{}
	if len(cookies) > 0 {
		header.Set("Cookie", sortedCookieHeader(cookies))
	}

	origin := "https://localhost"
	if parsed, err := url.Parse(endpoint.URL); err == nil {
		scheme := "http"
		if parsed.Scheme == "wss" {
			scheme = "https"
		}
		origin = scheme + "://" + parsed.Host
	}
	header.Set("Origin", origin)

	conn, _, err := websocket.DefaultDialer.Dial(endpoint.URL, header)
	if err != nil {
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}

	domain := endpoint.URL
	if parsed, err := url.Parse(endpoint.URL); err == nil {
		domain = parsed.Host
	}

	return &WsSession{
		URL:       endpoint.URL,
		Protocol:  endpoint.Protocol,
		Domain:    domain,
		conn:      conn,
		connected: true,
	}, nil
}

// sortedCookieHeader serializes cookies sorted by name, matching
// acquisition.HttpSession.CookieHeader's determinism guarantee (§3).
func sortedCookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(cookies[name])
	}
	return b.String()
}

// SendJSON sends payload (already JSON-encoded) over the wire, wrapping
// it in Socket.IO's "42" event frame when the session's protocol calls
// for it.
func (s *WsSession) SendJSON(payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return fmt.Errorf("websocket is not connected")
	}

	wire := payload
	if s.Protocol == acquisition.WsProtocolSocketIO {
		wire = "42" + payload
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(wire)); err != nil {
		return fmt.Errorf("failed to send websocket message: %w", err)
	}

	s.recordLocked(WsMessage{Direction: WsSent, Payload: payload})
	return nil
}

// Receive reads the next data message, transparently skipping
// ping/pong/close control frames and stripping the Socket.IO "42"
// prefix. Returns ("", false, nil) once the connection is closed.
func (s *WsSession) Receive() (string, bool, error) {
	for {
		s.mu.Lock()
		connected := s.connected
		conn := s.conn
		s.mu.Unlock()
		if !connected {
			return "", false, nil
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			s.connected = false
			s.mu.Unlock()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", false, nil
			}
			return "", false, fmt.Errorf("websocket error: %w", err)
		}

		switch msgType {
		case websocket.TextMessage:
			payload := string(data)
			if s.Protocol == acquisition.WsProtocolSocketIO {
				payload = strings.TrimPrefix(payload, "42")
			}
			s.mu.Lock()
			s.recordLocked(WsMessage{Direction: WsReceived, Payload: payload})
			s.mu.Unlock()
			return payload, true, nil
		case websocket.BinaryMessage:
			payload := fmt.Sprintf("[binary: %d bytes]", len(data))
			return payload, true, nil
		case websocket.CloseMessage:
			s.mu.Lock()
			s.connected = false
			s.mu.Unlock()
			return "", false, nil
		default:
			// Ping/pong frames are handled by gorilla's read loop internally.
			continue
		}
	}
}

// Watch collects messages received over duration, stopping early if the
// connection closes.
func (s *WsSession) Watch(duration time.Duration) []WsMessage {
	deadline := time.Now().Add(duration)
	var collected []WsMessage

	for time.Now().Before(deadline) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		s.conn.SetReadDeadline(time.Now().Add(remaining))

		payload, ok, err := s.Receive()
		if err != nil || !ok {
			break
		}
		collected = append(collected, WsMessage{Direction: WsReceived, Payload: payload})
	}

	return collected
}

// Close sends a close frame and marks the session disconnected. Safe to
// call more than once.
func (s *WsSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.connected = false
	return s.conn.Close()
}

// IsConnected reports whether the session is still open.
func (s *WsSession) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// History returns the bounded message history.
func (s *WsSession) History() []WsMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]WsMessage(nil), s.messages...)
}

// recordLocked appends a message and trims history to wsMaxHistory.
// Caller must hold s.mu.
func (s *WsSession) recordLocked(msg WsMessage) {
	s.messages = append(s.messages, msg)
	if len(s.messages) > wsMaxHistory {
		s.messages = s.messages[len(s.messages)-wsMaxHistory:]
	}
}
