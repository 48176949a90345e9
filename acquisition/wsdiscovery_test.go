package acquisition

import "testing"

func TestDiscoverStandardWebSocket(t *testing.T) {
	html := `<script>const ws = new WebSocket("wss://api.example.com/stream");</script>`
	endpoints := DiscoverWsEndpoints(html, nil, "example.com")
	if len(endpoints) != 1 {
		t.Fatalf("expected 1 endpoint, got %d: %v", len(endpoints), endpoints)
	}
	if endpoints[0].URL != "wss://api.example.com/stream" || endpoints[0].Protocol != WsProtocolRaw {
		t.Fatalf("unexpected endpoint: %+v", endpoints[0])
	}
}

func TestDiscoverSocketIO(t *testing.T) {
	js := `const socket = io.connect("https://realtime.example.com", {transports: ['websocket']});`
	endpoints := DiscoverWsEndpoints("", []string{js}, "example.com")
	if len(endpoints) != 1 {
		t.Fatalf("expected 1 endpoint, got %d", len(endpoints))
	}
	if endpoints[0].Protocol != WsProtocolSocketIO {
		t.Fatalf("expected SocketIO protocol, got %v", endpoints[0].Protocol)
	}
	if endpoints[0].URL[:6] != "wss://" {
		t.Fatalf("expected wss:// url, got %s", endpoints[0].URL)
	}
}

func TestDiscoverSockJS(t *testing.T) {
	js := `var sock = new SockJS("/ws/notifications");`
	endpoints := DiscoverWsEndpoints("", []string{js}, "example.com")
	if len(endpoints) != 1 || endpoints[0].Protocol != WsProtocolSockJS {
		t.Fatalf("unexpected endpoints: %v", endpoints)
	}
}

func TestDiscoverSignalR(t *testing.T) {
	js := `
		const connection = new signalR.HubConnectionBuilder()
			.withUrl("/hubs/chat")
			.build();
	`
	endpoints := DiscoverWsEndpoints("", []string{js}, "example.com")
	if len(endpoints) != 1 || endpoints[0].Protocol != WsProtocolSignalR {
		t.Fatalf("unexpected endpoints: %v", endpoints)
	}
}

func TestDiscoverKnownPlatform(t *testing.T) {
	endpoints := DiscoverWsEndpoints("", nil, "slack.com")
	if len(endpoints) == 0 {
		t.Fatal("expected at least one endpoint for a known platform")
	}
	if endpoints[0].Confidence < 0.9 {
		t.Fatalf("expected high confidence, got %f", endpoints[0].Confidence)
	}
}

func TestDiscoverWsEmptyHTML(t *testing.T) {
	endpoints := DiscoverWsEndpoints("", nil, "unknown-domain.com")
	if len(endpoints) != 0 {
		t.Fatalf("expected no endpoints, got %v", endpoints)
	}
}

func TestDiscoverWsDeduplication(t *testing.T) {
	html := `
		<script>new WebSocket("wss://api.example.com/ws");</script>
		<script>new WebSocket("wss://api.example.com/ws");</script>
	`
	endpoints := DiscoverWsEndpoints(html, nil, "example.com")
	if len(endpoints) != 1 {
		t.Fatalf("expected deduplication to 1 endpoint, got %d", len(endpoints))
	}
}

func TestHasKnownWs(t *testing.T) {
	if !HasKnownWs("slack.com") {
		t.Error("expected slack.com to be known")
	}
	if !HasKnownWs("discord.com") {
		t.Error("expected discord.com to be known")
	}
	if HasKnownWs("random-blog.com") {
		t.Error("did not expect random-blog.com to be known")
	}
}
