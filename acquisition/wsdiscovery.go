package acquisition

import (
	_ "embed"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
)

// WsProtocol is the WebSocket protocol/library in use.
type WsProtocol int

const (
	WsProtocolUnknown WsProtocol = iota
	WsProtocolRaw
	WsProtocolSocketIO
	WsProtocolSockJS
	WsProtocolSignalR
)

func (p WsProtocol) String() string {
	switch p {
	case WsProtocolRaw:
		return "raw"
	case WsProtocolSocketIO:
		return "socketio"
	case WsProtocolSockJS:
		return "sockjs"
	case WsProtocolSignalR:
		return "signalr"
	default:
		return "unknown"
	}
}

// WsAuth is how a WebSocket connection authenticates.
type WsAuth int

const (
	WsAuthNone WsAuth = iota
	WsAuthCookie
	WsAuthQueryParam
	WsAuthFirstMessage
	WsAuthHeader
)

// WsEndpoint is a discovered WebSocket endpoint (§4.2 strategy 7 / protocol
// discovery).
type WsEndpoint struct {
	URL            string
	Protocol       WsProtocol
	AuthMethod     WsAuth
	DiscoveredFrom string
	Confidence     float32
}

//go:embed ws_platforms.json
var wsPlatformsJSON []byte

type wsPlatformConfig struct {
	WsURLPattern string `json:"ws_url_pattern"`
	WsURL        string `json:"ws_url"`
	Protocol     string `json:"protocol"`
	Auth         string `json:"auth"`
}

var (
	wsPlatformRegistryOnce sync.Once
	wsPlatformRegistry     map[string]wsPlatformConfig
)

func loadWsPlatformRegistry() map[string]wsPlatformConfig {
	wsPlatformRegistryOnce.Do(func() {
		wsPlatformRegistry = make(map[string]wsPlatformConfig)
		_ = json.Unmarshal(wsPlatformsJSON, &wsPlatformRegistry)
	})
	return wsPlatformRegistry
}

var (
	standardWsRe = regexp.MustCompile(`new\s+WebSocket\(\s*['"](wss?://[^'"]+)['"]`)
	socketIORe   = regexp.MustCompile(`io(?:\.connect)?\(\s*['"]((?:wss?|https?)://[^'"]+)['"]`)
	sockJSRe     = regexp.MustCompile(`new\s+SockJS\(\s*['"]([^'"]+)['"]`)
	signalRUrlRe = regexp.MustCompile(`\.withUrl\(\s*['"]([^'"]+)['"]`)
)

// DiscoverWsEndpoints scans HTML and JS bundle source for WebSocket
// connection patterns (standard WebSocket, Socket.IO, SockJS, SignalR)
// and checks the known-platform registry for domain, returning
// deduplicated endpoints by URL.
func DiscoverWsEndpoints(html string, jsBundles []string, domain string) []WsEndpoint {
	var endpoints []WsEndpoint
	seen := make(map[string]struct{})

	for platformDomain, config := range loadWsPlatformRegistry() {
		if !strings.Contains(domain, platformDomain) && !strings.Contains(platformDomain, domain) {
			continue
		}
		url := config.WsURL
		if url == "" {
			url = config.WsURLPattern
		}
		if url == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		endpoints = append(endpoints, WsEndpoint{
			URL:            url,
			Protocol:       parseWsProtocol(config.Protocol),
			AuthMethod:     parseWsAuth(config.Auth),
			DiscoveredFrom: "platform:" + platformDomain,
			Confidence:     0.95,
		})
	}

	type source struct {
		text string
		name string
	}
	sources := []source{{html, "html"}}
	for i, js := range jsBundles {
		sources = append(sources, source{js, "js_bundle_" + itoa(int64(i))})
	}

	for _, src := range sources {
		scanStandardWs(src.text, src.name, &endpoints, seen)
		scanSocketIO(src.text, src.name, &endpoints, seen)
		scanSockJS(src.text, src.name, &endpoints, seen)
		scanSignalR(src.text, src.name, &endpoints, seen)
	}

	return endpoints
}

// HasKnownWs reports whether domain has a registered platform WebSocket
// configuration.
func HasKnownWs(domain string) bool {
	for platformDomain := range loadWsPlatformRegistry() {
		if strings.Contains(domain, platformDomain) || strings.Contains(platformDomain, domain) {
			return true
		}
	}
	return false
}

func scanStandardWs(source, sourceName string, endpoints *[]WsEndpoint, seen map[string]struct{}) {
	for _, m := range standardWsRe.FindAllStringSubmatch(source, -1) {
		url := m[1]
		if url == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		*endpoints = append(*endpoints, WsEndpoint{
			URL: url, Protocol: WsProtocolRaw, AuthMethod: WsAuthNone,
			DiscoveredFrom: sourceName, Confidence: 0.90,
		})
	}
}

func scanSocketIO(source, sourceName string, endpoints *[]WsEndpoint, seen map[string]struct{}) {
	for _, m := range socketIORe.FindAllStringSubmatch(source, -1) {
		url := m[1]
		if url == "" {
			continue
		}
		wsURL := strings.NewReplacer("https://", "wss://", "http://", "ws://").Replace(url)
		if _, ok := seen[wsURL]; ok {
			continue
		}
		seen[wsURL] = struct{}{}
		*endpoints = append(*endpoints, WsEndpoint{
			URL: wsURL, Protocol: WsProtocolSocketIO, AuthMethod: WsAuthCookie,
			DiscoveredFrom: sourceName, Confidence: 0.85,
		})
	}
}

func scanSockJS(source, sourceName string, endpoints *[]WsEndpoint, seen map[string]struct{}) {
	for _, m := range sockJSRe.FindAllStringSubmatch(source, -1) {
		url := m[1]
		if url == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		*endpoints = append(*endpoints, WsEndpoint{
			URL: url, Protocol: WsProtocolSockJS, AuthMethod: WsAuthCookie,
			DiscoveredFrom: sourceName, Confidence: 0.85,
		})
	}
}

func scanSignalR(source, sourceName string, endpoints *[]WsEndpoint, seen map[string]struct{}) {
	if !strings.Contains(source, "signalR") && !strings.Contains(source, "HubConnection") {
		return
	}
	for _, m := range signalRUrlRe.FindAllStringSubmatch(source, -1) {
		url := m[1]
		if url == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		*endpoints = append(*endpoints, WsEndpoint{
			URL: url, Protocol: WsProtocolSignalR, AuthMethod: WsAuthCookie,
			DiscoveredFrom: sourceName, Confidence: 0.85,
		})
	}
}

func parseWsProtocol(s string) WsProtocol {
	switch s {
	case "raw":
		return WsProtocolRaw
	case "socketio", "socket.io":
		return WsProtocolSocketIO
	case "sockjs":
		return WsProtocolSockJS
	case "signalr":
		return WsProtocolSignalR
	default:
		return WsProtocolUnknown
	}
}

func parseWsAuth(s string) WsAuth {
	switch s {
	case "cookie":
		return WsAuthCookie
	case "query_param", "query_param_token":
		return WsAuthQueryParam
	case "first_message", "auth_message":
		return WsAuthFirstMessage
	case "header":
		return WsAuthHeader
	default:
		return WsAuthNone
	}
}
