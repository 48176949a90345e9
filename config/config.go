package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Browser      BrowserConfig
	Scraper      ScraperConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	Cache        CacheConfig
	Log          LogConfig
	Engine       EngineConfig
	AdaptivePool AdaptivePoolConfig
	Cortex       CortexConfig
}

// CortexConfig holds the cartography-specific settings spec.md §7 lists
// ($CORTEX_HOME and friends), layered alongside the teacher's PURIFY_*
// scrape-service settings rather than replacing them — Cortex reuses the
// teacher's HTTP server/browser/rate-limit ambient stack wholesale.
type CortexConfig struct {
	// Home is $CORTEX_HOME, the root for maps/, audit.jsonl, vault.db,
	// and cortex.pid. default: "~/.cortex"
	Home string

	// ChromiumPath overrides the Chromium binary Rod launches.
	ChromiumPath string

	// ChromiumNoSandbox disables Chrome's sandbox (containers).
	ChromiumNoSandbox bool // default: false

	// NoColor, JSON, Quiet, Verbose mirror the CLI's output modes.
	NoColor bool
	JSON    bool
	Quiet   bool
	Verbose bool

	// LedgerURL is an optional remote sink the audit log additionally
	// streams to, alongside the local audit.jsonl file.
	LedgerURL string

	// VaultKey decrypts vault.db's credential store.
	VaultKey string

	// MaxContexts bounds the browser pool's concurrent RenderContexts.
	MaxContexts int // default: 8

	// MemoryLimitMB bounds the pool's total estimated memory usage.
	MemoryLimitMB uint64 // default: 2048

	// ContextRequestTimeoutMs is stored on the pool's ResourceGovernor
	// (RequestTimeoutMs). ContextPool.Acquire does not read it: it waits
	// for a permit until the caller's ctx is done.
	ContextRequestTimeoutMs uint64 // default: 30000

	// MaxCrawlNodes and MaxCrawlRender bound one BFS crawl (§5).
	MaxCrawlNodes  int // default: 50000
	MaxCrawlRender int // default: 200

	// CrawlDeadline bounds one BFS crawl's wall-clock time.
	CrawlDeadline time.Duration // default: 10s

	// HeadScanConcurrency is loaded but not read by the HEAD-request pass:
	// acquisition.ScanHeads uses its own headScanConcurrency constant (20).
	HeadScanConcurrency int // default: 20

	// HotCacheMaxEntries and HotCacheTTL size the in-memory map-cache front.
	HotCacheMaxEntries int           // default: 64
	HotCacheTTL        time.Duration // default: 5m

	// SessionTimeout is how long a live-interaction browser session may
	// sit idle before it's treated as expired (§4.12).
	SessionTimeout time.Duration // default: 10m

	// WatchEpsilon is loaded but not read by WATCH or REFRESH: both compare
	// features against the live package's fixed changeThreshold (0.01).
	WatchEpsilon float64 // default: 0.01
}

// EngineConfig controls the multi-engine racing dispatcher.
type EngineConfig struct {
	// EnableMultiEngine toggles the multi-engine dispatcher.
	EnableMultiEngine bool // default: true

	// EscalationDelays is the staged start delay for each engine tier.
	EscalationDelays []time.Duration // default: [0s, 2s, 5s]

	// HTTPTimeout is the deadline for the pure HTTP engine.
	HTTPTimeout time.Duration // default: 5s
}

// AdaptivePoolConfig controls the adaptive page pool sizing.
type AdaptivePoolConfig struct {
	// MinPages is the minimum number of pages kept in the pool.
	MinPages int // default: 3

	// HardMax is the absolute maximum number of pages.
	HardMax int // default: 20

	// MemThreshold is the heap memory fraction (0.0-1.0) above which the pool shrinks.
	MemThreshold float64 // default: 0.9

	// ScaleStep is the fraction of pool size to grow or shrink per interval.
	ScaleStep float64 // default: 0.05
}

// CacheConfig controls the scrape response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 1000
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 10

	// DefaultProxy is the default proxy URL for all requests.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// ScraperConfig controls scraping behavior.
type ScraperConfig struct {
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s

	// NavigationTimeout is the max time for page.Navigate alone.
	NavigationTimeout time.Duration // default: 15s

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys (for MVP; replace with DB later).
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PURIFY_HOST", "0.0.0.0"),
			Port: envIntOr("PURIFY_PORT", 8080),
			Mode: envOr("PURIFY_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("PURIFY_HEADLESS", true),
			MaxPages:     envIntOr("PURIFY_MAX_PAGES", 10),
			DefaultProxy: os.Getenv("PURIFY_PROXY"),
			NoSandbox:    envBoolOr("PURIFY_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("PURIFY_BROWSER_BIN"),
		},
		Scraper: ScraperConfig{
			DefaultTimeout:    envDurationOr("PURIFY_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:        envDurationOr("PURIFY_MAX_TIMEOUT", 120*time.Second),
			NavigationTimeout: envDurationOr("PURIFY_NAV_TIMEOUT", 15*time.Second),
			BlockedResourceTypes: envSliceOr("PURIFY_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PURIFY_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PURIFY_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PURIFY_RATE_RPS", 5.0),
			Burst:             envIntOr("PURIFY_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("CACHE_MAX_ENTRIES", 1000),
		},
		Log: LogConfig{
			Level:  envOr("PURIFY_LOG_LEVEL", "info"),
			Format: envOr("PURIFY_LOG_FORMAT", "json"),
		},
		Engine: EngineConfig{
			EnableMultiEngine: envBoolOr("PURIFY_MULTI_ENGINE", true),
			EscalationDelays:  envDurationSliceOr("PURIFY_ESCALATION_DELAYS", []time.Duration{0, 2 * time.Second, 5 * time.Second}),
			HTTPTimeout:       envDurationOr("PURIFY_HTTP_TIMEOUT", 5*time.Second),
		},
		AdaptivePool: AdaptivePoolConfig{
			MinPages:     envIntOr("PURIFY_MIN_PAGES", 3),
			HardMax:      envIntOr("PURIFY_HARD_MAX_PAGES", 20),
			MemThreshold: envFloatOr("PURIFY_MEM_THRESHOLD", 0.9),
			ScaleStep:    envFloatOr("PURIFY_SCALE_STEP", 0.05),
		},
		Cortex: CortexConfig{
			Home:                    envOr("CORTEX_HOME", defaultCortexHome()),
			ChromiumPath:            os.Getenv("CORTEX_CHROMIUM_PATH"),
			ChromiumNoSandbox:       envBoolOr("CORTEX_CHROMIUM_NO_SANDBOX", false),
			NoColor:                 envBoolOr("CORTEX_NO_COLOR", false),
			JSON:                    envBoolOr("CORTEX_JSON", false),
			Quiet:                   envBoolOr("CORTEX_QUIET", false),
			Verbose:                 envBoolOr("CORTEX_VERBOSE", false),
			LedgerURL:               os.Getenv("CORTEX_LEDGER_URL"),
			VaultKey:                os.Getenv("CORTEX_VAULT_KEY"),
			MaxContexts:             envIntOr("CORTEX_MAX_CONTEXTS", 8),
			MemoryLimitMB:           envUint64Or("CORTEX_MEMORY_LIMIT_MB", 2048),
			ContextRequestTimeoutMs: envUint64Or("CORTEX_CONTEXT_TIMEOUT_MS", 30000),
			MaxCrawlNodes:           envIntOr("CORTEX_MAX_CRAWL_NODES", 50000),
			MaxCrawlRender:          envIntOr("CORTEX_MAX_CRAWL_RENDER", 200),
			CrawlDeadline:           envDurationOr("CORTEX_CRAWL_DEADLINE", 10*time.Second),
			HeadScanConcurrency:     envIntOr("CORTEX_HEAD_SCAN_CONCURRENCY", 20),
			HotCacheMaxEntries:      envIntOr("CORTEX_HOT_CACHE_MAX_ENTRIES", 64),
			HotCacheTTL:             envDurationOr("CORTEX_HOT_CACHE_TTL", 5*time.Minute),
			SessionTimeout:          envDurationOr("CORTEX_SESSION_TIMEOUT", 10*time.Minute),
			WatchEpsilon:            envFloatOr("CORTEX_WATCH_EPSILON", 0.01),
		},
	}
}

// defaultCortexHome returns ~/.cortex, falling back to ./.cortex if the
// home directory can't be resolved.
func defaultCortexHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cortex"
	}
	return filepath.Join(home, ".cortex")
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envUint64Or(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
