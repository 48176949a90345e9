package renderer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/cortex/cortexerr"
)

// RodRenderer is the production Renderer, backed by a single headless
// Chrome process launched via go-rod. NewContext(ctx, true) opens a stealth
// context (go-rod/stealth); every caller in this module passes
// stealth=false, so no extraction path uses one.
type RodRenderer struct {
	browser *rod.Browser
}

// RodRendererConfig controls how the underlying Chromium process launches.
type RodRendererConfig struct {
	ChromiumPath string
	NoSandbox    bool
	Proxy        string
	Headless     bool
}

// NewRodRenderer launches a headless Chromium process and connects to it.
func NewRodRenderer(cfg RodRendererConfig) (*RodRenderer, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.ChromiumPath != "" {
		l = l.Bin(cfg.ChromiumPath)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, cortexerr.New(cortexerr.ResourceExhausted, "failed to launch chromium", err)
	}
	slog.Info("renderer: chromium launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, cortexerr.New(cortexerr.ResourceExhausted, "failed to connect to chromium", err)
	}

	return &RodRenderer{browser: browser}, nil
}

// NewContext creates a new browser tab. When stealth is true the tab is
// patched with go-rod/stealth's anti-detection JS before any navigation.
func (r *RodRenderer) NewContext(ctx context.Context, stealth bool) (RenderContext, error) {
	var page *rod.Page
	var err error
	if stealth {
		page, err = stealthPage(r.browser)
	} else {
		page, err = r.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, cortexerr.New(cortexerr.ResourceExhausted, "failed to create browser context", err)
	}
	return &rodRenderContext{page: page.Context(ctx)}, nil
}

func stealthPage(browser *rod.Browser) (*rod.Page, error) {
	return stealth.Page(browser)
}

// Close shuts down the underlying Chromium process. Call on process
// shutdown once the pool has drained.
func (r *RodRenderer) Close() error {
	return r.browser.Close()
}

type rodRenderContext struct {
	page          *rod.Page
	redirectChain []string
}

func (c *rodRenderContext) Navigate(ctx context.Context, url string, timeout time.Duration) (*NavigationResult, error) {
	page := c.page.Context(ctx).Timeout(timeout)

	c.redirectChain = nil
	stop := page.EachEvent(func(e *proto.NetworkResponseReceived) {
		if e.Response.Status >= 300 && e.Response.Status < 400 {
			c.redirectChain = append(c.redirectChain, e.Response.URL)
		}
	})

	started := time.Now()
	if err := page.Navigate(url); err != nil {
		stop()
		return nil, cortexerr.New(cortexerr.Network, fmt.Sprintf("navigate %s", url), err)
	}
	if err := page.WaitLoad(); err != nil {
		stop()
		return nil, cortexerr.New(cortexerr.Network, fmt.Sprintf("wait load %s", url), err)
	}
	stop()
	elapsed := time.Since(started)

	info, err := page.Info()
	if err != nil {
		return nil, cortexerr.New(cortexerr.Network, "read page info", err)
	}

	return &NavigationResult{
		FinalURL:      info.URL,
		Status:        200,
		RedirectChain: c.redirectChain,
		LoadTimeMs:    uint64(elapsed.Milliseconds()),
	}, nil
}

func (c *rodRenderContext) ExecuteJS(ctx context.Context, src string) (any, error) {
	res, err := c.page.Context(ctx).Eval(src)
	if err != nil {
		return nil, cortexerr.New(cortexerr.Network, "execute_js", err)
	}
	var out any
	if err := res.Value.Unmarshal(&out); err != nil {
		return nil, cortexerr.New(cortexerr.Parse, "execute_js result", err)
	}
	return out, nil
}

func (c *rodRenderContext) GetURL() string {
	info, err := c.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (c *rodRenderContext) Close() error {
	return c.page.Close()
}
