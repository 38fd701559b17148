package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// BrowserBackend renders pages in a pooled headless browser, capturing the
// DOM text and a full-page screenshot.
type BrowserBackend struct {
	cfg         config.BrowserConfig
	logger      zerolog.Logger
	browserPool chan *rod.Browser
	launcher    *launcher.Launcher
	mutex       sync.Mutex
	isRunning   bool
}

// NewBrowserBackend creates the backend; call Start before fetching.
func NewBrowserBackend(cfg config.BrowserConfig, logger zerolog.Logger) *BrowserBackend {
	return &BrowserBackend{
		cfg:         cfg,
		logger:      logger.With().Str("component", "BrowserBackend").Logger(),
		browserPool: make(chan *rod.Browser, cfg.PoolSize),
	}
}

// Name implements Backend.
func (bb *BrowserBackend) Name() string { return BackendBrowser }

// Start launches the browser pool.
func (bb *BrowserBackend) Start() error {
	bb.mutex.Lock()
	defer bb.mutex.Unlock()

	if bb.isRunning {
		return nil
	}
	if !bb.cfg.Enabled {
		bb.logger.Info().Msg("Browser backend is disabled in config")
		return nil
	}

	l := launcher.New()
	if bb.cfg.ChromePath != "" {
		l = l.Bin(bb.cfg.ChromePath)
	}
	l = l.
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("disable-default-apps").
		Set("disable-sync")

	controlURL, err := l.Launch()
	if err != nil {
		return models.WrapError(err, "launching headless browser")
	}
	bb.launcher = l

	for i := 0; i < bb.cfg.PoolSize; i++ {
		browser := rod.New().ControlURL(controlURL)
		if err := browser.Connect(); err != nil {
			bb.logger.Error().Err(err).Int("browser_index", i).Msg("Failed to connect browser")
			continue
		}
		bb.browserPool <- browser
	}

	bb.isRunning = true
	bb.logger.Info().Int("pool_size", bb.cfg.PoolSize).Msg("Browser backend started")
	return nil
}

// Stop closes all browser instances and the launcher.
func (bb *BrowserBackend) Stop() {
	bb.mutex.Lock()
	defer bb.mutex.Unlock()

	if !bb.isRunning {
		return
	}

	close(bb.browserPool)
	for browser := range bb.browserPool {
		if browser != nil {
			browser.Close()
		}
	}
	if bb.launcher != nil {
		bb.launcher.Cleanup()
	}
	bb.isRunning = false
	bb.logger.Info().Msg("Browser backend stopped")
}

func (bb *BrowserBackend) getBrowser() (*rod.Browser, error) {
	if !bb.isRunning {
		return nil, fmt.Errorf("browser backend not running")
	}
	select {
	case browser := <-bb.browserPool:
		return browser, nil
	case <-time.After(10 * time.Second):
		return nil, fmt.Errorf("timeout waiting for browser from pool")
	}
}

func (bb *BrowserBackend) returnBrowser(browser *rod.Browser) {
	if !bb.isRunning || browser == nil {
		return
	}
	select {
	case bb.browserPool <- browser:
	default:
		browser.Close()
	}
}

// Fetch implements Backend: navigate, wait for load, extract rendered HTML
// plus a screenshot and a structured element dump.
func (bb *BrowserBackend) Fetch(ctx context.Context, req Request) (*Response, error) {
	browser, err := bb.getBrowser()
	if err != nil {
		return nil, models.NewPageUnloadableError(req.URL, 0, err)
	}
	defer bb.returnBrowser(browser)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = time.Duration(bb.cfg.PageLoadTimeoutSecs) * time.Second
	}
	pageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := browser.Context(pageCtx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewPageUnloadableError(req.URL, 0, err)
	}
	defer page.Close()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  bb.cfg.WindowWidth,
		Height: bb.cfg.WindowHeight,
	}); err != nil {
		bb.logger.Warn().Err(err).Msg("Failed to set viewport")
	}

	if len(req.Headers) > 0 {
		pairs := make([]string, 0, len(req.Headers)*2)
		for k, v := range req.Headers {
			pairs = append(pairs, k, v)
		}
		if _, err := page.SetExtraHeaders(pairs); err != nil {
			bb.logger.Warn().Err(err).Msg("Failed to set extra headers")
		}
	}

	if err := page.Navigate(req.URL); err != nil {
		return nil, models.NewPageUnloadableError(req.URL, 0, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, models.NewScreenshotUnavailableError(req.URL, err)
	}
	if bb.cfg.ExtraWaitSeconds > 0 {
		// dynamic pages often repaint after load; give them a moment
		select {
		case <-time.After(time.Duration(bb.cfg.ExtraWaitSeconds) * time.Second):
		case <-pageCtx.Done():
			return nil, models.NewScreenshotUnavailableError(req.URL, pageCtx.Err())
		}
	}

	htmlContent, err := page.HTML()
	if err != nil {
		return nil, models.NewPageUnloadableError(req.URL, 0, err)
	}
	if htmlContent == "" {
		return nil, models.NewEmptyReplyError(0)
	}

	resp := &Response{
		Content:     []byte(htmlContent),
		StatusCode:  http.StatusOK,
		Headers:     map[string]string{"Content-Type": "text/html"},
		ContentType: "text/html",
	}

	if bb.cfg.CaptureScreenshots {
		shot, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
		if err != nil {
			bb.logger.Warn().Err(err).Str("url", req.URL).Msg("Screenshot capture failed")
		} else {
			resp.Screenshot = shot
		}
	}

	if elements, err := bb.dumpElements(page); err == nil {
		resp.Elements = elements
	}

	bb.logger.Debug().Str("url", req.URL).Int("bytes", len(resp.Content)).Msg("Rendered page")
	return resp, nil
}

// dumpElements records the visible interactive elements with their
// positions, consumed by UI-side element pickers.
func (bb *BrowserBackend) dumpElements(page *rod.Page) ([]byte, error) {
	result, err := page.Eval(`() => {
		const out = [];
		for (const el of document.querySelectorAll('a, button, input, h1, h2, div[id], span[id]')) {
			const r = el.getBoundingClientRect();
			if (r.width === 0 || r.height === 0) continue;
			out.push({tag: el.tagName.toLowerCase(), id: el.id || null,
				left: r.left, top: r.top, width: r.width, height: r.height});
		}
		return JSON.stringify(out);
	}`)
	if err != nil {
		return nil, err
	}
	return []byte(result.Value.Str()), nil
}
