package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/device"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/sampling"
)

// BrowserConfig configures how a browser is obtained.
type BrowserConfig struct {
	// RemoteURL is the DevTools WebSocket URL of a running Chrome.
	// Empty launches a local headless Chrome.
	RemoteURL string

	// Headful disables headless mode for local launches.
	Headful bool

	// NavigationTimeout bounds page loads. Default: 30s.
	NavigationTimeout time.Duration

	Logger *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser owns a rod browser connection.
type Browser struct {
	cfg     BrowserConfig
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// OpenBrowser connects to RemoteURL or launches a local Chrome.
func OpenBrowser(ctx context.Context, cfg BrowserConfig) (*Browser, error) {
	cfg.defaults()

	wsURL := cfg.RemoteURL
	var l *launcher.Launcher
	if wsURL == "" {
		l = launcher.New().Headless(!cfg.Headful)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("source: launch browser: %w", err)
		}
		wsURL = u
		cfg.Logger.Info("source: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("source: connect browser: %w", err)
	}
	return &Browser{cfg: cfg, browser: b, lnch: l}, nil
}

// Open creates a page sized to d's viewport, navigates to pageURL and waits
// for the load event.
func (b *Browser) Open(ctx context.Context, pageURL string, d device.Device) (*Rod, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("source: create page: %w", err)
	}

	if vp := d.Viewport(); vp.Width > 0 && vp.Height > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             vp.Width,
			Height:            vp.Height,
			DeviceScaleFactor: 1.0,
		}); err != nil {
			b.cfg.Logger.Warn("source: set viewport failed", "device", d.Name(), "error", err)
		}
	}

	r := &Rod{page: page, logger: b.cfg.Logger}
	if err := r.Navigate(ctx, pageURL, b.cfg.NavigationTimeout); err != nil {
		_ = page.Close()
		return nil, err
	}
	return r, nil
}

// Close disconnects from the browser and kills a locally launched Chrome.
func (b *Browser) Close() error {
	err := b.browser.Close()
	if b.lnch != nil {
		b.lnch.Kill()
	}
	return err
}

// Rod is a Source over a rod page. Selectors are CSS selectors; values are
// the visible text of the matched elements.
//
// Side effect: Find polls the live DOM until the selector matches or the
// timeout expires.
type Rod struct {
	page   *rod.Page
	logger *slog.Logger
}

// NewRod wraps an existing page.
func NewRod(page *rod.Page) *Rod {
	return &Rod{page: page, logger: slog.Default()}
}

// Page returns the underlying rod page.
func (r *Rod) Page() *rod.Page {
	return r.page
}

// Close closes the page. The browser stays open.
func (r *Rod) Close() error {
	return r.page.Close()
}

// Navigate loads pageURL and waits for the load event. Callers holding
// caching samplers should invalidate them before navigating.
func (r *Rod) Navigate(ctx context.Context, pageURL string, timeout time.Duration) error {
	p := r.page.Context(ctx).Timeout(timeout)
	if err := p.Navigate(pageURL); err != nil {
		return sourceErr("navigate", pageURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		r.logger.Warn("source: wait load timeout", "url", pageURL, "error", err)
	}
	return nil
}

// Find waits up to timeout for selector and returns its text.
func (r *Rod) Find(ctx context.Context, selector string, timeout time.Duration) (sampling.Sample[string], error) {
	el, err := r.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return sampling.Absent[string](), nil
		}
		return sampling.Sample[string]{}, sourceErr("find", selector, err)
	}
	text, err := el.Text()
	if err != nil {
		return sampling.Sample[string]{}, sourceErr("text", selector, err)
	}
	return sampling.Of(text), nil
}

// FindAll returns the text of every element currently matching selector.
func (r *Rod) FindAll(ctx context.Context, selector string) ([]string, error) {
	els, err := r.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, sourceErr("find all", selector, err)
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			return nil, sourceErr("text", selector, err)
		}
		out = append(out, text)
	}
	return out, nil
}

// CurrentValue returns the page URL.
func (r *Rod) CurrentValue(ctx context.Context) (string, error) {
	info, err := r.page.Context(ctx).Info()
	if err != nil {
		return "", sourceErr("current", "", err)
	}
	return info.URL, nil
}
