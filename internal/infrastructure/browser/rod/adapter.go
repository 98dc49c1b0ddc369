// Package rod adapts go-rod into the browser and serializer ports.
// Elements are addressed by visible text with a tiered fallback; nothing
// here knows anything about any particular site.
package rod

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/url"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"github.com/softlight/wayfinder/internal/application/port/output"
	"github.com/softlight/wayfinder/internal/domain/entity"
)

var (
	_ output.BrowserPort    = (*Adapter)(nil)
	_ output.SerializerPort = (*Adapter)(nil)
)

const (
	clickableSelector = "button, [role='button'], a[href], input[type='submit'], input[type='button'], [onclick]"
	editableSelector  = "input, textarea, [role='textbox'], [contenteditable='true']"
	maxScreenshotW    = 1280
)

type Config struct {
	Headless      bool
	SlowMotion    time.Duration
	ActionTimeout time.Duration
	NavTimeout    time.Duration
	ViewportW     int
	ViewportH     int
	NoSandbox     bool
}

func DefaultConfig() Config {
	return Config{
		Headless:      true,
		ActionTimeout: 10 * time.Second,
		NavTimeout:    30 * time.Second,
		ViewportW:     1920,
		ViewportH:     1080,
		NoSandbox:     true,
	}
}

type Adapter struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	cfg      Config
	log      *zap.Logger
}

func New(cfg Config, log *zap.Logger) (*Adapter, error) {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 10 * time.Second
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().
		ControlURL(controlURL).
		SlowMotion(cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("open page: %w", err)
	}
	if cfg.ViewportW > 0 && cfg.ViewportH > 0 {
		_ = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             cfg.ViewportW,
			Height:            cfg.ViewportH,
			DeviceScaleFactor: 1,
		})
	}

	return &Adapter{
		browser:  browser,
		launcher: l,
		page:     page,
		cfg:      cfg,
		log:      log.Named("browser"),
	}, nil
}

func (a *Adapter) Navigate(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("unsupported url %q", rawURL)
	}

	page := a.page.Context(ctx).Timeout(a.cfg.NavTimeout)
	if err := page.Navigate(rawURL); err != nil {
		return mapErr(fmt.Errorf("navigate: %w", err))
	}
	if err := page.WaitLoad(); err != nil {
		// Slow third-party resources should not fail the run; the settle
		// wait after navigation picks up the slack.
		a.log.Debug("wait-load timed out, continuing", zap.Error(err))
	}
	return nil
}

// ClickText finds a clickable element whose visible text or aria-label
// matches the target, starting at the given tier and falling through to
// the looser ones. Candidate order prefers buttons over links because the
// selector lists them first.
func (a *Adapter) ClickText(ctx context.Context, target string, tier entity.MatchTier) error {
	page := a.page.Context(ctx).Timeout(a.cfg.ActionTimeout)

	el, err := a.findByText(page, clickableSelector, target, tier, clickableLabels)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		a.log.Debug("scroll into view failed", zap.Error(err))
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return mapErr(fmt.Errorf("click %q: %w", target, err))
	}
	return nil
}

// TypeText fills the first editable element whose placeholder, label or
// name matches the target. Existing content is replaced, not appended.
func (a *Adapter) TypeText(ctx context.Context, target, value string, tier entity.MatchTier) error {
	page := a.page.Context(ctx).Timeout(a.cfg.ActionTimeout)

	el, err := a.findByText(page, editableSelector, target, tier, editableLabels)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		a.log.Debug("scroll into view failed", zap.Error(err))
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(value); err != nil {
		return mapErr(fmt.Errorf("type into %q: %w", target, err))
	}
	return nil
}

var keyMap = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"Space":      input.Space,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"PageUp":     input.PageUp,
	"PageDown":   input.PageDown,
	"Home":       input.Home,
	"End":        input.End,
}

func (a *Adapter) PressKey(ctx context.Context, key string) error {
	k, ok := keyMap[key]
	if !ok {
		return fmt.Errorf("key %q: %w", key, entity.ErrElementNotFound)
	}
	page := a.page.Context(ctx).Timeout(a.cfg.ActionTimeout)
	if err := page.Keyboard.Press(k); err != nil {
		return mapErr(fmt.Errorf("press %s: %w", key, err))
	}
	return nil
}

func (a *Adapter) Wait(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitSettle waits for DOM quiescence up to the ceiling; when the page
// never goes idle it falls back to a short fixed pause.
func (a *Adapter) WaitSettle(ctx context.Context, ceiling time.Duration) {
	if ceiling <= 0 {
		ceiling = 3 * time.Second
	}
	if err := a.page.Context(ctx).WaitIdle(ceiling); err != nil {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
		}
	}
}

func (a *Adapter) Screenshot(ctx context.Context) ([]byte, error) {
	imgBytes, err := a.page.Context(ctx).Timeout(a.cfg.ActionTimeout).Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(80),
	})
	if err != nil {
		return nil, mapErr(fmt.Errorf("screenshot: %w", err))
	}

	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	if img.Bounds().Dx() > maxScreenshotW {
		img = imaging.Resize(img, maxScreenshotW, 0, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

func (a *Adapter) CurrentURL() string {
	info, err := a.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (a *Adapter) Close() {
	if a.browser != nil {
		_ = a.browser.Close()
	}
	if a.launcher != nil {
		a.launcher.Kill()
		a.launcher.Cleanup()
	}
}

// labelFunc extracts the candidate strings an element may be addressed by.
type labelFunc func(el *rod.Element) []string

func clickableLabels(el *rod.Element) []string {
	var labels []string
	if text, err := el.Text(); err == nil {
		if text = strings.TrimSpace(text); text != "" {
			labels = append(labels, text)
		}
	}
	if aria, err := el.Attribute("aria-label"); err == nil && aria != nil && *aria != "" {
		labels = append(labels, *aria)
	}
	return labels
}

func editableLabels(el *rod.Element) []string {
	var labels []string
	for _, attr := range []string{"placeholder", "aria-label", "name", "id"} {
		if v, err := el.Attribute(attr); err == nil && v != nil && *v != "" {
			labels = append(labels, *v)
		}
	}
	return labels
}

// findByText runs the tiered lookup over the selector's candidates:
// exact, case-insensitive, then substring, starting at the given tier.
func (a *Adapter) findByText(page *rod.Page, selector, target string, start entity.MatchTier, labels labelFunc) (*rod.Element, error) {
	els, err := page.Elements(selector)
	if err != nil {
		return nil, mapErr(fmt.Errorf("query %q: %w", target, err))
	}

	type candidate struct {
		el     *rod.Element
		labels []string
	}
	var candidates []candidate
	for _, el := range els {
		if visible, verr := el.Visible(); verr != nil || !visible {
			continue
		}
		if l := labels(el); len(l) > 0 {
			candidates = append(candidates, candidate{el, l})
		}
	}

	if start > entity.TierSubstring {
		start = entity.TierSubstring
	}
	for tier := start; tier <= entity.TierSubstring; tier++ {
		for _, c := range candidates {
			for _, label := range c.labels {
				if labelMatches(label, target, tier) {
					return c.el, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("no element matching %q: %w", target, entity.ErrElementNotFound)
}

func labelMatches(label, target string, tier entity.MatchTier) bool {
	switch tier {
	case entity.TierExact:
		return label == target
	case entity.TierFold:
		return strings.EqualFold(label, target)
	default:
		l, t := strings.ToLower(label), strings.ToLower(target)
		return strings.Contains(l, t) || strings.Contains(t, l)
	}
}

// mapErr folds rod and context failures onto the sentinel taxonomy so the
// executor can classify them without knowing about rod.
func mapErr(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", entity.ErrActionTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return err
	}
}
