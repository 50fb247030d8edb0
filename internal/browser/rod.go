package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"session-keeper/internal/domain/entity"
)

// RodDriver drives a headless Chromium through the DevTools protocol.
// Not safe for concurrent use; the session manager serializes access.
type RodDriver struct {
	cfg    Config
	logger *slog.Logger

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// NewRodDriver creates a driver; the browser is not launched until Start.
func NewRodDriver(cfg Config, logger *slog.Logger) *RodDriver {
	return &RodDriver{cfg: cfg, logger: logger}
}

// Start launches the browser with a persistent profile and stealth flags
// and opens the single working page.
func (d *RodDriver) Start(ctx context.Context) error {
	if d.browser != nil {
		return fmt.Errorf("browser already running")
	}

	l := launcher.New().
		Headless(d.cfg.Headless).
		NoSandbox(d.cfg.NoSandbox)

	if d.cfg.Bin != "" {
		l = l.Bin(d.cfg.Bin)
	}
	if d.cfg.UserDataDir != "" {
		l = l.UserDataDir(d.cfg.UserDataDir)
	}

	// Flags that keep the browser from advertising itself as automated.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("mute-audio"))

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("connect to browser: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		_ = b.Close()
		l.Kill()
		return fmt.Errorf("open stealth page: %w", err)
	}

	d.launcher = l
	d.browser = b
	d.page = page
	d.logger.Info("browser started", "control_url", controlURL)
	return nil
}

// Stop closes the page, disconnects, and kills the browser process.
// Stopping a stopped driver is a no-op.
func (d *RodDriver) Stop(ctx context.Context) error {
	if d.browser == nil {
		return nil
	}
	if d.page != nil {
		if err := d.page.Close(); err != nil {
			d.logger.Warn("page close failed", "error", err)
		}
		d.page = nil
	}
	if err := d.browser.Close(); err != nil {
		d.logger.Warn("browser close failed", "error", err)
	}
	d.browser = nil
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher.Cleanup()
		d.launcher = nil
	}
	d.logger.Info("browser stopped")
	return nil
}

// Restart is stop-then-start.
func (d *RodDriver) Restart(ctx context.Context) error {
	if err := d.Stop(ctx); err != nil {
		return err
	}
	return d.Start(ctx)
}

// RefreshNavigate loads the target page and lets it settle, which makes
// the remote site rotate its short-lived session records.
func (d *RodDriver) RefreshNavigate(ctx context.Context) error {
	if d.page == nil {
		return fmt.Errorf("browser not running")
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.NavigationTimeout)
	defer cancel()
	p := d.page.Context(ctx)

	if err := p.Navigate(d.cfg.TargetURL); err != nil {
		return navError(err, "navigate refresh target")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		d.logger.Debug("DOM did not settle, proceeding", "error", err)
	}

	// A small scroll makes the page fire the activity beacons that trigger
	// record rotation on some sites.
	if _, err := p.Eval(`() => window.scrollTo(0, 400)`); err != nil {
		d.logger.Debug("scroll eval failed", "error", err)
	}
	return nil
}

// ReadCredentials exports the session records currently held by the
// browser, filtered to the configured site domain.
func (d *RodDriver) ReadCredentials(ctx context.Context) ([]entity.Cookie, error) {
	if d.browser == nil {
		return nil, fmt.Errorf("browser not running")
	}

	raw, err := d.browser.Context(ctx).GetCookies()
	if err != nil {
		return nil, fmt.Errorf("read browser state: %w", err)
	}

	var out []entity.Cookie
	for _, c := range raw {
		if !d.matchesDomain(c.Domain) {
			continue
		}
		var expires uint64
		if !c.Session && c.Expires > 0 {
			expires = uint64(c.Expires)
		}
		out = append(out, entity.Cookie{
			Domain:    c.Domain,
			HostOnly:  !strings.HasPrefix(c.Domain, "."),
			Path:      c.Path,
			Secure:    c.Secure,
			ExpiresAt: expires,
			Name:      c.Name,
			Value:     c.Value,
		})
	}
	return out, nil
}

// SeedCredentials loads stored records into the browser.
func (d *RodDriver) SeedCredentials(ctx context.Context, cookies []entity.Cookie) error {
	if d.browser == nil {
		return fmt.Errorf("browser not running")
	}

	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
			Secure: c.Secure,
		}
		if c.ExpiresAt > 0 {
			p.Expires = proto.TimeSinceEpoch(c.ExpiresAt)
		}
		params = append(params, p)
	}

	if err := d.browser.Context(ctx).SetCookies(params); err != nil {
		return fmt.Errorf("seed browser state: %w", err)
	}
	d.logger.Info("session records seeded", "count", len(params))
	return nil
}

// ProbeLiveness asks the browser for its version over the control
// connection. A dead or disconnected process fails the call.
func (d *RodDriver) ProbeLiveness(ctx context.Context) bool {
	if d.browser == nil {
		return false
	}
	_, err := proto.BrowserGetVersion{}.Call(d.browser.Context(ctx))
	return err == nil
}

// ProbeAuthenticated loads the probe page and inspects it for signed-in
// markers. Best-effort only: a layout change can produce a false negative,
// so callers must not treat a false result as proof of sign-out.
func (d *RodDriver) ProbeAuthenticated(ctx context.Context) (bool, error) {
	if d.page == nil {
		return false, fmt.Errorf("browser not running")
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.NavigationTimeout)
	defer cancel()
	p := d.page.Context(ctx)

	if err := p.Navigate(d.cfg.ProbeURL); err != nil {
		return false, navError(err, "navigate probe page")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		d.logger.Debug("DOM did not settle during probe", "error", err)
	}

	html, err := p.HTML()
	if err != nil {
		return false, fmt.Errorf("read probe page: %w", err)
	}

	lower := strings.ToLower(html)
	if strings.Contains(lower, `id="avatar-btn"`) {
		return true, nil
	}
	if strings.Contains(lower, `aria-label="sign in"`) || strings.Contains(lower, ">sign in<") {
		return false, nil
	}
	// No marker either way: trust the session until proven otherwise.
	return true, nil
}

// MemoryMB sums the resident memory of the browser process tree.
func (d *RodDriver) MemoryMB() (int, error) {
	if d.launcher == nil {
		return 0, fmt.Errorf("browser not running")
	}
	return processTreeRSSMB(d.launcher.PID())
}

func (d *RodDriver) matchesDomain(domain string) bool {
	if d.cfg.CookieDomain == "" {
		return true
	}
	trimmed := strings.TrimPrefix(domain, ".")
	return trimmed == d.cfg.CookieDomain || strings.HasSuffix(trimmed, "."+d.cfg.CookieDomain)
}

// navError keeps the timeout wording visible so the failure classifier
// files deadline expiry under network errors.
func navError(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: navigation timeout: %w", msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
