package action

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	whatsAppSendURL   = "https://web.whatsapp.com/send"
	whatsAppComposeEl = `div[contenteditable="true"][data-tab="10"]`
	defaultSendWait   = 60 * time.Second
	defaultCloseAfter = 5 * time.Second
)

// RodConfig controls the automated Chrome instance.
type RodConfig struct {
	// DebuggerURL connects to an already running Chrome instead of launching one.
	DebuggerURL string
	// UserDataDir keeps the profile, so a WhatsApp Web login survives restarts.
	UserDataDir string
	Headless    bool
	// SendWait bounds how long to wait for the chat to load.
	SendWait time.Duration
	// CloseAfter is the grace period before the message tab is closed.
	CloseAfter time.Duration
}

// RodBrowser drives Chrome through the DevTools protocol. It opens pages and
// sends WhatsApp messages through WhatsApp Web.
type RodBrowser struct {
	cfg     RodConfig
	mu      sync.Mutex
	browser *rod.Browser
	logger  *slog.Logger
}

// NewRodBrowser returns a browser that connects lazily on first use.
func NewRodBrowser(cfg RodConfig) *RodBrowser {
	if cfg.SendWait <= 0 {
		cfg.SendWait = defaultSendWait
	}
	if cfg.CloseAfter <= 0 {
		cfg.CloseAfter = defaultCloseAfter
	}
	return &RodBrowser{cfg: cfg, logger: slog.Default()}
}

func (b *RodBrowser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		if _, err := b.browser.Version(); err == nil {
			return b.browser, nil
		}
		b.logger.Warn("stale browser connection, reconnecting")
		_ = b.browser.Close()
		b.browser = nil
	}

	controlURL := b.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(b.cfg.Headless)
		if b.cfg.UserDataDir != "" {
			l = l.UserDataDir(b.cfg.UserDataDir)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launching chrome: %w", err)
		}
		controlURL = u
	}

	br := rod.New().ControlURL(controlURL)
	if err := br.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to chrome: %w", err)
	}
	b.browser = br
	return br, nil
}

func (b *RodBrowser) Open(ctx context.Context, target string) error {
	br, err := b.connect()
	if err != nil {
		return err
	}
	if _, err := br.Context(ctx).Page(proto.TargetCreateTarget{URL: target}); err != nil {
		return fmt.Errorf("opening %s: %w", target, err)
	}
	return nil
}

func (b *RodBrowser) SendMessage(ctx context.Context, number, body string) error {
	br, err := b.connect()
	if err != nil {
		return err
	}

	page, err := br.Context(ctx).Page(proto.TargetCreateTarget{URL: WhatsAppSendURL(number, body)})
	if err != nil {
		return fmt.Errorf("opening WhatsApp Web: %w", err)
	}
	defer func() {
		time.Sleep(b.cfg.CloseAfter)
		if err := page.Close(); err != nil {
			b.logger.Debug("closing WhatsApp tab", "error", err)
		}
	}()

	compose, err := page.Timeout(b.cfg.SendWait).Element(whatsAppComposeEl)
	if err != nil {
		return fmt.Errorf("waiting for WhatsApp chat (is WhatsApp Web logged in?): %w", err)
	}
	if err := compose.Focus(); err != nil {
		return fmt.Errorf("focusing compose box: %w", err)
	}
	if err := page.Keyboard.Press(input.Enter); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// Close shuts the browser down if one was started.
func (b *RodBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}

// WhatsAppSendURL builds the click-to-chat URL with a prefilled message.
func WhatsAppSendURL(number, body string) string {
	q := url.Values{}
	q.Set("phone", strings.TrimPrefix(number, "+"))
	q.Set("text", body)
	return whatsAppSendURL + "?" + q.Encode()
}
