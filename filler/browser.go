// Package filler drives the browser side of autofill: it collects form
// fields from live pages, matches them against the profile, writes values
// back with synthetic events, and re-runs on DOM growth.
package filler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// BrowserConfig configures the browser manager.
type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headless controls the local launch mode. Ignored for remote.
	Headless bool

	Logger *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser manages the Chrome connection used for filling.
type Browser struct {
	cfg    BrowserConfig
	mu     sync.RWMutex
	b      *rod.Browser
	lnch   *launcher.Launcher
	closed bool
}

// NewBrowser creates a Browser. Call Start to connect.
func NewBrowser(cfg BrowserConfig) *Browser {
	cfg.defaults()
	return &Browser{cfg: cfg}
}

// Start launches Chrome (or connects to a remote instance).
func (m *Browser) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("filler: browser is closed")
	}

	log := m.cfg.Logger
	var wsURL string

	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("filler: connecting to remote browser", "url", wsURL)
	} else {
		l := launcher.New().Headless(m.cfg.Headless)
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("filler: launch browser: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("filler: launched local chrome", "url", wsURL, "headless", m.cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("filler: connect browser: %w", err)
	}
	m.b = b
	return nil
}

// Rod returns the underlying browser handle. Thread-safe.
func (m *Browser) Rod() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.b
}

// OpenPage creates a stealth tab and navigates it to pageURL.
func (m *Browser) OpenPage(ctx context.Context, pageURL string) (*rod.Page, error) {
	b := m.Rod()
	if b == nil {
		return nil, fmt.Errorf("filler: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("filler: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("filler: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("filler: wait load timeout", "url", pageURL, "error", err)
	}
	return page, nil
}

// Pages returns the browser's open pages.
func (m *Browser) Pages() ([]*rod.Page, error) {
	b := m.Rod()
	if b == nil {
		return nil, fmt.Errorf("filler: no active browser")
	}
	pages, err := b.Pages()
	if err != nil {
		return nil, fmt.Errorf("filler: list pages: %w", err)
	}
	return pages, nil
}

// Close shuts down the browser connection and any local Chrome.
func (m *Browser) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.b != nil {
		m.b.Close()
		m.b = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return nil
}
