package filler

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/formagent/formagent/bus"
)

//go:embed observe.js
var observeJS string

const mutationBinding = "__formagent_mutations"

// Scanner keeps a set of watched pages filled: each page gets an initial
// fill pass plus a childList MutationObserver whose signals are debounced
// into rescans. Attribute and value changes are deliberately not observed,
// so a fill pass never triggers another one.
type Scanner struct {
	browser *Browser
	filler  *Filler
	logger  *slog.Logger
	window  time.Duration

	mu      sync.Mutex
	watched []*watchedPage
}

type watchedPage struct {
	page   *rod.Page
	deb    *debouncer
	cancel context.CancelFunc
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithDebounceWindow sets the rescan debounce window.
func WithDebounceWindow(d time.Duration) ScannerOption {
	return func(s *Scanner) { s.window = d }
}

// WithScannerLogger sets a custom logger.
func WithScannerLogger(l *slog.Logger) ScannerOption {
	return func(s *Scanner) { s.logger = l }
}

// NewScanner creates a Scanner around an existing browser and filler.
func NewScanner(b *Browser, f *Filler, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		browser: b,
		filler:  f,
		logger:  slog.Default(),
		window:  defaultDebounceWindow,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open navigates a new tab to pageURL, runs an initial fill pass, and
// starts watching the page for DOM growth. It returns the number of
// fields written by the initial pass.
func (s *Scanner) Open(ctx context.Context, pageURL string) (int, error) {
	page, err := s.browser.OpenPage(ctx, pageURL)
	if err != nil {
		return 0, err
	}
	n, err := s.filler.FillPage(ctx, page)
	if err != nil {
		s.logger.Warn("scanner: initial fill failed", "url", pageURL, "error", err)
	}
	return n, s.Watch(ctx, page)
}

// Watch attaches the mutation observer to an already-open page. New child
// nodes restart the debounce window; when it expires a fill pass runs.
func (s *Scanner) Watch(ctx context.Context, page *rod.Page) error {
	pageCtx, cancel := context.WithCancel(ctx)

	deb := newDebouncer(s.window, func() {
		if _, err := s.filler.FillPage(pageCtx, page); err != nil {
			s.logger.Warn("scanner: rescan fill failed", "error", err)
		}
	})

	if err := (proto.RuntimeAddBinding{Name: mutationBinding}).Call(page); err != nil {
		cancel()
		deb.Stop()
		return fmt.Errorf("filler: add mutation binding: %w", err)
	}

	go page.Context(pageCtx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name == mutationBinding {
			deb.Trigger()
		}
	})()

	if _, err := page.Context(pageCtx).Eval(observeJS); err != nil {
		cancel()
		deb.Stop()
		return fmt.Errorf("filler: inject observer: %w", err)
	}

	s.mu.Lock()
	s.watched = append(s.watched, &watchedPage{page: page, deb: deb, cancel: cancel})
	s.mu.Unlock()

	s.logger.Debug("scanner: watching page", "url", pageHost(page))
	return nil
}

// FillAll runs one fill pass over every watched page and returns the
// total number of fields written.
func (s *Scanner) FillAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	pages := make([]*rod.Page, 0, len(s.watched))
	for _, w := range s.watched {
		pages = append(pages, w.page)
	}
	s.mu.Unlock()

	total := 0
	var firstErr error
	for _, page := range pages {
		n, err := s.filler.FillPage(ctx, page)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += n
	}
	return total, firstErr
}

// RegisterBus registers the on-demand fill handler.
func (s *Scanner) RegisterBus(r *bus.Router) {
	r.RegisterLocal(bus.MsgFillNow, func(ctx context.Context, _ []byte) ([]byte, error) {
		n, err := s.FillAll(ctx)
		if err != nil {
			s.logger.Warn("scanner: fill.now partial failure", "filled", n, "error", err)
		}
		return json.Marshal(bus.FillNowResponse{Success: err == nil, Filled: n})
	})
}

// Close stops all observers and closes the watched pages.
func (s *Scanner) Close() {
	s.mu.Lock()
	watched := s.watched
	s.watched = nil
	s.mu.Unlock()

	for _, w := range watched {
		w.cancel()
		w.deb.Stop()
		w.page.Close()
	}
}
