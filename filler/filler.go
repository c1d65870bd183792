package filler

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-rod/rod"

	"github.com/formagent/formagent/bus"
	"github.com/formagent/formagent/match"
	"github.com/formagent/formagent/profile"
)

//go:embed collect.js
var collectJS string

//go:embed fill.js
var fillJS string

// Filler runs fill passes against live pages. It resolves the profile and
// the disabled-site set over the message bus so it works identically
// whether the cache lives in-process or behind HTTP.
type Filler struct {
	bus        *bus.Router
	logger     *slog.Logger
	fillHidden bool
}

// Option configures a Filler.
type Option func(*Filler)

// WithFillHidden allows writes into fields that are invisible but not
// type=hidden. Off by default.
func WithFillHidden(on bool) Option {
	return func(f *Filler) { f.fillHidden = on }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Filler) { f.logger = l }
}

// New creates a Filler that talks to the given bus.
func New(r *bus.Router, opts ...Option) *Filler {
	f := &Filler{bus: r, logger: slog.Default()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// FillPage runs one fill pass over the page: collect candidates, match
// them against the profile, write the planned values with synthetic input
// and change events. It returns the number of fields written. A disabled
// site, a missing profile, or an empty plan all return 0 with no error.
func (f *Filler) FillPage(ctx context.Context, page *rod.Page) (int, error) {
	host := pageHost(page)
	if host != "" && f.siteDisabled(ctx, host) {
		f.logger.Debug("filler: site disabled, skipping", "host", host)
		return 0, nil
	}

	prof := f.profile(ctx)
	if prof == nil || prof.Len() == 0 {
		f.logger.Debug("filler: no profile available, skipping", "host", host)
		return 0, nil
	}

	candidates, err := Collect(ctx, page)
	if err != nil {
		return 0, err
	}

	plan := match.Plan(candidates, prof, f.fillHidden)
	if len(plan) == 0 {
		return 0, nil
	}

	n, err := Apply(ctx, page, plan)
	if err != nil {
		return 0, err
	}
	f.logger.Info("filler: fill pass complete", "host", host, "planned", len(plan), "filled", n)
	return n, nil
}

// Collect gathers every input, select, and textarea on the page in
// document order.
func Collect(ctx context.Context, page *rod.Page) ([]match.Candidate, error) {
	res, err := page.Context(ctx).Eval(collectJS)
	if err != nil {
		return nil, fmt.Errorf("filler: collect candidates: %w", err)
	}
	var out []match.Candidate
	if err := json.Unmarshal([]byte(res.Value.Str()), &out); err != nil {
		return nil, fmt.Errorf("filler: decode candidates: %w", err)
	}
	return out, nil
}

// Apply writes the planned assignments into the page. The page-side
// script re-checks emptiness before each write, so a plan computed from a
// stale collection never overwrites user input.
func Apply(ctx context.Context, page *rod.Page, plan []match.Assignment) (int, error) {
	res, err := page.Context(ctx).Eval(fillJS, plan)
	if err != nil {
		return 0, fmt.Errorf("filler: apply plan: %w", err)
	}
	return int(res.Value.Int()), nil
}

func (f *Filler) profile(ctx context.Context) *profile.Profile {
	var resp bus.GetProfileResponse
	if err := f.bus.CallJSON(ctx, bus.MsgGetProfile, nil, &resp); err != nil {
		f.logger.Warn("filler: profile lookup failed", "error", err)
		return nil
	}
	return resp.Profile
}

func (f *Filler) siteDisabled(ctx context.Context, host string) bool {
	var resp bus.GetSiteDisabledResponse
	req := bus.GetSiteDisabledRequest{Host: host}
	if err := f.bus.CallJSON(ctx, bus.MsgGetSiteDisabled, req, &resp); err != nil {
		f.logger.Warn("filler: disabled-site lookup failed", "host", host, "error", err)
		return false
	}
	return resp.IsDisabled
}

func pageHost(page *rod.Page) string {
	info, err := page.Info()
	if err != nil || info == nil {
		return ""
	}
	u, err := url.Parse(info.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
