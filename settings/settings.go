// Package settings implements the profile editing flow: load the current
// profile for display, collect edits, and write a full replacement back,
// with a direct store path as fallback when the cache owner is down.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/formagent/formagent/bus"
	"github.com/formagent/formagent/profile"
)

// Remote is the direct store path used when the cache owner cannot be
// reached. *store.Client implements it.
type Remote interface {
	GetProfile(ctx context.Context) (*profile.Profile, error)
	PutProfile(ctx context.Context, p *profile.Profile) error
}

// Controller mediates between an editable profile view and the two write
// paths (through the cache owner, or directly to the store).
type Controller struct {
	bus    *bus.Router
	remote Remote
	logger *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a Controller. The bus should have the cache owner's
// handlers reachable (locally or via a remote route); remote is the
// direct store fallback.
func New(r *bus.Router, remote Remote, opts ...Option) *Controller {
	c := &Controller{bus: r, remote: remote, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// View is the editable representation of a profile. Fields holds every
// canonical key (blank when absent) followed by any extra keys the
// stored profile carries. FullName is synthesized for display when the
// stored profile has first and last names but no full name; it is never
// written back.
type View struct {
	Fields   *profile.Profile
	FullName string
}

// Load fetches the profile through the cache owner, falling back to a
// direct store read, and returns the editable view.
func (c *Controller) Load(ctx context.Context) (*View, error) {
	p := c.cachedProfile(ctx)
	if p == nil {
		var err error
		p, err = c.remote.GetProfile(ctx)
		if err != nil {
			return nil, fmt.Errorf("settings: load profile: %w", err)
		}
	}
	if p == nil {
		p = profile.New()
	}

	fields := profile.New()
	for _, k := range profile.CanonicalKeys {
		v, _ := p.Get(k)
		fields.Set(k, v)
	}
	for _, k := range p.Keys() {
		if _, ok := fields.Get(k); !ok {
			v, _ := p.Get(k)
			fields.Set(k, v)
		}
	}

	view := &View{Fields: fields}
	if full, _ := fields.Get(profile.KeyFullName); strings.TrimSpace(full) == "" {
		first, _ := fields.Get(profile.KeyFirstName)
		last, _ := fields.Get(profile.KeyLastName)
		if first != "" && last != "" {
			view.FullName = first + " " + last
		}
	} else {
		view.FullName = full
	}
	return view, nil
}

// Status reports the outcome of a save and which write path carried it.
type Status struct {
	OK      bool
	Path    string // "cache" or "direct"
	Message string
}

// Save writes the edited fields as a full replacement. Blank fields are
// dropped before writing. The mediated path through the cache owner is
// tried first; on failure the store is written directly and the cache
// owner is told to reconcile. The store either accepts the whole profile
// or nothing.
func (c *Controller) Save(ctx context.Context, edited *profile.Profile) Status {
	p := profile.New()
	for _, k := range edited.Keys() {
		v, _ := edited.Get(k)
		if strings.TrimSpace(v) == "" {
			continue
		}
		p.Set(k, v)
	}

	var resp bus.UpdateProfileResponse
	err := c.bus.CallJSON(ctx, bus.MsgUpdateProfile, bus.UpdateProfileRequest{Data: p}, &resp)
	if err == nil && resp.Success {
		return Status{OK: true, Path: "cache", Message: "profile saved"}
	}
	if err != nil {
		c.logger.Warn("settings: mediated save failed, writing store directly", "error", err)
	} else {
		c.logger.Warn("settings: cache owner rejected update, writing store directly")
	}

	if err := c.remote.PutProfile(ctx, p); err != nil {
		return Status{OK: false, Path: "direct", Message: fmt.Sprintf("save failed: %v", err)}
	}

	// Best effort: tell the cache owner what was written so both write
	// paths converge on the same cache state.
	var ack bus.AckResponse
	if err := c.bus.CallJSON(ctx, bus.MsgProfileUpdated, bus.ProfileUpdatedRequest{NewProfile: p}, &ack); err != nil {
		c.logger.Warn("settings: cache reconciliation failed", "error", err)
	}
	return Status{OK: true, Path: "direct", Message: "profile saved (store written directly)"}
}

func (c *Controller) cachedProfile(ctx context.Context) *profile.Profile {
	var resp bus.GetProfileResponse
	if err := c.bus.CallJSON(ctx, bus.MsgGetProfile, nil, &resp); err != nil {
		c.logger.Warn("settings: cache read failed, falling back to store", "error", err)
		return nil
	}
	return resp.Profile
}
