// Package cache owns the one authoritative in-memory copy of the profile
// inside the long-lived context. It is a small actor: all state lives
// behind a mailbox goroutine, so concurrent callers are serialized without
// locks, and every read or write follows the documented fallback chain
// (memory → remote → durable). Failures never escape as errors: reads
// degrade to nil, writes to false.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/formagent/formagent/bus"
	"github.com/formagent/formagent/profile"
)

// Remote is the store surface the cache synchronizes against.
// *store.Client implements it.
type Remote interface {
	GetProfile(ctx context.Context) (*profile.Profile, error)
	PutProfile(ctx context.Context, p *profile.Profile) error
}

// Manager mediates all profile reads and writes for its process and owns
// the disabled-site set. Create one per long-lived context.
type Manager struct {
	remote  Remote
	durable *Durable
	logger  *slog.Logger

	mailbox chan func()
	done    chan struct{}

	// Actor state: touched only inside the mailbox goroutine.
	mem      *profile.Profile
	disabled map[string]bool
}

// New creates a Manager and starts its mailbox. The durable disabled-site
// set is loaded immediately; one eager GetProfile is scheduled so the
// first consumer request is served from memory.
func New(remote Remote, durable *Durable, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		remote:   remote,
		durable:  durable,
		logger:   logger,
		mailbox:  make(chan func(), 64),
		done:     make(chan struct{}),
		disabled: make(map[string]bool),
	}

	if durable != nil {
		hosts, err := durable.LoadDisabledSites()
		if err != nil {
			logger.Warn("cache: load disabled sites", "error", err)
		} else {
			m.disabled = hosts
		}
	}

	go m.run()
	go m.GetProfile(context.Background()) // warm the in-memory copy

	return m
}

// Close stops the mailbox goroutine. Pending operations are abandoned.
func (m *Manager) Close() {
	close(m.done)
}

func (m *Manager) run() {
	for {
		select {
		case fn := <-m.mailbox:
			fn()
		case <-m.done:
			return
		}
	}
}

// do runs fn inside the actor and waits for it to finish.
func (m *Manager) do(fn func()) {
	doneCh := make(chan struct{})
	select {
	case m.mailbox <- func() { fn(); close(doneCh) }:
	case <-m.done:
		return
	}
	select {
	case <-doneCh:
	case <-m.done:
	}
}

// GetProfile returns the profile following the fallback chain: the
// in-memory copy if present (no I/O); otherwise a remote read that, on
// success, populates both the memory and durable copies; otherwise the
// durable copy; otherwise nil. Never an error.
func (m *Manager) GetProfile(ctx context.Context) *profile.Profile {
	var out *profile.Profile
	m.do(func() {
		if m.mem != nil {
			out = m.mem.Clone()
			return
		}

		p, err := m.remote.GetProfile(ctx)
		if err == nil && p != nil {
			m.mem = p.Clone()
			m.writeThrough(p)
			out = p
			return
		}
		if err != nil {
			m.logger.Warn("cache: remote read failed, trying durable copy", "error", err)
		} else {
			m.logger.Debug("cache: remote has no profile, trying durable copy")
		}

		if m.durable != nil {
			if dp, ok, derr := m.durable.LoadProfile(); derr == nil && ok {
				out = dp
				return
			} else if derr != nil {
				m.logger.Warn("cache: durable read failed", "error", derr)
			}
		}
	})
	return out
}

// UpdateProfile sends a full-replacement write to the remote store. On
// success both copies are overwritten with exactly the value written (not
// a re-read) and true is returned. On failure neither cache is touched;
// the caller decides whether to retry or take the direct write path.
func (m *Manager) UpdateProfile(ctx context.Context, p *profile.Profile) bool {
	var ok bool
	m.do(func() {
		if err := m.remote.PutProfile(ctx, p); err != nil {
			m.logger.Warn("cache: remote write failed", "error", err)
			return
		}
		m.mem = p.Clone()
		m.writeThrough(p)
		ok = true
	})
	return ok
}

// ApplyExternalUpdate accepts a profile already confirmed written
// elsewhere and overwrites both copies without network I/O. This is how
// the mediated and direct write paths converge on the same cache state.
func (m *Manager) ApplyExternalUpdate(p *profile.Profile) {
	m.do(func() {
		m.mem = p.Clone()
		m.writeThrough(p)
	})
}

func (m *Manager) writeThrough(p *profile.Profile) {
	if m.durable == nil {
		return
	}
	if err := m.durable.StoreProfile(p); err != nil {
		m.logger.Warn("cache: durable write failed", "error", err)
	}
}

// SiteDisabled reports whether filling is suppressed for host.
func (m *Manager) SiteDisabled(host string) bool {
	var out bool
	m.do(func() { out = m.disabled[host] })
	return out
}

// SetSiteDisabled toggles filling for host and persists the set.
func (m *Manager) SetSiteDisabled(host string, isDisabled bool) {
	m.do(func() {
		if isDisabled {
			m.disabled[host] = true
		} else {
			delete(m.disabled, host)
		}
		if m.durable != nil {
			if err := m.durable.StoreDisabledSites(m.disabled); err != nil {
				m.logger.Warn("cache: persist disabled sites", "error", err)
			}
		}
	})
}

// RegisterBus registers the cache owner's message handlers.
func (m *Manager) RegisterBus(r *bus.Router) {
	r.RegisterLocal(bus.MsgGetProfile, func(ctx context.Context, _ []byte) ([]byte, error) {
		return json.Marshal(bus.GetProfileResponse{Profile: m.GetProfile(ctx)})
	})

	r.RegisterLocal(bus.MsgUpdateProfile, func(ctx context.Context, payload []byte) ([]byte, error) {
		var req bus.UpdateProfileRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		ok := req.Data != nil && m.UpdateProfile(ctx, req.Data)
		return json.Marshal(bus.UpdateProfileResponse{Success: ok})
	})

	r.RegisterLocal(bus.MsgProfileUpdated, func(_ context.Context, payload []byte) ([]byte, error) {
		var req bus.ProfileUpdatedRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		if req.NewProfile != nil {
			m.ApplyExternalUpdate(req.NewProfile)
		}
		return json.Marshal(bus.AckResponse{Success: true})
	})

	r.RegisterLocal(bus.MsgSetSiteDisabled, func(_ context.Context, payload []byte) ([]byte, error) {
		var req bus.SetSiteDisabledRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		m.SetSiteDisabled(req.Host, req.IsDisabled)
		return json.Marshal(bus.AckResponse{Success: true})
	})

	r.RegisterLocal(bus.MsgGetSiteDisabled, func(_ context.Context, payload []byte) ([]byte, error) {
		var req bus.GetSiteDisabledRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return json.Marshal(bus.GetSiteDisabledResponse{IsDisabled: m.SiteDisabled(req.Host)})
	})
}
