package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/formagent/formagent/bus"
	"github.com/formagent/formagent/profile"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRemote struct {
	profile  *profile.Profile
	getErr   error
	putErr   error
	getCalls int
	putCalls int
}

func (f *fakeRemote) GetProfile(context.Context) (*profile.Profile, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.profile == nil {
		return nil, nil
	}
	return f.profile.Clone(), nil
}

func (f *fakeRemote) PutProfile(_ context.Context, p *profile.Profile) error {
	f.putCalls++
	if f.putErr != nil {
		return f.putErr
	}
	f.profile = p.Clone()
	return nil
}

func openTestDurable(t *testing.T) *Durable {
	t.Helper()
	d, err := OpenDurable(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open durable: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// newQuiet builds a Manager without the eager warm-up read, so tests can
// count remote calls deterministically.
func newQuiet(remote Remote, durable *Durable) *Manager {
	m := &Manager{
		remote:   remote,
		durable:  durable,
		logger:   testLogger(),
		mailbox:  make(chan func(), 64),
		done:     make(chan struct{}),
		disabled: make(map[string]bool),
	}
	if durable != nil {
		if hosts, err := durable.LoadDisabledSites(); err == nil {
			m.disabled = hosts
		}
	}
	go m.run()
	return m
}

func TestGetProfileUsesMemoryAfterFirstRead(t *testing.T) {
	remote := &fakeRemote{profile: profile.FromPairs("email", "a@b.c")}
	m := newQuiet(remote, openTestDurable(t))
	defer m.Close()

	ctx := context.Background()
	first := m.GetProfile(ctx)
	if first == nil {
		t.Fatal("expected profile, got nil")
	}
	if v, _ := first.Get("email"); v != "a@b.c" {
		t.Fatalf("email = %q", v)
	}

	m.GetProfile(ctx)
	if remote.getCalls != 1 {
		t.Fatalf("remote reads = %d, want 1", remote.getCalls)
	}
}

func TestGetProfileFallsBackToDurable(t *testing.T) {
	d := openTestDurable(t)
	if err := d.StoreProfile(profile.FromPairs("phone", "555-0100")); err != nil {
		t.Fatalf("seed durable: %v", err)
	}

	remote := &fakeRemote{getErr: errors.New("connection refused")}
	m := newQuiet(remote, d)
	defer m.Close()

	p := m.GetProfile(context.Background())
	if p == nil {
		t.Fatal("expected durable profile, got nil")
	}
	if v, _ := p.Get("phone"); v != "555-0100" {
		t.Fatalf("phone = %q", v)
	}
}

func TestGetProfileRemoteEmptyIsNotAFailure(t *testing.T) {
	d := openTestDurable(t)
	if err := d.StoreProfile(profile.FromPairs("city", "Lisbon")); err != nil {
		t.Fatalf("seed durable: %v", err)
	}

	// The remote is reachable but holds no profile yet. The durable copy
	// still serves the read, and nothing is logged at warn level.
	var logs bytes.Buffer
	m := &Manager{
		remote:   &fakeRemote{},
		durable:  d,
		logger:   slog.New(slog.NewTextHandler(&logs, nil)),
		mailbox:  make(chan func(), 64),
		done:     make(chan struct{}),
		disabled: make(map[string]bool),
	}
	go m.run()
	defer m.Close()

	p := m.GetProfile(context.Background())
	if p == nil {
		t.Fatal("expected durable profile, got nil")
	}
	if v, _ := p.Get("city"); v != "Lisbon" {
		t.Fatalf("city = %q", v)
	}
	if strings.Contains(logs.String(), "remote read failed") {
		t.Fatalf("empty remote logged as a failure:\n%s", logs.String())
	}
}

func TestGetProfileReturnsNilWhenEverythingFails(t *testing.T) {
	remote := &fakeRemote{getErr: errors.New("connection refused")}
	m := newQuiet(remote, openTestDurable(t))
	defer m.Close()

	if p := m.GetProfile(context.Background()); p != nil {
		t.Fatalf("expected nil, got %v", p.Keys())
	}
}

func TestUpdateProfileOverwritesBothCopies(t *testing.T) {
	d := openTestDurable(t)
	remote := &fakeRemote{profile: profile.New()}
	m := newQuiet(remote, d)
	defer m.Close()

	ctx := context.Background()
	next := profile.FromPairs("first_name", "Ada", "email", "ada@example.com")
	if !m.UpdateProfile(ctx, next) {
		t.Fatal("update failed")
	}

	got := m.GetProfile(ctx)
	if !got.Equal(next) {
		t.Fatalf("memory copy = %v, want %v", got.Keys(), next.Keys())
	}
	if remote.getCalls != 0 {
		t.Fatalf("remote reads = %d, want 0 (cache is write-through, not re-read)", remote.getCalls)
	}

	stored, ok, err := d.LoadProfile()
	if err != nil || !ok {
		t.Fatalf("durable load: ok=%v err=%v", ok, err)
	}
	if !stored.Equal(next) {
		t.Fatalf("durable copy = %v, want %v", stored.Keys(), next.Keys())
	}
}

func TestFailedUpdateLeavesCachesUntouched(t *testing.T) {
	d := openTestDurable(t)
	orig := profile.FromPairs("email", "old@example.com")
	remote := &fakeRemote{profile: orig}
	m := newQuiet(remote, d)
	defer m.Close()

	ctx := context.Background()
	m.GetProfile(ctx) // populate memory and durable

	remote.putErr = errors.New("write rejected")
	if m.UpdateProfile(ctx, profile.FromPairs("email", "new@example.com")) {
		t.Fatal("update reported success on remote failure")
	}

	if got := m.GetProfile(ctx); !got.Equal(orig) {
		t.Fatalf("memory copy changed after failed update: %v", got.Keys())
	}
	stored, ok, _ := d.LoadProfile()
	if !ok || !stored.Equal(orig) {
		t.Fatal("durable copy changed after failed update")
	}
}

func TestApplyExternalUpdateSkipsNetwork(t *testing.T) {
	remote := &fakeRemote{profile: profile.New()}
	m := newQuiet(remote, openTestDurable(t))
	defer m.Close()

	pushed := profile.FromPairs("last_name", "Lovelace")
	m.ApplyExternalUpdate(pushed)

	got := m.GetProfile(context.Background())
	if !got.Equal(pushed) {
		t.Fatalf("got %v, want pushed profile", got.Keys())
	}
	if remote.getCalls != 0 || remote.putCalls != 0 {
		t.Fatalf("remote calls = %d/%d, want none", remote.getCalls, remote.putCalls)
	}
}

func TestSiteDisabledPersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenDurable(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("open durable: %v", err)
	}

	m := newQuiet(&fakeRemote{profile: profile.New()}, d)
	m.SetSiteDisabled("bank.example.com", true)
	if !m.SiteDisabled("bank.example.com") {
		t.Fatal("host not disabled after SetSiteDisabled")
	}
	if m.SiteDisabled("other.example.com") {
		t.Fatal("unrelated host reported disabled")
	}
	m.Close()
	d.Close()

	d2, err := OpenDurable(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("reopen durable: %v", err)
	}
	defer d2.Close()
	m2 := newQuiet(&fakeRemote{profile: profile.New()}, d2)
	defer m2.Close()

	if !m2.SiteDisabled("bank.example.com") {
		t.Fatal("disabled set lost across restart")
	}

	m2.SetSiteDisabled("bank.example.com", false)
	if m2.SiteDisabled("bank.example.com") {
		t.Fatal("host still disabled after re-enable")
	}
}

func TestBusHandlers(t *testing.T) {
	remote := &fakeRemote{profile: profile.FromPairs("email", "a@b.c")}
	m := newQuiet(remote, openTestDurable(t))
	defer m.Close()

	r := bus.New(bus.WithLogger(testLogger()))
	m.RegisterBus(r)
	ctx := context.Background()

	var getResp bus.GetProfileResponse
	if err := r.CallJSON(ctx, bus.MsgGetProfile, nil, &getResp); err != nil {
		t.Fatalf("profile.get: %v", err)
	}
	if v, _ := getResp.Profile.Get("email"); v != "a@b.c" {
		t.Fatalf("profile.get email = %q", v)
	}

	var updResp bus.UpdateProfileResponse
	req := bus.UpdateProfileRequest{Data: profile.FromPairs("email", "new@b.c")}
	if err := r.CallJSON(ctx, bus.MsgUpdateProfile, req, &updResp); err != nil {
		t.Fatalf("profile.update: %v", err)
	}
	if !updResp.Success {
		t.Fatal("profile.update reported failure")
	}
	if v, _ := remote.profile.Get("email"); v != "new@b.c" {
		t.Fatalf("remote not updated, email = %q", v)
	}

	var ack bus.AckResponse
	site := bus.SetSiteDisabledRequest{Host: "example.com", IsDisabled: true}
	if err := r.CallJSON(ctx, bus.MsgSetSiteDisabled, site, &ack); err != nil {
		t.Fatalf("site.set: %v", err)
	}
	var siteResp bus.GetSiteDisabledResponse
	if err := r.CallJSON(ctx, bus.MsgGetSiteDisabled, bus.GetSiteDisabledRequest{Host: "example.com"}, &siteResp); err != nil {
		t.Fatalf("site.get: %v", err)
	}
	if !siteResp.IsDisabled {
		t.Fatal("site.get did not reflect site.set")
	}
}
