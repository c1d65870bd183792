package settings

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/formagent/formagent/bus"
	"github.com/formagent/formagent/profile"
)

type fakeRemote struct {
	profile *profile.Profile
	getErr  error
	putErr  error
	puts    int
}

func (f *fakeRemote) GetProfile(context.Context) (*profile.Profile, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.profile.Clone(), nil
}

func (f *fakeRemote) PutProfile(_ context.Context, p *profile.Profile) error {
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	f.profile = p.Clone()
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func busWithProfile(p *profile.Profile) *bus.Router {
	r := bus.New(bus.WithLogger(quiet()))
	r.RegisterLocal(bus.MsgGetProfile, func(context.Context, []byte) ([]byte, error) {
		return json.Marshal(bus.GetProfileResponse{Profile: p})
	})
	return r
}

func TestLoadBlanksAbsentKeysAndSynthesizesFullName(t *testing.T) {
	stored := profile.FromPairs("first_name", "Ada", "last_name", "Lovelace", "shoe_size", "38")
	c := New(busWithProfile(stored), &fakeRemote{}, WithLogger(quiet()))

	view, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	for _, k := range profile.CanonicalKeys {
		if _, ok := view.Fields.Get(k); !ok {
			t.Fatalf("canonical key %q missing from view", k)
		}
	}
	if v, _ := view.Fields.Get("email"); v != "" {
		t.Fatalf("absent key not blank: %q", v)
	}
	if v, _ := view.Fields.Get("shoe_size"); v != "38" {
		t.Fatalf("extra key lost: %q", v)
	}
	if view.FullName != "Ada Lovelace" {
		t.Fatalf("full name = %q, want synthesized", view.FullName)
	}
	if v, _ := view.Fields.Get(profile.KeyFullName); v != "" {
		t.Fatal("synthesized full name leaked into editable fields")
	}
}

func TestLoadFallsBackToStore(t *testing.T) {
	remote := &fakeRemote{profile: profile.FromPairs("email", "a@b.c")}
	r := bus.New(bus.WithLogger(quiet())) // no handlers registered
	c := New(r, remote, WithLogger(quiet()))

	view, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v, _ := view.Fields.Get("email"); v != "a@b.c" {
		t.Fatalf("email = %q", v)
	}
}

func TestLoadFailsWhenBothPathsDown(t *testing.T) {
	remote := &fakeRemote{getErr: errors.New("connection refused")}
	c := New(bus.New(bus.WithLogger(quiet())), remote, WithLogger(quiet()))

	if _, err := c.Load(context.Background()); err == nil {
		t.Fatal("expected error when cache and store are both unreachable")
	}
}

func TestSaveMediatedPath(t *testing.T) {
	r := bus.New(bus.WithLogger(quiet()))
	var received *profile.Profile
	r.RegisterLocal(bus.MsgUpdateProfile, func(_ context.Context, payload []byte) ([]byte, error) {
		var req bus.UpdateProfileRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		received = req.Data
		return json.Marshal(bus.UpdateProfileResponse{Success: true})
	})

	remote := &fakeRemote{}
	c := New(r, remote, WithLogger(quiet()))

	edited := profile.FromPairs("first_name", "Ada", "email", "", "phone", "  ")
	st := c.Save(context.Background(), edited)
	if !st.OK || st.Path != "cache" {
		t.Fatalf("status = %+v", st)
	}
	if received == nil || received.Len() != 1 {
		t.Fatalf("saved profile = %+v, want only non-blank fields", received)
	}
	if v, _ := received.Get("first_name"); v != "Ada" {
		t.Fatalf("first_name = %q", v)
	}
	if remote.puts != 0 {
		t.Fatal("direct path used despite mediated success")
	}
}

func TestSaveFallsBackToDirectWriteAndReconciles(t *testing.T) {
	r := bus.New(bus.WithLogger(quiet()))
	r.RegisterLocal(bus.MsgUpdateProfile, func(context.Context, []byte) ([]byte, error) {
		return json.Marshal(bus.UpdateProfileResponse{Success: false})
	})
	var reconciled *profile.Profile
	r.RegisterLocal(bus.MsgProfileUpdated, func(_ context.Context, payload []byte) ([]byte, error) {
		var req bus.ProfileUpdatedRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		reconciled = req.NewProfile
		return json.Marshal(bus.AckResponse{Success: true})
	})

	remote := &fakeRemote{}
	c := New(r, remote, WithLogger(quiet()))

	st := c.Save(context.Background(), profile.FromPairs("email", "ada@example.com"))
	if !st.OK || st.Path != "direct" {
		t.Fatalf("status = %+v", st)
	}
	if remote.puts != 1 {
		t.Fatalf("store puts = %d, want 1", remote.puts)
	}
	if reconciled == nil {
		t.Fatal("cache owner never told about the direct write")
	}
	if v, _ := reconciled.Get("email"); v != "ada@example.com" {
		t.Fatalf("reconciled email = %q", v)
	}
}

func TestSaveReportsFailureWhenBothPathsFail(t *testing.T) {
	remote := &fakeRemote{putErr: errors.New("500")}
	c := New(bus.New(bus.WithLogger(quiet())), remote, WithLogger(quiet()))

	st := c.Save(context.Background(), profile.FromPairs("email", "a@b.c"))
	if st.OK {
		t.Fatalf("status = %+v, want failure", st)
	}
}
