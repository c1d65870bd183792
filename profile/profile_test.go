package profile

import (
	"encoding/json"
	"testing"
)

func TestProfile_SetGetOrder(t *testing.T) {
	p := New()
	p.Set("first_name", "Alice")
	p.Set("email", "a@example.com")
	p.Set("first_name", "Alicia") // overwrite keeps position

	if v, ok := p.Get("first_name"); !ok || v != "Alicia" {
		t.Errorf("Get(first_name): got %q, %v", v, ok)
	}
	keys := p.Keys()
	if len(keys) != 2 || keys[0] != "first_name" || keys[1] != "email" {
		t.Errorf("Keys: got %v, want [first_name email]", keys)
	}
}

func TestProfile_Delete(t *testing.T) {
	p := FromPairs("a", "1", "b", "2", "c", "3")
	p.Delete("b")
	p.Delete("missing")

	keys := p.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "c" {
		t.Errorf("Keys after delete: got %v, want [a c]", keys)
	}
	if _, ok := p.Get("b"); ok {
		t.Error("deleted key still present")
	}
}

func TestProfile_JSONRoundTripPreservesOrder(t *testing.T) {
	raw := `{"phone":"555-0100","first_name":"Alice","email":"a@example.com"}`

	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	keys := p.Keys()
	want := []string{"phone", "first_name", "email"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("key order: got %v, want %v", keys, want)
		}
	}

	out, err := json.Marshal(&p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != raw {
		t.Errorf("round trip: got %s, want %s", out, raw)
	}
}

func TestProfile_UnmarshalRejectsNonString(t *testing.T) {
	var p Profile
	if err := json.Unmarshal([]byte(`{"age":42}`), &p); err == nil {
		t.Error("expected error for non-string value")
	}
}

func TestProfile_Equal(t *testing.T) {
	a := FromPairs("x", "1", "y", "2")
	b := FromPairs("x", "1", "y", "2")
	c := FromPairs("y", "2", "x", "1") // same content, different order

	if !a.Equal(b) {
		t.Error("identical profiles not equal")
	}
	if a.Equal(c) {
		t.Error("order-differing profiles reported equal")
	}
	if a.Equal(nil) {
		t.Error("non-nil equal to nil")
	}
}

func TestProfile_Clone(t *testing.T) {
	a := FromPairs("x", "1")
	b := a.Clone()
	b.Set("x", "changed")

	if v, _ := a.Get("x"); v != "1" {
		t.Errorf("clone mutated original: got %q", v)
	}
}

func TestRegistry_Canonicalize(t *testing.T) {
	tests := []struct {
		identifier string
		wantKey    string
		wantOK     bool
	}{
		{"email", KeyEmail, true},       // canonical key resolves to itself
		{"mail", KeyEmail, true},        // alias
		{"E-Mail", KeyEmail, true},      // case-insensitive
		{"fname", KeyFirstName, true},
		{"surname", KeyLastName, true},
		{"zip", KeyAddressZip, true},
		{"postcode", KeyAddressZip, true},
		{"favorite_color", "", false},
	}

	for _, tt := range tests {
		key, ok := DefaultRegistry.Canonicalize(tt.identifier)
		if ok != tt.wantOK || key != tt.wantKey {
			t.Errorf("Canonicalize(%q): got (%q, %v), want (%q, %v)",
				tt.identifier, key, ok, tt.wantKey, tt.wantOK)
		}
	}
}

func TestRegistry_CollisionLastWins(t *testing.T) {
	entries := map[string][]string{
		"first": {"shared"},
		"second": {"shared"},
	}
	r := NewRegistry(entries, []string{"first", "second"})

	key, ok := r.Canonicalize("shared")
	if !ok || key != "second" {
		t.Errorf("colliding alias: got (%q, %v), want (second, true)", key, ok)
	}
}
