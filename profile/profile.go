// Package profile defines the user profile, the canonical key/value set
// used to fill forms, plus the alias registry that maps page-specific
// field identifiers back to canonical keys.
//
// A Profile preserves key insertion order. The matching engine's substring
// fallback iterates keys in that order, so order is part of the contract
// and survives JSON round-trips.
package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Canonical keys. The vocabulary is fixed; unknown keys are carried in a
// Profile but never resolved by the alias registry.
const (
	KeyFirstName      = "first_name"
	KeyLastName       = "last_name"
	KeyFullName       = "full_name"
	KeyEmail          = "email"
	KeyPhone          = "phone"
	KeyAddressStreet  = "address_street"
	KeyAddressCity    = "address_city"
	KeyAddressState   = "address_state"
	KeyAddressZip     = "address_zip"
	KeyAddressCountry = "address_country"
)

// CanonicalKeys lists the known vocabulary in display order.
var CanonicalKeys = []string{
	KeyFirstName, KeyLastName, KeyFullName,
	KeyEmail, KeyPhone,
	KeyAddressStreet, KeyAddressCity, KeyAddressState,
	KeyAddressZip, KeyAddressCountry,
}

// Profile is an ordered mapping from canonical field key to a scalar
// string value. The zero value is not usable; call New.
type Profile struct {
	keys   []string
	values map[string]string
}

// New creates an empty Profile.
func New() *Profile {
	return &Profile{values: make(map[string]string)}
}

// FromPairs builds a Profile from alternating key, value pairs, preserving
// the given order. Panics on an odd count (programming error).
func FromPairs(pairs ...string) *Profile {
	if len(pairs)%2 != 0 {
		panic("profile: FromPairs requires an even number of arguments")
	}
	p := New()
	for i := 0; i < len(pairs); i += 2 {
		p.Set(pairs[i], pairs[i+1])
	}
	return p
}

// Get returns the value for key and whether it is present.
func (p *Profile) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Set stores value under key. A new key is appended to the iteration
// order; an existing key keeps its position.
func (p *Profile) Set(key, value string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Delete removes key, preserving the order of the remaining keys.
func (p *Profile) Delete(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of keys.
func (p *Profile) Len() int { return len(p.keys) }

// Keys returns the keys in insertion order. The slice is a copy.
func (p *Profile) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	c := New()
	for _, k := range p.keys {
		c.Set(k, p.values[k])
	}
	return c
}

// Equal reports whether two profiles hold the same keys, values, and order.
func (p *Profile) Equal(o *Profile) bool {
	if p == nil || o == nil {
		return p == o
	}
	if len(p.keys) != len(o.keys) {
		return false
	}
	for i, k := range p.keys {
		if o.keys[i] != k || o.values[k] != p.values[k] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the profile as a JSON object in key insertion order.
func (p *Profile) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving its key order. Non-string
// values are rejected: the profile models scalar strings only.
func (p *Profile) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("profile: decode: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("profile: expected JSON object, got %v", tok)
	}

	p.keys = nil
	p.values = make(map[string]string)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("profile: decode key: %w", err)
		}
		key := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("profile: decode value for %q: %w", key, err)
		}
		val, ok := valTok.(string)
		if !ok {
			return fmt.Errorf("profile: value for %q is not a string", key)
		}
		p.Set(key, val)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("profile: decode close: %w", err)
	}
	return nil
}
