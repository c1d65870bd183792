// Package match decides which profile value, if any, belongs in a form
// element. Given a candidate element's identifier attributes and a profile
// snapshot, it ranks every (identifier, key) pair and picks the single best
// one, so the outcome never depends on map iteration or scan order.
package match

import (
	"strings"

	"github.com/formagent/formagent/profile"
)

// Candidate is a transient view over a form element: its identifier
// attributes, current value, and the flags that gate filling. Index is the
// element's position in document order among input/textarea/select nodes.
type Candidate struct {
	Index       int    `json:"index"`
	Tag         string `json:"tag"`  // input | textarea | select
	Type        string `json:"type"` // input type attribute, lower-case
	Value       string `json:"value"`
	Name        string `json:"name"`
	ID          string `json:"id"`
	Placeholder string `json:"placeholder"`
	DataField   string `json:"data_field"` // data-field attribute
	Label       string `json:"label"`      // accessible label text
	Hidden      bool   `json:"hidden"`
	Disabled    bool   `json:"disabled"`
	ReadOnly    bool   `json:"read_only"`
}

// Identifiers returns the candidate's non-empty identifier attributes in
// fixed priority order (name, id, placeholder, data attribute, label),
// lower-cased.
func (c *Candidate) Identifiers() []string {
	raw := []string{c.Name, c.ID, c.Placeholder, c.DataField, c.Label}
	ids := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			ids = append(ids, s)
		}
	}
	return ids
}

// Match tiers, best first.
const (
	tierDirect = iota // identifier is itself a profile key
	tierAlias         // identifier canonicalizes to a profile key
	tierSubstr        // a profile key is a substring of the identifier
	tierNone
)

// Match returns the profile key whose value belongs in the candidate, if
// any. Callers fetch the value from the profile.
//
// Every (identifier, profile key) pair is scored by match tier
// (direct > alias > substring), then identifier priority, then profile key
// insertion order; the single best pair wins. A direct or alias match on a
// low-priority identifier therefore beats a substring match on a
// high-priority one. Password-typed elements never match.
func Match(c *Candidate, p *profile.Profile) (string, bool) {
	if p == nil || strings.EqualFold(c.Type, "password") {
		return "", false
	}

	bestTier := tierNone
	bestKey := ""

	keys := p.Keys()
	// Identifiers are visited in priority order; for equal tiers the
	// earlier identifier keeps the slot, so only a strictly better tier
	// replaces it.
	for _, id := range c.Identifiers() {
		tier, key := scoreIdentifier(id, keys, p)
		if tier < bestTier {
			bestTier = tier
			bestKey = key
		}
		if bestTier == tierDirect {
			break
		}
	}

	if bestTier == tierNone {
		return "", false
	}
	return bestKey, true
}

// scoreIdentifier finds the best tier a single identifier reaches against
// the profile, returning the tier and the matched profile key.
func scoreIdentifier(id string, keys []string, p *profile.Profile) (int, string) {
	// Direct: the identifier is a profile key verbatim.
	if _, ok := p.Get(id); ok {
		return tierDirect, id
	}

	// Alias: the identifier canonicalizes to a present profile key.
	if key, ok := profile.DefaultRegistry.Canonicalize(id); ok {
		if _, ok := p.Get(key); ok {
			return tierAlias, key
		}
	}

	// Substring: first profile key, in insertion order, contained in the
	// identifier. Insertion order makes the tie-break deterministic when
	// several keys are substrings of the same identifier.
	for _, key := range keys {
		if key != "" && strings.Contains(id, strings.ToLower(key)) {
			return tierSubstr, key
		}
	}

	return tierNone, ""
}

// nonFillableTypes are input types that never receive a profile value:
// controls without scalar text semantics, and password for security.
var nonFillableTypes = map[string]bool{
	"password": true,
	"hidden":   true,
	"submit":   true,
	"button":   true,
	"reset":    true,
	"file":     true,
	"image":    true,
	"checkbox": true,
	"radio":    true,
}

// Fillable reports whether the candidate may be written at all. Fields
// with existing content are never overwritten; hidden, disabled, and
// read-only elements are skipped; password inputs are always excluded.
// fillHidden relaxes only the visibility check.
func Fillable(c *Candidate, fillHidden bool) bool {
	// Selects always report their current option as a value, so the
	// already-filled check applies to text-like fields only.
	if c.Tag != "select" && strings.TrimSpace(c.Value) != "" {
		return false
	}
	if nonFillableTypes[strings.ToLower(c.Type)] {
		return false
	}
	if c.Hidden && !fillHidden {
		return false
	}
	if c.Disabled || c.ReadOnly {
		return false
	}
	return true
}
