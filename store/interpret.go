package store

import (
	"regexp"
	"strings"

	"github.com/formagent/formagent/profile"
)

// Form interpretation: pattern-based analysis of a form's fields that
// suggests profile-key mappings with a confidence score. This is the
// server-side learning aid behind POST /interpret; the scanner's matching
// engine stays attribute-driven and does not depend on it.

// FieldInfo describes one form field submitted for interpretation.
type FieldInfo struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Type        string `json:"type"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder"`
}

// Interpretation is the result of analysing a form.
type Interpretation struct {
	Mappings   []Mapping `json:"mappings"`
	Confidence float64   `json:"confidence"`
}

type fieldPattern struct {
	key        string
	inputType  string // matching HTML input type shortcut, if any
	re         *regexp.Regexp
	confidence float64
}

// Order matters: first_name/last_name before the generic name pattern.
var fieldPatterns = []fieldPattern{
	{profile.KeyEmail, "email", regexp.MustCompile(`(?i)email|e[-_]?mail|mail`), 0.9},
	{profile.KeyPhone, "tel", regexp.MustCompile(`(?i)phone|telephone|mobile|cell|tel`), 0.9},
	{profile.KeyFirstName, "", regexp.MustCompile(`(?i)first[-_]?name|given[-_]?name|fname`), 0.9},
	{profile.KeyLastName, "", regexp.MustCompile(`(?i)last[-_]?name|surname|family[-_]?name|lname`), 0.9},
	{profile.KeyFullName, "", regexp.MustCompile(`(?i)name|full[-_]?name`), 0.8},
	{profile.KeyAddressStreet, "", regexp.MustCompile(`(?i)address|street|addr`), 0.8},
	{profile.KeyAddressCity, "", regexp.MustCompile(`(?i)city|town|locality`), 0.8},
	{profile.KeyAddressState, "", regexp.MustCompile(`(?i)state|province|region|county`), 0.8},
	{profile.KeyAddressZip, "", regexp.MustCompile(`(?i)zip|postal|post[-_]?code`), 0.9},
	{profile.KeyAddressCountry, "", regexp.MustCompile(`(?i)country|nation`), 0.9},
}

// Interpret suggests a profile-key mapping for each recognisable field and
// an overall confidence (the mean of the per-field scores).
func Interpret(domain string, fields []FieldInfo) Interpretation {
	var mappings []Mapping
	for _, f := range fields {
		if m, ok := interpretField(domain, f); ok {
			mappings = append(mappings, m)
		}
	}

	total := 0.0
	for _, m := range mappings {
		total += m.Confidence
	}
	conf := 0.0
	if len(mappings) > 0 {
		conf = total / float64(len(mappings))
	}
	return Interpretation{Mappings: mappings, Confidence: conf}
}

func interpretField(domain string, f FieldInfo) (Mapping, bool) {
	text := strings.Join([]string{f.Name, f.ID, f.Label, f.Placeholder}, " ")

	for _, p := range fieldPatterns {
		if (p.inputType != "" && strings.EqualFold(f.Type, p.inputType)) || p.re.MatchString(text) {
			name := f.Name
			if name == "" {
				name = f.ID
			}
			if name == "" {
				return Mapping{}, false
			}
			return Mapping{
				Domain:     domain,
				FieldName:  name,
				FieldType:  f.Type,
				UserField:  p.key,
				Confidence: p.confidence,
			}, true
		}
	}
	return Mapping{}, false
}
