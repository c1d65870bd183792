package match

import "github.com/formagent/formagent/profile"

// Assignment is one planned write: put Value into the candidate at Index.
type Assignment struct {
	Index int    `json:"index"`
	Value string `json:"value"`
	Key   string `json:"key,omitempty"`
}

// Plan matches each candidate against the profile and returns the writes
// a fill pass would perform. Non-fillable candidates, candidates that
// already hold a value, and matches whose profile value is blank are all
// skipped, so applying a plan twice yields no second write.
func Plan(candidates []Candidate, p *profile.Profile, fillHidden bool) []Assignment {
	if p == nil || p.Len() == 0 {
		return nil
	}

	var out []Assignment
	for i := range candidates {
		c := &candidates[i]
		if !Fillable(c, fillHidden) {
			continue
		}
		key, ok := Match(c, p)
		if !ok {
			continue
		}
		val, _ := p.Get(key)
		if val == "" {
			continue
		}
		out = append(out, Assignment{Index: c.Index, Value: val, Key: key})
	}
	return out
}
