package application

import (
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Matcher selects the closest entry from a fixed choice set for a
// user-supplied label. Used for issue types and component names, where chat
// input is free-form and frequently abbreviated or misspelled.
type Matcher struct {
	choices []string
	lowered []string
}

// NewMatcher builds a Matcher over the given choices. Order is preserved:
// when fuzzy scores tie, earlier choices win.
func NewMatcher(choices []string) *Matcher {
	lowered := make([]string, len(choices))
	for i, c := range choices {
		lowered[i] = strings.ToLower(c)
	}
	return &Matcher{choices: slices.Clone(choices), lowered: lowered}
}

// Match returns the choice closest to label. A case-insensitive exact match
// wins outright; otherwise the best fuzzy match is taken. ok is false when
// nothing plausible matches, in which case the caller should present
// Choices to the user instead of guessing.
func (m *Matcher) Match(label string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(label))
	if needle == "" {
		return "", false
	}

	for i, c := range m.lowered {
		if c == needle {
			return m.choices[i], true
		}
	}

	matches := fuzzy.Find(needle, m.lowered)
	if len(matches) == 0 {
		return "", false
	}
	return m.choices[matches[0].Index], true
}

// Choices returns the configured choice set in order.
func (m *Matcher) Choices() []string {
	return slices.Clone(m.choices)
}
