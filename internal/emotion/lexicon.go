// Package emotion maps raw text to emotional events through a configured
// keyword table. This is surface logic in front of the resonance store:
// a literal lookup, not language understanding.
package emotion

import (
	"fmt"
	"strings"
)

// Rule matches one keyword to an event.
type Rule struct {
	Keyword   string
	Label     string
	Intensity float64
}

// Event is an emotional impulse ready for the resonance store.
type Event struct {
	Label     string
	Intensity float64
}

// Lexicon is an immutable keyword table built once at construction.
type Lexicon struct {
	rules []Rule
	order []string // label order of first appearance, for stable output
}

// NewLexicon validates and compiles a rule set. Keywords match
// case-insensitively as substrings.
func NewLexicon(rules []Rule) (*Lexicon, error) {
	l := &Lexicon{rules: make([]Rule, 0, len(rules))}
	seen := make(map[string]struct{})
	for _, r := range rules {
		if r.Keyword == "" {
			return nil, fmt.Errorf("lexicon: empty keyword")
		}
		if r.Label == "" {
			return nil, fmt.Errorf("lexicon: rule %q has empty label", r.Keyword)
		}
		if r.Intensity < -1 || r.Intensity > 1 {
			return nil, fmt.Errorf("lexicon: rule %q intensity %v outside [-1,1]", r.Keyword, r.Intensity)
		}
		r.Keyword = strings.ToLower(r.Keyword)
		l.rules = append(l.rules, r)
		if _, ok := seen[r.Label]; !ok {
			seen[r.Label] = struct{}{}
			l.order = append(l.order, r.Label)
		}
	}
	return l, nil
}

// Match returns one event per label triggered by the text, in stable label
// order. Intensities of multiple matching rules for the same label add up;
// if the combined positive total exceeds 1 the events are scaled down so
// the impulse stays a valid event set.
func (l *Lexicon) Match(text string) []Event {
	lower := strings.ToLower(text)

	totals := make(map[string]float64)
	for _, r := range l.rules {
		if strings.Contains(lower, r.Keyword) {
			totals[r.Label] += r.Intensity
		}
	}
	if len(totals) == 0 {
		return nil
	}

	var sum float64
	for _, v := range totals {
		if v > 0 {
			sum += v
		}
	}
	scale := 1.0
	if sum > 1 {
		scale = 1 / sum
	}

	events := make([]Event, 0, len(totals))
	for _, label := range l.order {
		v, ok := totals[label]
		if !ok {
			continue
		}
		v *= scale
		// Stacked rules for one label can still overshoot the valid range.
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		events = append(events, Event{Label: label, Intensity: v})
	}
	return events
}
