package lexical

import "strings"

// CategorySet is an immutable table of named trigger-phrase groups.
// Order fixes the iteration order so every score derived from a match
// result is reproducible. Construct once at startup and pass by
// reference; never mutate at runtime.
type CategorySet struct {
	Order    []string
	Triggers map[string][]string
}

// NewCategorySet builds a set whose iteration order is the insertion
// order of the pairs slice.
func NewCategorySet(pairs ...CategoryTriggers) CategorySet {
	set := CategorySet{
		Order:    make([]string, 0, len(pairs)),
		Triggers: make(map[string][]string, len(pairs)),
	}
	for _, p := range pairs {
		set.Order = append(set.Order, p.Category)
		set.Triggers[p.Category] = p.Triggers
	}
	return set
}

type CategoryTriggers struct {
	Category string
	Triggers []string
}

// Classifier scores free text against CategorySets with case-insensitive
// substring matching. Stateless; safe for concurrent use.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Match returns category -> matched triggers for every category with at
// least one hit. Matched triggers appear in their declared order and are
// always literal substrings of the lowercased input.
func (c *Classifier) Match(text string, set CategorySet) map[string][]string {
	lowered := strings.ToLower(text)
	matches := make(map[string][]string)

	for _, category := range set.Order {
		for _, trigger := range set.Triggers[category] {
			if strings.Contains(lowered, strings.ToLower(trigger)) {
				matches[category] = append(matches[category], trigger)
			}
		}
	}
	return matches
}

// Counts is Match reduced to per-category hit counts.
func (c *Classifier) Counts(text string, set CategorySet) map[string]int {
	counts := make(map[string]int)
	for category, triggers := range c.Match(text, set) {
		counts[category] = len(triggers)
	}
	return counts
}

// ContainsAny reports whether any of the phrases occurs in the text.
func ContainsAny(text string, phrases []string) bool {
	lowered := strings.ToLower(text)
	for _, phrase := range phrases {
		if strings.Contains(lowered, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
