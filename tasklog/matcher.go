package tasklog

import "strings"

// =============================================================================
// ACTOR MATCHING
// =============================================================================
// Warehouse exports spell actor names inconsistently (casing, suffixes,
// truncation). The default matcher therefore tolerates partial containment
// in either direction after normalization. Substring matching can
// misattribute tasks between similarly named actors; ExactMatcher exists
// for callers that prefer strictness.

// ActorMatcher decides whether a logged actor name belongs to the queried
// actor.
type ActorMatcher interface {
	Match(eventActor, queryActor string) bool
}

// FuzzyMatcher matches when the normalized names are equal or one contains
// the other. This is the default behavior.
type FuzzyMatcher struct{}

func (FuzzyMatcher) Match(eventActor, queryActor string) bool {
	a := normalizeActor(eventActor)
	q := normalizeActor(queryActor)
	if a == "" || q == "" {
		return false
	}
	return a == q || strings.Contains(a, q) || strings.Contains(q, a)
}

// ExactMatcher matches only on normalized equality.
type ExactMatcher struct{}

func (ExactMatcher) Match(eventActor, queryActor string) bool {
	a := normalizeActor(eventActor)
	q := normalizeActor(queryActor)
	return a != "" && a == q
}

func normalizeActor(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
