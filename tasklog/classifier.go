/*
classifier.go - Task validity classification

PURPOSE:
  Counts the valid tasks of one actor in a list of logged task events,
  broken down by task type.

RULES:
  - Only events whose actor matches the query are considered; others are
    skipped entirely.
  - Only completed events are considered for validity. Incomplete events are
    skipped, not counted as invalid.
  - Both timestamps must parse as DD/MM/YYYY HH:mm:ss. A row that fails to
    parse is tallied under its type's invalid counter and processing
    continues; a bad row never aborts the classification.
  - A completed task is valid when alterationTime minus lastAssociationTime
    is strictly greater than ValidityThreshold. A gap of exactly 10 seconds
    is NOT valid.

The classifier can scan thousands of rows synchronously; it is a single
linear pass with no I/O.
*/
package tasklog

import "time"

// TypeCount is the per-type tally of one classification.
type TypeCount struct {
	TaskType string
	Valid    int
	Invalid  int // includes rows with unparseable timestamps
	Total    int
}

// Classification is the outcome of classifying one actor's events.
type Classification struct {
	ActorName  string
	TotalValid int

	// Types holds one entry per task type seen among the actor's completed
	// events, in first-seen order.
	Types []TypeCount
}

// ValidByType returns the types with at least one valid task, preserving
// first-seen order.
func (c Classification) ValidByType() []TypeCount {
	var out []TypeCount
	for _, t := range c.Types {
		if t.Valid > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Classifier counts valid tasks. The zero value uses fuzzy actor matching.
type Classifier struct {
	Matcher ActorMatcher
}

// Classify scans events and tallies validity for the given actor. Pure
// function of its inputs: no side effects, deterministic.
func (c Classifier) Classify(events []TaskEvent, actorName string) Classification {
	matcher := c.Matcher
	if matcher == nil {
		matcher = FuzzyMatcher{}
	}

	result := Classification{ActorName: actorName}
	if actorName == "" || len(events) == 0 {
		return result
	}

	index := make(map[string]int) // task type -> position in result.Types

	for _, ev := range events {
		if !matcher.Match(ev.ActorName, actorName) {
			continue
		}
		if !ev.Completed {
			continue
		}

		pos, seen := index[ev.TaskType]
		if !seen {
			pos = len(result.Types)
			index[ev.TaskType] = pos
			result.Types = append(result.Types, TypeCount{TaskType: ev.TaskType})
		}
		result.Types[pos].Total++

		assoc, err1 := time.ParseInLocation(TimeLayout, ev.LastAssociationTime, time.UTC)
		alter, err2 := time.ParseInLocation(TimeLayout, ev.AlterationTime, time.UTC)
		if err1 != nil || err2 != nil {
			result.Types[pos].Invalid++
			continue
		}

		if alter.Sub(assoc) > ValidityThreshold {
			result.Types[pos].Valid++
			result.TotalValid++
		} else {
			result.Types[pos].Invalid++
		}
	}

	return result
}
