/*
Package tasklog classifies logged warehouse task events for roles paid per
validated task.

PURPOSE:
  A warehouse management export lists discrete task events: a task type, the
  actor who handled it, a completion flag, and two timestamps (the last
  association and the final alteration). A task counts as valid when it was
  completed and the gap between the two timestamps exceeds a fixed
  threshold. The classifier groups valid counts by task type; the resulting
  total feeds the calculation engine's task-count strategy as a precomputed
  input.

KEY CONCEPTS IN THIS FILE (events.go):
  - TaskEvent: one logged task row
  - ValidityThreshold: the fixed global 10-second rule
  - TypeTargets: per-type target seconds from reference data

PURITY:
  Classification is a pure function of (events, actor name). No network or
  storage side effects, which also makes results cacheable by content hash
  (see cache.go).

SEE ALSO:
  - classifier.go: The validity rule and per-type breakdown
  - matcher.go: Actor-name matching strategies
  - parse.go: Row ingestion from delimited text and xlsx workbooks
*/
package tasklog

import "time"

// TimeLayout is the timestamp format used by the warehouse export:
// DD/MM/YYYY HH:mm:ss.
const TimeLayout = "02/01/2006 15:04:05"

// ValidityThreshold is the execution-time gap a completed task must exceed
// (strictly) to count as valid. It is a single global constant: the
// per-type targets in TypeTargets do NOT vary this rule today, pending
// product confirmation.
const ValidityThreshold = 10 * time.Second

// TaskEvent is one logged warehouse task. Events are ephemeral: derived
// from an uploaded file per calculation session, never persisted.
type TaskEvent struct {
	TaskType            string
	ActorName           string
	Completed           bool
	LastAssociationTime string // raw DD/MM/YYYY HH:mm:ss, parsed per row
	AlterationTime      string
}

// TypeTargets is the per-task-type target-seconds table from reference
// data. Surfaced for reporting only; the validity rule ignores it and
// applies ValidityThreshold uniformly.
var TypeTargets = map[string]int{
	"Storage (Map)":                     30,
	"Loading AG":                        10,
	"Closed Pallet Loading (AS)":        10,
	"Closed Pallet Loading (Route)":     10,
	"Mixed Pallet Loading (AS)":         10,
	"Mixed Pallet Loading (Route)":      10,
	"Reassembly Movement":               30,
	"Internal Movement - Manual":        30,
	"Unloading Pull":                    10,
	"Smart Replenishment - Demand":      30,
	"Smart Replenishment - Execution":   30,
	"Manual Replenishment":              30,
	"Route Return (Unloading)":          10,
}

// TargetSeconds returns the reporting target for a task type. Types absent
// from the reference table fall back to the global threshold.
func TargetSeconds(taskType string) int {
	if target, ok := TypeTargets[taskType]; ok {
		return target
	}
	return int(ValidityThreshold / time.Second)
}
