/*
Package engine provides the core variable remuneration (RV) calculation engine.

PURPOSE:
  This package turns raw production inputs (quantity produced, time worked,
  validated task counts, achieved KPIs) into a monetary result, per
  role-specific policy. It is computationally pure: reference data (activity
  tiers, KPI definitions) is supplied through collaborator interfaces, and
  every calculation is a deterministic function of its inputs.

KEY CONCEPTS IN THIS FILE (types.go):
  - ActivityTier: a productivity threshold with an associated per-unit rate
  - KPIDefinition: a performance indicator tied to a role and shift
  - Strategy: closed set of payout strategies, selected by worker role
  - CalculationRequest/CalculationResult: the engine's sole input and output

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors.
     Rounding to two places happens only at the presentation boundary.
  2. Purity: No I/O inside the engine; collaborators are read-only snapshots.
  3. Closed dispatch: The role string is resolved to a Strategy once, at
     validation time. The composer switches over a finite enum, never over
     raw role strings.

SEE ALSO:
  - valuator.go: Tier selection and activity valuation
  - composer.go: Strategy dispatch and KPI bonus composition
  - calendar.go: Working-day counts for the KPI daily value
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SHIFTS
// =============================================================================

type Shift string

const (
	ShiftMorning   Shift = "Morning"
	ShiftAfternoon Shift = "Afternoon"
	ShiftNight     Shift = "Night"

	// ShiftGeneral is only valid on KPI definitions: a General KPI applies
	// to every shift of its role.
	ShiftGeneral Shift = "General"
)

// ValidRequestShift reports whether s is an acceptable shift on a
// calculation request. General is reserved for KPI definitions.
func ValidRequestShift(s Shift) bool {
	return s == ShiftMorning || s == ShiftAfternoon || s == ShiftNight
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// ActivityTier is one pay tier for a named activity. Tiers with the same
// ActivityName form a descending ladder on MinProductivity; a worker's
// achieved rate selects the highest tier whose threshold it meets.
type ActivityTier struct {
	ID              string
	ActivityName    string
	TierLabel       string
	UnitValue       decimal.Decimal // currency per unit produced
	MinProductivity decimal.Decimal // rate required to qualify for this tier
	Unit            string          // display unit, e.g. "boxes/hour"
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// KPIDefinition is a performance indicator tied to a role and shift.
//
// TargetValue and Weight are stored and surfaced in the management console
// but do not participate in the payout formula: every achieved KPI pays the
// same flat daily amount. Kept as-is pending product confirmation.
type KPIDefinition struct {
	ID          string
	Name        string
	TargetValue decimal.Decimal
	Weight      decimal.Decimal
	Shift       Shift // Morning/Afternoon/Night or General
	Role        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AppliesTo reports whether this KPI is eligible for a (role, shift) pair:
// exact role match, and either exact shift match or a General KPI.
func (k KPIDefinition) AppliesTo(role string, shift Shift) bool {
	return k.Role == role && (k.Shift == shift || k.Shift == ShiftGeneral)
}

// =============================================================================
// PAYOUT STRATEGY - closed role-keyed dispatch
// =============================================================================

type Strategy int

const (
	// StrategySingleActivity values one activity against its tier ladder.
	// This is the default for any role without a dedicated strategy.
	StrategySingleActivity Strategy = iota

	// StrategyMultiActivity values a list of activities independently and
	// sums their contributions (warehouse helpers).
	StrategyMultiActivity

	// StrategyTaskCount pays a fixed rate per validated task
	// (forklift operators).
	StrategyTaskCount
)

func (s Strategy) String() string {
	switch s {
	case StrategyMultiActivity:
		return "multi_activity"
	case StrategyTaskCount:
		return "task_count"
	default:
		return "single_activity"
	}
}

// Default roles with dedicated strategies. Every other role is paid by
// the single-activity strategy.
const (
	RoleWarehouseHelper  = "Warehouse Helper"
	RoleForkliftOperator = "Forklift Operator"
)

// defaultRoleStrategies maps the roles that do NOT use the single-activity
// strategy. The role string is authoritative: strategy selection never
// depends on which request fields happen to be populated.
var defaultRoleStrategies = map[string]Strategy{
	RoleWarehouseHelper:  StrategyMultiActivity,
	RoleForkliftOperator: StrategyTaskCount,
}

// StrategyForRole resolves a role name to its payout strategy.
func StrategyForRole(role string) Strategy {
	if s, ok := defaultRoleStrategies[role]; ok {
		return s
	}
	return StrategySingleActivity
}

// =============================================================================
// PAYOUT CONSTANTS
// =============================================================================

var (
	// TaskUnitRate is the currency value of one validated task (task-count
	// strategy), before the halving rule.
	TaskUnitRate = decimal.RequireFromString("0.093")

	// MonthlyKPIValue is the flat monthly worth of one achieved KPI.
	// Each achieved KPI pays MonthlyKPIValue / workingDays(month) per day.
	MonthlyKPIValue = decimal.NewFromInt(75)

	two = decimal.NewFromInt(2)
)

// =============================================================================
// CALCULATION REQUEST / RESULT
// =============================================================================

// ActivityInput is one produced activity for the multi-activity strategy.
type ActivityInput struct {
	ActivityName     string
	QuantityProduced decimal.Decimal
	HoursWorked      decimal.Decimal
}

// CalculationRequest is the engine's sole input aggregate.
type CalculationRequest struct {
	Role           string
	Shift          Shift
	ReferenceMonth time.Month // 0 = current month

	// Single-activity strategy inputs.
	ActivityName     string
	QuantityProduced decimal.Decimal
	HoursWorked      decimal.Decimal

	// Multi-activity strategy inputs.
	MultipleActivities []ActivityInput

	// Task-count strategy input. The count is precomputed upstream by the
	// task-log classifier; the engine never parses files.
	ValidTaskCount *int

	// Names of KPIs the worker reports as achieved. Only names that match
	// a registered KPI for (role, shift) contribute to the bonus.
	AchievedKPINames []string

	// Flat extra amount added to the total.
	ExtraAmount decimal.Decimal

	// Reference clock, used when ReferenceMonth is unset. Zero means
	// time.Now; tests pin it for determinism.
	Now time.Time
}

// ActivityDetail is one per-activity breakdown entry.
type ActivityDetail struct {
	Name             string
	ProductivityRate decimal.Decimal
	TierLabel        string
	Value            decimal.Decimal
	Unit             string
}

// TaskDetail reports the task-count component.
type TaskDetail struct {
	ValidTaskCount int
	TaskValue      decimal.Decimal // count * TaskUnitRate, before halving
}

// KPIDetail reports the derived KPI calculation inputs.
type KPIDetail struct {
	ReferenceMonth time.Month
	WorkingDays    int
	DailyKPIValue  decimal.Decimal
}

// CalculationResult is the engine's sole output aggregate. It is constructed
// fresh per request and never mutated after being returned.
type CalculationResult struct {
	Strategy          Strategy
	ActivitySubtotal  decimal.Decimal
	KPIBonus          decimal.Decimal
	ExtraAmount       decimal.Decimal
	TotalRemuneration decimal.Decimal

	// Names of achieved KPIs that actually matched a definition.
	AchievedKPINames []string

	// Strategy-specific breakdowns. Activities is a single entry for the
	// single-activity strategy and one entry per item for multi-activity.
	Activities []ActivityDetail
	Tasks      *TaskDetail

	KPI KPIDetail
}
