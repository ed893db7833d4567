/*
composer.go - Remuneration Composer

PURPOSE:
  Produces a CalculationResult from a CalculationRequest. The role string is
  resolved to a payout strategy once, up front; the composer then dispatches
  over the closed Strategy enum, computes the KPI bonus independently, adds
  the flat extra amount, and sums the components.

STRATEGIES:
  single_activity  One valuator call; subtotal is its halved value.
  multi_activity   One valuator call per item; halving applies per item and
                   the halved values are summed.
  task_count       validTaskCount * TaskUnitRate, halved on the aggregate.

  The placement of the halving differs per strategy on purpose: reordering
  the division would change results under non-decimal arithmetic, and the
  payroll reference figures were produced with this exact placement.

KPI BONUS:
  Each achieved KPI name that matches a registered definition for
  (role, shift-or-General) adds the same flat daily value:
  MonthlyKPIValue / workingDays(referenceMonth). A KPI's weight and target
  are not part of the payout formula.

FAILURE MODE:
  Synchronous validation errors only. No partial results: either a complete
  CalculationResult or an error.
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REFERENCE-DATA COLLABORATOR
// =============================================================================

// KPISource supplies the KPI definitions applicable to a (role, shift)
// pair: exact role match, shift exact-or-General. Implementations must
// return read-only snapshots.
type KPISource interface {
	KPIsForRoleShift(ctx context.Context, role string, shift Shift) ([]KPIDefinition, error)
}

// =============================================================================
// COMPOSER
// =============================================================================

// Composer orchestrates strategy dispatch and KPI bonus composition.
// It is stateless; a single Composer is safe for concurrent use.
type Composer struct {
	Tiers TierSource
	KPIs  KPISource
}

func NewComposer(tiers TierSource, kpis KPISource) *Composer {
	return &Composer{Tiers: tiers, KPIs: kpis}
}

// Compute runs one full calculation. Deterministic: identical requests
// (with a pinned Now or explicit ReferenceMonth) yield identical results.
func (c *Composer) Compute(ctx context.Context, req CalculationRequest) (CalculationResult, error) {
	if req.Role == "" {
		return CalculationResult{}, &InputError{Field: "role", Message: "role is required", Kind: ErrUnknownRole}
	}
	if !ValidRequestShift(req.Shift) {
		return CalculationResult{}, invalidInput("shift", "shift must be Morning, Afternoon or Night")
	}
	if req.ExtraAmount.IsNegative() {
		return CalculationResult{}, invalidInput("extraAmount", "extra amount cannot be negative")
	}

	month, err := c.referenceMonth(req)
	if err != nil {
		return CalculationResult{}, err
	}

	result := CalculationResult{
		Strategy:    StrategyForRole(req.Role),
		ExtraAmount: req.ExtraAmount,
	}

	valuator := &Valuator{Tiers: c.Tiers}

	switch result.Strategy {
	case StrategyMultiActivity:
		if len(req.MultipleActivities) == 0 {
			return CalculationResult{}, missingField("multipleActivities", "at least one activity is required for this role")
		}
		for _, item := range req.MultipleActivities {
			val, err := valuator.Evaluate(ctx, item.ActivityName, item.QuantityProduced, item.HoursWorked)
			if err != nil {
				return CalculationResult{}, err
			}
			result.ActivitySubtotal = result.ActivitySubtotal.Add(val.FinalValue)
			result.Activities = append(result.Activities, ActivityDetail{
				Name:             val.ActivityName,
				ProductivityRate: val.ProductivityRate,
				TierLabel:        val.TierLabel,
				Value:            val.FinalValue,
				Unit:             val.Unit,
			})
		}

	case StrategyTaskCount:
		if req.ValidTaskCount == nil {
			return CalculationResult{}, missingField("validTaskCount", "valid task count is required for this role")
		}
		count := *req.ValidTaskCount
		if count < 0 {
			return CalculationResult{}, invalidInput("validTaskCount", "valid task count cannot be negative")
		}
		taskValue := TaskUnitRate.Mul(decimalFromInt(count))
		result.Tasks = &TaskDetail{ValidTaskCount: count, TaskValue: taskValue}
		result.ActivitySubtotal = taskValue.Div(two)

	default: // StrategySingleActivity
		if req.ActivityName == "" {
			return CalculationResult{}, missingField("activityName", "activity name is required for this role")
		}
		if req.QuantityProduced.IsZero() && req.HoursWorked.IsZero() {
			return CalculationResult{}, missingField("quantityProduced", "quantity produced and hours worked are required for this role")
		}
		val, err := valuator.Evaluate(ctx, req.ActivityName, req.QuantityProduced, req.HoursWorked)
		if err != nil {
			return CalculationResult{}, err
		}
		result.ActivitySubtotal = val.FinalValue
		result.Activities = []ActivityDetail{{
			Name:             val.ActivityName,
			ProductivityRate: val.ProductivityRate,
			TierLabel:        val.TierLabel,
			Value:            val.FinalValue,
			Unit:             val.Unit,
		}}
	}

	// KPI bonus. Derived calendar inputs are always reported so the caller
	// can display how the daily value came about, even with no KPI achieved.
	year := req.Now.Year()
	if req.Now.IsZero() {
		year = time.Now().Year()
	}
	workingDays := WorkingDays(year, month)
	dailyValue := MonthlyKPIValue.Div(decimalFromInt(workingDays))
	result.KPI = KPIDetail{
		ReferenceMonth: month,
		WorkingDays:    workingDays,
		DailyKPIValue:  dailyValue,
	}

	matched, err := c.matchKPIs(ctx, req)
	if err != nil {
		return CalculationResult{}, err
	}
	result.AchievedKPINames = matched
	result.KPIBonus = dailyValue.Mul(decimalFromInt(len(matched)))

	result.TotalRemuneration = result.ActivitySubtotal.Add(result.KPIBonus).Add(result.ExtraAmount)
	return result, nil
}

// referenceMonth resolves the request month, defaulting to the current one.
func (c *Composer) referenceMonth(req CalculationRequest) (time.Month, error) {
	if req.ReferenceMonth == 0 {
		now := req.Now
		if now.IsZero() {
			now = time.Now()
		}
		return now.Month(), nil
	}
	if req.ReferenceMonth < time.January || req.ReferenceMonth > time.December {
		return 0, invalidInput("referenceMonth", "reference month must be between 1 and 12")
	}
	return req.ReferenceMonth, nil
}

// matchKPIs returns the achieved names that match a registered definition
// for the request's role and shift, in definition order. Duplicate achieved
// names count once; duplicate definitions sharing a name each count.
func (c *Composer) matchKPIs(ctx context.Context, req CalculationRequest) ([]string, error) {
	if len(req.AchievedKPINames) == 0 {
		return nil, nil
	}

	achieved := make(map[string]bool, len(req.AchievedKPINames))
	for _, name := range req.AchievedKPINames {
		achieved[name] = true
	}

	defs, err := c.KPIs.KPIsForRoleShift(ctx, req.Role, req.Shift)
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, def := range defs {
		if achieved[def.Name] && def.AppliesTo(req.Role, req.Shift) {
			matched = append(matched, def.Name)
		}
	}
	return matched, nil
}

func decimalFromInt(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }
