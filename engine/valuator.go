/*
valuator.go - Tiered Activity Valuator

PURPOSE:
  Maps an (activityName, quantityProduced, hoursWorked) triple to a monetary
  value and a descriptive tier. The achieved productivity rate (quantity per
  hour) selects a tier from the activity's descending ladder; the payout is
  quantity times the tier's unit value, halved.

TIER SELECTION:
  Tiers are supplied ordered by MinProductivity descending. The first tier
  whose threshold the achieved rate meets (boundary inclusive) wins. When
  several tiers share a threshold, the supplied order breaks the tie, so
  selection is deterministic. A rate below every threshold falls back to the
  lowest tier: everyone qualifies for at least the baseline tier.

HALVING RULE:
  The activity's contribution to remuneration is half the raw value. The
  other half is paid through a channel outside this system.

SEE ALSO:
  - composer.go: Invokes the valuator once (single-activity) or per item
    (multi-activity)
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REFERENCE-DATA COLLABORATOR
// =============================================================================

// TierSource supplies the tier ladder for an activity, ordered by
// MinProductivity descending. An empty slice means the activity is unknown.
// Implementations must return read-only snapshots.
type TierSource interface {
	TiersForActivity(ctx context.Context, activityName string) ([]ActivityTier, error)
}

// =============================================================================
// VALUATION
// =============================================================================

// Valuation is the outcome of valuing one activity.
type Valuation struct {
	ActivityName     string
	ProductivityRate decimal.Decimal
	TierLabel        string
	Unit             string

	// FinalValue is the halved contribution to remuneration.
	FinalValue decimal.Decimal
}

// Valuator selects pay tiers and computes activity values.
type Valuator struct {
	Tiers TierSource
}

// Evaluate values a single activity. It fails with ErrInvalidInput when
// hoursWorked is not positive (the productivity rate would be undefined)
// and with ErrActivityNotFound when no tiers exist for the name.
func (v *Valuator) Evaluate(ctx context.Context, activityName string, quantityProduced, hoursWorked decimal.Decimal) (Valuation, error) {
	if activityName == "" {
		return Valuation{}, missingField("activityName", "activity name is required")
	}
	if !hoursWorked.IsPositive() {
		return Valuation{}, invalidInput("hoursWorked", "hours worked must be greater than zero")
	}
	if quantityProduced.IsNegative() {
		return Valuation{}, invalidInput("quantityProduced", "quantity produced cannot be negative")
	}

	rate := quantityProduced.Div(hoursWorked)

	tiers, err := v.Tiers.TiersForActivity(ctx, activityName)
	if err != nil {
		return Valuation{}, err
	}
	if len(tiers) == 0 {
		return Valuation{}, &ActivityNotFoundError{ActivityName: activityName}
	}

	tier := selectTier(tiers, rate)

	raw := quantityProduced.Mul(tier.UnitValue)
	return Valuation{
		ActivityName:     activityName,
		ProductivityRate: rate,
		TierLabel:        tier.TierLabel,
		Unit:             tier.Unit,
		FinalValue:       raw.Div(two),
	}, nil
}

// selectTier walks the descending ladder and returns the first tier whose
// threshold the rate meets. Below every threshold, the last (lowest) tier
// is the baseline.
func selectTier(tiers []ActivityTier, rate decimal.Decimal) ActivityTier {
	for _, t := range tiers {
		if rate.GreaterThanOrEqual(t.MinProductivity) {
			return t
		}
	}
	return tiers[len(tiers)-1]
}
