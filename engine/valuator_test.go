package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rv-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// staticTiers serves tier ladders from a map, ordered as stored.
type staticTiers map[string][]engine.ActivityTier

func (s staticTiers) TiersForActivity(_ context.Context, name string) ([]engine.ActivityTier, error) {
	return s[name], nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tier(label, unitValue, minProductivity string) engine.ActivityTier {
	return engine.ActivityTier{
		ActivityName:    "Picking",
		TierLabel:       label,
		UnitValue:       dec(unitValue),
		MinProductivity: dec(minProductivity),
		Unit:            "boxes/h",
	}
}

// pickingLadder is a three-tier descending ladder with a zero baseline.
func pickingLadder() staticTiers {
	return staticTiers{
		"Picking": {
			tier("Tier 1", "0.5", "40"),
			tier("Tier 2", "0.3", "20"),
			tier("Tier 3", "0.2", "0"),
		},
	}
}

func assertDecimal(t *testing.T, expected string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(expected).Equal(got), "expected %s, got %s", expected, got)
}

// =============================================================================
// TIER SELECTION
// =============================================================================

func TestEvaluate_SelectsHighestQualifyingTier(t *testing.T) {
	v := &engine.Valuator{Tiers: pickingLadder()}

	// 90 boxes in 2 hours = 45/h, above the Tier 1 threshold.
	val, err := v.Evaluate(context.Background(), "Picking", dec("90"), dec("2"))
	require.NoError(t, err)

	assert.Equal(t, "Tier 1", val.TierLabel)
	assert.Equal(t, "boxes/h", val.Unit)
	assertDecimal(t, "45", val.ProductivityRate)
	// 90 * 0.5 = 45, halved.
	assertDecimal(t, "22.5", val.FinalValue)
}

func TestEvaluate_MiddleTier(t *testing.T) {
	v := &engine.Valuator{Tiers: pickingLadder()}

	// 50 boxes in 2 hours = 25/h: meets Tier 2, not Tier 1.
	val, err := v.Evaluate(context.Background(), "Picking", dec("50"), dec("2"))
	require.NoError(t, err)

	assert.Equal(t, "Tier 2", val.TierLabel)
	assertDecimal(t, "7.5", val.FinalValue)
}

func TestEvaluate_BoundaryIsInclusive(t *testing.T) {
	v := &engine.Valuator{Tiers: pickingLadder()}

	// Exactly 40/h qualifies for Tier 1.
	val, err := v.Evaluate(context.Background(), "Picking", dec("80"), dec("2"))
	require.NoError(t, err)

	assert.Equal(t, "Tier 1", val.TierLabel)
}

func TestEvaluate_BelowAllThresholdsFallsBackToLowestTier(t *testing.T) {
	// A ladder with no zero baseline: every threshold is above the rate.
	tiers := staticTiers{
		"Picking": {
			tier("Tier 1", "0.5", "40"),
			tier("Tier 2", "0.3", "20"),
		},
	}
	v := &engine.Valuator{Tiers: tiers}

	val, err := v.Evaluate(context.Background(), "Picking", dec("10"), dec("2"))
	require.NoError(t, err)

	assert.Equal(t, "Tier 2", val.TierLabel)
	// Paid at the lowest tier's unit value: 10 * 0.3 / 2.
	assertDecimal(t, "1.5", val.FinalValue)
}

func TestEvaluate_ZeroQuantityIsValid(t *testing.T) {
	v := &engine.Valuator{Tiers: pickingLadder()}

	val, err := v.Evaluate(context.Background(), "Picking", dec("0"), dec("2"))
	require.NoError(t, err)

	assertDecimal(t, "0", val.ProductivityRate)
	assertDecimal(t, "0", val.FinalValue)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestEvaluate_RejectsZeroHours(t *testing.T) {
	v := &engine.Valuator{Tiers: pickingLadder()}

	_, err := v.Evaluate(context.Background(), "Picking", dec("90"), dec("0"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvalidInput))
	assert.True(t, engine.IsClientError(err))
}

func TestEvaluate_RejectsNegativeQuantity(t *testing.T) {
	v := &engine.Valuator{Tiers: pickingLadder()}

	_, err := v.Evaluate(context.Background(), "Picking", dec("-1"), dec("2"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvalidInput))
}

func TestEvaluate_RejectsEmptyActivityName(t *testing.T) {
	v := &engine.Valuator{Tiers: pickingLadder()}

	_, err := v.Evaluate(context.Background(), "", dec("90"), dec("2"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrMissingRequiredFields))
}

func TestEvaluate_UnknownActivity(t *testing.T) {
	v := &engine.Valuator{Tiers: pickingLadder()}

	_, err := v.Evaluate(context.Background(), "Sorting", dec("90"), dec("2"))
	require.Error(t, err)

	var notFound *engine.ActivityNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "Sorting", notFound.ActivityName)
	assert.True(t, engine.IsNotFound(err))
	assert.False(t, engine.IsClientError(err))
}
