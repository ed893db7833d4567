package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rv-engine/engine"
	"github.com/warp/rv-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func saveTier(t *testing.T, store *sqlite.Store, activity, label, unitValue, minProductivity string) engine.ActivityTier {
	t.Helper()
	tier := engine.ActivityTier{
		ActivityName:    activity,
		TierLabel:       label,
		UnitValue:       dec(unitValue),
		MinProductivity: dec(minProductivity),
		Unit:            "boxes/h",
	}
	require.NoError(t, store.SaveActivityTier(context.Background(), &tier))
	return tier
}

func saveUser(t *testing.T, store *sqlite.Store, cpf, name, role string) sqlite.User {
	t.Helper()
	user := sqlite.User{
		CPF:   cpf,
		Name:  name,
		Role:  role,
		Shift: engine.ShiftMorning,
	}
	require.NoError(t, store.SaveUser(context.Background(), &user))
	return user
}

// =============================================================================
// ACTIVITY TIERS
// =============================================================================

func TestTiersForActivity_DescendingOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Inserted out of order on purpose.
	saveTier(t, store, "Picking", "Tier 3", "0.2", "0")
	saveTier(t, store, "Picking", "Tier 1", "0.5", "40")
	saveTier(t, store, "Picking", "Tier 2", "0.3", "20")
	saveTier(t, store, "Packing", "Flat", "1", "0")

	tiers, err := store.TiersForActivity(ctx, "Picking")
	require.NoError(t, err)
	require.Len(t, tiers, 3)
	assert.Equal(t, "Tier 1", tiers[0].TierLabel)
	assert.Equal(t, "Tier 2", tiers[1].TierLabel)
	assert.Equal(t, "Tier 3", tiers[2].TierLabel)
}

func TestTiersForActivity_UnknownActivityIsEmpty(t *testing.T) {
	store := newTestStore(t)

	tiers, err := store.TiersForActivity(context.Background(), "Sorting")
	require.NoError(t, err)
	assert.Empty(t, tiers)
}

func TestSaveActivityTier_AssignsIDAndUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tier := saveTier(t, store, "Picking", "Tier 1", "0.5", "40")
	require.NotEmpty(t, tier.ID)

	tier.UnitValue = dec("0.6")
	require.NoError(t, store.SaveActivityTier(ctx, &tier))

	tiers, err := store.TiersForActivity(ctx, "Picking")
	require.NoError(t, err)
	require.Len(t, tiers, 1)
	assert.True(t, dec("0.6").Equal(tiers[0].UnitValue))
}

func TestSaveActivityTier_UpdateMissingRow(t *testing.T) {
	store := newTestStore(t)

	tier := engine.ActivityTier{
		ID:              "does-not-exist",
		ActivityName:    "Picking",
		TierLabel:       "Tier 1",
		UnitValue:       dec("0.5"),
		MinProductivity: dec("40"),
	}
	err := store.SaveActivityTier(context.Background(), &tier)
	assert.True(t, errors.Is(err, sqlite.ErrNotFound))
}

func TestDeleteActivityTier(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tier := saveTier(t, store, "Picking", "Tier 1", "0.5", "40")
	require.NoError(t, store.DeleteActivityTier(ctx, tier.ID))

	err := store.DeleteActivityTier(ctx, tier.ID)
	assert.True(t, errors.Is(err, sqlite.ErrNotFound))
}

func TestActivityNames_DistinctSorted(t *testing.T) {
	store := newTestStore(t)

	saveTier(t, store, "Picking", "Tier 1", "0.5", "40")
	saveTier(t, store, "Picking", "Tier 2", "0.3", "20")
	saveTier(t, store, "Packing", "Flat", "1", "0")

	names, err := store.ActivityNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Packing", "Picking"}, names)
}

// =============================================================================
// KPIS
// =============================================================================

func saveKPI(t *testing.T, store *sqlite.Store, name, role string, shift engine.Shift) engine.KPIDefinition {
	t.Helper()
	kpi := engine.KPIDefinition{
		Name:        name,
		Role:        role,
		Shift:       shift,
		TargetValue: dec("100"),
		Weight:      dec("1"),
	}
	require.NoError(t, store.SaveKPI(context.Background(), &kpi))
	return kpi
}

func TestKPIsForRoleShift_GeneralMatchesEveryShift(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saveKPI(t, store, "Attendance", "Picker", engine.ShiftMorning)
	saveKPI(t, store, "Quality", "Picker", engine.ShiftGeneral)
	saveKPI(t, store, "Night Audit", "Picker", engine.ShiftNight)
	saveKPI(t, store, "Other Role", "Packer", engine.ShiftMorning)

	kpis, err := store.KPIsForRoleShift(ctx, "Picker", engine.ShiftMorning)
	require.NoError(t, err)
	require.Len(t, kpis, 2)
	// Ordered by name.
	assert.Equal(t, "Attendance", kpis[0].Name)
	assert.Equal(t, "Quality", kpis[1].Name)

	kpis, err = store.KPIsForRoleShift(ctx, "Picker", engine.ShiftNight)
	require.NoError(t, err)
	require.Len(t, kpis, 2)
	assert.Equal(t, "Night Audit", kpis[0].Name)
	assert.Equal(t, "Quality", kpis[1].Name)
}

func TestRoleNames(t *testing.T) {
	store := newTestStore(t)

	saveKPI(t, store, "Attendance", "Picker", engine.ShiftMorning)
	saveKPI(t, store, "Quality", "Picker", engine.ShiftGeneral)
	saveKPI(t, store, "Safety", "Packer", engine.ShiftMorning)

	roles, err := store.RoleNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Packer", "Picker"}, roles)
}

func TestDeleteKPI(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	kpi := saveKPI(t, store, "Attendance", "Picker", engine.ShiftMorning)
	require.NoError(t, store.DeleteKPI(ctx, kpi.ID))
	assert.True(t, errors.Is(store.DeleteKPI(ctx, kpi.ID), sqlite.ErrNotFound))
}

// =============================================================================
// USERS
// =============================================================================

func TestSaveUser_DuplicateCPF(t *testing.T) {
	store := newTestStore(t)

	saveUser(t, store, "12345678901", "John Smith", "Picker")

	dup := sqlite.User{
		CPF:   "12345678901",
		Name:  "Another Person",
		Role:  "Packer",
		Shift: engine.ShiftNight,
	}
	err := store.SaveUser(context.Background(), &dup)
	assert.True(t, errors.Is(err, sqlite.ErrDuplicateCPF))
}

func TestGetUserByCPF(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saveUser(t, store, "12345678901", "John Smith", "Picker")

	user, err := store.GetUserByCPF(ctx, "12345678901")
	require.NoError(t, err)
	assert.Equal(t, "John Smith", user.Name)
	assert.Equal(t, sqlite.ProfileOperator, user.Profile)
	assert.True(t, user.Active)

	_, err = store.GetUserByCPF(ctx, "00000000000")
	assert.True(t, errors.Is(err, sqlite.ErrNotFound))
}

func TestDeactivateUser_HidesFromLookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := saveUser(t, store, "12345678901", "John Smith", "Picker")
	require.NoError(t, store.DeactivateUser(ctx, user.ID))

	// Deactivated users no longer resolve by CPF.
	_, err := store.GetUserByCPF(ctx, "12345678901")
	assert.True(t, errors.Is(err, sqlite.ErrNotFound))

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

// =============================================================================
// LAUNCHES
// =============================================================================

func newLaunch(user sqlite.User, day string) sqlite.Launch {
	date, _ := time.Parse("2006-01-02", day)
	return sqlite.Launch{
		UserID:            user.ID,
		UserCPF:           user.CPF,
		UserName:          user.Name,
		Role:              user.Role,
		Shift:             user.Shift,
		ActivityName:      "Picking",
		QuantityProduced:  dec("90"),
		HoursWorked:       dec("2"),
		ExtraAmount:       dec("0"),
		AchievedKPINames:  []string{"Attendance"},
		ActivitySubtotal:  dec("22.5"),
		KPIBonus:          dec("3"),
		TotalRemuneration: dec("25.5"),
		ProductivityRate:  dec("45"),
		TierLabel:         "Tier 1",
		ReferenceMonth:    3,
		LaunchDate:        date,
	}
}

func TestSaveLaunch_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := saveUser(t, store, "12345678901", "John Smith", "Picker")
	launch := newLaunch(user, "2024-03-01")
	launch.MultipleActivities = []sqlite.LaunchActivity{
		{ActivityName: "Packing", QuantityProduced: "30", HoursWorked: "3"},
	}
	require.NoError(t, store.SaveLaunch(ctx, &launch))
	require.NotEmpty(t, launch.ID)

	launches, err := store.ListLaunches(ctx, user.CPF, 10)
	require.NoError(t, err)
	require.Len(t, launches, 1)

	got := launches[0]
	assert.Equal(t, "Picking", got.ActivityName)
	assert.True(t, dec("22.5").Equal(got.ActivitySubtotal))
	assert.Equal(t, []string{"Attendance"}, got.AchievedKPINames)
	require.Len(t, got.MultipleActivities, 1)
	assert.Equal(t, "Packing", got.MultipleActivities[0].ActivityName)
	assert.Equal(t, "2024-03-01", got.LaunchDate.Format("2006-01-02"))
}

func TestListLaunchesForMonth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := saveUser(t, store, "12345678901", "John Smith", "Picker")
	for _, day := range []string{"2024-03-01", "2024-03-15", "2024-04-01"} {
		launch := newLaunch(user, day)
		require.NoError(t, store.SaveLaunch(ctx, &launch))
	}

	launches, err := store.ListLaunchesForMonth(ctx, user.CPF, 2024, time.March)
	require.NoError(t, err)
	require.Len(t, launches, 2)
	// Newest first.
	assert.Equal(t, "2024-03-15", launches[0].LaunchDate.Format("2006-01-02"))
}

// =============================================================================
// RV RECORDS
// =============================================================================

func newRecord(user sqlite.User, day string) sqlite.Record {
	date, _ := time.Parse("2006-01-02", day)
	return sqlite.Record{
		UserID:            user.ID,
		UserCPF:           user.CPF,
		UserName:          user.Name,
		Role:              user.Role,
		Shift:             user.Shift,
		LaunchDate:        date,
		ActivitySubtotal:  dec("22.5"),
		KPIBonus:          dec("3"),
		TotalRemuneration: dec("25.5"),
		DetailsJSON:       `{"strategy":"single_activity"}`,
	}
}

func TestSaveRecord_RejectsDuplicateDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := saveUser(t, store, "12345678901", "John Smith", "Picker")

	first := newRecord(user, "2024-03-01")
	require.NoError(t, store.SaveRecord(ctx, &first))

	second := newRecord(user, "2024-03-01")
	err := store.SaveRecord(ctx, &second)
	assert.True(t, errors.Is(err, sqlite.ErrDuplicateRecord))

	// A different day is fine.
	third := newRecord(user, "2024-03-02")
	assert.NoError(t, store.SaveRecord(ctx, &third))
}

func TestSaveRecord_SameDateDifferentUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := saveUser(t, store, "11111111111", "Alice", "Picker")
	bob := saveUser(t, store, "22222222222", "Bob", "Picker")

	a := newRecord(alice, "2024-03-01")
	require.NoError(t, store.SaveRecord(ctx, &a))
	b := newRecord(bob, "2024-03-01")
	assert.NoError(t, store.SaveRecord(ctx, &b))
}

func TestListRecords_FilterByMonth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := saveUser(t, store, "12345678901", "John Smith", "Picker")
	for _, day := range []string{"2024-03-01", "2024-03-15", "2024-04-01"} {
		rec := newRecord(user, day)
		require.NoError(t, store.SaveRecord(ctx, &rec))
	}

	records, err := store.ListRecords(ctx, user.CPF, 2024, time.March, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, `{"strategy":"single_activity"}`, records[0].DetailsJSON)

	all, err := store.ListRecords(ctx, "", 0, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteRecord_FreesTheDateSlot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := saveUser(t, store, "12345678901", "John Smith", "Picker")
	rec := newRecord(user, "2024-03-01")
	require.NoError(t, store.SaveRecord(ctx, &rec))
	require.NoError(t, store.DeleteRecord(ctx, rec.ID))

	again := newRecord(user, "2024-03-01")
	assert.NoError(t, store.SaveRecord(ctx, &again))
}

// =============================================================================
// ENGINE INTEGRATION
// =============================================================================

func TestStoreBacksTheComposer(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saveTier(t, store, "Picking", "Tier 1", "0.5", "40")
	saveTier(t, store, "Picking", "Tier 2", "0.3", "0")
	saveKPI(t, store, "Attendance", "Picker", engine.ShiftGeneral)

	composer := engine.NewComposer(store, store)
	res, err := composer.Compute(ctx, engine.CalculationRequest{
		Role:             "Picker",
		Shift:            engine.ShiftMorning,
		ReferenceMonth:   time.February,
		Now:              time.Date(2024, time.February, 15, 12, 0, 0, 0, time.UTC),
		ActivityName:     "Picking",
		QuantityProduced: dec("90"),
		HoursWorked:      dec("2"),
		AchievedKPINames: []string{"Attendance"},
	})
	require.NoError(t, err)
	assert.True(t, dec("22.5").Equal(res.ActivitySubtotal), "got %s", res.ActivitySubtotal)
	assert.True(t, dec("3").Equal(res.KPIBonus), "got %s", res.KPIBonus)
	assert.True(t, dec("25.5").Equal(res.TotalRemuneration), "got %s", res.TotalRemuneration)
}
