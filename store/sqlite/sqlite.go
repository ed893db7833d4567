/*
Package sqlite provides the SQLite-backed persistence layer for the RV
(variable remuneration) system.

PURPOSE:
  Holds the reference data the calculation engine consumes (activity tiers,
  KPI definitions), the user directory, and the computed results (launch
  history and the daily RV record base). The engine itself never touches
  this package directly: it sees the store through the engine.TierSource
  and engine.KPISource interfaces.

INTERFACES IMPLEMENTED:
  engine.TierSource: TiersForActivity, ordered by min productivity DESC
  engine.KPISource:  KPIsForRoleShift, role exact + shift exact-or-General

KEY TABLES:
  activities:  One row per pay tier (activity name groups a tier ladder)
  kpis:        KPI definitions per role and shift
  users:       Worker directory, CPF-unique, soft-deleted via active flag
  launches:    Full calculation snapshots (inputs + results, JSON details)
  rv_records:  The RV base - one record per (cpf, launch date)

UNIQUENESS:
  idx_rv_records_user_date enforces the one-record-per-worker-per-day rule.
  A second write for the same (cpf, date) pair fails with
  ErrDuplicateRecord; the engine is unaware of this rule by design.

DECIMALS:
  Monetary and rate columns are stored as TEXT via decimal.String() to
  avoid float round-trips, matching how amounts are handled everywhere
  else in this codebase.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, with SQLite opened in WAL mode.

USAGE:
  store, err := sqlite.New("./data/rv.db")
  if err != nil { ... }
  defer store.Close()

  composer := engine.NewComposer(store, store)

SEE ALSO:
  - engine/valuator.go, engine/composer.go: Collaborator contracts
  - api/handlers.go: CRUD surface over these tables
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/rv-engine/engine"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrDuplicateRecord is returned when an RV record already exists for
	// the same user and launch date.
	ErrDuplicateRecord = errors.New("record already exists for this user and date")

	// ErrDuplicateCPF is returned when creating a user with a CPF that is
	// already registered.
	ErrDuplicateCPF = errors.New("cpf already registered")

	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STORE
// =============================================================================

// Store implements all persistence for the RV system using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Compile-time checks for the engine collaborator contracts.
var (
	_ engine.TierSource = (*Store)(nil)
	_ engine.KPISource  = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Activity tiers. Rows sharing activity_name form a descending ladder.
	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		activity_name TEXT NOT NULL,
		tier_label TEXT NOT NULL,
		unit_value TEXT NOT NULL,
		min_productivity TEXT NOT NULL DEFAULT '0',
		unit TEXT NOT NULL DEFAULT 'units',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activities_name
		ON activities(activity_name);

	-- KPI definitions
	CREATE TABLE IF NOT EXISTS kpis (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		target_value TEXT NOT NULL DEFAULT '0',
		weight TEXT NOT NULL DEFAULT '0',
		shift TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_kpis_role_shift
		ON kpis(role, shift);

	-- Users. Deletion is a soft delete (active = 0).
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		cpf TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		shift TEXT NOT NULL,
		profile TEXT NOT NULL DEFAULT 'Operator',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Launch history: full calculation snapshots.
	CREATE TABLE IF NOT EXISTS launches (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		user_cpf TEXT NOT NULL,
		user_name TEXT NOT NULL,
		activity_name TEXT,
		role TEXT NOT NULL,
		shift TEXT NOT NULL,
		quantity_produced TEXT,
		hours_worked TEXT,
		extra_amount TEXT NOT NULL DEFAULT '0',
		achieved_kpis_json TEXT,
		multiple_activities_json TEXT,
		actor_name TEXT,
		valid_task_count INTEGER,
		reference_month INTEGER,
		activity_subtotal TEXT NOT NULL,
		kpi_bonus TEXT NOT NULL,
		total_remuneration TEXT NOT NULL,
		productivity_rate TEXT,
		tier_label TEXT,
		launch_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_launches_cpf_date
		ON launches(user_cpf, launch_date DESC);

	-- RV base: one record per user per calendar date.
	CREATE TABLE IF NOT EXISTS rv_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		user_cpf TEXT NOT NULL,
		user_name TEXT NOT NULL,
		role TEXT NOT NULL,
		shift TEXT NOT NULL,
		launch_date TEXT NOT NULL,
		activity_subtotal TEXT NOT NULL,
		kpi_bonus TEXT NOT NULL,
		total_remuneration TEXT NOT NULL,
		details_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: one RV record per worker per day. The second write for the
	-- same pair is rejected here, not in the engine.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_rv_records_user_date
		ON rv_records(user_cpf, launch_date);

	CREATE INDEX IF NOT EXISTS idx_rv_records_date
		ON rv_records(launch_date DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACTIVITY TIERS (engine.TierSource)
// =============================================================================

// TiersForActivity returns the tier ladder for an activity, ordered by
// min productivity descending. Empty result means the activity is unknown.
func (s *Store) TiersForActivity(ctx context.Context, activityName string) ([]engine.ActivityTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTiers(ctx, `
		SELECT id, activity_name, tier_label, unit_value, min_productivity, unit, created_at, updated_at
		FROM activities
		WHERE activity_name = ?
		ORDER BY CAST(min_productivity AS REAL) DESC, created_at ASC
	`, activityName)
}

// ListActivityTiers returns all tiers, newest first.
func (s *Store) ListActivityTiers(ctx context.Context) ([]engine.ActivityTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTiers(ctx, `
		SELECT id, activity_name, tier_label, unit_value, min_productivity, unit, created_at, updated_at
		FROM activities
		ORDER BY created_at DESC
	`)
}

// SaveActivityTier inserts or updates a tier. A blank ID gets a new UUID.
func (s *Store) SaveActivityTier(ctx context.Context, tier *engine.ActivityTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	if tier.ID == "" {
		tier.ID = uuid.NewString()
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO activities (id, activity_name, tier_label, unit_value, min_productivity, unit, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, tier.ID, tier.ActivityName, tier.TierLabel, tier.UnitValue.String(), tier.MinProductivity.String(), tier.Unit, now, now)
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE activities
		SET activity_name = ?, tier_label = ?, unit_value = ?, min_productivity = ?, unit = ?, updated_at = ?
		WHERE id = ?
	`, tier.ActivityName, tier.TierLabel, tier.UnitValue.String(), tier.MinProductivity.String(), tier.Unit, now, tier.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteActivityTier removes a tier row.
func (s *Store) DeleteActivityTier(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM activities WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ActivityNames returns the distinct activity names, sorted.
func (s *Store) ActivityNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryStrings(ctx, `SELECT DISTINCT activity_name FROM activities ORDER BY activity_name`)
}

func (s *Store) queryTiers(ctx context.Context, query string, args ...any) ([]engine.ActivityTier, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []engine.ActivityTier
	for rows.Next() {
		var t engine.ActivityTier
		var unitValue, minProd, createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.ActivityName, &t.TierLabel, &unitValue, &minProd, &t.Unit, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		t.UnitValue = mustDecimal(unitValue)
		t.MinProductivity = mustDecimal(minProd)
		t.CreatedAt = parseTime(createdAt)
		t.UpdatedAt = parseTime(updatedAt)
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// =============================================================================
// KPI DEFINITIONS (engine.KPISource)
// =============================================================================

// KPIsForRoleShift returns the KPIs applicable to a role and shift:
// role exact match, shift exact-or-General.
func (s *Store) KPIsForRoleShift(ctx context.Context, role string, shift engine.Shift) ([]engine.KPIDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryKPIs(ctx, `
		SELECT id, name, target_value, weight, shift, role, created_at, updated_at
		FROM kpis
		WHERE role = ? AND (shift = ? OR shift = ?)
		ORDER BY name
	`, role, string(shift), string(engine.ShiftGeneral))
}

// ListKPIs returns all KPI definitions, newest first.
func (s *Store) ListKPIs(ctx context.Context) ([]engine.KPIDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryKPIs(ctx, `
		SELECT id, name, target_value, weight, shift, role, created_at, updated_at
		FROM kpis
		ORDER BY created_at DESC
	`)
}

// SaveKPI inserts or updates a KPI definition. A blank ID gets a new UUID.
func (s *Store) SaveKPI(ctx context.Context, kpi *engine.KPIDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	if kpi.ID == "" {
		kpi.ID = uuid.NewString()
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO kpis (id, name, target_value, weight, shift, role, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, kpi.ID, kpi.Name, kpi.TargetValue.String(), kpi.Weight.String(), string(kpi.Shift), kpi.Role, now, now)
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE kpis
		SET name = ?, target_value = ?, weight = ?, shift = ?, role = ?, updated_at = ?
		WHERE id = ?
	`, kpi.Name, kpi.TargetValue.String(), kpi.Weight.String(), string(kpi.Shift), kpi.Role, now, kpi.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteKPI removes a KPI definition.
func (s *Store) DeleteKPI(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM kpis WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RoleNames returns the distinct roles that have KPIs registered, sorted.
// Feeds the role selector in the calculator form.
func (s *Store) RoleNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryStrings(ctx, `SELECT DISTINCT role FROM kpis ORDER BY role`)
}

func (s *Store) queryKPIs(ctx context.Context, query string, args ...any) ([]engine.KPIDefinition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kpis []engine.KPIDefinition
	for rows.Next() {
		var k engine.KPIDefinition
		var target, weight, shift, createdAt, updatedAt string
		if err := rows.Scan(&k.ID, &k.Name, &target, &weight, &shift, &k.Role, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		k.TargetValue = mustDecimal(target)
		k.Weight = mustDecimal(weight)
		k.Shift = engine.Shift(shift)
		k.CreatedAt = parseTime(createdAt)
		k.UpdatedAt = parseTime(updatedAt)
		kpis = append(kpis, k)
	}
	return kpis, rows.Err()
}

// =============================================================================
// USERS
// =============================================================================

type Profile string

const (
	ProfileOperator   Profile = "Operator"
	ProfileSupervisor Profile = "Supervisor"
)

// User is one worker in the directory. Identity is the CPF; there is no
// password, per the identity-lookup login contract.
type User struct {
	ID        string
	CPF       string
	Name      string
	Role      string
	Shift     engine.Shift
	Profile   Profile
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaveUser inserts or updates a user. A blank ID gets a new UUID.
func (s *Store) SaveUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	if u.Profile == "" {
		u.Profile = ProfileOperator
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
		u.Active = true
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO users (id, cpf, name, role, shift, profile, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		`, u.ID, u.CPF, u.Name, u.Role, string(u.Shift), string(u.Profile), now, now)
		if isUniqueConstraintError(err) {
			return ErrDuplicateCPF
		}
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET cpf = ?, name = ?, role = ?, shift = ?, profile = ?, active = ?, updated_at = ?
		WHERE id = ?
	`, u.CPF, u.Name, u.Role, string(u.Shift), string(u.Profile), boolToInt(u.Active), now, u.ID)
	if isUniqueConstraintError(err) {
		return ErrDuplicateCPF
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

// GetUserByCPF returns the active user with the given CPF, or ErrNotFound.
// This is also the whole of the login contract.
func (s *Store) GetUserByCPF(ctx context.Context, cpf string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, cpf, name, role, shift, profile, active, created_at, updated_at
		FROM users
		WHERE cpf = ? AND active = 1
	`, cpf)
	return scanUser(row)
}

// ListUsers returns all active users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cpf, name, role, shift, profile, active, created_at, updated_at
		FROM users
		WHERE active = 1
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// DeactivateUser soft-deletes a user. History keeps referencing the CPF.
func (s *Store) DeactivateUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE users SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var shift, profile, createdAt, updatedAt string
	var active int
	err := row.Scan(&u.ID, &u.CPF, &u.Name, &u.Role, &shift, &profile, &active, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Shift = engine.Shift(shift)
	u.Profile = Profile(profile)
	u.Active = active == 1
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

// =============================================================================
// LAUNCHES - calculation history
// =============================================================================

// LaunchActivity is one multi-activity item stored with a launch.
type LaunchActivity struct {
	ActivityName     string `json:"activityName"`
	QuantityProduced string `json:"quantityProduced"`
	HoursWorked      string `json:"hoursWorked"`
}

// Launch is one recorded calculation: the inputs the worker entered plus
// the computed results, kept for the history view.
type Launch struct {
	ID       string
	UserID   string
	UserCPF  string
	UserName string

	ActivityName     string
	Role             string
	Shift            engine.Shift
	QuantityProduced decimal.Decimal
	HoursWorked      decimal.Decimal
	ExtraAmount      decimal.Decimal

	AchievedKPINames   []string
	MultipleActivities []LaunchActivity
	ActorName          string
	ValidTaskCount     *int
	ReferenceMonth     int

	ActivitySubtotal  decimal.Decimal
	KPIBonus          decimal.Decimal
	TotalRemuneration decimal.Decimal
	ProductivityRate  decimal.Decimal
	TierLabel         string

	LaunchDate time.Time
	CreatedAt  time.Time
}

// SaveLaunch appends a launch to the history.
func (s *Store) SaveLaunch(ctx context.Context, l *Launch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.NewString()
	}

	kpisJSON, _ := json.Marshal(l.AchievedKPINames)
	activitiesJSON, _ := json.Marshal(l.MultipleActivities)

	var taskCount any
	if l.ValidTaskCount != nil {
		taskCount = *l.ValidTaskCount
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO launches (
			id, user_id, user_cpf, user_name, activity_name, role, shift,
			quantity_produced, hours_worked, extra_amount, achieved_kpis_json,
			multiple_activities_json, actor_name, valid_task_count, reference_month,
			activity_subtotal, kpi_bonus, total_remuneration, productivity_rate,
			tier_label, launch_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.ID, l.UserID, l.UserCPF, l.UserName, nullString(l.ActivityName), l.Role, string(l.Shift),
		l.QuantityProduced.String(), l.HoursWorked.String(), l.ExtraAmount.String(), string(kpisJSON),
		string(activitiesJSON), nullString(l.ActorName), taskCount, l.ReferenceMonth,
		l.ActivitySubtotal.String(), l.KPIBonus.String(), l.TotalRemuneration.String(), l.ProductivityRate.String(),
		nullString(l.TierLabel), l.LaunchDate.Format("2006-01-02"), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListLaunches returns launches newest first, optionally filtered by CPF.
func (s *Store) ListLaunches(ctx context.Context, cpf string, limit int) ([]Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, user_cpf, user_name, activity_name, role, shift,
		       quantity_produced, hours_worked, extra_amount, achieved_kpis_json,
		       multiple_activities_json, actor_name, valid_task_count, reference_month,
		       activity_subtotal, kpi_bonus, total_remuneration, productivity_rate,
		       tier_label, launch_date, created_at
		FROM launches
	`
	var args []any
	if cpf != "" {
		query += ` WHERE user_cpf = ?`
		args = append(args, cpf)
	}
	query += ` ORDER BY launch_date DESC, created_at DESC LIMIT ?`
	args = append(args, limit)

	return s.queryLaunches(ctx, query, args...)
}

// ListLaunchesForMonth returns a user's launches within a calendar month,
// newest first. Feeds the monthly summary.
func (s *Store) ListLaunchesForMonth(ctx context.Context, cpf string, year int, month time.Month) ([]Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := fmt.Sprintf("%04d-%02d-", year, month)
	return s.queryLaunches(ctx, `
		SELECT id, user_id, user_cpf, user_name, activity_name, role, shift,
		       quantity_produced, hours_worked, extra_amount, achieved_kpis_json,
		       multiple_activities_json, actor_name, valid_task_count, reference_month,
		       activity_subtotal, kpi_bonus, total_remuneration, productivity_rate,
		       tier_label, launch_date, created_at
		FROM launches
		WHERE user_cpf = ? AND launch_date LIKE ?
		ORDER BY launch_date DESC, created_at DESC
	`, cpf, prefix+"%")
}

func (s *Store) queryLaunches(ctx context.Context, query string, args ...any) ([]Launch, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var launches []Launch
	for rows.Next() {
		var l Launch
		var activityName, actorName, tierLabel sql.NullString
		var taskCount sql.NullInt64
		var shift, qty, hours, extra, kpisJSON, activitiesJSON string
		var subtotal, bonus, total, rate, launchDate, createdAt string

		if err := rows.Scan(
			&l.ID, &l.UserID, &l.UserCPF, &l.UserName, &activityName, &l.Role, &shift,
			&qty, &hours, &extra, &kpisJSON,
			&activitiesJSON, &actorName, &taskCount, &l.ReferenceMonth,
			&subtotal, &bonus, &total, &rate,
			&tierLabel, &launchDate, &createdAt,
		); err != nil {
			return nil, err
		}

		l.ActivityName = activityName.String
		l.ActorName = actorName.String
		l.TierLabel = tierLabel.String
		l.Shift = engine.Shift(shift)
		l.QuantityProduced = mustDecimal(qty)
		l.HoursWorked = mustDecimal(hours)
		l.ExtraAmount = mustDecimal(extra)
		l.ActivitySubtotal = mustDecimal(subtotal)
		l.KPIBonus = mustDecimal(bonus)
		l.TotalRemuneration = mustDecimal(total)
		l.ProductivityRate = mustDecimal(rate)
		if taskCount.Valid {
			n := int(taskCount.Int64)
			l.ValidTaskCount = &n
		}
		if kpisJSON != "" {
			json.Unmarshal([]byte(kpisJSON), &l.AchievedKPINames)
		}
		if activitiesJSON != "" {
			json.Unmarshal([]byte(activitiesJSON), &l.MultipleActivities)
		}
		l.LaunchDate = parseDate(launchDate)
		l.CreatedAt = parseTime(createdAt)
		launches = append(launches, l)
	}
	return launches, rows.Err()
}

// =============================================================================
// RV RECORDS - the persisted base, one per (cpf, date)
// =============================================================================

// Record is one persisted daily RV result.
type Record struct {
	ID       string
	UserID   string
	UserCPF  string
	UserName string
	Role     string
	Shift    engine.Shift

	LaunchDate        time.Time
	ActivitySubtotal  decimal.Decimal
	KPIBonus          decimal.Decimal
	TotalRemuneration decimal.Decimal

	// DetailsJSON carries the full calculation breakdown for the UI.
	DetailsJSON string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaveRecord persists a daily RV record. Fails with ErrDuplicateRecord when
// a record already exists for the same (cpf, launch date).
func (s *Store) SaveRecord(ctx context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rv_records (
			id, user_id, user_cpf, user_name, role, shift, launch_date,
			activity_subtotal, kpi_bonus, total_remuneration, details_json,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.UserID, r.UserCPF, r.UserName, r.Role, string(r.Shift), r.LaunchDate.Format("2006-01-02"),
		r.ActivitySubtotal.String(), r.KPIBonus.String(), r.TotalRemuneration.String(), nullString(r.DetailsJSON),
		now, now,
	)
	if isUniqueConstraintError(err) {
		return ErrDuplicateRecord
	}
	return err
}

// ListRecords returns RV records newest first, optionally filtered by CPF
// and/or month.
func (s *Store) ListRecords(ctx context.Context, cpf string, year int, month time.Month, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, user_cpf, user_name, role, shift, launch_date,
		       activity_subtotal, kpi_bonus, total_remuneration, details_json,
		       created_at, updated_at
		FROM rv_records
	`
	var conditions []string
	var args []any
	if cpf != "" {
		conditions = append(conditions, "user_cpf = ?")
		args = append(args, cpf)
	}
	if year != 0 && month != 0 {
		conditions = append(conditions, "launch_date LIKE ?")
		args = append(args, fmt.Sprintf("%04d-%02d-%%", year, month))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY launch_date DESC, created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var shift, launchDate, subtotal, bonus, total, createdAt, updatedAt string
		var details sql.NullString
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.UserCPF, &r.UserName, &r.Role, &shift, &launchDate,
			&subtotal, &bonus, &total, &details,
			&createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		r.Shift = engine.Shift(shift)
		r.LaunchDate = parseDate(launchDate)
		r.ActivitySubtotal = mustDecimal(subtotal)
		r.KPIBonus = mustDecimal(bonus)
		r.TotalRemuneration = mustDecimal(total)
		r.DetailsJSON = details.String
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteRecord removes an RV record, freeing the (cpf, date) slot.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM rv_records WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseDate(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
