/*
handlers.go - HTTP API handlers for the variable remuneration service

PURPOSE:
  Exposes the remuneration engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Calculation:
    POST   /api/calculate              Compute remuneration, no persistence

  Catalog:
    GET    /api/activities             List activity tiers
    POST   /api/activities             Create tier
    PUT    /api/activities/{id}        Update tier
    DELETE /api/activities/{id}        Delete tier
    GET    /api/activity-names         Distinct activity names
    GET    /api/kpis                   List KPI definitions
    POST   /api/kpis                   Create KPI
    PUT    /api/kpis/{id}              Update KPI
    DELETE /api/kpis/{id}              Delete KPI
    GET    /api/kpis/available         KPIs for a (role, shift) pair
    GET    /api/functions              Distinct role names

  Users:
    GET    /api/users                  List users
    POST   /api/users                  Create user
    PUT    /api/users/{id}             Update user
    DELETE /api/users/{id}             Deactivate (soft delete)
    POST   /api/login                  CPF identity lookup
    GET    /api/users/{cpf}/summary    Monthly aggregate for one user

  History:
    GET    /api/launches               Launch history for a CPF
    POST   /api/launches               Record a calculation
    GET    /api/records                Persisted RV records
    POST   /api/records                Persist one daily record
    DELETE /api/records/{id}           Remove a record

  Task logs:
    POST   /api/tasklogs/classify      Upload a task log, count valid tasks

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator)
  3. Call domain logic (engine, tasklog, store)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found, including unknown activities in a calculation
  - 409: Duplicate (cpf, date) record or duplicate CPF
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/rv-engine/engine"
	"github.com/warp/rv-engine/store/sqlite"
	"github.com/warp/rv-engine/tasklog"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// maxUploadBytes caps task-log uploads at 10 MB.
const maxUploadBytes = 10 << 20

// summaryLaunchLimit caps the launch listing inside a monthly summary.
// Monthly totals still cover every launch.
const summaryLaunchLimit = 10

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Composer *engine.Composer

	validate   *validator.Validate
	classifier *tasklog.Classifier
	parseCache *tasklog.ParseCache
}

// NewHandler creates a handler with all dependencies wired.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:      store,
		Composer:   engine.NewComposer(store, store),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		classifier: &tasklog.Classifier{},
		parseCache: tasklog.NewParseCache(16),
	}
}

// =============================================================================
// CALCULATION
// =============================================================================

// Calculate computes remuneration for one request without persisting anything.
// POST /api/calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.Composer.Compute(r.Context(), toEngineRequest(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCalculateResponse(result))
}

func toEngineRequest(req CalculateRequest) engine.CalculationRequest {
	out := engine.CalculationRequest{
		Role:             req.Role,
		Shift:            engine.Shift(req.Shift),
		ReferenceMonth:   time.Month(req.ReferenceMonth),
		ActivityName:     req.ActivityName,
		QuantityProduced: decimal.NewFromFloat(req.QuantityProduced),
		HoursWorked:      decimal.NewFromFloat(req.HoursWorked),
		ValidTaskCount:   req.ValidTaskCount,
		AchievedKPINames: req.AchievedKPINames,
		ExtraAmount:      decimal.NewFromFloat(req.ExtraAmount),
	}
	for _, a := range req.MultipleActivities {
		out.MultipleActivities = append(out.MultipleActivities, engine.ActivityInput{
			ActivityName:     a.ActivityName,
			QuantityProduced: decimal.NewFromFloat(a.QuantityProduced),
			HoursWorked:      decimal.NewFromFloat(a.HoursWorked),
		})
	}
	return out
}

// =============================================================================
// ACTIVITY TIERS
// =============================================================================

// ListActivities returns all activity tiers.
// GET /api/activities
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.Store.ListActivityTiers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list activities", err)
		return
	}
	dtos := make([]ActivityTierDTO, 0, len(tiers))
	for _, t := range tiers {
		dtos = append(dtos, toTierDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateActivity creates one tier.
// POST /api/activities
func (h *Handler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	h.saveActivity(w, r, "")
}

// UpdateActivity updates one tier by id.
// PUT /api/activities/{id}
func (h *Handler) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	h.saveActivity(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) saveActivity(w http.ResponseWriter, r *http.Request, id string) {
	var req SaveActivityTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	tier := engine.ActivityTier{
		ID:              id,
		ActivityName:    strings.TrimSpace(req.ActivityName),
		TierLabel:       strings.TrimSpace(req.TierLabel),
		UnitValue:       decimal.NewFromFloat(req.UnitValue),
		MinProductivity: decimal.NewFromFloat(req.MinProductivity),
		Unit:            req.Unit,
	}
	if err := h.Store.SaveActivityTier(r.Context(), &tier); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Activity tier not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save activity tier", err)
		return
	}

	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, toTierDTO(tier))
}

// DeleteActivity removes one tier.
// DELETE /api/activities/{id}
func (h *Handler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteActivityTier(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Activity tier not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete activity tier", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListActivityNames returns the distinct activity names in the catalog.
// GET /api/activity-names
func (h *Handler) ListActivityNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.Store.ActivityNames(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list activity names", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

// =============================================================================
// KPIS
// =============================================================================

// ListKPIs returns all KPI definitions.
// GET /api/kpis
func (h *Handler) ListKPIs(w http.ResponseWriter, r *http.Request) {
	kpis, err := h.Store.ListKPIs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list KPIs", err)
		return
	}
	dtos := make([]KPIDTO, 0, len(kpis))
	for _, k := range kpis {
		dtos = append(dtos, toKPIDTO(k))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AvailableKPIs returns KPIs applicable to a (role, shift) pair. General-shift
// KPIs match every shift.
// GET /api/kpis/available?role=...&shift=...
func (h *Handler) AvailableKPIs(w http.ResponseWriter, r *http.Request) {
	role := strings.TrimSpace(r.URL.Query().Get("role"))
	shift := engine.Shift(r.URL.Query().Get("shift"))
	if role == "" {
		writeError(w, http.StatusBadRequest, "Query parameter 'role' is required", nil)
		return
	}
	if !engine.ValidRequestShift(shift) {
		writeError(w, http.StatusBadRequest, "Query parameter 'shift' must be Morning, Afternoon or Night", nil)
		return
	}

	kpis, err := h.Store.KPIsForRoleShift(r.Context(), role, shift)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list KPIs", err)
		return
	}
	dtos := make([]KPIDTO, 0, len(kpis))
	for _, k := range kpis {
		dtos = append(dtos, toKPIDTO(k))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateKPI creates one KPI definition.
// POST /api/kpis
func (h *Handler) CreateKPI(w http.ResponseWriter, r *http.Request) {
	h.saveKPI(w, r, "")
}

// UpdateKPI updates one KPI definition by id.
// PUT /api/kpis/{id}
func (h *Handler) UpdateKPI(w http.ResponseWriter, r *http.Request) {
	h.saveKPI(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) saveKPI(w http.ResponseWriter, r *http.Request, id string) {
	var req SaveKPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	kpi := engine.KPIDefinition{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		TargetValue: decimal.NewFromFloat(req.TargetValue),
		Weight:      decimal.NewFromFloat(req.Weight),
		Shift:       engine.Shift(req.Shift),
		Role:        strings.TrimSpace(req.Role),
	}
	if err := h.Store.SaveKPI(r.Context(), &kpi); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "KPI not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save KPI", err)
		return
	}

	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, toKPIDTO(kpi))
}

// DeleteKPI removes one KPI definition.
// DELETE /api/kpis/{id}
func (h *Handler) DeleteKPI(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteKPI(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "KPI not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete KPI", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFunctions returns the distinct role names known to the KPI catalog.
// GET /api/functions
func (h *Handler) ListFunctions(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Store.RoleNames(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list roles", err)
		return
	}
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusOK, roles)
}

// =============================================================================
// USERS
// =============================================================================

// ListUsers returns all active users.
// GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}
	dtos := make([]UserDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, toUserDTO(u))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateUser registers a worker. The CPF must be unique.
// POST /api/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	h.saveUser(w, r, "")
}

// UpdateUser updates a worker by id.
// PUT /api/users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	h.saveUser(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) saveUser(w http.ResponseWriter, r *http.Request, id string) {
	var req SaveUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	user := sqlite.User{
		ID:      id,
		CPF:     req.CPF,
		Name:    strings.TrimSpace(req.Name),
		Role:    strings.TrimSpace(req.Role),
		Shift:   engine.Shift(req.Shift),
		Profile: sqlite.Profile(req.Profile),
		Active:  true,
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if err := h.Store.SaveUser(r.Context(), &user); err != nil {
		switch {
		case errors.Is(err, sqlite.ErrDuplicateCPF):
			writeError(w, http.StatusConflict, "A user with this CPF already exists", nil)
		case errors.Is(err, sqlite.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found", nil)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to save user", err)
		}
		return
	}

	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, toUserDTO(user))
}

// DeleteUser deactivates a worker. Historical launches and records survive.
// DELETE /api/users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeactivateUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to deactivate user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Login resolves a CPF to its registered user. There is no password; this
// is an identity lookup for the kiosk-style client.
// POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	user, err := h.Store.GetUserByCPF(r.Context(), req.CPF)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "CPF not registered", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to look up user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// UserSummary aggregates one user's launches for a month.
// GET /api/users/{cpf}/summary?month=&year=
func (h *Handler) UserSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cpf := chi.URLParam(r, "cpf")

	now := time.Now()
	month := queryInt(r, "month", int(now.Month()))
	year := queryInt(r, "year", now.Year())
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Query parameter 'month' must be 1-12", nil)
		return
	}

	user, err := h.Store.GetUserByCPF(ctx, cpf)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to look up user", err)
		return
	}

	launches, err := h.Store.ListLaunchesForMonth(ctx, cpf, year, time.Month(month))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list launches", err)
		return
	}

	summary := SummaryDTO{
		User:      toUserDTO(*user),
		Month:     month,
		Year:      year,
		KPICounts: map[string]int{},
		Launches:  make([]LaunchDTO, 0, len(launches)),
	}
	total := decimal.Zero
	activities := decimal.Zero
	kpiBonus := decimal.Zero
	for _, l := range launches {
		summary.TotalLaunches++
		total = total.Add(l.TotalRemuneration)
		activities = activities.Add(l.ActivitySubtotal)
		kpiBonus = kpiBonus.Add(l.KPIBonus)
		for _, name := range l.AchievedKPINames {
			summary.KPICounts[name]++
		}
		// Totals cover the whole month; the listing shows the 10 most
		// recent launches.
		if len(summary.Launches) < summaryLaunchLimit {
			summary.Launches = append(summary.Launches, toLaunchDTO(l))
		}
	}
	summary.TotalRemuneration = round2(total)
	summary.TotalActivities = round2(activities)
	summary.TotalKPIBonus = round2(kpiBonus)
	writeJSON(w, http.StatusOK, summary)
}

// =============================================================================
// LAUNCHES
// =============================================================================

// ListLaunches returns the launch history for a CPF, newest first.
// GET /api/launches?cpf=...&limit=...
func (h *Handler) ListLaunches(w http.ResponseWriter, r *http.Request) {
	cpf := r.URL.Query().Get("cpf")
	if cpf == "" {
		writeError(w, http.StatusBadRequest, "Query parameter 'cpf' is required", nil)
		return
	}
	limit := queryInt(r, "limit", 50)

	launches, err := h.Store.ListLaunches(r.Context(), cpf, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list launches", err)
		return
	}
	dtos := make([]LaunchDTO, 0, len(launches))
	for _, l := range launches {
		dtos = append(dtos, toLaunchDTO(l))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLaunch runs the calculation for the given inputs and stores both
// inputs and results as one history entry.
// POST /api/launches
func (h *Handler) CreateLaunch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateLaunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	user, err := h.Store.GetUserByCPF(ctx, req.UserCPF)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to look up user", err)
		return
	}

	result, err := h.Composer.Compute(ctx, toEngineRequest(req.CalculateRequest))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	launchDate, err := time.Parse("2006-01-02", req.LaunchDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid launchDate format (use YYYY-MM-DD)", err)
		return
	}

	launch := sqlite.Launch{
		UserID:           user.ID,
		UserCPF:          user.CPF,
		UserName:         user.Name,
		Role:             req.Role,
		Shift:            engine.Shift(req.Shift),
		ActivityName:     req.ActivityName,
		QuantityProduced: decimal.NewFromFloat(req.QuantityProduced),
		HoursWorked:      decimal.NewFromFloat(req.HoursWorked),
		ExtraAmount:      result.ExtraAmount,
		AchievedKPINames: result.AchievedKPINames,
		ActorName:        req.ActorName,
		ValidTaskCount:   req.ValidTaskCount,
		ReferenceMonth:   int(result.KPI.ReferenceMonth),

		ActivitySubtotal:  result.ActivitySubtotal,
		KPIBonus:          result.KPIBonus,
		TotalRemuneration: result.TotalRemuneration,
		TierLabel:         firstTierLabel(result),
		ProductivityRate:  firstProductivityRate(result),

		LaunchDate: launchDate,
	}
	for _, a := range req.MultipleActivities {
		launch.MultipleActivities = append(launch.MultipleActivities, sqlite.LaunchActivity{
			ActivityName:     a.ActivityName,
			QuantityProduced: decimal.NewFromFloat(a.QuantityProduced).String(),
			HoursWorked:      decimal.NewFromFloat(a.HoursWorked).String(),
		})
	}

	if err := h.Store.SaveLaunch(ctx, &launch); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save launch", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLaunchDTO(launch))
}

func firstTierLabel(res engine.CalculationResult) string {
	if len(res.Activities) == 1 {
		return res.Activities[0].TierLabel
	}
	return ""
}

func firstProductivityRate(res engine.CalculationResult) decimal.Decimal {
	if len(res.Activities) == 1 {
		return res.Activities[0].ProductivityRate
	}
	return decimal.Zero
}

// =============================================================================
// RV RECORDS
// =============================================================================

// ListRecords returns persisted RV records, optionally scoped to a CPF
// and month.
// GET /api/records?cpf=&month=&year=&limit=
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	cpf := r.URL.Query().Get("cpf")
	month := queryInt(r, "month", 0)
	year := queryInt(r, "year", 0)
	limit := queryInt(r, "limit", 100)
	if month < 0 || month > 12 {
		writeError(w, http.StatusBadRequest, "Query parameter 'month' must be 1-12", nil)
		return
	}

	records, err := h.Store.ListRecords(r.Context(), cpf, year, time.Month(month), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list records", err)
		return
	}
	dtos := make([]RecordDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toRecordDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRecord persists one daily RV record. At most one record may exist
// per (cpf, date); a second attempt returns 409.
// POST /api/records
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	user, err := h.Store.GetUserByCPF(ctx, req.UserCPF)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to look up user", err)
		return
	}

	launchDate, err := time.Parse("2006-01-02", req.LaunchDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid launchDate format (use YYYY-MM-DD)", err)
		return
	}

	var detailsJSON string
	if req.Details != nil {
		raw, err := json.Marshal(req.Details)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid details payload", err)
			return
		}
		detailsJSON = string(raw)
	}

	record := sqlite.Record{
		UserID:            user.ID,
		UserCPF:           user.CPF,
		UserName:          user.Name,
		Role:              user.Role,
		Shift:             user.Shift,
		LaunchDate:        launchDate,
		ActivitySubtotal:  decimal.NewFromFloat(req.ActivitySubtotal),
		KPIBonus:          decimal.NewFromFloat(req.KPIBonus),
		TotalRemuneration: decimal.NewFromFloat(req.TotalRemuneration),
		DetailsJSON:       detailsJSON,
	}
	if err := h.Store.SaveRecord(ctx, &record); err != nil {
		if errors.Is(err, sqlite.ErrDuplicateRecord) {
			writeError(w, http.StatusConflict,
				fmt.Sprintf("A record already exists for CPF %s on %s", req.UserCPF, req.LaunchDate), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save record", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordDTO(record))
}

// DeleteRecord removes one persisted record.
// DELETE /api/records/{id}
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteRecord(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Record not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toRecordDTO(rec sqlite.Record) RecordDTO {
	dto := RecordDTO{
		ID:                rec.ID,
		UserCPF:           rec.UserCPF,
		UserName:          rec.UserName,
		Role:              rec.Role,
		Shift:             string(rec.Shift),
		LaunchDate:        rec.LaunchDate.Format("2006-01-02"),
		ActivitySubtotal:  round2(rec.ActivitySubtotal),
		KPIBonus:          round2(rec.KPIBonus),
		TotalRemuneration: round2(rec.TotalRemuneration),
		CreatedAt:         formatTime(rec.CreatedAt),
	}
	if rec.DetailsJSON != "" {
		var details any
		if err := json.Unmarshal([]byte(rec.DetailsJSON), &details); err == nil {
			dto.Details = details
		}
	}
	return dto
}

// =============================================================================
// TASK-LOG CLASSIFICATION
// =============================================================================

// ClassifyTaskLog accepts a multipart upload of a task log (.csv, .txt or
// .xlsx) plus the actor's name, and returns the valid-task tally. Parsed
// event lists are cached by content hash so re-uploads of the same file
// for a different actor skip the parse.
// POST /api/tasklogs/classify  (multipart: file, actorName)
func (h *Handler) ClassifyTaskLog(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}
	actorName := strings.TrimSpace(r.FormValue("actorName"))
	if actorName == "" {
		writeError(w, http.StatusBadRequest, "Form field 'actorName' is required", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Form field 'file' is required", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read uploaded file", err)
		return
	}

	hash := tasklog.ContentHash(data)
	events, fromCache := h.parseCache.Get(hash)
	if !fromCache {
		events, err = tasklog.ParseFile(bytes.NewReader(data), header.Filename)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Failed to parse task log", err)
			return
		}
		h.parseCache.Put(hash, events)
	}

	result := h.classifier.Classify(events, actorName)
	writeJSON(w, http.StatusOK, toClassifyResponse(result, hash, len(events), fromCache))
}

// =============================================================================
// HELPERS
// =============================================================================

// writeDomainError maps engine errors to HTTP statuses. Unknown activities
// are missing reference data and report as 404; field-level problems are 400.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Calculation failed", err)
	}
}

// writeValidationError reports the first failed field of a validator error.
func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("Field validation failed on '%s' rule", fe.Tag()),
			Field: fe.Field(),
		})
		return
	}
	writeError(w, http.StatusBadRequest, "Invalid request", err)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil && status >= http.StatusInternalServerError {
		resp.Error = message + ": " + err.Error()
	}
	writeJSON(w, status, resp)
}
