/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract: the engine
  keeps decimals end to end, the API speaks float64 rounded to two places
  at this boundary, and internal types never leak JSON tags.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  the shared validator before touching domain logic. Validation failures
  are returned as field-level 400s.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: The domain-side aggregates these mirror
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/rv-engine/engine"
	"github.com/warp/rv-engine/store/sqlite"
	"github.com/warp/rv-engine/tasklog"
)

// =============================================================================
// ACTIVITY TIERS
// =============================================================================

// ActivityTierDTO represents one pay tier in API responses.
type ActivityTierDTO struct {
	ID              string  `json:"id"`
	ActivityName    string  `json:"activityName"`
	TierLabel       string  `json:"tierLabel"`
	UnitValue       float64 `json:"unitValue"`
	MinProductivity float64 `json:"minProductivity"`
	Unit            string  `json:"unit"`
	CreatedAt       string  `json:"createdAt,omitempty"`
	UpdatedAt       string  `json:"updatedAt,omitempty"`
}

// SaveActivityTierRequest creates or updates a tier.
type SaveActivityTierRequest struct {
	ActivityName    string  `json:"activityName" validate:"required"`
	TierLabel       string  `json:"tierLabel" validate:"required"`
	UnitValue       float64 `json:"unitValue" validate:"gte=0"`
	MinProductivity float64 `json:"minProductivity" validate:"gte=0"`
	Unit            string  `json:"unit"`
}

// =============================================================================
// KPIS
// =============================================================================

// KPIDTO represents a KPI definition in API responses.
type KPIDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	TargetValue float64 `json:"targetValue"`
	Weight      float64 `json:"weight"`
	Shift       string  `json:"shift"`
	Role        string  `json:"role"`
	CreatedAt   string  `json:"createdAt,omitempty"`
	UpdatedAt   string  `json:"updatedAt,omitempty"`
}

// SaveKPIRequest creates or updates a KPI definition.
type SaveKPIRequest struct {
	Name        string  `json:"name" validate:"required"`
	TargetValue float64 `json:"targetValue" validate:"gte=0"`
	Weight      float64 `json:"weight" validate:"gte=0"`
	Shift       string  `json:"shift" validate:"required,oneof=Morning Afternoon Night General"`
	Role        string  `json:"role" validate:"required"`
}

// =============================================================================
// USERS
// =============================================================================

// UserDTO represents a user in API responses.
type UserDTO struct {
	ID        string `json:"id"`
	CPF       string `json:"cpf"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Shift     string `json:"shift"`
	Profile   string `json:"profile"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// SaveUserRequest creates or updates a user.
type SaveUserRequest struct {
	CPF     string `json:"cpf" validate:"required,len=11,numeric"`
	Name    string `json:"name" validate:"required"`
	Role    string `json:"role" validate:"required"`
	Shift   string `json:"shift" validate:"required,oneof=Morning Afternoon Night"`
	Profile string `json:"profile" validate:"omitempty,oneof=Operator Supervisor"`
	Active  *bool  `json:"active,omitempty"`
}

// LoginRequest is the CPF-only identity lookup.
type LoginRequest struct {
	CPF string `json:"cpf" validate:"required,len=11,numeric"`
}

// =============================================================================
// CALCULATION
// =============================================================================

// ActivityInputDTO is one multi-activity item in a calculation request.
type ActivityInputDTO struct {
	ActivityName     string  `json:"activityName" validate:"required"`
	QuantityProduced float64 `json:"quantityProduced" validate:"gte=0"`
	HoursWorked      float64 `json:"hoursWorked" validate:"gt=0"`
}

// CalculateRequest mirrors engine.CalculationRequest on the wire.
type CalculateRequest struct {
	Role           string `json:"role" validate:"required"`
	Shift          string `json:"shift" validate:"required,oneof=Morning Afternoon Night"`
	ReferenceMonth int    `json:"referenceMonth" validate:"omitempty,min=1,max=12"`

	ActivityName     string  `json:"activityName,omitempty"`
	QuantityProduced float64 `json:"quantityProduced,omitempty" validate:"gte=0"`
	HoursWorked      float64 `json:"hoursWorked,omitempty" validate:"gte=0"`

	MultipleActivities []ActivityInputDTO `json:"multipleActivities,omitempty" validate:"omitempty,dive"`

	ValidTaskCount *int `json:"validTaskCount,omitempty" validate:"omitempty,gte=0"`

	AchievedKPINames []string `json:"achievedKPINames,omitempty"`
	ExtraAmount      float64  `json:"extraAmount,omitempty" validate:"gte=0"`
}

// ActivityDetailDTO is one per-activity breakdown entry.
type ActivityDetailDTO struct {
	Name             string  `json:"name"`
	ProductivityRate float64 `json:"productivityRate"`
	TierLabel        string  `json:"tierLabel"`
	Value            float64 `json:"value"`
	Unit             string  `json:"unit"`
}

// CalculateResponse mirrors engine.CalculationResult on the wire.
// All monetary values are rounded to two places here, and only here.
type CalculateResponse struct {
	Strategy          string  `json:"strategy"`
	ActivitySubtotal  float64 `json:"activitySubtotal"`
	KPIBonus          float64 `json:"kpiBonus"`
	ExtraAmount       float64 `json:"extraAmount"`
	TotalRemuneration float64 `json:"totalRemuneration"`

	AchievedKPINames []string `json:"achievedKPINames"`

	Activities []ActivityDetailDTO `json:"activities,omitempty"`

	ValidTaskCount *int     `json:"validTaskCount,omitempty"`
	TaskValue      *float64 `json:"taskValue,omitempty"`

	ReferenceMonth int     `json:"referenceMonth"`
	WorkingDays    int     `json:"workingDays"`
	DailyKPIValue  float64 `json:"dailyKPIValue"`
}

// =============================================================================
// LAUNCHES AND RV RECORDS
// =============================================================================

// CreateLaunchRequest records one calculation in the launch history.
type CreateLaunchRequest struct {
	UserCPF    string `json:"userCpf" validate:"required,len=11,numeric"`
	LaunchDate string `json:"launchDate" validate:"required,datetime=2006-01-02"`

	CalculateRequest

	ActorName string `json:"actorName,omitempty"`
}

// LaunchDTO is one launch history entry.
type LaunchDTO struct {
	ID       string `json:"id"`
	UserCPF  string `json:"userCpf"`
	UserName string `json:"userName"`
	Role     string `json:"role"`
	Shift    string `json:"shift"`

	ActivityName     string             `json:"activityName,omitempty"`
	QuantityProduced float64            `json:"quantityProduced,omitempty"`
	HoursWorked      float64            `json:"hoursWorked,omitempty"`
	ExtraAmount      float64            `json:"extraAmount"`
	AchievedKPINames []string           `json:"achievedKPINames"`
	Activities       []ActivityInputDTO `json:"multipleActivities,omitempty"`
	ActorName        string             `json:"actorName,omitempty"`
	ValidTaskCount   *int               `json:"validTaskCount,omitempty"`
	ReferenceMonth   int                `json:"referenceMonth,omitempty"`

	ActivitySubtotal  float64 `json:"activitySubtotal"`
	KPIBonus          float64 `json:"kpiBonus"`
	TotalRemuneration float64 `json:"totalRemuneration"`
	ProductivityRate  float64 `json:"productivityRate,omitempty"`
	TierLabel         string  `json:"tierLabel,omitempty"`

	LaunchDate string `json:"launchDate"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// CreateRecordRequest persists one daily RV record.
type CreateRecordRequest struct {
	UserCPF    string `json:"userCpf" validate:"required,len=11,numeric"`
	LaunchDate string `json:"launchDate" validate:"required,datetime=2006-01-02"`

	ActivitySubtotal  float64 `json:"activitySubtotal" validate:"gte=0"`
	KPIBonus          float64 `json:"kpiBonus" validate:"gte=0"`
	TotalRemuneration float64 `json:"totalRemuneration" validate:"gte=0"`

	// Details is the full calculation breakdown, stored verbatim.
	Details any `json:"details,omitempty"`
}

// RecordDTO is one persisted RV record.
type RecordDTO struct {
	ID                string  `json:"id"`
	UserCPF           string  `json:"userCpf"`
	UserName          string  `json:"userName"`
	Role              string  `json:"role"`
	Shift             string  `json:"shift"`
	LaunchDate        string  `json:"launchDate"`
	ActivitySubtotal  float64 `json:"activitySubtotal"`
	KPIBonus          float64 `json:"kpiBonus"`
	TotalRemuneration float64 `json:"totalRemuneration"`
	Details           any     `json:"details,omitempty"`
	CreatedAt         string  `json:"createdAt,omitempty"`
}

// SummaryDTO aggregates a user's month.
type SummaryDTO struct {
	User              UserDTO        `json:"user"`
	Month             int            `json:"month"`
	Year              int            `json:"year"`
	TotalLaunches     int            `json:"totalLaunches"`
	TotalRemuneration float64        `json:"totalRemuneration"`
	TotalActivities   float64        `json:"totalActivities"`
	TotalKPIBonus     float64        `json:"totalKpiBonus"`
	KPICounts         map[string]int `json:"kpiCounts"`
	Launches          []LaunchDTO    `json:"launches"`
}

// =============================================================================
// TASK-LOG CLASSIFICATION
// =============================================================================

// ClassifyResponse reports a task-log classification.
type ClassifyResponse struct {
	ActorName      string           `json:"actorName"`
	ValidTaskCount int              `json:"validTaskCount"`
	TaskValue      float64          `json:"taskValue"`
	Types          []TypeCountDTO   `json:"types"`
	ValidByType    []ValidByTypeDTO `json:"validByType"`
	FileHash       string           `json:"fileHash"`
	EventCount     int              `json:"eventCount"`
	FromCache      bool             `json:"fromCache"`
}

// TypeCountDTO is the full per-type tally, including invalid rows.
type TypeCountDTO struct {
	TaskType string `json:"taskType"`
	Valid    int    `json:"valid"`
	Invalid  int    `json:"invalid"`
	Total    int    `json:"total"`
}

// ValidByTypeDTO lists types with at least one valid task, alongside the
// type's reporting target from the reference table.
type ValidByTypeDTO struct {
	TaskType      string `json:"taskType"`
	ValidCount    int    `json:"validCount"`
	TargetSeconds int    `json:"targetSeconds"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

// round2 converts a decimal to a two-place float for presentation. This is
// the only place monetary values lose precision.
func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func toTierDTO(t engine.ActivityTier) ActivityTierDTO {
	unitValue, _ := t.UnitValue.Float64()
	minProd, _ := t.MinProductivity.Float64()
	return ActivityTierDTO{
		ID:              t.ID,
		ActivityName:    t.ActivityName,
		TierLabel:       t.TierLabel,
		UnitValue:       unitValue,
		MinProductivity: minProd,
		Unit:            t.Unit,
		CreatedAt:       formatTime(t.CreatedAt),
		UpdatedAt:       formatTime(t.UpdatedAt),
	}
}

func toKPIDTO(k engine.KPIDefinition) KPIDTO {
	target, _ := k.TargetValue.Float64()
	weight, _ := k.Weight.Float64()
	return KPIDTO{
		ID:          k.ID,
		Name:        k.Name,
		TargetValue: target,
		Weight:      weight,
		Shift:       string(k.Shift),
		Role:        k.Role,
		CreatedAt:   formatTime(k.CreatedAt),
		UpdatedAt:   formatTime(k.UpdatedAt),
	}
}

func toUserDTO(u sqlite.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		CPF:       u.CPF,
		Name:      u.Name,
		Role:      u.Role,
		Shift:     string(u.Shift),
		Profile:   string(u.Profile),
		Active:    u.Active,
		CreatedAt: formatTime(u.CreatedAt),
	}
}

func toCalculateResponse(res engine.CalculationResult) CalculateResponse {
	out := CalculateResponse{
		Strategy:          res.Strategy.String(),
		ActivitySubtotal:  round2(res.ActivitySubtotal),
		KPIBonus:          round2(res.KPIBonus),
		ExtraAmount:       round2(res.ExtraAmount),
		TotalRemuneration: round2(res.TotalRemuneration),
		AchievedKPINames:  res.AchievedKPINames,
		ReferenceMonth:    int(res.KPI.ReferenceMonth),
		WorkingDays:       res.KPI.WorkingDays,
		DailyKPIValue:     round2(res.KPI.DailyKPIValue),
	}
	if out.AchievedKPINames == nil {
		out.AchievedKPINames = []string{}
	}
	for _, a := range res.Activities {
		rate, _ := a.ProductivityRate.Float64()
		out.Activities = append(out.Activities, ActivityDetailDTO{
			Name:             a.Name,
			ProductivityRate: rate,
			TierLabel:        a.TierLabel,
			Value:            round2(a.Value),
			Unit:             a.Unit,
		})
	}
	if res.Tasks != nil {
		count := res.Tasks.ValidTaskCount
		value := round2(res.Tasks.TaskValue)
		out.ValidTaskCount = &count
		out.TaskValue = &value
	}
	return out
}

func toLaunchDTO(l sqlite.Launch) LaunchDTO {
	qty, _ := l.QuantityProduced.Float64()
	hours, _ := l.HoursWorked.Float64()
	rate, _ := l.ProductivityRate.Float64()

	dto := LaunchDTO{
		ID:                l.ID,
		UserCPF:           l.UserCPF,
		UserName:          l.UserName,
		Role:              l.Role,
		Shift:             string(l.Shift),
		ActivityName:      l.ActivityName,
		QuantityProduced:  qty,
		HoursWorked:       hours,
		ExtraAmount:       round2(l.ExtraAmount),
		AchievedKPINames:  l.AchievedKPINames,
		ActorName:         l.ActorName,
		ValidTaskCount:    l.ValidTaskCount,
		ReferenceMonth:    l.ReferenceMonth,
		ActivitySubtotal:  round2(l.ActivitySubtotal),
		KPIBonus:          round2(l.KPIBonus),
		TotalRemuneration: round2(l.TotalRemuneration),
		ProductivityRate:  rate,
		TierLabel:         l.TierLabel,
		LaunchDate:        l.LaunchDate.Format("2006-01-02"),
		CreatedAt:         formatTime(l.CreatedAt),
	}
	if dto.AchievedKPINames == nil {
		dto.AchievedKPINames = []string{}
	}
	for _, a := range l.MultipleActivities {
		q, _ := decimal.NewFromString(a.QuantityProduced)
		h, _ := decimal.NewFromString(a.HoursWorked)
		qf, _ := q.Float64()
		hf, _ := h.Float64()
		dto.Activities = append(dto.Activities, ActivityInputDTO{
			ActivityName:     a.ActivityName,
			QuantityProduced: qf,
			HoursWorked:      hf,
		})
	}
	return dto
}

func toClassifyResponse(c tasklog.Classification, hash string, eventCount int, fromCache bool) ClassifyResponse {
	taskValue := engine.TaskUnitRate.Mul(decimal.NewFromInt(int64(c.TotalValid)))
	out := ClassifyResponse{
		ActorName:      c.ActorName,
		ValidTaskCount: c.TotalValid,
		TaskValue:      round2(taskValue),
		FileHash:       hash,
		EventCount:     eventCount,
		FromCache:      fromCache,
		Types:          []TypeCountDTO{},
		ValidByType:    []ValidByTypeDTO{},
	}
	for _, t := range c.Types {
		out.Types = append(out.Types, TypeCountDTO{
			TaskType: t.TaskType,
			Valid:    t.Valid,
			Invalid:  t.Invalid,
			Total:    t.Total,
		})
	}
	for _, t := range c.ValidByType() {
		out.ValidByType = append(out.ValidByType, ValidByTypeDTO{
			TaskType:      t.TaskType,
			ValidCount:    t.Valid,
			TargetSeconds: tasklog.TargetSeconds(t.TaskType),
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
