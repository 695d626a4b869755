/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Field names
  follow the snake_case contract existing frontends already use
  (user_email, fte_value, assignment_date, ...).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

NUMBERS:
  The engine computes with decimal.Decimal. DTOs carry float64 so clients
  receive plain JSON numbers; conversion happens only here.

VALIDATION:
  Request types carry `validate` tags checked by validate.go before any
  domain call. Domain rules (weekend dates, load ranges per model) are
  enforced again by the capacity package.

SEE ALSO:
  - handlers.go: Uses these types
  - validate.go: Tag validation and error translation
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/capacity"
)

// =============================================================================
// ALLOCATIONS
// =============================================================================

type AllocationDTO struct {
	ID                   string  `json:"id"`
	UserID               string  `json:"user_id"`
	UserName             string  `json:"user_name,omitempty"`
	ProjectKey           string  `json:"project_key"`
	ProjectName          string  `json:"project_name,omitempty"`
	Role                 string  `json:"role,omitempty"`
	StartDate            string  `json:"start_date"`
	EndDate              *string `json:"end_date"`
	AllocationPercentage float64 `json:"allocation_percentage"`
	CapacityModel        string  `json:"capacity_model"`
	Notes                string  `json:"notes,omitempty"`
}

type CreateAllocationRequest struct {
	UserID               string   `json:"user_id" validate:"required"`
	UserName             string   `json:"user_name"`
	ProjectKey           string   `json:"project_key" validate:"required"`
	ProjectName          string   `json:"project_name"`
	Role                 string   `json:"role" validate:"max=100"`
	StartDate            string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate              string   `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	AllocationPercentage *float64 `json:"allocation_percentage" validate:"required,gte=0,lte=100"`
	Notes                string   `json:"notes"`
}

// UpdateAllocationRequest changes only the fields present. An empty
// end_date makes the allocation open-ended.
type UpdateAllocationRequest struct {
	Role                 *string  `json:"role" validate:"omitempty,max=100"`
	StartDate            *string  `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate              *string  `json:"end_date"` // parsed by the handler, "" clears
	AllocationPercentage *float64 `json:"allocation_percentage" validate:"omitempty,gte=0,lte=100"`
	Notes                *string  `json:"notes"`
}

// =============================================================================
// ABSENCES
// =============================================================================

type AbsenceDTO struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name,omitempty"`
	AbsenceType string `json:"absence_type"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Description string `json:"description,omitempty"`
	IsApproved  bool   `json:"is_approved"`
}

type CreateAbsenceRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	UserName    string `json:"user_name"`
	AbsenceType string `json:"absence_type" validate:"required,oneof=vacation sick_leave holiday other"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Description string `json:"description"`
	IsApproved  bool   `json:"is_approved"`
}

type UpdateAbsenceRequest struct {
	AbsenceType *string `json:"absence_type" validate:"omitempty,oneof=vacation sick_leave holiday other"`
	StartDate   *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate     *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Description *string `json:"description"`
	IsApproved  *bool   `json:"is_approved"`
}

// =============================================================================
// FTE ASSIGNMENTS
// =============================================================================

type FTEDTO struct {
	ID              string  `json:"id"`
	UserEmail       string  `json:"user_email"`
	UserDisplayName string  `json:"user_display_name,omitempty"`
	ProjectKey      string  `json:"project_key"`
	ProjectName     string  `json:"project_name,omitempty"`
	AssignmentDate  string  `json:"assignment_date"`
	FTEValue        float64 `json:"fte_value"`
	HoursPerDay     float64 `json:"hours_per_day"`
}

type CreateFTERequest struct {
	UserEmail       string   `json:"user_email" validate:"required"`
	UserDisplayName string   `json:"user_display_name"`
	ProjectKey      string   `json:"project_key" validate:"required"`
	ProjectName     string   `json:"project_name"`
	AssignmentDate  string   `json:"assignment_date" validate:"required,datetime=2006-01-02"`
	FTEValue        *float64 `json:"fte_value" validate:"required,gte=0,lte=1"`
}

type FTERangeRequest struct {
	UserEmail       string   `json:"user_email" validate:"required"`
	UserDisplayName string   `json:"user_display_name"`
	ProjectKey      string   `json:"project_key" validate:"required"`
	ProjectName     string   `json:"project_name"`
	StartDate       string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	FTEValue        *float64 `json:"fte_value" validate:"required,gte=0,lte=1"`
}

// FTEBulkRequest items are validated one by one; a bad item fails alone.
type FTEBulkRequest struct {
	Assignments []CreateFTERequest `json:"assignments" validate:"required,min=1"`
}

type UpdateFTERequest struct {
	FTEValue        *float64 `json:"fte_value" validate:"omitempty,gte=0,lte=1"`
	AssignmentDate  *string  `json:"assignment_date" validate:"omitempty,datetime=2006-01-02"`
	UserDisplayName *string  `json:"user_display_name"`
	ProjectName     *string  `json:"project_name"`
}

type RangeFailureDTO struct {
	Date  string `json:"date"`
	Error string `json:"error"`
}

// RangeResultDTO reports a range or bulk upsert.
type RangeResultDTO struct {
	Created int               `json:"created"`
	Updated int               `json:"updated"`
	Skipped []string          `json:"skipped"`
	Failed  []RangeFailureDTO `json:"failed"`
}

// =============================================================================
// DIRECTORY
// =============================================================================

type ProjectDTO struct {
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	ProjectType string  `json:"project_type,omitempty"`
	LeadEmail   string  `json:"lead_email,omitempty"`
	AvatarURL   string  `json:"avatar_url,omitempty"`
	IsActive    bool    `json:"is_active"`
	LastSynced  *string `json:"last_synced"`
}

type UserDTO struct {
	AccountID       string  `json:"account_id"`
	Email           string  `json:"email"`
	DisplayName     string  `json:"display_name"`
	AvatarURL       string  `json:"avatar_url,omitempty"`
	Timezone        string  `json:"timezone"`
	WorkHoursPerDay float64 `json:"work_hours_per_day"`
	IsActive        bool    `json:"is_active"`
	LastSynced      *string `json:"last_synced"`
}

type UpdateUserRequest struct {
	Timezone        *string  `json:"timezone" validate:"omitempty,min=1"`
	WorkHoursPerDay *float64 `json:"work_hours_per_day" validate:"omitempty,gt=0,lte=24"`
}

type SyncLogDTO struct {
	ID               string  `json:"id"`
	SyncType         string  `json:"sync_type"`
	Status           string  `json:"status"`
	RecordsProcessed int     `json:"records_processed"`
	RecordsCreated   int     `json:"records_created"`
	RecordsUpdated   int     `json:"records_updated"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	StartedAt        string  `json:"started_at"`
	CompletedAt      *string `json:"completed_at"`
}

type HealthResponse struct {
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp"`
	JiraConfigured  bool   `json:"jira_configured"`
	TempoConfigured bool   `json:"tempo_configured"`
}

// =============================================================================
// CALENDAR / ANALYSIS
// =============================================================================

type SubjectLoadDTO struct {
	UserID        string  `json:"user_id"`
	UserName      string  `json:"user_name,omitempty"`
	TotalLoad     float64 `json:"total_load"`
	Overloaded    bool    `json:"overloaded"`
	Underutilized bool    `json:"underutilized"`
}

type CalendarDayDTO struct {
	Date        string           `json:"date"`
	Allocations []AllocationDTO  `json:"allocations"`
	Absences    []AbsenceDTO     `json:"absences"`
	Loads       []SubjectLoadDTO `json:"loads"`
}

type CalendarResponse struct {
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`
	Calendar  []CalendarDayDTO `json:"calendar"`
}

type FTECalendarDayDTO struct {
	Date        string           `json:"date"`
	Assignments []FTEDTO         `json:"assignments"`
	Loads       []SubjectLoadDTO `json:"loads"`
}

type FTECalendarResponse struct {
	StartDate string              `json:"start_date"`
	EndDate   string              `json:"end_date"`
	Calendar  []FTECalendarDayDTO `json:"calendar"`
}

type FindingDTO struct {
	UserID      string          `json:"user_id"`
	UserName    string          `json:"user_name,omitempty"`
	Date        string          `json:"date"`
	TotalLoad   float64         `json:"total_allocation"`
	Amount      float64         `json:"amount"`
	Suggestion  string          `json:"suggestion"`
	Allocations []AllocationDTO `json:"allocations"`
}

type AnalysisSummaryDTO struct {
	TotalOverloadedDays    int `json:"total_overloaded_days"`
	TotalUnderutilizedDays int `json:"total_underutilized_days"`
}

type AnalysisResponse struct {
	StartDate     string             `json:"start_date"`
	EndDate       string             `json:"end_date"`
	CapacityModel string             `json:"capacity_model"`
	Overloaded    []FindingDTO       `json:"overloaded"`
	Underutilized []FindingDTO       `json:"underutilized"`
	Summary       AnalysisSummaryDTO `json:"summary"`
}

// =============================================================================
// TIME VERIFICATION
// =============================================================================

type DayUtilizationDTO struct {
	Date               string  `json:"date"`
	HoursSpent         float64 `json:"hours_spent"`
	FTE                float64 `json:"fte"`
	CapacityHours      float64 `json:"capacity_hours"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

type UserUtilizationDTO struct {
	UserEmail           string              `json:"user_email"`
	UserName            string              `json:"user_name"`
	DailyDetails        []DayUtilizationDTO `json:"daily_details"`
	TotalTimeSpentHours float64             `json:"total_time_spent_hours"`
	TotalCapacityHours  float64             `json:"total_capacity_hours"`
	UtilizationPercent  float64             `json:"utilization_percent"`
	UnplacedHours       float64             `json:"unplaced_hours"`
	UnplacedDates       []string            `json:"unplaced_dates,omitempty"`
}

type VerificationResponse struct {
	StartDate    string               `json:"start_date"`
	EndDate      string               `json:"end_date"`
	WorkdayHours float64              `json:"workday_hours"`
	Results      []UserUtilizationDTO `json:"results"`
}

type ProjectTimeResponse struct {
	ProjectKey string             `json:"project_key"`
	StartDate  string             `json:"start_date"`
	EndDate    string             `json:"end_date"`
	TotalHours float64            `json:"total_hours"`
	UserTime   map[string]float64 `json:"user_time"`
	Worklogs   map[string]int     `json:"worklog_counts"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// round2 trims float noise for display; the engine itself stays exact.
func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func timePtr(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func toAllocationDTO(a capacity.Allocation) AllocationDTO {
	dto := AllocationDTO{
		ID:                   a.ID,
		UserID:               string(a.SubjectID),
		UserName:             a.SubjectName,
		ProjectKey:           a.ProjectKey,
		ProjectName:          a.ProjectName,
		Role:                 a.Role,
		StartDate:            a.Start.String(),
		AllocationPercentage: a.Load.InexactFloat64(),
		CapacityModel:        string(a.Model),
		Notes:                a.Notes,
	}
	if a.End != nil {
		end := a.End.String()
		dto.EndDate = &end
	}
	return dto
}

func toAllocationDTOs(as []capacity.Allocation) []AllocationDTO {
	out := make([]AllocationDTO, len(as))
	for i, a := range as {
		out[i] = toAllocationDTO(a)
	}
	return out
}

func toAbsenceDTO(a capacity.Absence) AbsenceDTO {
	return AbsenceDTO{
		ID:          a.ID,
		UserID:      string(a.SubjectID),
		UserName:    a.SubjectName,
		AbsenceType: string(a.Type),
		StartDate:   a.Start.String(),
		EndDate:     a.End.String(),
		Description: a.Description,
		IsApproved:  a.Approved,
	}
}

func toAbsenceDTOs(as []capacity.Absence) []AbsenceDTO {
	out := make([]AbsenceDTO, len(as))
	for i, a := range as {
		out[i] = toAbsenceDTO(a)
	}
	return out
}

func toFTEDTO(a capacity.FTEAssignment, workday decimal.Decimal) FTEDTO {
	return FTEDTO{
		ID:              a.ID,
		UserEmail:       string(a.SubjectID),
		UserDisplayName: a.SubjectName,
		ProjectKey:      a.ProjectKey,
		ProjectName:     a.ProjectName,
		AssignmentDate:  a.Date.String(),
		FTEValue:        a.FTE.InexactFloat64(),
		HoursPerDay:     round2(a.FTE.Mul(workday)),
	}
}

// fteFromAllocation reverses FTEAssignment.AsAllocation for calendar output.
func fteFromAllocation(a capacity.Allocation) capacity.FTEAssignment {
	return capacity.FTEAssignment{
		ID:          a.ID,
		SubjectID:   a.SubjectID,
		SubjectName: a.SubjectName,
		ProjectKey:  a.ProjectKey,
		ProjectName: a.ProjectName,
		Date:        a.Start,
		FTE:         a.Load,
	}
}

func toRangeResultDTO(r capacity.RangeResult) RangeResultDTO {
	dto := RangeResultDTO{
		Created: r.Created,
		Updated: r.Updated,
		Skipped: make([]string, len(r.Skipped)),
		Failed:  make([]RangeFailureDTO, len(r.Failed)),
	}
	for i, d := range r.Skipped {
		dto.Skipped[i] = d.String()
	}
	for i, f := range r.Failed {
		dto.Failed[i] = RangeFailureDTO{Error: f.Err.Error()}
		if !f.Date.IsZero() {
			dto.Failed[i].Date = f.Date.String()
		}
	}
	return dto
}

func toProjectDTO(p capacity.Project) ProjectDTO {
	return ProjectDTO{
		Key:         p.Key,
		Name:        p.Name,
		Description: p.Description,
		ProjectType: p.ProjectType,
		LeadEmail:   p.LeadEmail,
		AvatarURL:   p.AvatarURL,
		IsActive:    p.Active,
		LastSynced:  timePtr(p.LastSynced),
	}
}

func toUserDTO(u capacity.User) UserDTO {
	return UserDTO{
		AccountID:       u.AccountID,
		Email:           u.Email,
		DisplayName:     u.DisplayName,
		AvatarURL:       u.AvatarURL,
		Timezone:        u.Timezone,
		WorkHoursPerDay: u.WorkHoursPerDay.InexactFloat64(),
		IsActive:        u.Active,
		LastSynced:      timePtr(u.LastSynced),
	}
}

func toSyncLogDTO(l capacity.SyncLog) SyncLogDTO {
	dto := SyncLogDTO{
		ID:               l.ID,
		SyncType:         string(l.Kind),
		Status:           string(l.Status),
		RecordsProcessed: l.RecordsProcessed,
		RecordsCreated:   l.RecordsCreated,
		RecordsUpdated:   l.RecordsUpdated,
		ErrorMessage:     l.ErrorMessage,
		StartedAt:        l.StartedAt.UTC().Format(time.RFC3339),
	}
	if l.CompletedAt != nil {
		dto.CompletedAt = timePtr(*l.CompletedAt)
	}
	return dto
}

func toSubjectLoadDTOs(loads []capacity.SubjectLoad) []SubjectLoadDTO {
	out := make([]SubjectLoadDTO, len(loads))
	for i, l := range loads {
		out[i] = SubjectLoadDTO{
			UserID:        string(l.SubjectID),
			UserName:      l.SubjectName,
			TotalLoad:     l.Total.InexactFloat64(),
			Overloaded:    l.Overloaded,
			Underutilized: l.Underutilized,
		}
	}
	return out
}

func toFindingDTOs(fs []capacity.Finding) []FindingDTO {
	out := make([]FindingDTO, len(fs))
	for i, f := range fs {
		out[i] = FindingDTO{
			UserID:      string(f.SubjectID),
			UserName:    f.SubjectName,
			Date:        f.Date.String(),
			TotalLoad:   f.Total.InexactFloat64(),
			Amount:      f.Amount.InexactFloat64(),
			Suggestion:  f.Suggestion,
			Allocations: toAllocationDTOs(f.Contributions),
		}
	}
	return out
}

func toAnalysisResponse(window capacity.Period, c capacity.Classification) AnalysisResponse {
	return AnalysisResponse{
		StartDate:     window.Start.String(),
		EndDate:       window.End.String(),
		CapacityModel: string(c.Model),
		Overloaded:    toFindingDTOs(c.Overloaded),
		Underutilized: toFindingDTOs(c.Underutilized),
		Summary: AnalysisSummaryDTO{
			TotalOverloadedDays:    c.Summary.TotalOverloadedDays,
			TotalUnderutilizedDays: c.Summary.TotalUnderutilizedDays,
		},
	}
}

func toVerificationResponse(r capacity.ReconcileReport) VerificationResponse {
	resp := VerificationResponse{
		StartDate:    r.Window.Start.String(),
		EndDate:      r.Window.End.String(),
		WorkdayHours: r.WorkdayHours.InexactFloat64(),
		Results:      make([]UserUtilizationDTO, len(r.Results)),
	}
	for i, s := range r.Results {
		days := make([]DayUtilizationDTO, len(s.DailyDetails))
		for j, d := range s.DailyDetails {
			days[j] = DayUtilizationDTO{
				Date:               d.Date.String(),
				HoursSpent:         round2(d.HoursSpent),
				FTE:                d.FTE.InexactFloat64(),
				CapacityHours:      round2(d.CapacityHours),
				UtilizationPercent: round2(d.UtilizationPercent),
			}
		}
		resp.Results[i] = UserUtilizationDTO{
			UserEmail:           string(s.SubjectID),
			UserName:            s.SubjectName,
			DailyDetails:        days,
			TotalTimeSpentHours: round2(s.TotalTimeSpentHours),
			TotalCapacityHours:  round2(s.TotalCapacityHours),
			UtilizationPercent:  round2(s.UtilizationPercent),
			UnplacedHours:       round2(s.UnplacedHours),
			UnplacedDates:       s.UnplacedDates,
		}
	}
	return resp
}

func toProjectTimeResponse(r capacity.ProjectTimeReport) ProjectTimeResponse {
	resp := ProjectTimeResponse{
		ProjectKey: r.ProjectKey,
		StartDate:  r.Window.Start.String(),
		EndDate:    r.Window.End.String(),
		TotalHours: round2(r.TotalHours),
		UserTime:   make(map[string]float64, len(r.Subjects)),
		Worklogs:   make(map[string]int, len(r.Subjects)),
	}
	for _, s := range r.Subjects {
		name := s.SubjectName
		if name == "" {
			name = string(s.SubjectID)
		}
		resp.UserTime[name] += round2(s.Hours)
		resp.Worklogs[name] += s.Worklogs
	}
	return resp
}
