package dto

import "github.com/noah-isme/sma-timetable/internal/models"

// GenerateTimetableRequest starts an allocation run. A missing seed falls back
// to SCHEDULER_SEED, and a zero seed draws one from the clock; the seed used
// is always reported back.
type GenerateTimetableRequest struct {
	Seed          *int64 `json:"seed"`
	Async         bool   `json:"async"`
	Persist       *bool  `json:"persist"`
	Deterministic bool   `json:"deterministic"`
}

// TimetableQuery selects the rows or grid of one view target.
type TimetableQuery struct {
	View   string `form:"view" validate:"omitempty,oneof=group teacher room"`
	Target string `form:"target" validate:"omitempty,max=64"`
}

// GridQuery requires a target since a grid shows one entity.
type GridQuery struct {
	View   string `form:"view" validate:"required,oneof=group teacher room"`
	Target string `form:"target" validate:"required,max=64"`
}

// ExportQuery selects the file format. xlsx and pdf render a grid and need a
// target; without one they fall back to the raw rows.
type ExportQuery struct {
	Format string `form:"format" validate:"required,oneof=csv xlsx pdf"`
	View   string `form:"view" validate:"omitempty,oneof=group teacher room"`
	Target string `form:"target" validate:"omitempty,max=64"`
}

// TimetableRunResponse summarises a run.
type TimetableRunResponse struct {
	Run        models.TimetableRun          `json:"run"`
	Shortfalls []models.RegistrationOutcome `json:"shortfalls"`
	Failures   []models.RegistrationOutcome `json:"failures"`
	Outcomes   []models.RegistrationOutcome `json:"outcomes,omitempty"`
	Error      string                       `json:"error,omitempty"`
}

// TimetableGridResponse is the JSON form of a weekly grid.
type TimetableGridResponse struct {
	Title   string     `json:"title"`
	View    string     `json:"view"`
	Target  string     `json:"target"`
	Days    []string   `json:"days"`
	Periods []string   `json:"periods"`
	Cells   [][]string `json:"cells"`
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}
