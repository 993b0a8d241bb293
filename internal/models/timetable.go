package models

import "time"

// TimetableRunStatus tracks the lifecycle of an allocation run.
type TimetableRunStatus string

const (
	TimetableRunPending   TimetableRunStatus = "PENDING"
	TimetableRunCompleted TimetableRunStatus = "COMPLETED"
	TimetableRunFailed    TimetableRunStatus = "FAILED"
)

// TimetableRun is a persisted allocation run header.
type TimetableRun struct {
	ID          string             `db:"id" json:"id"`
	Seed        int64              `db:"seed" json:"seed"`
	Status      TimetableRunStatus `db:"status" json:"status"`
	Fingerprint string             `db:"fingerprint" json:"fingerprint"`
	Assignments int                `db:"assignments" json:"assignments"`
	Shortfalls  int                `db:"shortfalls" json:"shortfalls"`
	Failures    int                `db:"failures" json:"failures"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
}

// TimetableAssignment is a persisted output row of a run.
type TimetableAssignment struct {
	ID    string `db:"id" json:"id"`
	RunID string `db:"run_id" json:"run_id"`
	Seq   int    `db:"seq" json:"seq"`
	ScheduleRow
}

// TimetableOutcomeRecord is a persisted registration outcome of a run.
type TimetableOutcomeRecord struct {
	RunID string `db:"run_id"`
	RegistrationOutcome
}

// TimetableView selects whose timetable is rendered.
type TimetableView string

const (
	ViewGroup   TimetableView = "group"
	ViewTeacher TimetableView = "teacher"
	ViewRoom    TimetableView = "room"
)

// Matches reports whether row belongs to target under view.
func (v TimetableView) Matches(row ScheduleRow, target string) bool {
	switch v {
	case ViewGroup:
		return row.GroupID == target
	case ViewTeacher:
		return row.TeacherID == target
	case ViewRoom:
		return row.RoomID == target
	default:
		return false
	}
}

// RegistrationOutcome is the serialisable report of one registration.
type RegistrationOutcome struct {
	Index     int    `db:"registration_index" json:"index"`
	GroupID   string `db:"group_id" json:"group_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
	TeacherID string `db:"teacher_id" json:"teacher_id,omitempty"`
	Required  int    `db:"required" json:"required"`
	Placed    int    `db:"placed" json:"placed"`
	Shortfall int    `db:"shortfall" json:"shortfall"`
	Code      string `db:"code" json:"code,omitempty"`
	Error     string `db:"reason" json:"error,omitempty"`
}

// DisplayNames maps ids to the names shown in grids and exports.
type DisplayNames struct {
	Teachers map[string]string `json:"teachers"`
	Rooms    map[string]string `json:"rooms"`
	Groups   map[string]string `json:"groups"`
	Leaders  map[string]bool   `json:"leaders"`
}

// Teacher returns the teacher's display name or the id.
func (n DisplayNames) Teacher(id string) string {
	return lookupName(n.Teachers, id)
}

// Room returns the room's display name or the id.
func (n DisplayNames) Room(id string) string {
	return lookupName(n.Rooms, id)
}

// Group returns the group's display name or the id.
func (n DisplayNames) Group(id string) string {
	return lookupName(n.Groups, id)
}

func lookupName(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}

// TimetableResult is everything kept about one run: the header, the rows in
// commit order, per registration outcomes and the names needed to render.
type TimetableResult struct {
	Run      TimetableRun          `json:"run"`
	Rows     []ScheduleRow         `json:"rows"`
	Outcomes []RegistrationOutcome `json:"outcomes"`
	Names    DisplayNames          `json:"names"`
	Error    string                `json:"error,omitempty"`
}
