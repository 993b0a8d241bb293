package scheduler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// Outcome reports how one registration was served.
type Outcome struct {
	Index        int                 `json:"index"`
	Registration models.Registration `json:"registration"`
	TeacherID    string              `json:"teacher_id,omitempty"`
	Required     int                 `json:"required"`
	Placed       int                 `json:"placed"`
	Err          error               `json:"-"`
}

// Shortfall is the number of sessions that could not be placed.
func (o Outcome) Shortfall() int {
	if o.Err != nil || o.Placed >= o.Required {
		return 0
	}
	return o.Required - o.Placed
}

// Result is the output of one allocation run.
type Result struct {
	Assignments []models.Assignment
	Outcomes    []Outcome
	Candidates  []models.TimeSlot
}

// Rows returns the assignments as output rows in commit order.
func (r *Result) Rows() []models.ScheduleRow {
	rows := make([]models.ScheduleRow, 0, len(r.Assignments))
	for _, a := range r.Assignments {
		rows = append(rows, a.Row())
	}
	return rows
}

// Shortfalls lists resolved registrations that received fewer sessions than required.
func (r *Result) Shortfalls() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Shortfall() > 0 {
			out = append(out, o)
		}
	}
	return out
}

// Failures lists registrations aborted by a ResolutionError.
func (r *Result) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Placed counts assignments of subjectID for groupID.
func (r *Result) Placed(groupID, subjectID string) int {
	count := 0
	for _, a := range r.Assignments {
		if a.GroupID == groupID && a.SubjectID == subjectID {
			count++
		}
	}
	return count
}

// Allocator runs the greedy first-fit search. It holds no per-run state and
// may be shared; the slot orderer factory is called once per run.
type Allocator struct {
	newOrder func() SlotOrderer
	logger   *zap.Logger
}

// NewAllocator builds an allocator. newOrder may be nil, in which case every
// run uses a time-seeded TieredShuffle.
func NewAllocator(newOrder func() SlotOrderer, logger *zap.Logger) *Allocator {
	if newOrder == nil {
		newOrder = func() SlotOrderer { return NewTieredShuffle(nil) }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{newOrder: newOrder, logger: logger}
}

// Run allocates registrations against catalog with a fresh tracker and a
// freshly generated slot order.
func (a *Allocator) Run(ctx context.Context, catalog *Catalog, registrations []models.Registration) (*Result, error) {
	candidates := a.newOrder().Order(catalog.TimeSlots())
	return Allocate(ctx, registrations, catalog, NewTracker(), candidates, a.logger)
}

// Allocate processes registrations in order. For each one it walks candidates
// and, per slot, the rooms in catalog order, committing the first room where
// teacher, room and group are all free, until the required session count is
// met or the candidates run out. Nothing is ever undone.
//
// Resolution failures abort only the affected registration and are recorded
// on its Outcome. Cancellation is checked between registrations; the partial
// result is returned with ctx.Err().
func Allocate(
	ctx context.Context,
	registrations []models.Registration,
	catalog *Catalog,
	tracker *Tracker,
	candidates []models.TimeSlot,
	logger *zap.Logger,
) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	result := &Result{
		Assignments: make([]models.Assignment, 0),
		Outcomes:    make([]Outcome, 0, len(registrations)),
		Candidates:  candidates,
	}
	rooms := catalog.Rooms()

	for i, reg := range registrations {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		outcome := Outcome{Index: i, Registration: reg}
		teacher, required, err := resolve(catalog, i, reg)
		if err != nil {
			outcome.Err = err
			result.Outcomes = append(result.Outcomes, outcome)
			logger.Warn("registration not resolved", zap.Error(err))
			continue
		}
		outcome.TeacherID = teacher.ID
		outcome.Required = required
		leader := teacher.IsLeader()

		for _, slot := range candidates {
			if outcome.Placed >= required {
				break
			}
			if leader && slot.IsLeaderMeeting() {
				continue
			}
			for _, room := range rooms {
				if err := tracker.Reserve(teacher.ID, room.ID, reg.GroupID, slot.ID); err != nil {
					continue
				}
				result.Assignments = append(result.Assignments, models.Assignment{
					GroupID:    reg.GroupID,
					SubjectID:  reg.SubjectID,
					TeacherID:  teacher.ID,
					RoomID:     room.ID,
					TimeSlotID: slot.ID,
					Day:        slot.Day,
					Period:     slot.Period,
				})
				outcome.Placed++
				break
			}
		}

		if outcome.Placed < required {
			logger.Debug("registration short of sessions",
				zap.String("group_id", reg.GroupID),
				zap.String("subject_id", reg.SubjectID),
				zap.Int("required", required),
				zap.Int("placed", outcome.Placed))
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result, nil
}

func resolve(catalog *Catalog, index int, reg models.Registration) (models.Teacher, int, error) {
	fail := func(teacherID string, err error) (models.Teacher, int, error) {
		return models.Teacher{}, 0, &ResolutionError{
			Index:     index,
			GroupID:   reg.GroupID,
			SubjectID: reg.SubjectID,
			TeacherID: teacherID,
			Err:       err,
		}
	}

	subject, ok := catalog.Subject(reg.SubjectID)
	if !ok {
		return fail("", ErrUnknownSubject)
	}
	teacherID, ok := catalog.TeacherFor(reg.SubjectID)
	if !ok {
		return fail("", ErrNoTeaching)
	}
	teacher, ok := catalog.Teacher(teacherID)
	if !ok {
		return fail(teacherID, ErrUnknownTeacher)
	}
	if _, ok := catalog.Group(reg.GroupID); !ok {
		return fail(teacherID, ErrUnknownGroup)
	}
	return teacher, subject.RequiredSessions(), nil
}

// IsResolutionError reports whether err is a registration resolution failure.
func IsResolutionError(err error) bool {
	var target *ResolutionError
	return errors.As(err, &target)
}
