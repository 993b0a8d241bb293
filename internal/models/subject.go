package models

// Subject carries the weekly hour requirement of a course.
type Subject struct {
	ID       string  `db:"subject_id" json:"subject_id" validate:"required"`
	Theory   float64 `db:"theory" json:"theory" validate:"min=0"`
	Practice float64 `db:"practice" json:"practice" validate:"min=0"`
}

// RequiredSessions is theory plus practice, truncated to whole sessions.
func (s Subject) RequiredSessions() int {
	total := s.Theory + s.Practice
	if total <= 0 {
		return 0
	}
	return int(total)
}

// Teaching maps a subject to the teacher responsible for it.
type Teaching struct {
	SubjectID string `db:"subject_id" json:"subject_id" validate:"required"`
	TeacherID string `db:"teacher_id" json:"teacher_id" validate:"required"`
}

// Registration is the demand of one student group for one subject. Ids are
// not validated at load time; the allocator reports unresolved ones per row.
type Registration struct {
	SubjectID string `db:"subject_id" json:"subject_id"`
	GroupID   string `db:"group_id" json:"group_id"`
}
