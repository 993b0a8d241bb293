package scheduler

import (
	"errors"
	"fmt"
)

// Catalog construction errors.
var (
	ErrDuplicateID       = errors.New("duplicate id")
	ErrDuplicateTeaching = errors.New("subject mapped to more than one teacher")
	ErrInvalidRecord     = errors.New("invalid record")
)

// Registration resolution errors.
var (
	ErrUnknownSubject = errors.New("unknown subject")
	ErrNoTeaching     = errors.New("subject has no teaching row")
	ErrUnknownTeacher = errors.New("unknown teacher")
	ErrUnknownGroup   = errors.New("unknown student group")
)

// ErrSlotTaken is returned by Tracker.Reserve when any key is already busy.
var ErrSlotTaken = errors.New("slot already taken")

// ResolutionError reports a registration whose subject, teacher or group
// could not be resolved against the catalog. It aborts that registration only.
type ResolutionError struct {
	Index     int
	GroupID   string
	SubjectID string
	TeacherID string
	Err       error
}

func (e *ResolutionError) Error() string {
	if e.TeacherID != "" {
		return fmt.Sprintf("registration %d (group %s, subject %s, teacher %s): %v", e.Index, e.GroupID, e.SubjectID, e.TeacherID, e.Err)
	}
	return fmt.Sprintf("registration %d (group %s, subject %s): %v", e.Index, e.GroupID, e.SubjectID, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
