package models

import "strings"

// Teacher roles recognised by the scheduler.
const (
	TeacherRoleDefault = "teacher"
	TeacherRoleLeader  = "leader"
)

// Teacher represents an instructor loaded from the teacher table.
type Teacher struct {
	ID        string `db:"teacher_id" json:"teacher_id" validate:"required"`
	Prefix    string `db:"prefix" json:"prefix,omitempty"`
	FirstName string `db:"firstname" json:"firstname,omitempty"`
	LastName  string `db:"lastname" json:"lastname,omitempty"`
	Role      string `db:"role" json:"role"`
}

// DisplayName joins prefix, first and last name. Teachers without a first name
// are shown by id.
func (t Teacher) DisplayName() string {
	if strings.TrimSpace(t.FirstName) == "" {
		return t.ID
	}
	return strings.TrimSpace(t.Prefix + t.FirstName + " " + t.LastName)
}

// IsLeader reports whether the teacher holds the leader role and therefore
// attends the weekly leader meeting.
func (t Teacher) IsLeader() bool {
	return strings.EqualFold(strings.TrimSpace(t.Role), TeacherRoleLeader)
}
