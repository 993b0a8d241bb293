package models

import "strconv"

// Assignment is one committed session. Day and Period are copied from the
// slot at commit time so rows can be rendered without the catalog.
type Assignment struct {
	GroupID    string `json:"group_id"`
	SubjectID  string `json:"subject_id"`
	TeacherID  string `json:"teacher_id"`
	RoomID     string `json:"room_id"`
	TimeSlotID string `json:"timeslot_id"`
	Day        string `json:"day"`
	Period     int    `json:"period"`
}

// Row converts the assignment into the output row contract.
func (a Assignment) Row() ScheduleRow {
	return ScheduleRow{
		GroupID:    a.GroupID,
		TimeSlotID: a.TimeSlotID,
		Day:        a.Day,
		Period:     a.Period,
		SubjectID:  a.SubjectID,
		TeacherID:  a.TeacherID,
		RoomID:     a.RoomID,
	}
}

// ScheduleRow is the tabular output consumed by exporters and grids.
type ScheduleRow struct {
	GroupID    string `db:"group_id" json:"group_id"`
	TimeSlotID string `db:"timeslot_id" json:"timeslot_id"`
	Day        string `db:"day" json:"day"`
	Period     int    `db:"period" json:"period"`
	SubjectID  string `db:"subject_id" json:"subject_id"`
	TeacherID  string `db:"teacher_id" json:"teacher_id"`
	RoomID     string `db:"room_id" json:"room_id"`
}

// ScheduleRowColumns is the column order of exported rows.
var ScheduleRowColumns = []string{"group_id", "timeslot_id", "day", "period", "subject_id", "teacher_id", "room_id"}

// Record flattens the row in ScheduleRowColumns order.
func (r ScheduleRow) Record() map[string]string {
	return map[string]string{
		"group_id":    r.GroupID,
		"timeslot_id": r.TimeSlotID,
		"day":         r.Day,
		"period":      strconv.Itoa(r.Period),
		"subject_id":  r.SubjectID,
		"teacher_id":  r.TeacherID,
		"room_id":     r.RoomID,
	}
}
