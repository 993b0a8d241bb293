package models

// Weekday codes used by the time slot table.
const (
	Monday    = "Mon"
	Tuesday   = "Tue"
	Wednesday = "Wed"
	Thursday  = "Thu"
	Friday    = "Fri"
)

// Period bounds of the school day.
const (
	FirstPeriod        = 1
	BreakPeriod        = 5
	LastPriorityPeriod = 10
	LastPeriod         = 12
)

// Leader meeting slot: leaders never teach on Tuesday period 8.
const (
	LeaderMeetingDay    = Tuesday
	LeaderMeetingPeriod = 8
)

// Weekdays lists the schedulable days in display order.
var Weekdays = []string{Monday, Tuesday, Wednesday, Thursday, Friday}

// TimeSlot is a (weekday, period) unit of schedulable time.
type TimeSlot struct {
	ID     string `db:"timeslot_id" json:"timeslot_id" validate:"required"`
	Day    string `db:"day" json:"day" validate:"required,oneof=Mon Tue Wed Thu Fri"`
	Period int    `db:"period" json:"period"`
}

// IsBreak reports whether the slot falls on the reserved break period.
func (s TimeSlot) IsBreak() bool {
	return s.Period == BreakPeriod
}

// Schedulable reports whether the slot can ever receive a session.
func (s TimeSlot) Schedulable() bool {
	return s.Period >= FirstPeriod && s.Period <= LastPeriod && !s.IsBreak()
}

// Extended reports whether the slot is in the overtime tier (periods 11-12).
func (s TimeSlot) Extended() bool {
	return s.Period > LastPriorityPeriod
}

// IsLeaderMeeting reports whether the slot is the weekly leader meeting.
func (s TimeSlot) IsLeaderMeeting() bool {
	return s.Day == LeaderMeetingDay && s.Period == LeaderMeetingPeriod
}

// DayIndex returns the zero-based position of day in Weekdays, or -1.
func DayIndex(day string) int {
	for i, d := range Weekdays {
		if d == day {
			return i
		}
	}
	return -1
}
