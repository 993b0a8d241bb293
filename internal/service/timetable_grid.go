package service

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/pkg/export"
)

// Labels used in rendered grids.
const (
	BreakLabel         = "Break"
	LeaderMeetingLabel = "Meeting\nLeader"
	gridCorner         = "Day"
)

// PeriodLabel is the column header of period p, e.g. "1\n08.00-09.00".
func PeriodLabel(period int) string {
	start := 7 + period
	return fmt.Sprintf("%d\n%02d.00-%02d.00", period, start, start+1)
}

// PeriodLabels lists the headers for periods 1-12.
func PeriodLabels() []string {
	labels := make([]string, 0, models.LastPeriod)
	for p := models.FirstPeriod; p <= models.LastPeriod; p++ {
		labels = append(labels, PeriodLabel(p))
	}
	return labels
}

// TargetName resolves the display name of target under view.
func TargetName(names models.DisplayNames, view models.TimetableView, target string) string {
	switch view {
	case models.ViewTeacher:
		return names.Teacher(target)
	case models.ViewRoom:
		return names.Room(target)
	default:
		return names.Group(target)
	}
}

// ViewTargets lists the ids known under view, sorted.
func ViewTargets(names models.DisplayNames, view models.TimetableView) []string {
	var set map[string]string
	switch view {
	case models.ViewTeacher:
		set = names.Teachers
	case models.ViewRoom:
		set = names.Rooms
	default:
		set = names.Groups
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildGrid lays the target's rows out as weekdays by periods.
func BuildGrid(result *models.TimetableResult, view models.TimetableView, target string) export.Grid {
	grid := export.NewGrid(TargetName(result.Names, view, target), gridCorner, models.Weekdays, PeriodLabels())

	for d := range models.Weekdays {
		grid.Cells[d][models.BreakPeriod-1] = BreakLabel
	}
	if view == models.ViewTeacher && result.Names.Leaders[target] {
		grid.Cells[models.DayIndex(models.LeaderMeetingDay)][models.LeaderMeetingPeriod-1] = LeaderMeetingLabel
	}

	for _, row := range result.Rows {
		if !view.Matches(row, target) {
			continue
		}
		d := models.DayIndex(row.Day)
		if d < 0 || row.Period < models.FirstPeriod || row.Period > models.LastPeriod {
			continue
		}
		grid.Cells[d][row.Period-1] = row.SubjectID + "\n" + result.Names.Teacher(row.TeacherID) + "\n" + result.Names.Room(row.RoomID)
	}
	return grid
}

// RowsDataset converts rows to the raw export layout.
func RowsDataset(rows []models.ScheduleRow) export.Dataset {
	data := export.Dataset{Headers: models.ScheduleRowColumns, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		data.Rows = append(data.Rows, row.Record())
	}
	return data
}

// filterRows keeps rows of target under view; an empty target keeps all.
func filterRows(rows []models.ScheduleRow, view models.TimetableView, target string) []models.ScheduleRow {
	if target == "" {
		return append([]models.ScheduleRow(nil), rows...)
	}
	out := make([]models.ScheduleRow, 0)
	for _, row := range rows {
		if view.Matches(row, target) {
			out = append(out, row)
		}
	}
	return out
}

func knownTarget(names models.DisplayNames, view models.TimetableView, target string) bool {
	var set map[string]string
	switch view {
	case models.ViewTeacher:
		set = names.Teachers
	case models.ViewRoom:
		set = names.Rooms
	default:
		set = names.Groups
	}
	if len(set) == 0 {
		return true
	}
	_, ok := set[target]
	return ok
}

func parseView(raw string) models.TimetableView {
	switch models.TimetableView(raw) {
	case models.ViewTeacher, models.ViewRoom:
		return models.TimetableView(raw)
	default:
		return models.ViewGroup
	}
}
