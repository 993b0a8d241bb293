// Command timetable_audit checks an exported timetable CSV for double bookings
// and reserved slots, and optionally diffs it against a baseline export.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/pkg/tabular"
)

type finding struct {
	Critical bool
	Kind     string
	Detail   string
}

type options struct {
	Input    string
	Baseline string
	DataDir  string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("timetable_audit", flag.ContinueOnError)
	fs.SetOutput(out)
	var opts options
	fs.StringVar(&opts.Input, "input", "output.csv", "Timetable CSV export to audit")
	fs.StringVar(&opts.Baseline, "baseline", "", "Optional earlier export to diff against")
	fs.StringVar(&opts.DataDir, "data", "", "Optional catalog directory used to check leader meetings and ids")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rows, err := loadRows(opts.Input)
	if err != nil {
		fmt.Fprintf(out, "failed to load %s: %v\n", opts.Input, err)
		return 2
	}
	findings := auditRows(rows)

	if opts.DataDir != "" {
		catalog, err := repository.NewCSVCatalogRepository(opts.DataDir).Load(context.Background())
		if err != nil {
			fmt.Fprintf(out, "failed to load catalog: %v\n", err)
			return 2
		}
		findings = append(findings, auditAgainstCatalog(rows, catalog)...)
	}

	if opts.Baseline != "" {
		baseline, err := loadRows(opts.Baseline)
		if err != nil {
			fmt.Fprintf(out, "failed to load %s: %v\n", opts.Baseline, err)
			return 2
		}
		findings = append(findings, diffRows(baseline, rows)...)
	}

	breaking := printReport(out, opts.Input, len(rows), findings)
	if breaking > 0 {
		return 1
	}
	return 0
}

func loadRows(path string) ([]models.ScheduleRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	table, err := tabular.Read(path, file)
	if err != nil {
		return nil, err
	}
	if err := table.Require(models.ScheduleRowColumns...); err != nil {
		return nil, err
	}
	rows := make([]models.ScheduleRow, 0, len(table.Rows))
	for _, r := range table.Rows {
		period, err := r.Int("period")
		if err != nil {
			return nil, err
		}
		rows = append(rows, models.ScheduleRow{
			GroupID:    r.String("group_id"),
			TimeSlotID: r.String("timeslot_id"),
			Day:        r.String("day"),
			Period:     period,
			SubjectID:  r.String("subject_id"),
			TeacherID:  r.String("teacher_id"),
			RoomID:     r.String("room_id"),
		})
	}
	return rows, nil
}

func auditRows(rows []models.ScheduleRow) []finding {
	var findings []finding
	seen := map[string]int{}
	for _, row := range rows {
		slot := models.TimeSlot{ID: row.TimeSlotID, Day: row.Day, Period: row.Period}
		if !slot.Schedulable() {
			findings = append(findings, finding{Critical: true, Kind: "reserved", Detail: fmt.Sprintf("%s %s in unschedulable slot %s", row.GroupID, row.SubjectID, row.TimeSlotID)})
		}
		for _, key := range []string{"teacher:" + row.TeacherID, "room:" + row.RoomID, "group:" + row.GroupID} {
			seen[key+"@"+row.TimeSlotID]++
		}
	}
	keys := make([]string, 0, len(seen))
	for key, n := range seen {
		if n > 1 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		findings = append(findings, finding{Critical: true, Kind: "clash", Detail: fmt.Sprintf("%s booked %d times", key, seen[key])})
	}
	return findings
}

func auditAgainstCatalog(rows []models.ScheduleRow, catalog models.CatalogData) []finding {
	teachers := make(map[string]models.Teacher, len(catalog.Teachers))
	for _, t := range catalog.Teachers {
		teachers[t.ID] = t
	}
	rooms := make(map[string]bool, len(catalog.Rooms))
	for _, r := range catalog.Rooms {
		rooms[r.ID] = true
	}
	groups := make(map[string]bool, len(catalog.Groups))
	for _, g := range catalog.Groups {
		groups[g.ID] = true
	}

	var findings []finding
	for _, row := range rows {
		teacher, ok := teachers[row.TeacherID]
		if !ok {
			findings = append(findings, finding{Critical: true, Kind: "unknown", Detail: "teacher " + row.TeacherID})
		} else if teacher.IsLeader() && (models.TimeSlot{Day: row.Day, Period: row.Period}).IsLeaderMeeting() {
			findings = append(findings, finding{Critical: true, Kind: "leader", Detail: fmt.Sprintf("%s teaches during the leader meeting", row.TeacherID)})
		}
		if !rooms[row.RoomID] {
			findings = append(findings, finding{Critical: true, Kind: "unknown", Detail: "room " + row.RoomID})
		}
		if !groups[row.GroupID] {
			findings = append(findings, finding{Critical: true, Kind: "unknown", Detail: "group " + row.GroupID})
		}
	}
	return findings
}

func diffRows(baseline, current []models.ScheduleRow) []finding {
	key := func(r models.ScheduleRow) string {
		return strings.Join([]string{r.GroupID, r.TimeSlotID, r.SubjectID, r.TeacherID, r.RoomID}, "|")
	}
	before := map[string]int{}
	for _, r := range baseline {
		before[key(r)]++
	}
	after := map[string]int{}
	for _, r := range current {
		after[key(r)]++
	}

	var findings []finding
	for _, k := range sortedKeys(after) {
		if extra := after[k] - before[k]; extra > 0 {
			findings = append(findings, finding{Kind: "added", Detail: fmt.Sprintf("%s (x%d)", k, extra)})
		}
	}
	for _, k := range sortedKeys(before) {
		if missing := before[k] - after[k]; missing > 0 {
			findings = append(findings, finding{Kind: "removed", Detail: fmt.Sprintf("%s (x%d)", k, missing)})
		}
	}
	return findings
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printReport(out io.Writer, input string, rows int, findings []finding) int {
	fmt.Fprintln(out, "Timetable Audit Report")
	fmt.Fprintln(out, "======================")
	fmt.Fprintf(out, "%s: %d rows\n", input, rows)

	breaking, optional := 0, 0
	for _, f := range findings {
		status := "DIFF"
		if f.Critical {
			status = "ERROR"
			breaking++
		} else {
			optional++
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", status, f.Kind, f.Detail)
	}
	fmt.Fprintf(out, "Breaking findings: %d, Optional diffs: %d\n", breaking, optional)
	return breaking
}
