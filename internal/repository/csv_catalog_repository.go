package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/pkg/tabular"
)

// Table file names read from a catalog directory.
const (
	TeacherFile      = "teacher.csv"
	RoomFile         = "room.csv"
	GroupFile        = "student_group.csv"
	SubjectFile      = "subject.csv"
	TimeSlotFile     = "timeslot.csv"
	TeachingFile     = "teach.csv"
	RegistrationFile = "register.csv"
)

// CSVCatalogRepository loads scheduling records from a directory of CSV tables.
type CSVCatalogRepository struct {
	dir string
}

// NewCSVCatalogRepository builds a repository rooted at dir.
func NewCSVCatalogRepository(dir string) *CSVCatalogRepository {
	return &CSVCatalogRepository{dir: dir}
}

// Load reads every table. Records keep file order.
func (r *CSVCatalogRepository) Load(ctx context.Context) (models.CatalogData, error) {
	var data models.CatalogData
	loaders := []struct {
		file string
		load func(*tabular.Table) error
	}{
		{TeacherFile, func(t *tabular.Table) (err error) { data.Teachers, err = teachersFromTable(t); return }},
		{RoomFile, func(t *tabular.Table) (err error) { data.Rooms, err = roomsFromTable(t); return }},
		{GroupFile, func(t *tabular.Table) (err error) { data.Groups, err = groupsFromTable(t); return }},
		{SubjectFile, func(t *tabular.Table) (err error) { data.Subjects, err = subjectsFromTable(t); return }},
		{TimeSlotFile, func(t *tabular.Table) (err error) { data.TimeSlots, err = timeSlotsFromTable(t); return }},
		{TeachingFile, func(t *tabular.Table) (err error) { data.Teachings, err = teachingsFromTable(t); return }},
		{RegistrationFile, func(t *tabular.Table) (err error) { data.Registrations, err = registrationsFromTable(t); return }},
	}

	for _, loader := range loaders {
		if err := ctx.Err(); err != nil {
			return models.CatalogData{}, err
		}
		table, err := r.readTable(loader.file)
		if err != nil {
			return models.CatalogData{}, err
		}
		if err := loader.load(table); err != nil {
			return models.CatalogData{}, fmt.Errorf("load %s: %w", loader.file, err)
		}
	}
	return data, nil
}

func (r *CSVCatalogRepository) readTable(name string) (*tabular.Table, error) {
	file, err := os.Open(filepath.Join(r.dir, name))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer file.Close()

	table, err := tabular.Read(name, file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return table, nil
}

func teachersFromTable(t *tabular.Table) ([]models.Teacher, error) {
	if err := t.Require("teacher_id"); err != nil {
		return nil, err
	}
	out := make([]models.Teacher, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, models.Teacher{
			ID:        row.String("teacher_id"),
			Prefix:    row.String("prefix"),
			FirstName: row.String("firstname"),
			LastName:  row.String("lastname"),
			Role:      row.StringOr("role", models.TeacherRoleDefault),
		})
	}
	return out, nil
}

func roomsFromTable(t *tabular.Table) ([]models.Room, error) {
	if err := t.Require("room_id"); err != nil {
		return nil, err
	}
	out := make([]models.Room, 0, len(t.Rows))
	for _, row := range t.Rows {
		id := row.String("room_id")
		out = append(out, models.Room{ID: id, Name: row.StringOr("room_name", id)})
	}
	return out, nil
}

func groupsFromTable(t *tabular.Table) ([]models.StudentGroup, error) {
	if err := t.Require("group_id"); err != nil {
		return nil, err
	}
	out := make([]models.StudentGroup, 0, len(t.Rows))
	for _, row := range t.Rows {
		id := row.String("group_id")
		out = append(out, models.StudentGroup{ID: id, Name: row.StringOr("group_name", id)})
	}
	return out, nil
}

func subjectsFromTable(t *tabular.Table) ([]models.Subject, error) {
	if err := t.Require("subject_id"); err != nil {
		return nil, err
	}
	out := make([]models.Subject, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, models.Subject{
			ID:       row.String("subject_id"),
			Theory:   nonNegative(row.Float("theory")),
			Practice: nonNegative(row.Float("practice")),
		})
	}
	return out, nil
}

func timeSlotsFromTable(t *tabular.Table) ([]models.TimeSlot, error) {
	if err := t.Require("timeslot_id", "day", "period"); err != nil {
		return nil, err
	}
	out := make([]models.TimeSlot, 0, len(t.Rows))
	for i, row := range t.Rows {
		period, err := row.Int("period")
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, models.TimeSlot{
			ID:     row.String("timeslot_id"),
			Day:    row.String("day"),
			Period: period,
		})
	}
	return out, nil
}

func teachingsFromTable(t *tabular.Table) ([]models.Teaching, error) {
	if err := t.Require("subject_id", "teacher_id"); err != nil {
		return nil, err
	}
	out := make([]models.Teaching, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, models.Teaching{SubjectID: row.String("subject_id"), TeacherID: row.String("teacher_id")})
	}
	return out, nil
}

func registrationsFromTable(t *tabular.Table) ([]models.Registration, error) {
	if err := t.Require("subject_id", "group_id"); err != nil {
		return nil, err
	}
	out := make([]models.Registration, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, models.Registration{SubjectID: row.String("subject_id"), GroupID: row.String("group_id")})
	}
	return out, nil
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
