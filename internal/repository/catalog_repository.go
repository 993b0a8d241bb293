package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// CatalogRepository loads scheduling records from Postgres. Every table
// carries a seq column preserving the order rows were registered in.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository builds repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Load reads all catalog tables inside one read-only transaction so the
// snapshot is consistent.
func (r *CatalogRepository) Load(ctx context.Context) (models.CatalogData, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.CatalogData{}, fmt.Errorf("begin catalog snapshot: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var data models.CatalogData
	steps := []struct {
		name  string
		dest  interface{}
		query string
	}{
		{"teachers", &data.Teachers, `SELECT teacher_id, COALESCE(prefix, '') AS prefix, COALESCE(firstname, '') AS firstname, COALESCE(lastname, '') AS lastname, COALESCE(NULLIF(role, ''), 'teacher') AS role FROM teachers ORDER BY seq ASC`},
		{"rooms", &data.Rooms, `SELECT room_id, COALESCE(NULLIF(room_name, ''), room_id) AS room_name FROM rooms ORDER BY seq ASC`},
		{"student groups", &data.Groups, `SELECT group_id, COALESCE(NULLIF(group_name, ''), group_id) AS group_name FROM student_groups ORDER BY seq ASC`},
		{"subjects", &data.Subjects, `SELECT subject_id, GREATEST(COALESCE(theory, 0), 0) AS theory, GREATEST(COALESCE(practice, 0), 0) AS practice FROM subjects ORDER BY seq ASC`},
		{"timeslots", &data.TimeSlots, `SELECT timeslot_id, day, period FROM timeslots ORDER BY seq ASC`},
		{"teachings", &data.Teachings, `SELECT subject_id, teacher_id FROM teachings ORDER BY seq ASC`},
		{"registrations", &data.Registrations, `SELECT subject_id, group_id FROM registrations ORDER BY seq ASC`},
	}
	for _, step := range steps {
		if err := sqlx.SelectContext(ctx, tx, step.dest, step.query); err != nil {
			return models.CatalogData{}, fmt.Errorf("list %s: %w", step.name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return models.CatalogData{}, fmt.Errorf("commit catalog snapshot: %w", err)
	}
	return data, nil
}
