package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

// TimetableRepository persists completed allocation runs.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository builds repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// Create stores the run header, its rows and its registration outcomes in one
// transaction. Row order is kept in the seq column.
func (r *TimetableRepository) Create(ctx context.Context, run *models.TimetableRun, rows []models.ScheduleRow, outcomes []models.RegistrationOutcome) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := r.createTx(ctx, tx, run, rows, outcomes); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit timetable run: %w", err)
	}
	return nil
}

func (r *TimetableRepository) createTx(ctx context.Context, tx *sqlx.Tx, run *models.TimetableRun, rows []models.ScheduleRow, outcomes []models.RegistrationOutcome) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	const insertRun = `INSERT INTO timetable_runs (id, seed, status, fingerprint, assignments, shortfalls, failures, created_at)
        VALUES (:id, :seed, :status, :fingerprint, :assignments, :shortfalls, :failures, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertRun, run); err != nil {
		return fmt.Errorf("insert timetable run: %w", err)
	}

	const insertRow = `INSERT INTO timetable_assignments (id, run_id, seq, group_id, timeslot_id, day, period, subject_id, teacher_id, room_id)
        VALUES (:id, :run_id, :seq, :group_id, :timeslot_id, :day, :period, :subject_id, :teacher_id, :room_id)`
	for i, row := range rows {
		record := models.TimetableAssignment{
			ID:          uuid.NewString(),
			RunID:       run.ID,
			Seq:         i + 1,
			ScheduleRow: row,
		}
		if _, err := tx.NamedExecContext(ctx, insertRow, record); err != nil {
			return fmt.Errorf("insert timetable assignment %d: %w", i+1, err)
		}
	}

	const insertOutcome = `INSERT INTO timetable_outcomes (run_id, registration_index, group_id, subject_id, teacher_id, required, placed, shortfall, code, reason)
        VALUES (:run_id, :registration_index, :group_id, :subject_id, :teacher_id, :required, :placed, :shortfall, :code, :reason)`
	for _, outcome := range outcomes {
		record := models.TimetableOutcomeRecord{RunID: run.ID, RegistrationOutcome: outcome}
		if _, err := tx.NamedExecContext(ctx, insertOutcome, record); err != nil {
			return fmt.Errorf("insert timetable outcome %d: %w", outcome.Index, err)
		}
	}
	return nil
}

// FindByID returns the run header.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.TimetableRun, error) {
	const query = `SELECT id, seed, status, fingerprint, assignments, shortfalls, failures, created_at FROM timetable_runs WHERE id = $1`
	var run models.TimetableRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
		}
		return nil, fmt.Errorf("get timetable run: %w", err)
	}
	return &run, nil
}

// ListRows returns the run's rows in commit order.
func (r *TimetableRepository) ListRows(ctx context.Context, runID string) ([]models.ScheduleRow, error) {
	const query = `SELECT group_id, timeslot_id, day, period, subject_id, teacher_id, room_id
FROM timetable_assignments WHERE run_id = $1 ORDER BY seq ASC`
	rows := make([]models.ScheduleRow, 0)
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("list timetable assignments: %w", err)
	}
	return rows, nil
}

// ListOutcomes returns the run's registration outcomes in registration order.
func (r *TimetableRepository) ListOutcomes(ctx context.Context, runID string) ([]models.RegistrationOutcome, error) {
	const query = `SELECT registration_index, group_id, subject_id, teacher_id, required, placed, shortfall, code, reason
FROM timetable_outcomes WHERE run_id = $1 ORDER BY registration_index ASC`
	outcomes := make([]models.RegistrationOutcome, 0)
	if err := r.db.SelectContext(ctx, &outcomes, query, runID); err != nil {
		return nil, fmt.Errorf("list timetable outcomes: %w", err)
	}
	return outcomes, nil
}

// ListRecent returns the newest runs first.
func (r *TimetableRepository) ListRecent(ctx context.Context, limit int) ([]models.TimetableRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, seed, status, fingerprint, assignments, shortfalls, failures, created_at
FROM timetable_runs ORDER BY created_at DESC LIMIT $1`
	runs := make([]models.TimetableRun, 0)
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list timetable runs: %w", err)
	}
	return runs, nil
}
