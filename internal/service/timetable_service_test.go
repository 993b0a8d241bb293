package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
)

type catalogStub struct {
	data  models.CatalogData
	err   error
	calls int
}

func (c *catalogStub) Load(ctx context.Context) (models.CatalogData, error) {
	c.calls++
	return c.data, c.err
}

type runRepoStub struct {
	created  map[string][]models.ScheduleRow
	runs     map[string]models.TimetableRun
	outcomes map[string][]models.RegistrationOutcome
	err      error
}

func newRunRepoStub() *runRepoStub {
	return &runRepoStub{
		created:  map[string][]models.ScheduleRow{},
		runs:     map[string]models.TimetableRun{},
		outcomes: map[string][]models.RegistrationOutcome{},
	}
}

func (r *runRepoStub) Create(ctx context.Context, run *models.TimetableRun, rows []models.ScheduleRow, outcomes []models.RegistrationOutcome) error {
	if r.err != nil {
		return r.err
	}
	r.runs[run.ID] = *run
	r.created[run.ID] = rows
	r.outcomes[run.ID] = outcomes
	return nil
}

func (r *runRepoStub) FindByID(ctx context.Context, id string) (*models.TimetableRun, error) {
	run, ok := r.runs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
	}
	return &run, nil
}

func (r *runRepoStub) ListRows(ctx context.Context, runID string) ([]models.ScheduleRow, error) {
	return r.created[runID], nil
}

func (r *runRepoStub) ListOutcomes(ctx context.Context, runID string) ([]models.RegistrationOutcome, error) {
	return r.outcomes[runID], nil
}

func (r *runRepoStub) ListRecent(ctx context.Context, limit int) ([]models.TimetableRun, error) {
	out := make([]models.TimetableRun, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run)
	}
	return out, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func serviceCatalog() models.CatalogData {
	slots := make([]models.TimeSlot, 0, 60)
	for _, day := range models.Weekdays {
		for p := models.FirstPeriod; p <= models.LastPeriod; p++ {
			slots = append(slots, models.TimeSlot{ID: fmt.Sprintf("%s-%d", day, p), Day: day, Period: p})
		}
	}
	return models.CatalogData{
		Teachers: []models.Teacher{
			{ID: "T1", Prefix: "Mr.", FirstName: "Budi", LastName: "Santoso", Role: "teacher"},
			{ID: "T2", Prefix: "Ms.", FirstName: "Sari", LastName: "Dewi", Role: "leader"},
		},
		Rooms:     []models.Room{{ID: "R1", Name: "Lab"}},
		Groups:    []models.StudentGroup{{ID: "G1", Name: "X-1"}},
		Subjects:  []models.Subject{{ID: "MATH", Theory: 2, Practice: 1}, {ID: "PHYS", Theory: 2}},
		TimeSlots: slots,
		Teachings: []models.Teaching{{SubjectID: "MATH", TeacherID: "T1"}, {SubjectID: "PHYS", TeacherID: "T2"}},
		Registrations: []models.Registration{
			{SubjectID: "MATH", GroupID: "G1"},
			{SubjectID: "PHYS", GroupID: "G1"},
			{SubjectID: "CHEM", GroupID: "G1"},
		},
	}
}

func newTimetableServiceForTest(t *testing.T, source CatalogSource, runs RunRepository, cfg TimetableServiceConfig) *TimetableService {
	t.Helper()
	cfg.Enabled = true
	return NewTimetableService(source, runs, nil, NewMetricsService(), nil, zap.NewNop(), cfg)
}

func int64Ptr(v int64) *int64 { return &v }

func TestTimetableServiceGenerate(t *testing.T) {
	svc := newTimetableServiceForTest(t, &catalogStub{data: serviceCatalog()}, nil, TimetableServiceConfig{})

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Seed: int64Ptr(7)})
	require.NoError(t, err)
	assert.Equal(t, models.TimetableRunCompleted, resp.Run.Status)
	assert.Equal(t, int64(7), resp.Run.Seed)
	assert.Equal(t, 5, resp.Run.Assignments)
	assert.Len(t, resp.Run.Fingerprint, 32)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, 2, resp.Failures[0].Index)
	assert.Equal(t, appErrors.ErrResolution.Code, resp.Failures[0].Code)
	assert.Empty(t, resp.Shortfalls)
	assert.Len(t, resp.Outcomes, 3)

	snapshot := svc.metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.RunsTotal)
	assert.Equal(t, uint64(5), snapshot.AssignmentsPlaced)
	assert.Equal(t, uint64(1), snapshot.ResolutionFailures)

	rows, err := svc.Rows(context.Background(), resp.Run.ID, dto.TimetableQuery{View: "teacher", Target: "T2"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	for _, row := range rows {
		assert.False(t, row.Day == models.LeaderMeetingDay && row.Period == models.LeaderMeetingPeriod)
	}
}

func TestTimetableServiceSeedReproducible(t *testing.T) {
	svc := newTimetableServiceForTest(t, &catalogStub{data: serviceCatalog()}, nil, TimetableServiceConfig{Seed: 99})

	first, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{})
	require.NoError(t, err)
	second, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(99), first.Run.Seed)
	assert.NotEqual(t, first.Run.ID, second.Run.ID)

	a, err := svc.Rows(context.Background(), first.Run.ID, dto.TimetableQuery{})
	require.NoError(t, err)
	b, err := svc.Rows(context.Background(), second.Run.ID, dto.TimetableQuery{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTimetableServiceDeterministicUsesCatalogOrder(t *testing.T) {
	svc := newTimetableServiceForTest(t, &catalogStub{data: serviceCatalog()}, nil, TimetableServiceConfig{})

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Deterministic: true})
	require.NoError(t, err)
	rows, err := svc.Rows(context.Background(), resp.Run.ID, dto.TimetableQuery{View: "group", Target: "G1"})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Mon-1", rows[0].TimeSlotID)
	assert.Equal(t, "Mon-2", rows[1].TimeSlotID)
	assert.Equal(t, "Mon-3", rows[2].TimeSlotID)
	assert.Equal(t, "PHYS", rows[3].SubjectID)
	assert.Equal(t, "Mon-4", rows[3].TimeSlotID)
	assert.Equal(t, "Mon-6", rows[4].TimeSlotID)
}

func TestTimetableServiceDisabled(t *testing.T) {
	svc := NewTimetableService(&catalogStub{}, nil, nil, nil, nil, nil, TimetableServiceConfig{})
	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceCatalogErrors(t *testing.T) {
	svc := newTimetableServiceForTest(t, &catalogStub{err: errors.New("disk gone")}, nil, TimetableServiceConfig{})
	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	data := serviceCatalog()
	data.Teachers = append(data.Teachers, models.Teacher{ID: "T1"})
	svc = newTimetableServiceForTest(t, &catalogStub{data: data}, nil, TimetableServiceConfig{})
	_, err = svc.Generate(context.Background(), dto.GenerateTimetableRequest{})
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Equal(t, uint64(1), svc.metrics.Snapshot().RunsFailed)
}

func TestTimetableServicePersistRequiresRepository(t *testing.T) {
	svc := newTimetableServiceForTest(t, &catalogStub{data: serviceCatalog()}, nil, TimetableServiceConfig{})
	persist := true
	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Persist: &persist})
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestTimetableServicePersistsAndReloads(t *testing.T) {
	source := &catalogStub{data: serviceCatalog()}
	repo := newRunRepoStub()
	svc := newTimetableServiceForTest(t, source, repo, TimetableServiceConfig{Persist: true})

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Seed: int64Ptr(3)})
	require.NoError(t, err)
	require.Contains(t, repo.created, resp.Run.ID)
	assert.Len(t, repo.created[resp.Run.ID], 5)

	// A fresh service has an empty store and must read the run back.
	reader := newTimetableServiceForTest(t, source, repo, TimetableServiceConfig{})
	result, err := reader.Result(context.Background(), resp.Run.ID)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 5)
	assert.Len(t, result.Outcomes, 3)
	assert.Equal(t, "Ms.Sari Dewi", result.Names.Teacher("T2"))

	reloaded, err := reader.Get(context.Background(), resp.Run.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Failures, 1)
	assert.Equal(t, 2, reloaded.Failures[0].Index)
	assert.Equal(t, appErrors.ErrResolution.Code, reloaded.Failures[0].Code)
	assert.Equal(t, resp.Failures, reloaded.Failures)

	runs, err := reader.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestTimetableServiceListMergesMemoryAndDatabase(t *testing.T) {
	source := &catalogStub{data: serviceCatalog()}
	repo := newRunRepoStub()
	svc := newTimetableServiceForTest(t, source, repo, TimetableServiceConfig{})

	persist := true
	stored, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Persist: &persist})
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Now().Add(time.Minute) }
	transient, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{})
	require.NoError(t, err)
	require.NotContains(t, repo.runs, transient.Run.ID)

	runs, err := svc.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, transient.Run.ID, runs[0].ID)
	assert.Equal(t, stored.Run.ID, runs[1].ID)

	runs, err = svc.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, transient.Run.ID, runs[0].ID)
}

func TestTimetableServicePersistFailureCountsAsFailedRun(t *testing.T) {
	repo := newRunRepoStub()
	repo.err = errors.New("connection reset")
	svc := newTimetableServiceForTest(t, &catalogStub{data: serviceCatalog()}, repo, TimetableServiceConfig{Persist: true})

	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	snapshot := svc.metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.RunsTotal)
	assert.Equal(t, uint64(1), snapshot.RunsFailed)
	assert.Zero(t, snapshot.AssignmentsPlaced)
	assert.Zero(t, snapshot.ResolutionFailures)
}

func TestTimetableServiceBlankRegistrationIsReportedPerRow(t *testing.T) {
	data := serviceCatalog()
	data.Registrations = append(data.Registrations, models.Registration{SubjectID: "", GroupID: "G1"})
	svc := newTimetableServiceForTest(t, &catalogStub{data: data}, nil, TimetableServiceConfig{})

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Seed: int64Ptr(11)})
	require.NoError(t, err)
	assert.Equal(t, models.TimetableRunCompleted, resp.Run.Status)
	assert.Equal(t, 5, resp.Run.Assignments)
	require.Len(t, resp.Failures, 2)
	assert.Equal(t, 3, resp.Failures[1].Index)
	assert.Equal(t, appErrors.ErrResolution.Code, resp.Failures[1].Code)
}

func TestTimetableServiceAsyncRun(t *testing.T) {
	svc := newTimetableServiceForTest(t, &catalogStub{data: serviceCatalog()}, nil, TimetableServiceConfig{})
	queue := &queueStub{}
	svc.AttachQueue(queue)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Async: true, Seed: int64Ptr(5)})
	require.NoError(t, err)
	assert.Equal(t, models.TimetableRunPending, resp.Run.Status)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeTimetableRun, queue.jobs[0].Type)

	_, err = svc.CompletedResult(context.Background(), resp.Run.ID)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.HandleJob(context.Background(), queue.jobs[0]))
	got, err := svc.Get(context.Background(), resp.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TimetableRunCompleted, got.Run.Status)
	assert.Equal(t, 5, got.Run.Assignments)
}

func TestTimetableServiceAsyncFailureRecorded(t *testing.T) {
	svc := newTimetableServiceForTest(t, &catalogStub{err: errors.New("db down")}, nil, TimetableServiceConfig{})
	queue := &queueStub{}
	svc.AttachQueue(queue)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Async: true})
	require.NoError(t, err)
	require.NoError(t, svc.HandleJob(context.Background(), queue.jobs[0]))

	got, err := svc.Get(context.Background(), resp.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TimetableRunFailed, got.Run.Status)
	assert.Contains(t, got.Error, "failed to load catalog")

	err = svc.HandleJob(context.Background(), jobs.Job{ID: "bad", Payload: "nope"})
	assert.True(t, jobs.IsPermanent(err))
}

func TestTimetableServiceAsyncWithoutQueue(t *testing.T) {
	svc := newTimetableServiceForTest(t, &catalogStub{data: serviceCatalog()}, nil, TimetableServiceConfig{})
	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Async: true})
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErrors.FromError(err).Code)

	svc.AttachQueue(&queueStub{err: errors.New("full")})
	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Async: true})
	assert.Nil(t, resp)
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErrors.FromError(err).Code)
	runs, err := svc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestTimetableServiceGrid(t *testing.T) {
	svc := newTimetableServiceForTest(t, &catalogStub{data: serviceCatalog()}, nil, TimetableServiceConfig{})
	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Deterministic: true})
	require.NoError(t, err)

	grid, err := svc.Grid(context.Background(), resp.Run.ID, dto.GridQuery{View: "teacher", Target: "T2"})
	require.NoError(t, err)
	assert.Equal(t, "Ms.Sari Dewi", grid.Title)
	assert.Equal(t, models.Weekdays, grid.Days)
	assert.Len(t, grid.Periods, models.LastPeriod)
	assert.Equal(t, LeaderMeetingLabel, grid.Cells[1][models.LeaderMeetingPeriod-1])
	assert.Equal(t, BreakLabel, grid.Cells[0][models.BreakPeriod-1])

	_, err = svc.Grid(context.Background(), resp.Run.ID, dto.GridQuery{View: "room", Target: "R9"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Grid(context.Background(), resp.Run.ID, dto.GridQuery{View: "planet", Target: "R1"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceUnknownRun(t *testing.T) {
	svc := newTimetableServiceForTest(t, &catalogStub{data: serviceCatalog()}, nil, TimetableServiceConfig{})
	_, err := svc.Get(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceSummary(t *testing.T) {
	svc := newTimetableServiceForTest(t, &catalogStub{data: serviceCatalog()}, nil, TimetableServiceConfig{})
	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 60, summary.TimeSlots)
	assert.Equal(t, 55, summary.SchedulableSlots)
	assert.Equal(t, 3, summary.Registrations)
}

func TestTimetableServicePruneExpired(t *testing.T) {
	svc := newTimetableServiceForTest(t, &catalogStub{data: serviceCatalog()}, nil, TimetableServiceConfig{ResultTTL: time.Minute})
	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{})
	require.NoError(t, err)

	svc.store.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 1, svc.PruneExpired())
}
