package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
)

// JobTypeTimetableRun identifies background allocation jobs.
const JobTypeTimetableRun = "timetable.run"

// CatalogSource loads the scheduling input from CSV files or Postgres.
type CatalogSource interface {
	Load(ctx context.Context) (models.CatalogData, error)
}

// RunRepository persists finished runs.
type RunRepository interface {
	Create(ctx context.Context, run *models.TimetableRun, rows []models.ScheduleRow, outcomes []models.RegistrationOutcome) error
	FindByID(ctx context.Context, id string) (*models.TimetableRun, error)
	ListRows(ctx context.Context, runID string) ([]models.ScheduleRow, error)
	ListOutcomes(ctx context.Context, runID string) ([]models.RegistrationOutcome, error)
	ListRecent(ctx context.Context, limit int) ([]models.TimetableRun, error)
}

// ResultCache shares results between API replicas.
type ResultCache interface {
	GetResult(ctx context.Context, runID string) (*models.TimetableResult, bool, error)
	SetResult(ctx context.Context, result *models.TimetableResult, ttl time.Duration) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// TimetableServiceConfig governs allocation runs.
type TimetableServiceConfig struct {
	Enabled        bool
	Source         string
	Seed           int64
	ResultTTL      time.Duration
	TeachingPolicy scheduler.TeachingPolicy
	Persist        bool
}

// TimetableService loads the catalog, runs the allocator and keeps results
// available for rows, grids and exports.
type TimetableService struct {
	source    CatalogSource
	runs      RunRepository
	cache     ResultCache
	queue     jobEnqueuer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	store     *resultStore
	cfg       TimetableServiceConfig
	now       func() time.Time
}

// runRequest is the resolved form of a generate request and the payload of
// background jobs.
type runRequest struct {
	ID            string
	Seed          int64
	Persist       bool
	Deterministic bool
}

// NewTimetableService wires the service. runs and cache may be nil.
func NewTimetableService(
	source CatalogSource,
	runs RunRepository,
	cache ResultCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 30 * time.Minute
	}
	if cfg.Source == "" {
		cfg.Source = "csv"
	}
	return &TimetableService{
		source:    source,
		runs:      runs,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		store:     newResultStore(cfg.ResultTTL),
		cfg:       cfg,
		now:       time.Now,
	}
}

// AttachQueue enables async runs. The queue's handler must be HandleJob.
func (s *TimetableService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Generate runs an allocation, or enqueues one when req.Async is set.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableRunResponse, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "scheduler is disabled")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable request")
	}

	run := runRequest{
		ID:            uuid.NewString(),
		Seed:          s.resolveSeed(req.Seed),
		Persist:       s.cfg.Persist,
		Deterministic: req.Deterministic,
	}
	if req.Persist != nil {
		run.Persist = *req.Persist
	}
	if run.Persist && s.runs == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "run persistence is not configured")
	}

	if req.Async {
		if s.queue == nil {
			return nil, appErrors.Clone(appErrors.ErrUnavailable, "background runs are not configured")
		}
		pending := models.TimetableResult{Run: models.TimetableRun{
			ID:        run.ID,
			Seed:      run.Seed,
			Status:    models.TimetableRunPending,
			CreatedAt: s.now().UTC(),
		}}
		s.store.Save(pending)
		if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: JobTypeTimetableRun, Payload: run}); err != nil {
			s.store.Delete(run.ID)
			return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to enqueue timetable run")
		}
		s.logger.Info("timetable run queued", zap.String("run_id", run.ID), zap.Int64("seed", run.Seed))
		return toRunResponse(&pending, false), nil
	}

	result, err := s.execute(ctx, run)
	if err != nil {
		return nil, err
	}
	return toRunResponse(result, true), nil
}

// HandleJob executes a queued run. Failures are recorded on the stored
// result instead of being retried.
func (s *TimetableService) HandleJob(ctx context.Context, job jobs.Job) error {
	run, ok := job.Payload.(runRequest)
	if !ok {
		return jobs.Permanent(fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID))
	}
	if _, err := s.execute(ctx, run); err != nil {
		failed := &models.TimetableResult{
			Run: models.TimetableRun{
				ID:        run.ID,
				Seed:      run.Seed,
				Status:    models.TimetableRunFailed,
				CreatedAt: s.now().UTC(),
			},
			Error: err.Error(),
		}
		s.saveResult(ctx, failed)
		s.logger.Warn("timetable run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	return nil
}

func (s *TimetableService) execute(ctx context.Context, run runRequest) (*models.TimetableResult, error) {
	start := time.Now()
	fail := func(err error) error {
		s.metrics.ObserveRun(models.TimetableRunFailed, 0, 0, 0, time.Since(start))
		return err
	}

	data, err := s.source.Load(ctx)
	s.metrics.ObserveCatalogLoad(s.cfg.Source, time.Since(start))
	if err != nil {
		s.logger.Error("failed to load catalog", zap.String("source", s.cfg.Source), zap.Error(err))
		return nil, fail(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catalog"))
	}

	catalog, err := scheduler.NewCatalog(data, scheduler.CatalogOptions{
		TeachingPolicy: s.cfg.TeachingPolicy,
		Validator:      s.validator,
		Logger:         s.logger,
	})
	if err != nil {
		return nil, fail(appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "catalog rejected"))
	}

	order := func() scheduler.SlotOrderer { return scheduler.NewSeededShuffle(run.Seed) }
	if run.Deterministic {
		order = func() scheduler.SlotOrderer { return scheduler.CatalogOrder{} }
	}
	allocation, err := scheduler.NewAllocator(order, s.logger).Run(ctx, catalog, data.Registrations)
	if err != nil {
		return nil, fail(appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "timetable run interrupted"))
	}

	result := buildResult(run, catalog, allocation, s.now().UTC())
	missing := 0
	for _, o := range allocation.Shortfalls() {
		missing += o.Shortfall()
	}
	if run.Persist {
		if err := s.runs.Create(ctx, &result.Run, result.Rows, result.Outcomes); err != nil {
			s.logger.Error("failed to persist timetable run", zap.String("run_id", run.ID), zap.Error(err))
			return nil, fail(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable run"))
		}
	}

	s.metrics.ObserveRun(models.TimetableRunCompleted, len(result.Rows), missing, result.Run.Failures, time.Since(start))
	s.logger.Info("timetable run completed",
		zap.String("run_id", run.ID),
		zap.Int64("seed", run.Seed),
		zap.String("fingerprint", result.Run.Fingerprint),
		zap.Int("assignments", result.Run.Assignments),
		zap.Int("shortfalls", result.Run.Shortfalls),
		zap.Int("failures", result.Run.Failures))
	s.saveResult(ctx, result)
	return result, nil
}

func (s *TimetableService) saveResult(ctx context.Context, result *models.TimetableResult) {
	s.store.Save(*result)
	if s.cache != nil {
		_ = s.cache.SetResult(ctx, result, s.cfg.ResultTTL)
	}
}

func (s *TimetableService) resolveSeed(requested *int64) int64 {
	seed := s.cfg.Seed
	if requested != nil {
		seed = *requested
	}
	if seed == 0 {
		seed = s.now().UnixNano()
	}
	return seed
}

// Get returns the run summary with every registration outcome.
func (s *TimetableService) Get(ctx context.Context, id string) (*dto.TimetableRunResponse, error) {
	result, err := s.Result(ctx, id)
	if err != nil {
		return nil, err
	}
	return toRunResponse(result, true), nil
}

// List returns recent runs, newest first. Runs held in memory (pending, failed
// or not persisted) are merged with the database ones when persistence is
// configured.
func (s *TimetableService) List(ctx context.Context, limit int) ([]models.TimetableRun, error) {
	runs := s.store.List()
	if s.runs != nil {
		stored, err := s.runs.ListRecent(ctx, limit)
		if err != nil {
			return nil, asAppError(err, "failed to list timetable runs")
		}
		seen := make(map[string]struct{}, len(runs))
		for _, run := range runs {
			seen[run.ID] = struct{}{}
		}
		for _, run := range stored {
			if _, ok := seen[run.ID]; !ok {
				runs = append(runs, run)
			}
		}
		sort.SliceStable(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Result finds a run in memory, then the shared cache, then the database.
func (s *TimetableService) Result(ctx context.Context, id string) (*models.TimetableResult, error) {
	if result, ok := s.store.Get(id); ok {
		return &result, nil
	}
	if s.cache != nil {
		if cached, ok, err := s.cache.GetResult(ctx, id); err == nil && ok {
			s.store.Save(*cached)
			return cached, nil
		}
	}
	if s.runs == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
	}

	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		return nil, asAppError(err, "failed to load timetable run")
	}
	rows, err := s.runs.ListRows(ctx, id)
	if err != nil {
		return nil, asAppError(err, "failed to load timetable rows")
	}
	outcomes, err := s.runs.ListOutcomes(ctx, id)
	if err != nil {
		return nil, asAppError(err, "failed to load timetable outcomes")
	}
	result := &models.TimetableResult{Run: *run, Rows: rows, Outcomes: outcomes, Names: s.currentNames(ctx)}
	s.store.Save(*result)
	return result, nil
}

// CompletedResult is Result restricted to finished runs.
func (s *TimetableService) CompletedResult(ctx context.Context, id string) (*models.TimetableResult, error) {
	result, err := s.Result(ctx, id)
	if err != nil {
		return nil, err
	}
	switch result.Run.Status {
	case models.TimetableRunCompleted:
		return result, nil
	case models.TimetableRunFailed:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable run failed: "+result.Error)
	default:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable run is still pending")
	}
}

// Rows returns output rows of a run, optionally filtered to one target.
func (s *TimetableService) Rows(ctx context.Context, id string, query dto.TimetableQuery) ([]models.ScheduleRow, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable query")
	}
	result, err := s.CompletedResult(ctx, id)
	if err != nil {
		return nil, err
	}
	return filterRows(result.Rows, parseView(query.View), query.Target), nil
}

// Grid renders the weekly grid of one group, teacher or room.
func (s *TimetableService) Grid(ctx context.Context, id string, query dto.GridQuery) (*dto.TimetableGridResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grid query")
	}
	result, err := s.CompletedResult(ctx, id)
	if err != nil {
		return nil, err
	}
	view := parseView(query.View)
	if !knownTarget(result.Names, view, query.Target) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown %s %s", view, query.Target))
	}
	grid := BuildGrid(result, view, query.Target)
	return &dto.TimetableGridResponse{
		Title:   grid.Title,
		View:    string(view),
		Target:  query.Target,
		Days:    grid.RowHeaders,
		Periods: grid.ColumnHeaders,
		Cells:   grid.Cells,
	}, nil
}

// Summary counts the current catalog and its total demand.
func (s *TimetableService) Summary(ctx context.Context) (*models.CatalogSummary, error) {
	start := time.Now()
	data, err := s.source.Load(ctx)
	s.metrics.ObserveCatalogLoad(s.cfg.Source, time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catalog")
	}
	catalog, err := scheduler.NewCatalog(data, scheduler.CatalogOptions{
		TeachingPolicy: s.cfg.TeachingPolicy,
		Validator:      s.validator,
		Logger:         s.logger,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "catalog rejected")
	}
	summary := catalog.Summarize(data.Registrations)
	return &summary, nil
}

// PruneExpired drops results older than the configured TTL from memory.
func (s *TimetableService) PruneExpired() int {
	return s.store.Sweep()
}

// currentNames rebuilds display names for runs read back from the database.
func (s *TimetableService) currentNames(ctx context.Context) models.DisplayNames {
	data, err := s.source.Load(ctx)
	if err != nil {
		s.logger.Warn("display names unavailable", zap.Error(err))
		return models.DisplayNames{}
	}
	return namesFromRecords(data.Teachers, data.Rooms, data.Groups)
}

func buildResult(run runRequest, catalog *scheduler.Catalog, allocation *scheduler.Result, createdAt time.Time) *models.TimetableResult {
	outcomes := make([]models.RegistrationOutcome, 0, len(allocation.Outcomes))
	shortfalls, failures := 0, 0
	for _, o := range allocation.Outcomes {
		item := models.RegistrationOutcome{
			Index:     o.Index,
			GroupID:   o.Registration.GroupID,
			SubjectID: o.Registration.SubjectID,
			TeacherID: o.TeacherID,
			Required:  o.Required,
			Placed:    o.Placed,
			Shortfall: o.Shortfall(),
		}
		if o.Err != nil {
			item.Code = appErrors.ErrResolution.Code
			item.Error = o.Err.Error()
			failures++
		}
		if item.Shortfall > 0 {
			shortfalls++
		}
		outcomes = append(outcomes, item)
	}

	rows := allocation.Rows()
	return &models.TimetableResult{
		Run: models.TimetableRun{
			ID:          run.ID,
			Seed:        run.Seed,
			Status:      models.TimetableRunCompleted,
			Fingerprint: catalog.Fingerprint(),
			Assignments: len(rows),
			Shortfalls:  shortfalls,
			Failures:    failures,
			CreatedAt:   createdAt,
		},
		Rows:     rows,
		Outcomes: outcomes,
		Names:    namesFromRecords(catalog.Teachers(), catalog.Rooms(), catalog.Groups()),
	}
}

func namesFromRecords(teachers []models.Teacher, rooms []models.Room, groups []models.StudentGroup) models.DisplayNames {
	names := models.DisplayNames{
		Teachers: make(map[string]string, len(teachers)),
		Rooms:    make(map[string]string, len(rooms)),
		Groups:   make(map[string]string, len(groups)),
		Leaders:  make(map[string]bool),
	}
	for _, t := range teachers {
		names.Teachers[t.ID] = t.DisplayName()
		if t.IsLeader() {
			names.Leaders[t.ID] = true
		}
	}
	for _, r := range rooms {
		names.Rooms[r.ID] = r.DisplayName()
	}
	for _, g := range groups {
		names.Groups[g.ID] = g.DisplayName()
	}
	return names
}

func toRunResponse(result *models.TimetableResult, withOutcomes bool) *dto.TimetableRunResponse {
	resp := &dto.TimetableRunResponse{
		Run:        result.Run,
		Shortfalls: make([]models.RegistrationOutcome, 0),
		Failures:   make([]models.RegistrationOutcome, 0),
		Error:      result.Error,
	}
	for _, o := range result.Outcomes {
		if o.Error != "" {
			resp.Failures = append(resp.Failures, o)
		}
		if o.Shortfall > 0 {
			resp.Shortfalls = append(resp.Shortfalls, o)
		}
	}
	if withOutcomes {
		resp.Outcomes = result.Outcomes
	}
	return resp
}

func asAppError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
