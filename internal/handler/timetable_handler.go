package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/response"
)

const maxListLimit = 100

type timetableAPI interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableRunResponse, error)
	List(ctx context.Context, limit int) ([]models.TimetableRun, error)
	Get(ctx context.Context, id string) (*dto.TimetableRunResponse, error)
	Rows(ctx context.Context, id string, query dto.TimetableQuery) ([]models.ScheduleRow, error)
	Grid(ctx context.Context, id string, query dto.GridQuery) (*dto.TimetableGridResponse, error)
	Summary(ctx context.Context) (*models.CatalogSummary, error)
}

type timetableExporter interface {
	Render(ctx context.Context, id string, query dto.ExportQuery) (*dto.ExportFile, error)
}

// TimetableHandler exposes allocation runs and their renderings.
type TimetableHandler struct {
	service  timetableAPI
	exporter timetableExporter
	logger   *zap.Logger
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc timetableAPI, exporter timetableExporter, logger *zap.Logger) *TimetableHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableHandler{service: svc, exporter: exporter, logger: logger}
}

// Generate godoc
// @Summary Run the timetable allocator
// @Description Allocates every registration against the current catalog. Set async to queue the run and poll GET /timetables/{id}.
// @Tags Timetables
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.GenerateTimetableRequest false "Run options"
// @Success 201 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timetables [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
			return
		}
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		if appErrors.StatusOf(err) >= http.StatusInternalServerError {
			h.logger.Error("timetable run failed", zap.String("requested_by", requester(c)), zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	h.logger.Info("timetable run requested",
		zap.String("run_id", result.Run.ID),
		zap.String("requested_by", requester(c)),
		zap.Bool("async", req.Async))
	if result.Run.Status == models.TimetableRunPending {
		response.Accepted(c, result)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List recent timetable runs
// @Tags Timetables
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum runs (default 20)"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a positive integer"))
			return
		}
		if parsed > maxListLimit {
			parsed = maxListLimit
		}
		limit = parsed
	}
	runs, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, responseMeta(c, map[string]interface{}{"count": len(runs)}))
}

// Get godoc
// @Summary Get a timetable run with registration outcomes
// @Tags Timetables
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, responseMeta(c, nil))
}

// Rows godoc
// @Summary List output rows of a run
// @Tags Timetables
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Param view query string false "group, teacher or room"
// @Param target query string false "ID of the group, teacher or room"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/rows [get]
func (h *TimetableHandler) Rows(c *gin.Context) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rows query"))
		return
	}
	rows, err := h.service.Rows(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, responseMeta(c, map[string]interface{}{"count": len(rows)}))
}

// Grid godoc
// @Summary Weekly grid of one group, teacher or room
// @Tags Timetables
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Param view query string true "group, teacher or room"
// @Param target query string true "ID of the group, teacher or room"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/grid [get]
func (h *TimetableHandler) Grid(c *gin.Context) {
	var query dto.GridQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grid query"))
		return
	}
	grid, err := h.service.Grid(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid, responseMeta(c, nil))
}

// Export godoc
// @Summary Download a run as CSV, XLSX or PDF
// @Tags Timetables
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Param format query string true "csv, xlsx or pdf"
// @Param view query string false "group, teacher or room"
// @Param target query string false "ID of the group, teacher or room"
// @Success 200 {file} file
// @Router /timetables/{id}/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.exporter.Render(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Payload)
}

// CatalogSummary godoc
// @Summary Summarize the current catalog and its demand
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /catalog/summary [get]
func (h *TimetableHandler) CatalogSummary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}
