package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/export"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

var contentTypes = map[string]string{
	FormatCSV:  "text/csv",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatPDF:  "application/pdf",
}

type timetableResultReader interface {
	CompletedResult(ctx context.Context, id string) (*models.TimetableResult, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type gridRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	RenderGrid(grid export.Grid) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
	RenderGrid(grid export.Grid) ([]byte, error)
}

// ExportService renders run results as CSV rows or XLSX/PDF grids.
type ExportService struct {
	results  timetableResultReader
	storage  fileStorage
	csv      csvRenderer
	pdf      gridRenderer
	xlsx     xlsxRenderer
	validate *validator.Validate
	logger   *zap.Logger
}

// NewExportService constructs an ExportService. storage may be nil when files
// are only streamed.
func NewExportService(results timetableResultReader, storage fileStorage, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		results:  results,
		storage:  storage,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		xlsx:     export.NewXLSXExporter(),
		validate: validator.New(),
		logger:   logger,
	}
}

// Render produces the export for a run. CSV always carries raw rows; XLSX
// and PDF carry the weekly grid of query.Target, or all rows without one.
func (s *ExportService) Render(ctx context.Context, runID string, query dto.ExportQuery) (*dto.ExportFile, error) {
	format := strings.ToLower(query.Format)
	query.Format = format
	if err := s.validate.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	contentType := contentTypes[format]
	result, err := s.results.CompletedResult(ctx, runID)
	if err != nil {
		return nil, err
	}

	view := parseView(query.View)
	if query.Target != "" && !knownTarget(result.Names, view, query.Target) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown %s %s", view, query.Target))
	}
	rows := RowsDataset(filterRows(result.Rows, view, query.Target))

	var payload []byte
	switch {
	case format == FormatCSV:
		payload, err = s.csv.Render(rows)
	case query.Target == "" && format == FormatPDF:
		payload, err = s.pdf.Render(rows, "Timetable "+shortID(result.Run.ID))
	case query.Target == "" && format == FormatXLSX:
		payload, err = s.xlsx.Render(rows, "timetable")
	case format == FormatPDF:
		payload, err = s.pdf.RenderGrid(BuildGrid(result, view, query.Target))
	default:
		payload, err = s.xlsx.RenderGrid(BuildGrid(result, view, query.Target))
	}
	if err != nil {
		s.logger.Error("failed to render export", zap.String("run_id", runID), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &dto.ExportFile{
		Filename:    buildFilename(result.Run.ID, view, query.Target, format),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

// Save renders and writes the export through storage, returning the stored name.
func (s *ExportService) Save(ctx context.Context, runID string, query dto.ExportQuery) (string, error) {
	if s.storage == nil {
		return "", appErrors.Clone(appErrors.ErrPreconditionFailed, "export storage is not configured")
	}
	file, err := s.Render(ctx, runID, query)
	if err != nil {
		return "", err
	}
	name, err := s.storage.Save(file.Filename, file.Payload)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	s.logger.Info("export written", zap.String("run_id", runID), zap.String("file", name))
	return name, nil
}

// Cleanup removes stored exports older than ttl.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if s.storage == nil {
		return nil, nil
	}
	return s.storage.CleanupOlderThan(ttl)
}

func buildFilename(runID string, view models.TimetableView, target, format string) string {
	name := "timetable_" + shortID(runID)
	if target != "" {
		name += "_" + string(view) + "_" + sanitizeFilename(target)
	}
	return name + "." + format
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
