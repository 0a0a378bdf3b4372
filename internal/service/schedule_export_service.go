package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/finals-finder/internal/models"
	"github.com/noah-isme/finals-finder/internal/query"
	appErrors "github.com/noah-isme/finals-finder/pkg/errors"
	"github.com/noah-isme/finals-finder/pkg/export"
)

const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"

	exportPageSize = 100
)

var scheduleHeaders = []string{"Final Exam", "Course", "Date", "Start", "End", "Location"}

type scheduleWriter interface {
	Write(w io.Writer, data export.Dataset) error
	ContentType() string
	Extension() string
}

type examFormatter interface {
	Date(value string) string
	Time(value string) string
}

// ScheduleExportConfig tunes schedule exports.
type ScheduleExportConfig struct {
	Title     string
	StaleTime time.Duration
	// MaxRows bounds a single export.
	MaxRows int
}

// RenderedExport is a finished export document.
type RenderedExport struct {
	Filename    string
	ContentType string
	Rows        int
	Body        []byte
}

// ScheduleExportService renders every exam matching a filter as a downloadable document. Pages
// are read through the shared query client so exports reuse and warm the same cache as views.
type ScheduleExportService struct {
	client    *query.Client
	fetcher   query.ExamsFetcher
	formatter examFormatter
	writers   map[string]scheduleWriter
	logger    *zap.Logger
	cfg       ScheduleExportConfig
}

// NewScheduleExportService constructs the service with the CSV and PDF writers.
func NewScheduleExportService(client *query.Client, fetcher query.ExamsFetcher, formatter examFormatter, logger *zap.Logger, cfg ScheduleExportConfig) *ScheduleExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Title == "" {
		cfg.Title = "Final Exams"
	}
	if cfg.StaleTime <= 0 {
		cfg.StaleTime = 5 * time.Minute
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	return &ScheduleExportService{
		client:    client,
		fetcher:   fetcher,
		formatter: formatter,
		writers: map[string]scheduleWriter{
			ExportFormatCSV: export.NewCSVExporter(),
			ExportFormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
		cfg:    cfg,
	}
}

// Collect walks every page of filter. It reports the server's total alongside the rows, which
// may be fewer when MaxRows cuts the walk short.
func (s *ScheduleExportService) Collect(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	var (
		exams []models.Exam
		total int
	)
	for page := 1; ; page++ {
		resp, err := query.Fetch(ctx, s.client, query.ExamsPageKey(filter, page, exportPageSize), s.cfg.StaleTime,
			func(ctx context.Context) (*models.ExamsResponse, error) {
				return s.fetcher.FetchExams(ctx, models.ExamSearchParams{ExamFilter: filter, Page: page, Limit: exportPageSize})
			})
		if err != nil {
			return nil, 0, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
		}
		if page == 1 {
			total = resp.Pagination.Total
		}
		exams = append(exams, resp.Data...)
		if len(exams) >= s.cfg.MaxRows {
			s.logger.Warn("schedule export truncated", zap.Int("rows", s.cfg.MaxRows), zap.Int("total", total))
			return exams[:s.cfg.MaxRows], total, nil
		}
		if !resp.Pagination.HasMore || len(resp.Data) == 0 {
			return exams, total, nil
		}
	}
}

// Dataset lays exams out as table rows.
func (s *ScheduleExportService) Dataset(exams []models.Exam, filter models.ExamFilter) export.Dataset {
	rows := make([][]string, 0, len(exams))
	for _, exam := range exams {
		rows = append(rows, []string{
			fmt.Sprintf("EXAM: %s %s %s %s", exam.Subject, exam.CourseNumber, exam.Section, exam.CRN),
			exam.CourseName,
			s.formatter.Date(exam.StartTime),
			s.formatter.Time(exam.StartTime),
			s.formatter.Time(exam.EndTime),
			exam.Location,
		})
	}
	title := s.cfg.Title
	if desc := describeFilter(filter); desc != "" {
		title += " (" + desc + ")"
	}
	return export.Dataset{
		Title:   title,
		Headers: scheduleHeaders,
		Rows:    rows,
		Widths:  []float64{3, 4, 1, 1, 1, 2},
	}
}

// Render builds the document of filter in format.
func (s *ScheduleExportService) Render(ctx context.Context, format string, filter models.ExamFilter) (*RenderedExport, error) {
	writer, ok := s.writers[strings.ToLower(format)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	exams, total, err := s.Collect(ctx, filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writer.Write(&buf, s.Dataset(exams, filter)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("schedule exported",
		zap.String("format", writer.Extension()),
		zap.Int("rows", len(exams)),
		zap.Int("total", total),
	)
	return &RenderedExport{
		Filename:    ExportFilename(filter, writer.Extension()),
		ContentType: writer.ContentType(),
		Rows:        len(exams),
		Body:        buf.Bytes(),
	}, nil
}

func describeFilter(filter models.ExamFilter) string {
	var parts []string
	if filter.Query != "" {
		parts = append(parts, fmt.Sprintf("search %q", filter.Query))
	}
	if filter.Date != "" {
		parts = append(parts, filter.Date)
	}
	if filter.Location != "" {
		parts = append(parts, filter.Location)
	}
	return strings.Join(parts, ", ")
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-z0-9-]+`)

// ExportFilename names the download, e.g. final-exams-2025-12-08-sci.csv.
func ExportFilename(filter models.ExamFilter, ext string) string {
	name := "final-exams"
	for _, part := range []string{filter.Date, filter.Location, filter.Query} {
		part = strings.Trim(unsafeFilenameChars.ReplaceAllString(strings.ToLower(part), "-"), "-")
		if part != "" {
			name += "-" + part
		}
	}
	return name + "." + ext
}
