package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/benglish/academic-core/internal/models"
	appErrors "github.com/benglish/academic-core/pkg/errors"
	"github.com/benglish/academic-core/pkg/export"
	"github.com/benglish/academic-core/pkg/storage"
)

// ExportFormat is a supported history file format.
type ExportFormat string

// Export formats.
const (
	FormatXLSX ExportFormat = "xlsx"
	FormatCSV  ExportFormat = "csv"
	FormatPDF  ExportFormat = "pdf"
)

const historyDateLayout = "02/01/2006"

// History workbook columns, in order.
const (
	colDate       = "Fecha"
	colClass      = "Clase"
	colTeacher    = "Docente"
	colNovelty    = "Novedad"
	colCourseCode = "Código curso"
	colNote       = "Nota"
	colStudent    = "Estudiante"
	colAttendance = "Asistencia"
	colGrade      = "Calificación"
)

// HistoryColumns is the header of exported history files.
var HistoryColumns = []string{colDate, colClass, colTeacher, colNovelty, colCourseCode, colNote, colStudent, colAttendance, colGrade}

var attendanceLabels = map[models.AttendanceStatus]string{
	models.AttendanceAttended:  "Asistió",
	models.AttendanceAbsent:    "Ausente",
	models.AttendanceJustified: "Justificado",
}

var studentCodePattern = regexp.MustCompile(`\(([^()]+)\)\s*$`)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type datasetParser interface {
	Parse(r io.Reader, expected []string) (export.Dataset, error)
}

type historyBook interface {
	List(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryDetail, error)
	FindByDate(ctx context.Context, studentID, subjectID string, date time.Time) (*models.AcademicHistory, error)
	RecordAttendance(ctx context.Context, req RecordAttendanceRequest) (*models.AcademicHistory, bool, error)
	UpdateAnnotations(ctx context.Context, id string, req UpdateHistoryRequest) (*models.AcademicHistory, error)
}

type teacherNameReader interface {
	FindByName(ctx context.Context, name string) (*models.Teacher, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string       `json:"-"`
	Token        string       `json:"token"`
	URL          string       `json:"url"`
	Format       ExportFormat `json:"format"`
	Rows         int          `json:"rows"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// ImportIssue reports a rejected line of an imported file. Row counts data lines from 1.
type ImportIssue struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportReport summarises a history import.
type ImportReport struct {
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Issues  []ImportIssue `json:"issues"`
}

// ExportService renders academic history to files and reads them back.
type ExportService struct {
	history  historyBook
	students studentCodeReader
	teachers teacherNameReader
	catalog  catalogLoader
	storage  fileStorage
	signer   *storage.SignedURLSigner
	csv      *export.CSVExporter
	xlsx     *export.XLSXExporter
	pdf      datasetRenderer
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(history historyBook, students studentCodeReader, teachers teacherNameReader, catalog catalogLoader, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		history:  history,
		students: students,
		teachers: teachers,
		catalog:  catalog,
		storage:  storage,
		signer:   signer,
		csv:      export.NewCSVExporter(),
		xlsx:     export.NewXLSXExporter("Bitácora"),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
		cfg:      cfg,
	}
}

// HistoryDataset builds the history table of a student.
func (s *ExportService) HistoryDataset(ctx context.Context, filter models.HistoryFilter) (export.Dataset, error) {
	rows, err := s.history.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, err
	}
	ds := export.Dataset{Title: "Bitácora académica", Headers: HistoryColumns, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		grade := ""
		if row.Grade.Valid {
			grade = row.Grade.Decimal.String()
		}
		ds.Rows = append(ds.Rows, map[string]string{
			colDate:       row.SessionDate.Format(historyDateLayout),
			colClass:      row.SubjectName,
			colTeacher:    derefString(row.TeacherName),
			colNovelty:    row.Novedad,
			colCourseCode: row.SubjectCode,
			colNote:       row.Notes,
			colStudent:    fmt.Sprintf("%s (%s)", row.StudentName, row.StudentCode),
			colAttendance: attendanceLabels[row.AttendanceStatus],
			colGrade:      grade,
		})
	}
	if len(rows) > 0 {
		ds.Title = fmt.Sprintf("Bitácora académica %s", rows[0].StudentCode)
	}
	return ds, nil
}

// Generate renders the history of a student and stores it behind a signed URL.
func (s *ExportService) Generate(ctx context.Context, studentID string, format ExportFormat, owner string) (*ExportResult, error) {
	dataset, err := s.HistoryDataset(ctx, models.HistoryFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch format {
	case FormatXLSX:
		payload, err = s.xlsx.Render(dataset)
	case FormatCSV:
		payload, err = s.csv.Render(dataset)
	case FormatPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, internalError(err, "failed to render history")
	}

	filename := fmt.Sprintf("historial_%s_%s.%s", sanitizeFilename(studentID), time.Now().UTC().Format("20060102_150405"), format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, internalError(err, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(owner, relPath)
	if err != nil {
		return nil, internalError(err, "failed to sign export")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("history exported",
		zap.String("student_id", studentID),
		zap.String("format", string(format)),
		zap.Int("rows", len(dataset.Rows)))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:       format,
		Rows:         len(dataset.Rows),
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates a download token and returns the stored file path.
func (s *ExportService) ParseToken(token string) (owner, relPath string, err error) {
	owner, relPath, err = s.signer.Parse(token)
	if err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download link")
	}
	return owner, relPath, nil
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, internalError(err, "failed to open export")
	}
	return file, nil
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// Import reads a history file and writes each line back. A line matching an existing row
// for the same student, subject and date updates its grade, notes and novedad; any other
// line is appended as a session-less row. Bad lines are reported and skipped.
func (s *ExportService) Import(ctx context.Context, format ExportFormat, r io.Reader) (*ImportReport, error) {
	var parser datasetParser
	switch format {
	case FormatXLSX:
		parser = s.xlsx
	case FormatCSV:
		parser = s.csv
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot import %q files", format))
	}
	dataset, err := parser.Parse(r, HistoryColumns)
	if err != nil {
		return nil, validationError(err, "invalid history file")
	}

	report := &ImportReport{}
	for i, row := range dataset.Rows {
		updated, err := s.importRow(ctx, row)
		if err != nil {
			report.Issues = append(report.Issues, ImportIssue{Row: i + 1, Message: appErrors.FromError(err).Message})
			continue
		}
		if updated {
			report.Updated++
		} else {
			report.Created++
		}
	}
	s.logger.Info("history imported",
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("issues", len(report.Issues)))
	return report, nil
}

func (s *ExportService) importRow(ctx context.Context, row map[string]string) (bool, error) {
	date, err := time.Parse(historyDateLayout, strings.TrimSpace(row[colDate]))
	if err != nil {
		return false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q", row[colDate]))
	}
	match := studentCodePattern.FindStringSubmatch(row[colStudent])
	if match == nil {
		return false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %q has no code", row[colStudent]))
	}
	student, err := s.students.FindByCode(ctx, strings.TrimSpace(match[1]))
	if err != nil {
		return false, lookupError(err, "student")
	}
	subject, err := s.subjectByCode(ctx, student, strings.TrimSpace(row[colCourseCode]))
	if err != nil {
		return false, err
	}
	status, err := parseAttendance(row[colAttendance])
	if err != nil {
		return false, err
	}
	grade, err := parseGrade(row[colGrade])
	if err != nil {
		return false, err
	}
	notes := row[colNote]
	novedad := row[colNovelty]

	existing, err := s.history.FindByDate(ctx, student.ID, subject.ID, date)
	if err == nil {
		_, err = s.history.UpdateAnnotations(ctx, existing.ID, UpdateHistoryRequest{
			Grade:      grade,
			ClearGrade: grade == nil,
			Notes:      &notes,
			Novedad:    &novedad,
		})
		return true, err
	}
	if !errors.Is(err, appErrors.ErrNotFound) {
		return false, err
	}

	var teacherID *string
	if name := strings.TrimSpace(row[colTeacher]); name != "" {
		teacher, err := s.teachers.FindByName(ctx, name)
		if err != nil {
			return false, lookupError(err, "teacher")
		}
		teacherID = &teacher.ID
	}
	_, _, err = s.history.RecordAttendance(ctx, RecordAttendanceRequest{
		StudentID:        student.ID,
		SubjectID:        subject.ID,
		SessionDate:      date,
		AttendanceStatus: status,
		Grade:            grade,
		TeacherID:        teacherID,
		Notes:            notes,
		Novedad:          novedad,
	})
	return false, err
}

func (s *ExportService) subjectByCode(ctx context.Context, student *models.Student, code string) (*models.Subject, error) {
	cat, err := s.catalog.Catalog(ctx, derefString(student.ProgramID))
	if err != nil {
		return nil, err
	}
	for _, subject := range cat.Subjects() {
		if strings.EqualFold(subject.Code, code) {
			subject := subject
			return &subject, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %q not found", code))
}

func parseAttendance(label string) (models.AttendanceStatus, error) {
	label = strings.TrimSpace(label)
	for status, l := range attendanceLabels {
		if strings.EqualFold(l, label) || strings.EqualFold(string(status), label) {
			return status, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown attendance %q", label))
}

func parseGrade(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(strings.Replace(raw, ",", ".", 1))
	if raw == "" {
		return nil, nil
	}
	grade, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid grade %q", raw))
	}
	return &grade, nil
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
