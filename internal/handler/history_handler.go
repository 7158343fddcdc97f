package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/benglish/academic-core/internal/models"
	"github.com/benglish/academic-core/internal/service"
	appErrors "github.com/benglish/academic-core/pkg/errors"
	"github.com/benglish/academic-core/pkg/response"
)

type historyService interface {
	List(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryDetail, error)
	GenerateRetroactive(ctx context.Context, studentID string, req service.RetroactiveHistoryRequest) ([]models.AcademicHistory, error)
	UpdateAnnotations(ctx context.Context, id string, req service.UpdateHistoryRequest) (*models.AcademicHistory, error)
}

type historyExporter interface {
	Generate(ctx context.Context, studentID string, format service.ExportFormat, owner string) (*service.ExportResult, error)
	ParseToken(token string) (owner, relPath string, err error)
	Open(relPath string) (*os.File, error)
	Import(ctx context.Context, format service.ExportFormat, r io.Reader) (*service.ImportReport, error)
}

var exportContentTypes = map[string]string{
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".csv":  "text/csv; charset=utf-8",
	".pdf":  "application/pdf",
}

// HistoryHandler serves the academic history ledger and its exports.
type HistoryHandler struct {
	history historyService
	exports historyExporter
}

// NewHistoryHandler constructs the handler.
func NewHistoryHandler(history historyService, exports historyExporter) *HistoryHandler {
	return &HistoryHandler{history: history, exports: exports}
}

// List godoc
// @Summary Academic history of a student
// @Tags History
// @Produce json
// @Param id path string true "Student ID"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/history [get]
func (h *HistoryHandler) List(c *gin.Context) {
	filter := models.HistoryFilter{StudentID: c.Param("id")}
	for _, bound := range []struct {
		name string
		dest **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := strings.TrimSpace(c.Query(bound.name))
		if raw == "" {
			continue
		}
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, bound.name+" must use YYYY-MM-DD"))
			return
		}
		*bound.dest = &parsed
	}
	rows, err := h.history.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil, map[string]interface{}{"count": len(rows)})
}

// Retroactive godoc
// @Summary Generate history for units a student already covered
// @Tags History
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.RetroactiveHistoryRequest true "Target unit"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/history/retroactive [post]
func (h *HistoryHandler) Retroactive(c *gin.Context) {
	var req service.RetroactiveHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid retroactive payload"))
		return
	}
	rows, err := h.history.GenerateRetroactive(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rows)
}

// Update godoc
// @Summary Update grade, notes or novedad of a history row
// @Tags History
// @Accept json
// @Produce json
// @Param id path string true "History ID"
// @Param payload body service.UpdateHistoryRequest true "Annotations"
// @Success 200 {object} response.Envelope
// @Router /history/{id} [patch]
func (h *HistoryHandler) Update(c *gin.Context) {
	var req service.UpdateHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid history payload"))
		return
	}
	row, err := h.history.UpdateAnnotations(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}

// Export godoc
// @Summary Render a student's history and return a signed download URL
// @Tags History
// @Produce json
// @Param id path string true "Student ID"
// @Param format query string false "xlsx, csv or pdf" default(xlsx)
// @Success 201 {object} response.Envelope
// @Router /students/{id}/history/export [post]
func (h *HistoryHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(service.FormatXLSX))))
	result, err := h.exports.Generate(c.Request.Context(), c.Param("id"), format, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download an export via signed token
// @Tags History
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /exports/{token} [get]
func (h *HistoryHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	_, relPath, err := h.exports.ParseToken(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exports.Open(relPath)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export"))
		return
	}

	name := filepath.Base(relPath)
	contentType, ok := exportContentTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", name))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}

// Import godoc
// @Summary Import a history workbook or CSV
// @Description Lines matching an existing row update its annotations, other lines are appended.
// @Tags History
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "History file (.xlsx or .csv)"
// @Param format query string false "Overrides the format taken from the file extension"
// @Success 200 {object} response.Envelope
// @Router /history/import [post]
func (h *HistoryHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	format := service.ExportFormat(strings.ToLower(c.Query("format")))
	if format == "" {
		format = service.ExportFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), "."))
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	report, err := h.exports.Import(c.Request.Context(), format, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
