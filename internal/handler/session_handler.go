package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/benglish/academic-core/internal/models"
	"github.com/benglish/academic-core/internal/service"
	appErrors "github.com/benglish/academic-core/pkg/errors"
	"github.com/benglish/academic-core/pkg/response"
)

type sessionService interface {
	Create(ctx context.Context, req service.CreateSessionRequest) (*service.SessionDetail, error)
	Get(ctx context.Context, id string) (*service.SessionDetail, error)
	Publish(ctx context.Context, id string) (*service.SessionDetail, error)
	Unpublish(ctx context.Context, id string) (*service.SessionDetail, error)
	Start(ctx context.Context, id string) (*service.SessionDetail, error)
	Cancel(ctx context.Context, id string) (*service.SessionDetail, error)
	Resolve(ctx context.Context, sessionID, studentID string) (*service.Resolution, error)
	Reserve(ctx context.Context, sessionID, studentID string) (*models.SessionEnrollment, error)
	CancelReservation(ctx context.Context, sessionID, studentID string) error
	MarkAttendance(ctx context.Context, sessionID string, req service.MarkAttendanceRequest) ([]models.SessionEnrollment, error)
	SetGrade(ctx context.Context, seatID string, req service.SetGradeRequest) (*models.SessionEnrollment, error)
	RecordNovelty(ctx context.Context, sessionID string, req service.RecordNoveltyRequest) (*service.SessionDetail, error)
	AddAttachment(ctx context.Context, sessionID, fileName, contentType string, r io.Reader) (*models.NoveltyAttachment, error)
	Finish(ctx context.Context, sessionID string) (*service.FinishResult, error)
}

// SessionHandler exposes the session lifecycle, reservations and closure.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(service sessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

type reservationRequest struct {
	StudentID string `json:"student_id"`
}

// Create godoc
// @Summary Create an academic session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body service.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req service.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	session, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Get godoc
// @Summary Session detail with seats
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Publish godoc
// @Summary Publish a session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/publish [post]
func (h *SessionHandler) Publish(c *gin.Context) {
	h.transition(c, h.service.Publish)
}

// Unpublish godoc
// @Summary Withdraw a session from the agenda
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/unpublish [post]
func (h *SessionHandler) Unpublish(c *gin.Context) {
	h.transition(c, h.service.Unpublish)
}

// Start godoc
// @Summary Start a session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/start [post]
func (h *SessionHandler) Start(c *gin.Context) {
	h.transition(c, h.service.Start)
}

// Cancel godoc
// @Summary Cancel a session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

func (h *SessionHandler) transition(c *gin.Context, fn func(context.Context, string) (*service.SessionDetail, error)) {
	session, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Resolve godoc
// @Summary Concrete subject a session stands for a student
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param studentId query string false "Student ID (required for non-students)"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/resolution [get]
func (h *SessionHandler) Resolve(c *gin.Context) {
	studentID, err := actingStudent(claimsFromContext(c), c.Query("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	resolution, err := h.service.Resolve(c.Request.Context(), c.Param("id"), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resolution, nil)
}

// Reserve godoc
// @Summary Reserve a seat
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body reservationRequest false "Student (required for non-students)"
// @Success 201 {object} response.Envelope
// @Router /sessions/{id}/reservations [post]
func (h *SessionHandler) Reserve(c *gin.Context) {
	studentID, ok := h.reservationStudent(c)
	if !ok {
		return
	}
	seat, err := h.service.Reserve(c.Request.Context(), c.Param("id"), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, seat)
}

// CancelReservation godoc
// @Summary Release a reserved seat
// @Tags Sessions
// @Accept json
// @Param id path string true "Session ID"
// @Param payload body reservationRequest false "Student (required for non-students)"
// @Success 204
// @Router /sessions/{id}/reservations [delete]
func (h *SessionHandler) CancelReservation(c *gin.Context) {
	studentID, ok := h.reservationStudent(c)
	if !ok {
		return
	}
	if err := h.service.CancelReservation(c.Request.Context(), c.Param("id"), studentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *SessionHandler) reservationStudent(c *gin.Context) (string, bool) {
	var req reservationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reservation payload"))
			return "", false
		}
	}
	studentID, err := actingStudent(claimsFromContext(c), req.StudentID)
	if err != nil {
		response.Error(c, err)
		return "", false
	}
	return studentID, true
}

// MarkAttendance godoc
// @Summary Mark attendance on a started session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.MarkAttendanceRequest true "Attendance entries"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendance [post]
func (h *SessionHandler) MarkAttendance(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}
	seats, err := h.service.MarkAttendance(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, seats, nil)
}

// SetGrade godoc
// @Summary Set or clear the grade of a seat
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session enrollment ID"
// @Param payload body service.SetGradeRequest true "Grade (null clears)"
// @Success 200 {object} response.Envelope
// @Router /session-enrollments/{id}/grade [put]
func (h *SessionHandler) SetGrade(c *gin.Context) {
	var req service.SetGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload"))
		return
	}
	seat, err := h.service.SetGrade(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, seat, nil)
}

// RecordNovelty godoc
// @Summary Record why a session closes without attendance
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.RecordNoveltyRequest true "Novelty"
// @Success 200 {object} response.Envelope
// @Router /session/{id}/novelty [post]
func (h *SessionHandler) RecordNovelty(c *gin.Context) {
	var req service.RecordNoveltyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid novelty payload"))
		return
	}
	session, err := h.service.RecordNovelty(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// UploadAttachment godoc
// @Summary Attach a file to a session novelty
// @Tags Sessions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Session ID"
// @Param file formData file true "Attachment"
// @Success 201 {object} response.Envelope
// @Router /session/{id}/novelty/attachments [post]
func (h *SessionHandler) UploadAttachment(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read file"))
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	attachment, err := h.service.AddAttachment(c.Request.Context(), c.Param("id"), fileHeader.Filename, contentType, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, attachment)
}

// Finish godoc
// @Summary Close a started session
// @Description Closes through attendance when any seat holds, otherwise requires a novelty.
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/finish [post]
func (h *SessionHandler) Finish(c *gin.Context) {
	result, err := h.service.Finish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
