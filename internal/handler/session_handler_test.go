package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benglish/academic-core/internal/models"
	"github.com/benglish/academic-core/internal/service"
	appErrors "github.com/benglish/academic-core/pkg/errors"
)

type fakeSessionSrv struct {
	err error

	reservedSession string
	reservedStudent string
	cancelled       string
	novelty         service.RecordNoveltyRequest
	attachmentName  string
	attachmentBody  string
	attendance      service.MarkAttendanceRequest
	transitioned    string
}

func (f *fakeSessionSrv) detail(id string) (*service.SessionDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.SessionDetail{AcademicSession: models.AcademicSession{ID: id}}, nil
}

func (f *fakeSessionSrv) Create(_ context.Context, req service.CreateSessionRequest) (*service.SessionDetail, error) {
	return f.detail("session-new")
}

func (f *fakeSessionSrv) Get(_ context.Context, id string) (*service.SessionDetail, error) {
	return f.detail(id)
}

func (f *fakeSessionSrv) Publish(_ context.Context, id string) (*service.SessionDetail, error) {
	f.transitioned = "publish"
	return f.detail(id)
}

func (f *fakeSessionSrv) Unpublish(_ context.Context, id string) (*service.SessionDetail, error) {
	f.transitioned = "unpublish"
	return f.detail(id)
}

func (f *fakeSessionSrv) Start(_ context.Context, id string) (*service.SessionDetail, error) {
	f.transitioned = "start"
	return f.detail(id)
}

func (f *fakeSessionSrv) Cancel(_ context.Context, id string) (*service.SessionDetail, error) {
	f.transitioned = "cancel"
	return f.detail(id)
}

func (f *fakeSessionSrv) Resolve(_ context.Context, sessionID, studentID string) (*service.Resolution, error) {
	return &service.Resolution{SessionID: sessionID, StudentID: studentID, Applicable: true}, f.err
}

func (f *fakeSessionSrv) Reserve(_ context.Context, sessionID, studentID string) (*models.SessionEnrollment, error) {
	f.reservedSession, f.reservedStudent = sessionID, studentID
	if f.err != nil {
		return nil, f.err
	}
	return &models.SessionEnrollment{ID: "seat-1", SessionID: sessionID, StudentID: studentID, State: models.SeatReserved}, nil
}

func (f *fakeSessionSrv) CancelReservation(_ context.Context, sessionID, studentID string) error {
	f.cancelled = sessionID + "/" + studentID
	return f.err
}

func (f *fakeSessionSrv) MarkAttendance(_ context.Context, _ string, req service.MarkAttendanceRequest) ([]models.SessionEnrollment, error) {
	f.attendance = req
	return nil, f.err
}

func (f *fakeSessionSrv) SetGrade(_ context.Context, seatID string, _ service.SetGradeRequest) (*models.SessionEnrollment, error) {
	return &models.SessionEnrollment{ID: seatID}, f.err
}

func (f *fakeSessionSrv) RecordNovelty(_ context.Context, id string, req service.RecordNoveltyRequest) (*service.SessionDetail, error) {
	f.novelty = req
	return f.detail(id)
}

func (f *fakeSessionSrv) AddAttachment(_ context.Context, sessionID, fileName, _ string, r io.Reader) (*models.NoveltyAttachment, error) {
	body, _ := io.ReadAll(r)
	f.attachmentName, f.attachmentBody = fileName, string(body)
	return &models.NoveltyAttachment{ID: "att-1", SessionID: sessionID, FileName: fileName}, f.err
}

func (f *fakeSessionSrv) Finish(_ context.Context, id string) (*service.FinishResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.FinishResult{Session: &models.AcademicSession{ID: id, State: models.SessionDone}, Path: service.ClosureNormal, HistoryRows: 2}, nil
}

func TestReserveActsForTokenStudent(t *testing.T) {
	srv := &fakeSessionSrv{}
	h := NewSessionHandler(srv)

	c, rec := newContext(t, http.MethodPost, "/sessions/s-1/reservations", nil, studentClaims, param("id", "s-1"))
	h.Reserve(c)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "s-1", srv.reservedSession)
	assert.Equal(t, "stu-1", srv.reservedStudent)
}

func TestReserveStudentCannotActForAnother(t *testing.T) {
	srv := &fakeSessionSrv{}
	h := NewSessionHandler(srv)

	c, rec := newContext(t, http.MethodPost, "/sessions/s-1/reservations", map[string]string{"student_id": "stu-2"}, studentClaims, param("id", "s-1"))
	h.Reserve(c)

	assertErrorCode(t, rec, http.StatusForbidden, appErrors.ErrForbidden.Code)
	assert.Empty(t, srv.reservedSession)
}

func TestReserveAdminNamesStudent(t *testing.T) {
	srv := &fakeSessionSrv{}
	h := NewSessionHandler(srv)

	c, rec := newContext(t, http.MethodPost, "/sessions/s-1/reservations", nil, adminClaims, param("id", "s-1"))
	h.Reserve(c)
	assertErrorCode(t, rec, http.StatusBadRequest, appErrors.ErrValidation.Code)

	c, rec = newContext(t, http.MethodPost, "/sessions/s-1/reservations", map[string]string{"student_id": "stu-9"}, adminClaims, param("id", "s-1"))
	h.Reserve(c)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "stu-9", srv.reservedStudent)
}

func TestReserveMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{appErrors.ErrSessionBusy, http.StatusConflict, "SESSION_BUSY"},
		{appErrors.Clone(appErrors.ErrNotEligible, "BS-1-2 requires BC-1"), http.StatusUnprocessableEntity, "NOT_ELIGIBLE"},
		{appErrors.ErrNotApplicable, http.StatusUnprocessableEntity, "SESSION_NOT_APPLICABLE"},
		{appErrors.Clone(appErrors.ErrConflict, "session is full"), http.StatusConflict, "CONFLICT"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			h := NewSessionHandler(&fakeSessionSrv{err: tc.err})
			c, rec := newContext(t, http.MethodPost, "/sessions/s-1/reservations", nil, studentClaims, param("id", "s-1"))
			h.Reserve(c)
			assertErrorCode(t, rec, tc.status, tc.code)
		})
	}
}

func TestCancelReservation(t *testing.T) {
	srv := &fakeSessionSrv{}
	h := NewSessionHandler(srv)

	c, rec := newContext(t, http.MethodDelete, "/sessions/s-1/reservations", nil, studentClaims, param("id", "s-1"))
	h.CancelReservation(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "s-1/stu-1", srv.cancelled)
}

func TestSessionTransitions(t *testing.T) {
	srv := &fakeSessionSrv{}
	h := NewSessionHandler(srv)

	for name, fn := range map[string]func(*SessionHandler, *gin.Context){
		"publish":   (*SessionHandler).Publish,
		"unpublish": (*SessionHandler).Unpublish,
		"start":     (*SessionHandler).Start,
		"cancel":    (*SessionHandler).Cancel,
	} {
		c, rec := newContext(t, http.MethodPost, "/sessions/s-1/"+name, nil, teacherClaims, param("id", "s-1"))
		fn(h, c)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, name, srv.transitioned)
	}

	srv.err = appErrors.ErrInvalidTransition
	c, rec := newContext(t, http.MethodPost, "/sessions/s-1/start", nil, teacherClaims, param("id", "s-1"))
	h.Start(c)
	assertErrorCode(t, rec, http.StatusConflict, "INVALID_TRANSITION")
}

func TestCreateSessionRejectsMalformedBody(t *testing.T) {
	h := NewSessionHandler(&fakeSessionSrv{})
	c, rec := newContext(t, http.MethodPost, "/sessions", "{", adminClaims)
	h.Create(c)
	assertErrorCode(t, rec, http.StatusBadRequest, appErrors.ErrValidation.Code)
}

func TestRecordNovelty(t *testing.T) {
	srv := &fakeSessionSrv{}
	h := NewSessionHandler(srv)

	body := map[string]string{"novelty_type": "material", "observation": "projector broken"}
	c, rec := newContext(t, http.MethodPost, "/session/s-1/novelty", body, teacherClaims, param("id", "s-1"))
	h.RecordNovelty(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.NoveltyMaterial, srv.novelty.NoveltyType)
	require.NotNil(t, srv.novelty.Observation)
	assert.Equal(t, "projector broken", *srv.novelty.Observation)
}

func TestUploadAttachment(t *testing.T) {
	srv := &fakeSessionSrv{}
	h := NewSessionHandler(srv)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "evidence.jpg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("image-bytes"))
	require.NoError(t, writer.Close())

	c, rec := newContext(t, http.MethodPost, "/session/s-1/novelty/attachments", nil, teacherClaims, param("id", "s-1"))
	c.Request = httptest.NewRequest(http.MethodPost, "/session/s-1/novelty/attachments", &buf)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	h.UploadAttachment(c)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "evidence.jpg", srv.attachmentName)
	assert.Equal(t, "image-bytes", srv.attachmentBody)
}

func TestUploadAttachmentRequiresFile(t *testing.T) {
	h := NewSessionHandler(&fakeSessionSrv{})
	c, rec := newContext(t, http.MethodPost, "/session/s-1/novelty/attachments", nil, teacherClaims, param("id", "s-1"))
	h.UploadAttachment(c)
	assertErrorCode(t, rec, http.StatusBadRequest, appErrors.ErrValidation.Code)
}

func TestFinish(t *testing.T) {
	h := NewSessionHandler(&fakeSessionSrv{})
	c, rec := newContext(t, http.MethodPost, "/sessions/s-1/finish", nil, teacherClaims, param("id", "s-1"))
	h.Finish(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var result service.FinishResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &result))
	assert.Equal(t, service.ClosureNormal, result.Path)
	assert.Equal(t, 2, result.HistoryRows)

	h = NewSessionHandler(&fakeSessionSrv{err: appErrors.ErrNoveltyRequired})
	c, rec = newContext(t, http.MethodPost, "/sessions/s-1/finish", nil, teacherClaims, param("id", "s-1"))
	h.Finish(c)
	assertErrorCode(t, rec, http.StatusUnprocessableEntity, "NOVELTY_REQUIRED")
}

func TestMarkAttendanceBindsEntries(t *testing.T) {
	srv := &fakeSessionSrv{}
	h := NewSessionHandler(srv)
	body := `{"entries":[{"student_id":"stu-1","state":"attended","grade":"4.5"}]}`
	c, rec := newContext(t, http.MethodPost, "/sessions/s-1/attendance", body, teacherClaims, param("id", "s-1"))
	h.MarkAttendance(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, srv.attendance.Entries, 1)
	assert.Equal(t, models.SeatAttended, srv.attendance.Entries[0].State)
	assert.Equal(t, "4.5", srv.attendance.Entries[0].Grade.String())
}
