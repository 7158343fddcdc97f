package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/benglish/academic-core/internal/middleware"
	"github.com/benglish/academic-core/internal/models"
)

type testEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *testError             `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

type testError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var (
	adminClaims   = &models.JWTClaims{UserID: "user-admin", Role: models.RoleAdmin}
	teacherClaims = &models.JWTClaims{UserID: "user-teacher", Role: models.RoleTeacher, TeacherID: "teacher-1"}
	studentClaims = &models.JWTClaims{UserID: "user-stu-1", Role: models.RoleStudent, StudentID: "stu-1"}
)

// newContext builds a gin context for a direct handler call. body may be nil, a string or
// a value marshalled to JSON.
func newContext(t *testing.T, method, target string, body interface{}, claims *models.JWTClaims, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, reader)
	if reader != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	c.Params = params
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func param(key, value string) gin.Param {
	return gin.Param{Key: key, Value: value}
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	require.Equal(t, code, env.Error.Code)
}

