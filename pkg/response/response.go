package response

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/benglish/academic-core/internal/models"
	appErrors "github.com/benglish/academic-core/pkg/errors"
	"github.com/benglish/academic-core/pkg/i18n"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// Context keys filled by the response meta middleware.
const (
	MetaKey    = "response_meta"
	StartedKey = "response_started"
)

var translator atomic.Pointer[i18n.Translator]

// UseTranslator installs the translator used to localise error messages.
func UseTranslator(t *i18n.Translator) {
	translator.Store(t)
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data, Pagination: pagination}
	merged := requestMeta(c)
	if len(meta) > 0 {
		for k, v := range meta[0] {
			merged[k] = v
		}
	}
	if len(merged) > 0 {
		envelope.Meta = merged
	}
	c.JSON(status, envelope)
}

// requestMeta copies the request-scoped metadata and stamps the elapsed time.
func requestMeta(c *gin.Context) map[string]interface{} {
	out := map[string]interface{}{}
	if stored, ok := c.Get(MetaKey); ok {
		if typed, ok := stored.(map[string]interface{}); ok {
			for k, v := range typed {
				out[k] = v
			}
		}
	}
	if started, ok := c.Get(StartedKey); ok {
		if at, ok := started.(time.Time); ok {
			out["processing_time_ms"] = time.Since(at).Milliseconds()
		}
	}
	return out
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error sends an error response converting the error to the common structure.
// The message is localised from Accept-Language; wrapped causes never reach the client.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	out := *appErr
	out.Message = localise(c, appErr)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: &out})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func localise(c *gin.Context, appErr *appErrors.Error) string {
	t := translator.Load()
	if t == nil {
		return appErr.Message
	}
	// Only the template message of a code is translated; call-site overrides carry detail.
	if tmpl := template(appErr.Code); tmpl != "" && tmpl != appErr.Message {
		return appErr.Message
	}
	return t.Message(c.GetHeader("Accept-Language"), appErr.Code, appErr.Message)
}

func template(code string) string {
	for _, e := range []*appErrors.Error{
		appErrors.ErrNotFound, appErrors.ErrForbidden, appErrors.ErrUnauthorized,
		appErrors.ErrValidation, appErrors.ErrInternal, appErrors.ErrIntegrity,
		appErrors.ErrSessionBusy, appErrors.ErrNoveltyRequired, appErrors.ErrNoveltyAttachmentMissing,
		appErrors.ErrNotEligible, appErrors.ErrNotApplicable, appErrors.ErrOutsideAudience,
		appErrors.ErrInvalidTransition,
	} {
		if e.Code == code {
			return e.Message
		}
	}
	return ""
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
