package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	reqidmiddleware "github.com/benglish/academic-core/pkg/middleware/requestid"
	"github.com/benglish/academic-core/pkg/response"
)

// WithResponseMeta seeds the metadata every success envelope carries: the request id and
// the time the request entered the API. Must run after the request id middleware.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := map[string]interface{}{}
		if id := reqidmiddleware.Value(c); id != "" {
			meta["request_id"] = id
		}
		c.Set(response.MetaKey, meta)
		c.Set(response.StartedKey, time.Now())
		c.Next()
	}
}
