package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/benglish/academic-core/internal/middleware"
	"github.com/benglish/academic-core/internal/models"
	appErrors "github.com/benglish/academic-core/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actingStudent resolves which student a request acts for. Students always act for
// themselves; other roles must name the student explicitly.
func actingStudent(claims *models.JWTClaims, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if claims == nil {
		return "", appErrors.ErrUnauthorized
	}
	if claims.Role == models.RoleStudent {
		if claims.StudentID == "" {
			return "", appErrors.Clone(appErrors.ErrForbidden, "token carries no student")
		}
		if requested != "" && requested != claims.StudentID {
			return "", appErrors.ErrForbidden
		}
		return claims.StudentID, nil
	}
	if requested == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	return requested, nil
}
