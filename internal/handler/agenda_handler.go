package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/benglish/academic-core/internal/models"
	"github.com/benglish/academic-core/internal/service"
	appErrors "github.com/benglish/academic-core/pkg/errors"
	"github.com/benglish/academic-core/pkg/response"
)

type agendaService interface {
	Window(span time.Duration) models.AgendaWindow
	Agenda(ctx context.Context, userID, studentID string, window models.AgendaWindow) ([]service.AgendaItem, error)
	MarkViewed(ctx context.Context, userID, sessionID string) error
}

// AgendaHandler serves the student agenda.
type AgendaHandler struct {
	service agendaService
}

// NewAgendaHandler constructs the handler.
func NewAgendaHandler(service agendaService) *AgendaHandler {
	return &AgendaHandler{service: service}
}

// Agenda godoc
// @Summary Upcoming sessions visible to a student
// @Tags Agenda
// @Produce json
// @Param window query string false "Window length as a duration, e.g. 72h"
// @Param from query string false "Window start (RFC3339), requires to"
// @Param to query string false "Window end (RFC3339)"
// @Param studentId query string false "Student ID (required for non-students)"
// @Success 200 {object} response.Envelope
// @Router /agenda [get]
func (h *AgendaHandler) Agenda(c *gin.Context) {
	claims := claimsFromContext(c)
	studentID, err := actingStudent(claims, c.Query("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	window, err := h.window(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.service.Agenda(c.Request.Context(), claims.UserID, studentID, window)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil, map[string]interface{}{
		"from":  window.From,
		"to":    window.To,
		"count": len(items),
	})
}

func (h *AgendaHandler) window(c *gin.Context) (models.AgendaWindow, error) {
	if from, to := strings.TrimSpace(c.Query("from")), strings.TrimSpace(c.Query("to")); from != "" || to != "" {
		start, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return models.AgendaWindow{}, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339")
		}
		end, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return models.AgendaWindow{}, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339")
		}
		if !end.After(start) {
			return models.AgendaWindow{}, appErrors.Clone(appErrors.ErrValidation, "to must be after from")
		}
		return models.AgendaWindow{From: start.UTC(), To: end.UTC()}, nil
	}
	var span time.Duration
	if raw := strings.TrimSpace(c.Query("window")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return models.AgendaWindow{}, appErrors.Clone(appErrors.ErrValidation, "window must be a positive duration")
		}
		span = parsed
	}
	return h.service.Window(span), nil
}

// MarkViewed godoc
// @Summary Mark a session notification as viewed
// @Tags Agenda
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 204
// @Router /agenda/{sessionId}/viewed [post]
func (h *AgendaHandler) MarkViewed(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.MarkViewed(c.Request.Context(), claims.UserID, c.Param("sessionId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
