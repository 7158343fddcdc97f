package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/benglish/academic-core/internal/service"
	"github.com/benglish/academic-core/pkg/response"
)

type progressService interface {
	Compute(ctx context.Context, studentID string) (*service.StudentProgress, error)
	Recompute(ctx context.Context, studentID string) (*service.StudentProgress, error)
}

// ProgressHandler serves derived student progress.
type ProgressHandler struct {
	service progressService
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(service progressService) *ProgressHandler {
	return &ProgressHandler{service: service}
}

// Get godoc
// @Summary Student progress derived from the history ledger
// @Tags Progress
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/progress [get]
func (h *ProgressHandler) Get(c *gin.Context) {
	progress, err := h.service.Compute(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// Recompute godoc
// @Summary Recompute and store student progress
// @Tags Progress
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/progress/recompute [post]
func (h *ProgressHandler) Recompute(c *gin.Context) {
	progress, err := h.service.Recompute(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}
