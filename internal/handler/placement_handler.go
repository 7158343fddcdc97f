package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/benglish/academic-core/internal/models"
	"github.com/benglish/academic-core/internal/service"
	appErrors "github.com/benglish/academic-core/pkg/errors"
	"github.com/benglish/academic-core/pkg/response"
)

type placementService interface {
	Create(ctx context.Context, req service.CreatePlacementRequest) (*models.PlacementTest, error)
	Get(ctx context.Context, id string) (*models.PlacementTest, error)
	HandleLMSResult(ctx context.Context, payload service.LMSResultPayload) service.LMSResultResponse
	Consolidate(ctx context.Context, id string) (*models.PlacementTest, error)
}

// PlacementHandler exposes placement tests and the LMS result webhook.
type PlacementHandler struct {
	service placementService
}

// NewPlacementHandler constructs the handler.
func NewPlacementHandler(service placementService) *PlacementHandler {
	return &PlacementHandler{service: service}
}

// Create godoc
// @Summary Open a placement test
// @Tags Placement
// @Accept json
// @Produce json
// @Param payload body service.CreatePlacementRequest true "Placement payload"
// @Success 201 {object} response.Envelope
// @Router /placement-tests [post]
func (h *PlacementHandler) Create(c *gin.Context) {
	var req service.CreatePlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid placement payload"))
		return
	}
	test, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, test)
}

// Get godoc
// @Summary Placement test detail
// @Tags Placement
// @Produce json
// @Param id path string true "Placement test ID"
// @Success 200 {object} response.Envelope
// @Router /placement-tests/{id} [get]
func (h *PlacementHandler) Get(c *gin.Context) {
	test, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, test, nil)
}

// Consolidate godoc
// @Summary Consolidate a placement test awaiting decision
// @Tags Placement
// @Produce json
// @Param id path string true "Placement test ID"
// @Success 200 {object} response.Envelope
// @Router /placement-tests/{id}/consolidate [post]
func (h *PlacementHandler) Consolidate(c *gin.Context) {
	test, err := h.service.Consolidate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, test, nil)
}

// LMSResult godoc
// @Summary LMS placement result webhook
// @Description Always answers 200; failures are reported as status "error" in the body.
// @Tags Placement
// @Accept json
// @Produce json
// @Param payload body service.LMSResultPayload true "LMS result"
// @Success 200 {object} service.LMSResultResponse
// @Router /placement/lms_result [post]
func (h *PlacementHandler) LMSResult(c *gin.Context) {
	var payload service.LMSResultPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusOK, service.LMSResultResponse{Status: "error", Message: "JSON inválido"})
		return
	}
	c.JSON(http.StatusOK, h.service.HandleLMSResult(c.Request.Context(), payload))
}
