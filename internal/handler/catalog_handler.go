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

type catalogService interface {
	Subject(ctx context.Context, id string) (*models.Subject, error)
	Pool(ctx context.Context, id string) (*models.ElectivePool, error)
	SaveSubject(ctx context.Context, subject *models.Subject) error
	Check(ctx context.Context) (service.CatalogReport, error)
}

// CatalogHandler exposes subjects, elective pools and the consistency check.
type CatalogHandler struct {
	service catalogService
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(service catalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// Subject godoc
// @Summary Subject detail
// @Tags Catalog
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id} [get]
func (h *CatalogHandler) Subject(c *gin.Context) {
	subject, err := h.service.Subject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// SaveSubject godoc
// @Summary Create or update a subject
// @Description The subject program is derived from its level and never taken from the payload.
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param payload body models.Subject true "Subject"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id} [put]
func (h *CatalogHandler) SaveSubject(c *gin.Context) {
	var subject models.Subject
	if err := c.ShouldBindJSON(&subject); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid subject payload"))
		return
	}
	subject.ID = c.Param("id")
	if err := h.service.SaveSubject(c.Request.Context(), &subject); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// Pool godoc
// @Summary Elective pool with its subjects
// @Tags Catalog
// @Produce json
// @Param id path string true "Pool ID"
// @Success 200 {object} response.Envelope
// @Router /elective-pools/{id} [get]
func (h *CatalogHandler) Pool(c *gin.Context) {
	pool, err := h.service.Pool(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pool, nil)
}

// Check godoc
// @Summary Catalog consistency report
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog/check [get]
func (h *CatalogHandler) Check(c *gin.Context) {
	report, err := h.service.Check(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil, map[string]interface{}{"ok": report.OK()})
}
