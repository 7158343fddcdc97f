package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	appErrors "github.com/benglish/academic-core/pkg/errors"
	"github.com/benglish/academic-core/pkg/response"
)

type maintenanceQueue interface {
	Tasks() []string
	Enqueue(task string, revert bool) (string, error)
}

// MaintenanceHandler queues catalog repair tasks.
type MaintenanceHandler struct {
	queue maintenanceQueue
}

// NewMaintenanceHandler constructs the handler.
func NewMaintenanceHandler(queue maintenanceQueue) *MaintenanceHandler {
	return &MaintenanceHandler{queue: queue}
}

// Tasks godoc
// @Summary List maintenance tasks
// @Tags Maintenance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/maintenance [get]
func (h *MaintenanceHandler) Tasks(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.queue.Tasks(), nil)
}

// Run godoc
// @Summary Queue a maintenance task
// @Tags Maintenance
// @Produce json
// @Param task path string true "Task name"
// @Param revert query bool false "Reactivate instead of deactivate (deactivate-skills-extras)"
// @Success 202 {object} response.Envelope
// @Router /admin/maintenance/{task} [post]
func (h *MaintenanceHandler) Run(c *gin.Context) {
	revert := false
	if raw := c.Query("revert"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "revert must be a boolean"))
			return
		}
		revert = parsed
	}
	task := c.Param("task")
	jobID, err := h.queue.Enqueue(task, revert)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"job_id": jobID, "task": task}, nil)
}
