// Package httpapi exposes the V3 optimizer over HTTP (spec §6). Thin glue
// around internal/solver.Service, styled after the teacher's gin handlers.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wajdi-kharroubi/isi-surveillance/internal/dto"
	appErrors "github.com/wajdi-kharroubi/isi-surveillance/pkg/errors"
	"github.com/wajdi-kharroubi/isi-surveillance/pkg/response"
)

type schedulerService interface {
	Run(ctx context.Context, req dto.Request) (*dto.Response, error)
}

// SchedulerHandler exposes the scheduler run endpoint.
type SchedulerHandler struct {
	service schedulerService
}

// NewSchedulerHandler constructs the handler.
func NewSchedulerHandler(svc schedulerService) *SchedulerHandler {
	return &SchedulerHandler{service: svc}
}

// Register wires the scheduler routes onto the given group.
func (h *SchedulerHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/schedule/runs", h.Run)
}

// Run godoc
// @Summary Run the invigilation scheduler
// @Description Builds and solves the CP-SAT invigilation assignment model for the given teachers, exams, and wishes.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.Request true "Scheduling request"
// @Success 200 {object} response.Envelope
// @Router /schedule/runs [post]
func (h *SchedulerHandler) Run(c *gin.Context) {
	var req dto.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scheduling request payload"))
		return
	}
	result, err := h.service.Run(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
