package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coltonswapp/nest-note-sub009/internal/services"
	"github.com/coltonswapp/nest-note-sub009/pkg/response"
)

// SweepHandler exposes manual sweep triggers. These run the same code paths as
// the scheduled jobs and are safe to invoke at any time because every status
// update is guarded on the session's current state.
type SweepHandler struct {
	sweeps   *services.SweepService
	archival *services.ArchivalService
}

func NewSweepHandler(sweeps *services.SweepService, archival *services.ArchivalService) *SweepHandler {
	return &SweepHandler{sweeps: sweeps, archival: archival}
}

// POST /api/v1/sweeps/transitions
func (h *SweepHandler) RunTransitions(c *gin.Context) {
	result, err := h.sweeps.RunTransitionSweep(requestContext(c), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// POST /api/v1/sweeps/archival
func (h *SweepHandler) RunArchival(c *gin.Context) {
	result, err := h.archival.RunArchivalSweep(requestContext(c), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}
