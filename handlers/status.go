package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/raceflow/models"
	"github.com/padraicbc/raceflow/resilience"
	"github.com/padraicbc/raceflow/scheduler"
)

type statusResponse struct {
	Lock     *models.SchedulerLock `json:"lock,omitempty"`
	Progress scheduler.Progress    `json:"progress"`
	Breakers []resilience.Snapshot `json:"breakers"`
}

// Status reports the lock row, scheduler progress and breaker states.
func (h *Handler) Status(c echo.Context) error {
	lock, err := h.store.GetLock(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, statusResponse{
		Lock:     lock,
		Progress: h.sched.Progress(),
		Breakers: h.pipeline.Breakers(),
	})
}

// Assignments lists the races currently holding a polling timer.
func (h *Handler) Assignments(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sched.Assignments())
}
