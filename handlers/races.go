package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/raceflow/store"
)

// Race returns a race with its current entrant snapshots.
func (h *Handler) Race(c echo.Context) error {
	externalID := c.Param("id")
	if externalID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing race id")
	}

	ctx := c.Request().Context()
	race, err := h.store.RaceByExternalID(ctx, externalID)
	if errors.Is(err, store.ErrRaceNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "race not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	entrants, err := h.store.EntrantsByRace(ctx, race.RaceID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"race":     race,
		"entrants": entrants,
	})
}

// MoneyFlow returns the full bucket series for a race, newest observation
// last per entrant.
func (h *Handler) MoneyFlow(c echo.Context) error {
	raceID, err := strconv.ParseInt(c.Param("raceID"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid race id")
	}

	buckets, err := h.store.BucketsByRace(c.Request().Context(), raceID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, buckets)
}
