package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"pnodewatch/services"
)

type HistoryHandlers struct {
	mongo *services.MongoDBService
}

func NewHistoryHandlers(mongo *services.MongoDBService) *HistoryHandlers {
	return &HistoryHandlers{mongo: mongo}
}

func (h *HistoryHandlers) available() bool {
	return h.mongo != nil && h.mongo.Enabled()
}

func parseHours(c echo.Context) time.Duration {
	hours, _ := strconv.Atoi(c.QueryParam("hours"))
	if hours < 1 {
		hours = 24
	}
	if hours > 24*30 {
		hours = 24 * 30
	}
	return time.Duration(hours) * time.Hour
}

// GetNetworkHistory returns fleet-level snapshot rows for charting.
func (h *HistoryHandlers) GetNetworkHistory(c echo.Context) error {
	if !h.available() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "history storage is not configured",
		})
	}

	end := time.Now().UTC()
	start := end.Add(-parseHours(c))

	docs, err := h.mongo.GetNetworkSnapshotsRange(c.Request().Context(), start, end)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"start":     start,
		"end":       end,
		"snapshots": docs,
	})
}

// GetPnodeHistory returns one node's telemetry samples.
func (h *HistoryHandlers) GetPnodeHistory(c echo.Context) error {
	if !h.available() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "history storage is not configured",
		})
	}

	pubkey := c.Param("pubkey")
	end := time.Now().UTC()
	start := end.Add(-parseHours(c))

	docs, err := h.mongo.GetPnodeStatsRange(c.Request().Context(), pubkey, start, end)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"pubkey":  pubkey,
		"start":   start,
		"end":     end,
		"samples": docs,
	})
}
