package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"pnodewatch/services"
)

type CollectHandlers struct {
	snapshot  *services.SnapshotService
	collector *services.StatsCollector
	notifier  *services.DiscordNotifier
}

func NewCollectHandlers(snapshot *services.SnapshotService, collector *services.StatsCollector, notifier *services.DiscordNotifier) *CollectHandlers {
	return &CollectHandlers{snapshot: snapshot, collector: collector, notifier: notifier}
}

// RunCollection is the ingestion trigger: one stats sweep across the
// current fleet, persisted through the sink. Authentication of the
// caller is the deployment's job (reverse proxy / platform scheduler).
func (h *CollectHandlers) RunCollection(c echo.Context) error {
	ctx := c.Request().Context()
	snapshot := h.snapshot.GetSnapshot(ctx)

	if len(snapshot.Rows) == 0 && len(snapshot.Errors) > 0 {
		return c.JSON(http.StatusBadGateway, map[string]interface{}{
			"error":  "fleet snapshot unavailable",
			"detail": snapshot.Errors,
		})
	}

	summary := h.collector.CollectStatsFromNodes(ctx, snapshot.Rows, time.Now().UTC())

	if h.notifier != nil {
		h.notifier.NotifyCollectionSummary(summary, snapshot.Stats)
	}

	return c.JSON(http.StatusOK, summary)
}
