package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"pnodewatch/config"
	"pnodewatch/models"
	"pnodewatch/services"
)

type ProbeHandlers struct {
	cfg      *config.Config
	snapshot *services.SnapshotService
	probe    *services.ProbeService
}

func NewProbeHandlers(cfg *config.Config, snapshot *services.SnapshotService, probe *services.ProbeService) *ProbeHandlers {
	return &ProbeHandlers{cfg: cfg, snapshot: snapshot, probe: probe}
}

type ProbeResponse struct {
	ProbedAt  time.Time          `json:"probed_at"`
	Total     int                `json:"total"`
	Reachable int                `json:"reachable"`
	Rows      []*models.PnodeRow `json:"rows"`
}

// RunProbe probes every node in the current snapshot and returns row
// copies with probe results attached. The probe toggle is enforced
// here, not inside the pipeline.
func (h *ProbeHandlers) RunProbe(c echo.Context) error {
	if !h.cfg.Probe.Enabled {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "probing is disabled",
		})
	}

	ctx := c.Request().Context()
	snapshot := h.snapshot.GetSnapshot(ctx)

	results := h.probe.ProbeNodes(ctx, snapshot.Rows, 0)

	// Cached rows stay untouched; probe data goes onto fresh copies.
	reachable := 0
	rows := make([]*models.PnodeRow, 0, len(snapshot.Rows))
	for _, row := range snapshot.Rows {
		probed := *row
		probed.Probe = results[row.Pubkey]
		if probed.Probe != nil && probed.Probe.RpcReachable {
			reachable++
		}
		rows = append(rows, &probed)
	}

	return c.JSON(http.StatusOK, ProbeResponse{
		ProbedAt:  time.Now().UTC(),
		Total:     len(rows),
		Reachable: reachable,
		Rows:      rows,
	})
}
