package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"pnodewatch/config"
	"pnodewatch/models"
	"pnodewatch/services"
)

type LiveStatsHandlers struct {
	cfg      *config.Config
	snapshot *services.SnapshotService
	prpc     *services.PRPCClient
	caches   *services.Caches
}

func NewLiveStatsHandlers(cfg *config.Config, snapshot *services.SnapshotService, prpc *services.PRPCClient, caches *services.Caches) *LiveStatsHandlers {
	return &LiveStatsHandlers{cfg: cfg, snapshot: snapshot, prpc: prpc, caches: caches}
}

type LiveStatsResponse struct {
	Pubkey    string                `json:"pubkey"`
	Cached    bool                  `json:"cached"`
	FetchedAt time.Time             `json:"fetched_at"`
	Stats     *models.StatsResponse `json:"stats"`
}

// GetLiveStats fetches one node's get-stats telemetry on demand,
// read through the short-TTL live-stats cache so dashboard polling
// does not hammer the node.
func (h *LiveStatsHandlers) GetLiveStats(c echo.Context) error {
	ctx := c.Request().Context()
	pubkey := c.Param("pubkey")

	row := h.snapshot.GetPnodeByID(ctx, pubkey)
	if row == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "pnode not found",
		})
	}
	if row.RPCURL() == "" {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "pnode advertises no RPC endpoint",
		})
	}

	stats, cached, err := h.caches.LiveStats.GetOrSet(pubkey, func() (*models.StatsResponse, error) {
		statsResp, _, err := h.prpc.GetStats(ctx, row.RPCURL(), h.cfg.CollectTimeout())
		return statsResp, err
	}, h.cfg.LiveStatsCacheTTL())
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, LiveStatsResponse{
		Pubkey:    pubkey,
		Cached:    cached,
		FetchedAt: time.Now().UTC(),
		Stats:     stats,
	})
}
