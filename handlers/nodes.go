package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"pnodewatch/config"
	"pnodewatch/models"
	"pnodewatch/services"
)

type Handler struct {
	Cfg      *config.Config
	Snapshot *services.SnapshotService
	started  time.Time
}

func NewHandler(cfg *config.Config, snapshot *services.SnapshotService) *Handler {
	return &Handler{
		Cfg:      cfg,
		Snapshot: snapshot,
		started:  time.Now(),
	}
}

type PnodesResponse struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Stale       bool                 `json:"stale"`
	Errors      []string             `json:"errors,omitempty"`
	Page        int                  `json:"page"`
	Limit       int                  `json:"limit"`
	Total       int                  `json:"total"`
	Rows        []*models.PnodeRow   `json:"rows"`
	Stats       models.SnapshotStats `json:"stats"`
}

// GetPnodes returns the filtered, sorted, paginated fleet list.
// Query params: search, version, has_rpc, sort, order, page, limit.
func (h *Handler) GetPnodes(c echo.Context) error {
	snapshot := h.Snapshot.GetSnapshot(c.Request().Context())

	criteria := models.FilterCriteria{
		Search:  c.QueryParam("search"),
		Version: c.QueryParam("version"),
	}
	if val := c.QueryParam("has_rpc"); val != "" {
		hasRPC := val == "true" || val == "1"
		criteria.HasRPC = &hasRPC
	}

	rows := services.FilterPnodes(snapshot.Rows, criteria)

	sortField := c.QueryParam("sort")
	sortOrder := c.QueryParam("order")
	if sortOrder == "" {
		sortOrder = "asc"
	}
	rows = services.SortPnodes(rows, sortField, sortOrder)

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	total := len(rows)
	startIdx := (page - 1) * limit
	if startIdx > total {
		startIdx = total
	}
	endIdx := startIdx + limit
	if endIdx > total {
		endIdx = total
	}

	return c.JSON(http.StatusOK, PnodesResponse{
		GeneratedAt: snapshot.GeneratedAt,
		Stale:       snapshot.Stale,
		Errors:      snapshot.Errors,
		Page:        page,
		Limit:       limit,
		Total:       total,
		Rows:        rows[startIdx:endIdx],
		Stats:       snapshot.Stats,
	})
}

// GetPnode returns one row by pubkey.
func (h *Handler) GetPnode(c echo.Context) error {
	pubkey := c.Param("pubkey")

	row := h.Snapshot.GetPnodeByID(c.Request().Context(), pubkey)
	if row == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "pnode not found",
		})
	}
	return c.JSON(http.StatusOK, row)
}

// GetStats returns the current snapshot envelope without rows, for the
// overview cards.
func (h *Handler) GetStats(c echo.Context) error {
	snapshot := h.Snapshot.GetSnapshot(c.Request().Context())

	return c.JSON(http.StatusOK, map[string]interface{}{
		"generated_at":      snapshot.GeneratedAt,
		"source":            snapshot.Source,
		"stale":             snapshot.Stale,
		"errors":            snapshot.Errors,
		"fetch_duration_ms": snapshot.FetchDurationMs,
		"stats":             snapshot.Stats,
	})
}

// GetHealth returns OK
func (h *Handler) GetHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// GetStatus returns backend status
func (h *Handler) GetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "running",
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"endpoint":  h.Cfg.PRPC.Endpoint,
		"timestamp": time.Now().UTC(),
	})
}
