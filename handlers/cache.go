package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pnodewatch/services"
)

type CacheHandlers struct {
	caches *services.Caches
}

func NewCacheHandlers(caches *services.Caches) *CacheHandlers {
	return &CacheHandlers{caches: caches}
}

// GetCacheStatus returns per-class entry counts
func (h *CacheHandlers) GetCacheStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sizes": h.caches.Sizes(),
	})
}

// ClearCache empties every cache class (admin endpoint)
func (h *CacheHandlers) ClearCache(c echo.Context) error {
	h.caches.ClearAll()
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Cache cleared successfully",
	})
}
