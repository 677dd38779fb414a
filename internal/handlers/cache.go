package handlers

import (
	"log/slog"
	"net/http"

	"package-manifest/internal/cache"
)

// CacheHandler exposes the result cache
type CacheHandler struct {
	cache  *cache.Manager
	logger *slog.Logger
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(cacheManager *cache.Manager, logger *slog.Logger) *CacheHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheHandler{cache: cacheManager, logger: logger}
}

// Stats handles GET /api/cache/stats
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.GetStats()
	if err != nil {
		h.logger.Error("Failed to get cache stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get cache stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Clear handles DELETE /api/cache
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Clear(); err != nil {
		h.logger.Error("Failed to clear cache", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
