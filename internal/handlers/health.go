package handlers

import (
	"net/http"

	"package-manifest/internal/cache"
	"package-manifest/internal/database"
)

// Cache states reported by the health check
const (
	CacheEnabled  = "enabled"
	CacheDisabled = "disabled"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db     *database.DB
	engine string
	cache  *cache.Manager
}

// NewHealthHandler creates a new health handler. engine is the converter in
// use; cacheManager may be nil.
func NewHealthHandler(db *database.DB, engine string, cacheManager *cache.Manager) *HealthHandler {
	return &HealthHandler{db: db, engine: engine, cache: cacheManager}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Engine   string `json:"engine,omitempty"`
	Cache    string `json:"cache"`
	Message  string `json:"message,omitempty"`
}

// HealthCheck handles GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "healthy",
		Database: "ok",
		Engine:   h.engine,
		Cache:    CacheDisabled,
	}
	if h.cache != nil && h.cache.IsEnabled() {
		resp.Cache = CacheEnabled
	}

	if err := h.db.IsHealthy(); err != nil {
		resp.Status = "unhealthy"
		resp.Database = "error"
		resp.Message = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
