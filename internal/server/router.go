package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"package-manifest/internal/cache"
	"package-manifest/internal/database"
	"package-manifest/internal/export"
	"package-manifest/internal/handlers"
	"package-manifest/internal/metrics"
)

// Dependencies holds everything the HTTP API needs
type Dependencies struct {
	DB        *database.DB
	Processor cache.FileProcessor
	Engine    string            // converter name reported by the health check
	Cache     *cache.Manager    // optional
	Metrics   *metrics.Recorder // optional; enables GET /metrics
	Logger    *slog.Logger

	MaxUploadBytes int64
	// APIKey protects the administration routes when set
	APIKey string
}

// NewRouter builds the HTTP API
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	manifestCfg := handlers.ManifestHandlerConfig{MaxUploadBytes: deps.MaxUploadBytes}
	if deps.Metrics != nil {
		manifestCfg.OnCacheLookup = deps.Metrics.CacheLookup
	}

	health := handlers.NewHealthHandler(deps.DB, deps.Engine, deps.Cache)
	manifests := handlers.NewManifestHandler(deps.DB, deps.Processor, deps.Cache, export.NewExporter(logger), manifestCfg, logger)
	packages := handlers.NewPackageHandler(deps.DB, logger)

	r := chi.NewRouter()
	r.Use(
		LoggingMiddleware(logger),
		RecoveryMiddleware(logger),
		CORSMiddleware,
		ContentTypeMiddleware,
		SecurityMiddleware,
	)
	if deps.Metrics != nil {
		r.Use(MetricsMiddleware(deps.Metrics))
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Get("/api/health", health.HealthCheck)

	r.Route("/api/manifests", func(r chi.Router) {
		r.Get("/", manifests.List)
		r.Post("/", manifests.Upload)
		r.Get("/{id}", manifests.Get)
		r.Delete("/{id}", manifests.Delete)
		r.Get("/{id}/export", manifests.Export)
		r.Post("/{id}/import", manifests.Import)
	})

	r.Route("/api/packages", func(r chi.Router) {
		r.Get("/", packages.List)
		r.Post("/", packages.Create)
		r.Get("/stats", packages.Stats)
		r.Group(func(r chi.Router) {
			if deps.APIKey != "" {
				r.Use(AuthMiddleware(deps.APIKey, logger))
			}
			r.Get("/all", packages.All)
		})
		r.Get("/{id}", packages.Get)
		r.Put("/{id}", packages.Update)
		r.Delete("/{id}", packages.Delete)
	})

	if deps.Cache != nil {
		cacheHandler := handlers.NewCacheHandler(deps.Cache, logger)
		r.Route("/api/cache", func(r chi.Router) {
			if deps.APIKey != "" {
				r.Use(AuthMiddleware(deps.APIKey, logger))
			}
			r.Get("/stats", cacheHandler.Stats)
			r.Delete("/", cacheHandler.Clear)
		})
	}

	return r
}
