package cmd

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"package-manifest/internal/cache"
	"package-manifest/internal/database"
	"package-manifest/internal/manifest"
	"package-manifest/internal/metrics"
	"package-manifest/internal/server"
	"package-manifest/internal/workers"
)

const shutdownTimeout = 30 * time.Second

var (
	servePort string
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the manifest upload API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides server.port)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind (overrides server.host)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.ServerPort = servePort
	}
	if serveHost != "" {
		cfg.ServerHost = serveHost
	}

	ctx := cmd.Context()
	logger := newLogger(cfg)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Database initialized", "path", cfg.DBPath)

	cacheManager := cache.NewManager(db.ResultCache, cfg.DisableCache, cfg.CacheTTL, logger)
	defer cacheManager.Close()

	var recorder *metrics.Recorder
	var observer manifest.Observer
	if cfg.MetricsEnabled {
		recorder = metrics.NewRecorder(true)
		observer = recorder
	}

	processor, err := newProcessor(ctx, cfg, logger, observer)
	if err != nil {
		return err
	}
	logger.Info("Converter ready", "engine", processor.Strategy())

	if cfg.MonitorEnabled {
		var overdue workers.OverdueRecorder
		if recorder != nil {
			overdue = recorder
		}
		monitor := workers.NewDeadlineMonitor(workers.MonitorConfig{
			Interval:   cfg.MonitorInterval,
			AutoReturn: cfg.AutoReturn,
		}, db.Packages, overdue, logger)
		monitor.Start()
		defer monitor.Stop()
	}

	handler := server.NewRouter(server.Dependencies{
		DB:             db,
		Processor:      processor,
		Engine:         processor.Strategy(),
		Cache:          cacheManager,
		Metrics:        recorder,
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
		APIKey:         cfg.APIKey,
	})

	srv := &http.Server{
		Addr:    cfg.Address(),
		Handler: handler,

		ReadTimeout: 30 * time.Second,
		// uploads wait for the converter
		WriteTimeout: cfg.ConverterTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.Run(ctx, srv, shutdownTimeout, logger)
}
