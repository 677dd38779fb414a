package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"package-manifest/internal/database"
)

// initialCheckDelay gives the server time to settle before the first check
const initialCheckDelay = 30 * time.Second

// PackageStore is the part of the package inventory the monitor needs
type PackageStore interface {
	ListOverdue() ([]database.StoredPackage, error)
	Update(id int, status, notes *string) (*database.StoredPackage, error)
}

// OverdueRecorder receives the outcome of every check
type OverdueRecorder interface {
	OverdueChecked(overdue, returned int)
}

// MonitorConfig controls the deadline monitor
type MonitorConfig struct {
	Interval   time.Duration
	AutoReturn bool
}

// CheckReport summarizes one check
type CheckReport struct {
	Overdue  int
	Returned int
	Failed   int
}

// DeadlineMonitor periodically looks for waiting packages whose pickup
// deadline has passed. With AutoReturn set it marks them as returned.
type DeadlineMonitor struct {
	ctx      context.Context
	cancel   context.CancelFunc
	config   MonitorConfig
	store    PackageStore
	recorder OverdueRecorder
	paused   atomic.Bool
	logger   *slog.Logger
}

// NewDeadlineMonitor creates a monitor. recorder may be nil.
func NewDeadlineMonitor(cfg MonitorConfig, store PackageStore, recorder OverdueRecorder, logger *slog.Logger) *DeadlineMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DeadlineMonitor{
		ctx:      ctx,
		cancel:   cancel,
		config:   cfg,
		store:    store,
		recorder: recorder,
		logger:   logger,
	}
}

// Start begins the background checks
func (m *DeadlineMonitor) Start() {
	m.logger.Info("Starting deadline monitor",
		"interval", m.config.Interval,
		"auto_return", m.config.AutoReturn)

	go m.checkLoop()
}

// Stop ends the background checks
func (m *DeadlineMonitor) Stop() {
	m.logger.Info("Stopping deadline monitor")
	m.cancel()
}

// Pause skips checks until Resume is called
func (m *DeadlineMonitor) Pause() {
	m.paused.Store(true)
	m.logger.Info("Deadline monitor paused")
}

// Resume re-enables checks
func (m *DeadlineMonitor) Resume() {
	m.paused.Store(false)
	m.logger.Info("Deadline monitor resumed")
}

// IsPaused returns true if the monitor is currently paused
func (m *DeadlineMonitor) IsPaused() bool {
	return m.paused.Load()
}

// IsRunning returns true until Stop is called
func (m *DeadlineMonitor) IsRunning() bool {
	select {
	case <-m.ctx.Done():
		return false
	default:
		return true
	}
}

func (m *DeadlineMonitor) checkLoop() {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	initialDelay := time.NewTimer(min(initialCheckDelay, m.config.Interval))
	defer initialDelay.Stop()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("Deadline monitor stopped")
			return
		case <-initialDelay.C:
			m.runScheduled()
		case <-ticker.C:
			m.runScheduled()
		}
	}
}

func (m *DeadlineMonitor) runScheduled() {
	if m.paused.Load() {
		m.logger.Debug("Deadline monitor paused, skipping check")
		return
	}
	if _, err := m.Check(); err != nil {
		m.logger.Error("Deadline check failed", "error", err)
	}
}

// Check runs one pass over the overdue packages
func (m *DeadlineMonitor) Check() (CheckReport, error) {
	var report CheckReport

	overdue, err := m.store.ListOverdue()
	if err != nil {
		return report, err
	}
	report.Overdue = len(overdue)

	if m.config.AutoReturn {
		returned := database.StatusReturned
		for _, p := range overdue {
			if _, err := m.store.Update(p.ID, &returned, nil); err != nil {
				m.logger.Warn("Failed to mark package as returned",
					"tracking_code", p.TrackingCode,
					"error", err)
				report.Failed++
				continue
			}
			m.logger.Info("Package returned after pickup deadline",
				"tracking_code", p.TrackingCode,
				"deadline", p.PickupDeadline)
			report.Returned++
		}
	} else if report.Overdue > 0 {
		m.logger.Info("Packages past their pickup deadline", "count", report.Overdue)
	}

	if m.recorder != nil {
		m.recorder.OverdueChecked(report.Overdue, report.Returned)
	}
	return report, nil
}
