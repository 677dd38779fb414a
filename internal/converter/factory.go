package converter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"package-manifest/internal/manifest"
)

// Engine names accepted by New
const (
	EngineDocling = manifest.StrategyDocling
	EngineNative  = manifest.StrategyNative
	EngineAuto    = "auto"
)

// Config selects and configures a converter
type Config struct {
	Engine  string
	Docling DoclingConfig
}

// availabilityChecker is implemented by converters that depend on external tools
type availabilityChecker interface {
	Available(ctx context.Context) bool
}

// New creates the converter named by cfg.Engine. The auto engine prefers
// docling and falls back to the native converter when docling is not installed.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (manifest.Converter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case EngineDocling:
		return NewDoclingConverter(cfg.Docling, logger), nil
	case EngineNative:
		return NewNativeConverter(logger), nil
	case EngineAuto, "":
		docling := NewDoclingConverter(cfg.Docling, logger)
		return pickAvailable(ctx, docling, NewNativeConverter(logger), logger), nil
	default:
		return nil, fmt.Errorf("unknown converter engine %q", cfg.Engine)
	}
}

func pickAvailable(ctx context.Context, preferred, fallback manifest.Converter, logger *slog.Logger) manifest.Converter {
	if checker, ok := preferred.(availabilityChecker); ok && !checker.Available(ctx) {
		logger.Info("Converter unavailable, using fallback", "preferred", preferred.Name(), "fallback", fallback.Name())
		return fallback
	}
	return preferred
}
