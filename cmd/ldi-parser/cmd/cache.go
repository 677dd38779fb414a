package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"package-manifest/internal/cache"
	cliapi "package-manifest/internal/cli"
	"package-manifest/internal/database"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the local result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE: withCache(func(m *cache.Manager, f *cliapi.OutputFormatter) error {
		stats, err := m.GetStats()
		if err != nil {
			return err
		}
		return f.PrintCacheStats(stats)
	}),
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove expired cache entries",
	Args:  cobra.NoArgs,
	RunE: withCache(func(m *cache.Manager, f *cliapi.OutputFormatter) error {
		removed, err := m.CleanExpired()
		if err != nil {
			return err
		}
		f.PrintSuccess(fmt.Sprintf("Removed %d expired entries", removed))
		return nil
	}),
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cache entry",
	Args:  cobra.NoArgs,
	RunE: withCache(func(m *cache.Manager, f *cliapi.OutputFormatter) error {
		if err := m.Clear(); err != nil {
			return err
		}
		f.PrintSuccess("Cache cleared")
		return nil
	}),
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheCleanCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

// withCache opens the configured database and cache for a cache subcommand
func withCache(fn func(*cache.Manager, *cliapi.OutputFormatter) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cliCfg, err := loadCLIConfig(cmd)
		if err != nil {
			return err
		}

		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		m := cache.NewManager(db.ResultCache, cfg.DisableCache, cfg.CacheTTL, newLogger(cfg))
		defer m.Close()

		return fn(m, cliapi.NewOutputFormatter(cliCfg.Format, cliCfg.Quiet, cliCfg.NoColor))
	}
}
