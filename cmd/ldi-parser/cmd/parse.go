package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	cliapi "package-manifest/internal/cli"
)

var (
	parseEngine  string
	parseNoCache bool
	parseSave    bool
	parseImport  bool
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Extract packages from a manifest PDF",
	Long: `Extract every package record from a manifest PDF and print the result.

A document that yields no packages is still reported on stdout with
success=false and its errors; the command itself only fails when the file
cannot be read or the configuration is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVarP(&parseEngine, "engine", "e", "", "Converter engine (auto, docling, native)")
	parseCmd.Flags().BoolVar(&parseNoCache, "no-cache", false, "Bypass the result cache")
	parseCmd.Flags().BoolVar(&parseSave, "save", false, "Store the result in the manifest history")
	parseCmd.Flags().BoolVar(&parseImport, "import", false, "Add extracted packages to the pickup inventory (implies --save)")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := checkInputFile(path); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if parseEngine != "" {
		cfg.ConverterEngine = parseEngine
	}
	cliCfg, err := loadCLIConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := newLogger(cfg)
	formatter := cliapi.NewOutputFormatter(cliCfg.Format, cliCfg.Quiet, cliCfg.NoColor)

	store := parseSave || parseImport
	pipeline, err := openLocalPipeline(ctx, cfg, logger, !parseNoCache, store)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	spinner := cliapi.NewProgressSpinner("Processing "+filepath.Base(path), cliCfg.NoColor || cliCfg.Quiet)
	spinner.Start()
	result, cached := pipeline.Process(ctx, path)
	spinner.Stop()

	if cached {
		formatter.PrintInfo("Using cached result")
	}

	if store {
		saved := *result
		id, err := pipeline.db.Manifests.Create(&saved)
		if err != nil {
			return fmt.Errorf("failed to save manifest: %w", err)
		}
		saved.ManifestID = id
		result = &saved
		formatter.PrintSuccess("Saved manifest " + id)
	}

	if err := formatter.PrintResult(result); err != nil {
		return err
	}

	if parseImport && result.Success {
		summary, err := pipeline.db.Packages.Import(result.ManifestID, result.Packages)
		if err != nil {
			return fmt.Errorf("failed to import packages: %w", err)
		}
		formatter.PrintSuccess(fmt.Sprintf("Imported %d packages (%d duplicates, %d errors)",
			summary.Imported, summary.Duplicates, summary.Errors))
	}
	return nil
}
