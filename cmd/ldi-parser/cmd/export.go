package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	cliapi "package-manifest/internal/cli"
	"package-manifest/internal/export"
)

var (
	exportOutput  string
	exportNoCache bool
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Extract a manifest PDF into an XLSX spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: input name with .xlsx)")
	exportCmd.Flags().BoolVar(&exportNoCache, "no-cache", false, "Bypass the result cache")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := checkInputFile(path); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cliCfg, err := loadCLIConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := newLogger(cfg)
	formatter := cliapi.NewOutputFormatter(cliCfg.Format, cliCfg.Quiet, cliCfg.NoColor)

	pipeline, err := openLocalPipeline(ctx, cfg, logger, !exportNoCache, false)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	spinner := cliapi.NewProgressSpinner("Processing "+filepath.Base(path), cliCfg.NoColor || cliCfg.Quiet)
	spinner.Start()
	result, _ := pipeline.Process(ctx, path)
	spinner.Stop()

	output := exportOutput
	if output == "" {
		output = strings.TrimSuffix(path, filepath.Ext(path)) + ".xlsx"
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	if err := export.NewExporter(logger).WriteXLSX(f, result); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if !result.Success {
		formatter.PrintError(fmt.Errorf("no packages extracted: %s", strings.Join(result.Errors, "; ")))
	}
	formatter.PrintSuccess(fmt.Sprintf("Wrote %d packages to %s", result.TotalPackages, output))
	return nil
}
