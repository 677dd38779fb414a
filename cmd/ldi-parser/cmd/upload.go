package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	cliapi "package-manifest/internal/cli"
)

var (
	uploadImport  bool
	uploadNoCache bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Send a manifest PDF to the server for extraction",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadImport, "import", false, "Add extracted packages to the server's inventory")
	uploadCmd.Flags().BoolVar(&uploadNoCache, "no-cache", false, "Ask the server to bypass its result cache")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := checkInputFile(path); err != nil {
		return err
	}

	cfg, formatter, client, err := initializeClient(cmd)
	if err != nil {
		return err
	}

	spinner := cliapi.NewProgressSpinner("Uploading "+filepath.Base(path), cfg.NoColor || cfg.Quiet)
	spinner.Start()
	resp, err := client.UploadManifest(path, uploadImport, uploadNoCache)
	spinner.Stop()
	if err != nil {
		formatter.PrintError(err)
		return err
	}

	if resp.Cached {
		formatter.PrintInfo("Server used a cached result")
	}
	if err := formatter.PrintResult(resp.Result); err != nil {
		return err
	}
	if resp.Import != nil {
		formatter.PrintSuccess(fmt.Sprintf("Imported %d packages (%d duplicates, %d errors)",
			resp.Import.Imported, resp.Import.Duplicates, resp.Import.Errors))
	}
	return nil
}
