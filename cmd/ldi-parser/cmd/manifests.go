package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	manifestsLimit  int
	manifestsOutput string
)

var manifestsCmd = &cobra.Command{
	Use:     "manifests",
	Aliases: []string{"m"},
	Short:   "Browse manifests stored on the server",
}

var manifestsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List processed manifests, most recent first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, formatter, client, err := initializeClient(cmd)
		if err != nil {
			return err
		}

		manifests, err := client.GetManifests(manifestsLimit)
		if err != nil {
			formatter.PrintError(err)
			return err
		}
		return formatter.PrintManifests(manifests)
	},
}

var manifestsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a stored manifest with its packages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, formatter, client, err := initializeClient(cmd)
		if err != nil {
			return err
		}

		m, err := client.GetManifest(args[0])
		if err != nil {
			formatter.PrintError(err)
			return err
		}
		return formatter.PrintResult(m.Result())
	},
}

var manifestsImportCmd = &cobra.Command{
	Use:   "import <id>",
	Short: "Add a stored manifest's packages to the inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, formatter, client, err := initializeClient(cmd)
		if err != nil {
			return err
		}

		summary, err := client.ImportManifest(args[0])
		if err != nil {
			formatter.PrintError(err)
			return err
		}
		return formatter.PrintImportSummary(summary)
	},
}

var manifestsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Download a stored manifest as XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, formatter, client, err := initializeClient(cmd)
		if err != nil {
			return err
		}

		output := manifestsOutput
		if output == "" {
			output = args[0] + ".xlsx"
		}
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", output, err)
		}
		if err := client.ExportManifest(args[0], f); err != nil {
			f.Close()
			os.Remove(output)
			formatter.PrintError(err)
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		formatter.PrintSuccess("Wrote " + output)
		return nil
	},
}

func init() {
	manifestsListCmd.Flags().IntVarP(&manifestsLimit, "limit", "n", 0, "Maximum manifests to list (server default 50)")
	manifestsExportCmd.Flags().StringVarP(&manifestsOutput, "output", "o", "", "Output file (default: <id>.xlsx)")
	manifestsCmd.AddCommand(manifestsListCmd, manifestsGetCmd, manifestsImportCmd, manifestsExportCmd)
	rootCmd.AddCommand(manifestsCmd)
}
