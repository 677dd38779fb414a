package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	cliapi "package-manifest/internal/cli"
	"package-manifest/internal/database"
)

var (
	packagesSearch string
	packagesStatus string
	packagesAll    bool
	updateStatus   string
	updateNotes    string
)

var packagesCmd = &cobra.Command{
	Use:     "packages",
	Aliases: []string{"p"},
	Short:   "Manage the pickup inventory on the server",
}

var packagesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List inventory packages",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, formatter, client, err := initializeClient(cmd)
		if err != nil {
			return err
		}

		var packages []database.StoredPackage
		if packagesAll {
			packages, err = client.GetAllPackages()
		} else {
			packages, err = client.GetPackages(packagesSearch, packagesStatus)
		}
		if err != nil {
			formatter.PrintError(err)
			return err
		}
		return formatter.PrintPackages(packages)
	},
}

var packagesUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a package's status or notes",
	Long: fmt.Sprintf(`Change a package's status or notes.

Status is one of %s (waiting), %s (picked up) or %s (returned to sender).`,
		database.StatusWaiting, database.StatusDelivered, database.StatusReturned),
	Args: cobra.ExactArgs(1),
	RunE: runPackagesUpdate,
}

var packagesDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a package from the inventory",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := validateAndParseID(args[0])
		if err != nil {
			return err
		}
		_, formatter, client, err := initializeClient(cmd)
		if err != nil {
			return err
		}

		if err := client.DeletePackage(id); err != nil {
			formatter.PrintError(err)
			return err
		}
		formatter.PrintSuccess(fmt.Sprintf("Deleted package %d", id))
		return nil
	},
}

var packagesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count inventory packages by status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, formatter, client, err := initializeClient(cmd)
		if err != nil {
			return err
		}

		stats, err := client.GetPackageStats()
		if err != nil {
			formatter.PrintError(err)
			return err
		}
		return formatter.PrintPackageStats(stats)
	},
}

func init() {
	packagesListCmd.Flags().StringVar(&packagesSearch, "search", "", "Match recipient name or tracking code")
	packagesListCmd.Flags().StringVar(&packagesStatus, "status", "", "Filter by status (aguardando, entregue, devolvido)")
	packagesListCmd.Flags().BoolVar(&packagesAll, "all", false, "Whole inventory grouped by status (needs the admin key when the server sets one)")
	packagesListCmd.MarkFlagsMutuallyExclusive("all", "search")
	packagesListCmd.MarkFlagsMutuallyExclusive("all", "status")
	packagesUpdateCmd.Flags().StringVar(&updateStatus, "status", "", "New status")
	packagesUpdateCmd.Flags().StringVar(&updateNotes, "notes", "", "New notes")

	packagesCmd.AddCommand(packagesListCmd, packagesUpdateCmd, packagesDeleteCmd, packagesStatsCmd)
	rootCmd.AddCommand(packagesCmd)
}

func runPackagesUpdate(cmd *cobra.Command, args []string) error {
	id, err := validateAndParseID(args[0])
	if err != nil {
		return err
	}

	req, err := buildUpdateRequest(cmd)
	if err != nil {
		return err
	}

	_, formatter, client, err := initializeClient(cmd)
	if err != nil {
		return err
	}

	p, err := client.UpdatePackage(id, req)
	if err != nil {
		formatter.PrintError(err)
		return err
	}
	return formatter.PrintPackages([]database.StoredPackage{*p})
}

// buildUpdateRequest sends only the fields whose flags were given
func buildUpdateRequest(cmd *cobra.Command) (*cliapi.UpdatePackageRequest, error) {
	req := &cliapi.UpdatePackageRequest{}
	if cmd.Flags().Changed("status") {
		if !database.ValidStatus(updateStatus) {
			return nil, fmt.Errorf("invalid status %q", updateStatus)
		}
		req.Status = &updateStatus
	}
	if cmd.Flags().Changed("notes") {
		req.Notes = &updateNotes
	}
	if req.Status == nil && req.Notes == nil {
		return nil, fmt.Errorf("nothing to update: use --status or --notes")
	}
	return req, nil
}
