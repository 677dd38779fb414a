package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"package-manifest/internal/cache"
	"package-manifest/internal/database"
	"package-manifest/internal/manifest"
)

// OutputFormatter handles different output formats
type OutputFormatter struct {
	format string
	quiet  bool
	out    io.Writer
	errOut io.Writer
	styles styles
}

type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	err   lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{title: plain, label: plain, ok: plain, warn: plain, err: plain}
	}
	return styles{
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		label: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("82")),
		warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		err:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// NewOutputFormatter creates a formatter writing to stdout and stderr. Colors
// are used only when stdout is a terminal.
func NewOutputFormatter(format string, quiet, noColor bool) *OutputFormatter {
	color := !noColor && isatty.IsTerminal(os.Stdout.Fd())
	return &OutputFormatter{
		format: format,
		quiet:  quiet,
		out:    os.Stdout,
		errOut: os.Stderr,
		styles: newStyles(color),
	}
}

// NewOutputFormatterWithWriters creates an uncolored formatter writing to the given writers
func NewOutputFormatterWithWriters(format string, quiet bool, out, errOut io.Writer) *OutputFormatter {
	return &OutputFormatter{
		format: format,
		quiet:  quiet,
		out:    out,
		errOut: errOut,
		styles: newStyles(false),
	}
}

// encode writes v in a structured format. It reports false for the table format.
func (f *OutputFormatter) encode(v any) (bool, error) {
	switch f.format {
	case FormatJSON:
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(f.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	case FormatTable:
		return false, nil
	default:
		return true, fmt.Errorf("unsupported format: %s", f.format)
	}
}

// PrintResult prints a processing result
func (f *OutputFormatter) PrintResult(result *manifest.Result) error {
	if f.quiet {
		for _, p := range result.Packages {
			fmt.Fprintln(f.out, p.TrackingCode)
		}
		return nil
	}

	if handled, err := f.encode(result); handled {
		return err
	}
	return f.printResultTable(result)
}

func (f *OutputFormatter) printResultTable(result *manifest.Result) error {
	meta := result.Metadata
	mark := f.styles.ok.Render("✓")
	if !result.Success {
		mark = f.styles.err.Render("✗")
	}
	fmt.Fprintf(f.out, "%s %s\n", mark, f.styles.title.Render(meta.FileName))

	f.printField("Strategy", meta.Strategy)
	f.printField("Packages", fmt.Sprintf("%d extracted / %d expected", meta.ExtractedTotal, meta.ExpectedTotal))
	if meta.FallbackRecovered > 0 {
		f.printField("Recovered", fmt.Sprintf("%d from raw text", meta.FallbackRecovered))
	}
	if meta.ArrivalDate != "" {
		f.printField("Arrival", meta.ArrivalDate)
	}
	if meta.ReturnDate != "" {
		f.printField("Return", meta.ReturnDate)
	}
	f.printField("Pages", fmt.Sprintf("%d", meta.PagesProcessed))
	f.printField("Time", fmt.Sprintf("%dms", meta.ProcessingTime))
	if result.ManifestID != "" {
		f.printField("Manifest", result.ManifestID)
	}

	if len(result.Packages) > 0 {
		fmt.Fprintln(f.out)
		w := tabwriter.NewWriter(f.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LINE\tTRACKING\tRECIPIENT\tPOSITION\tDATE\tDEADLINE\tCONF")
		for _, p := range result.Packages {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
				p.LineNumber,
				p.TrackingCode,
				truncate(p.Recipient, 32),
				p.Position,
				p.Date,
				p.PickupDeadlineStr,
				p.Confidence)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(f.out, "%s %s\n", f.styles.warn.Render("!"), warning)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(f.out, "%s %s\n", f.styles.err.Render("✗"), e)
	}
	return nil
}

func (f *OutputFormatter) printField(label, value string) {
	fmt.Fprintf(f.out, "  %s %s\n", f.styles.label.Render(fmt.Sprintf("%-10s", label+":")), value)
}

// PrintManifests prints stored manifests
func (f *OutputFormatter) PrintManifests(manifests []database.Manifest) error {
	if f.quiet {
		for _, m := range manifests {
			fmt.Fprintln(f.out, m.ID)
		}
		return nil
	}
	if handled, err := f.encode(manifests); handled {
		return err
	}

	if len(manifests) == 0 {
		fmt.Fprintln(f.out, "No manifests found.")
		return nil
	}

	w := tabwriter.NewWriter(f.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILE\tSTRATEGY\tEXTRACTED\tEXPECTED\tARRIVAL\tCREATED")
	for _, m := range manifests {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			m.ID,
			truncate(m.FileName, 28),
			m.Strategy,
			m.ExtractedTotal,
			m.ExpectedTotal,
			m.ArrivalDate,
			m.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// PrintPackages prints inventory packages
func (f *OutputFormatter) PrintPackages(packages []database.StoredPackage) error {
	if f.quiet {
		for _, p := range packages {
			fmt.Fprintln(f.out, p.TrackingCode)
		}
		return nil
	}
	if handled, err := f.encode(packages); handled {
		return err
	}

	if len(packages) == 0 {
		fmt.Fprintln(f.out, "No packages found.")
		return nil
	}

	w := tabwriter.NewWriter(f.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTRACKING\tRECIPIENT\tPOSITION\tSTATUS\tDEADLINE\tDAYS")
	for _, p := range packages {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
			p.ID,
			p.TrackingCode,
			truncate(p.RecipientName, 32),
			p.Position,
			p.Status,
			p.PickupDeadline,
			p.DaysRemaining)
	}
	return w.Flush()
}

// PrintPackageStats prints inventory counts by status
func (f *OutputFormatter) PrintPackageStats(stats *database.PackageStats) error {
	if handled, err := f.encode(stats); handled {
		return err
	}
	f.printField("Total", fmt.Sprintf("%d", stats.Total))
	f.printField("Waiting", fmt.Sprintf("%d", stats.Waiting))
	f.printField("Delivered", fmt.Sprintf("%d", stats.Delivered))
	f.printField("Returned", fmt.Sprintf("%d", stats.Returned))
	return nil
}

// PrintImportSummary prints the outcome of an inventory import
func (f *OutputFormatter) PrintImportSummary(summary *database.ImportSummary) error {
	if f.quiet {
		return nil
	}
	if handled, err := f.encode(summary); handled {
		return err
	}
	fmt.Fprintf(f.out, "%s imported %d, %d duplicates, %d errors\n",
		f.styles.ok.Render("✓"), summary.Imported, summary.Duplicates, summary.Errors)
	for _, d := range summary.Details {
		if d.Error != "" {
			fmt.Fprintf(f.out, "%s %s: %s\n", f.styles.err.Render("✗"), d.TrackingCode, d.Error)
		}
	}
	return nil
}

// PrintCacheStats prints result cache statistics
func (f *OutputFormatter) PrintCacheStats(stats cache.CacheStats) error {
	if handled, err := f.encode(stats); handled {
		return err
	}
	if stats.Disabled {
		f.printField("Cache", "disabled")
		return nil
	}
	f.printField("TTL", stats.TTL.String())
	f.printField("Active", fmt.Sprintf("%d", stats.DatabaseActive))
	f.printField("Expired", fmt.Sprintf("%d", stats.DatabaseExpired))
	f.printField("In memory", fmt.Sprintf("%d", stats.MemoryTotal))
	f.printField("Size", fmt.Sprintf("%d bytes", stats.SizeBytes))
	return nil
}

// PrintSuccess prints a success message
func (f *OutputFormatter) PrintSuccess(message string) {
	if !f.quiet {
		fmt.Fprintf(f.errOut, "%s %s\n", f.styles.ok.Render("✓"), message)
	}
}

// PrintError prints an error message
func (f *OutputFormatter) PrintError(err error) {
	fmt.Fprintf(f.errOut, "%s Error: %v\n", f.styles.err.Render("✗"), err)
}

// PrintInfo prints an informational message
func (f *OutputFormatter) PrintInfo(message string) {
	if !f.quiet {
		fmt.Fprintf(f.errOut, "ℹ %s\n", message)
	}
}

// truncate shortens s to maxLen runes
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return strings.TrimSpace(string(runes[:maxLen-3])) + "..."
}
